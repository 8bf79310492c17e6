package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/orchestra/internal/version"
	"github.com/hrygo/orchestra/spell"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Endpoint describes one trigger endpoint for discovery.
type Endpoint struct {
	Endpoint    string   `json:"endpoint"`
	Method      string   `json:"method"`
	Description string   `json:"description"`
	Supported   []string `json:"supported,omitempty"`
	Example     any      `json:"example"`
}

func (s *APIV1Service) version() string {
	if s.Profile != nil && s.Profile.Version != "" {
		return s.Profile.Version
	}
	return version.String()
}

func (s *APIV1Service) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   s.version(),
		Timestamp: time.Now(),
	})
}

func (s *APIV1Service) Info(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"name":        "Orchestra API",
		"version":     s.version(),
		"description": "Voice and text command automation hub",
		"agent_mode":  s.AgentAvailable,
		"endpoints": map[string]string{
			"health":        "/api/v1/health",
			"workout":       "/api/v1/workout",
			"daily_note":    "/api/v1/daily-note",
			"studio":        "/api/v1/studio",
			"voice_command": "/api/v1/voice-command",
			"automations":   "/api/v1/automations",
			"spells":        "/api/v1/spells",
			"metrics":       "/metrics",
		},
	})
}

func (s *APIV1Service) ListAutomations(c echo.Context) error {
	automations := map[string]Endpoint{
		"workout_automations": {
			Endpoint:    "/workout",
			Method:      http.MethodPost,
			Description: "Trigger workout-related note automations",
			Supported:   workoutTypes,
			Example:     WorkoutRequest{WorkoutType: "running", Date: "2024-01-15"},
		},
		"daily_note_automations": {
			Endpoint:    "/daily-note",
			Method:      http.MethodPost,
			Description: "Create daily notes in the main vault",
			Supported:   []string{"today", "tomorrow"},
			Example:     DailyNoteRequest{NoteType: "today", Date: "2024-01-15"},
		},
		"studio_automations": {
			Endpoint:    "/studio",
			Method:      http.MethodPost,
			Description: "Launch FL Studio or open the drum session",
			Supported:   []string{"open_session", "open_project"},
			Example:     StudioRequest{Action: "open_session"},
		},
		"voice_commands": {
			Endpoint:    "/voice-command",
			Method:      http.MethodPost,
			Description: "Process natural language voice commands",
			Example:     VoiceCommandRequest{Command: "create gym note"},
		},
	}
	return c.JSON(http.StatusOK, map[string]any{
		"available_automations": automations,
		"timestamp":             time.Now(),
		"total_endpoints":       len(automations),
	})
}

func (s *APIV1Service) ListSpells(c echo.Context) error {
	spells := []spell.Spell{}
	if s.Catalog != nil {
		spells = s.Catalog.Spells()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"spells": spells,
		"total":  len(spells),
	})
}
