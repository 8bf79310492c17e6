package v1

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/orchestra/action"
	"github.com/hrygo/orchestra/ai/routing"
	"github.com/hrygo/orchestra/dispatch"
	"github.com/hrygo/orchestra/plugin/obsidian"
	"github.com/hrygo/orchestra/spell"
)

// AutomationResponse is returned by every trigger endpoint as soon as the
// work is scheduled. The outcome itself is reported by the dispatcher.
type AutomationResponse struct {
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
	AutomationType string    `json:"automation_type"`
	JobID          string    `json:"job_id,omitempty"`
}

type WorkoutRequest struct {
	WorkoutType string `json:"workout_type"`
	Date        string `json:"date,omitempty"`
}

type DailyNoteRequest struct {
	NoteType string `json:"note_type"`
	Date     string `json:"date,omitempty"`
}

type StudioRequest struct {
	Action string `json:"action"`
}

type VoiceCommandRequest struct {
	Command  string `json:"command"`
	UseAgent bool   `json:"use_agent"`
}

var workoutActions = map[string]action.ID{
	"running":       spell.CreateTodayRunningNote,
	"cycling":       spell.CreateTodayCyclingNote,
	"mobility":      spell.CreateTodayMobilityNote,
	"stairclimbing": spell.CreateTodayStairclimbNote,
	"gym":           spell.CreateGymDir,
}

var workoutTypes = []string{"running", "cycling", "mobility", "gym", "stairclimbing"}

var noteActions = map[string]action.ID{
	"today":    spell.CreateDailyNote,
	"tomorrow": spell.CreateTomorrowNote,
}

var studioActions = map[string]action.ID{
	"open_session": spell.OpenDrumSession,
	"open_project": spell.LaunchStudio,
}

// TriggerWorkout schedules a workout note or gym directory.
func (s *APIV1Service) TriggerWorkout(c echo.Context) error {
	var req WorkoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	kind := strings.ToLower(strings.TrimSpace(req.WorkoutType))
	id, ok := workoutActions[kind]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid workout type: %s", kind))
	}
	args, err := dateArgs(req.Date)
	if err != nil {
		return err
	}
	if kind == "gym" {
		args = nil
	}

	return s.submit(c, &routing.Command{Action: id, Args: args},
		"workout_"+kind,
		fmt.Sprintf("%s automation triggered successfully", title(kind)))
}

// TriggerDailyNote schedules today's or tomorrow's daily note.
func (s *APIV1Service) TriggerDailyNote(c echo.Context) error {
	var req DailyNoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	kind := strings.ToLower(strings.TrimSpace(req.NoteType))
	if kind == "" {
		kind = "today"
	}
	id, ok := noteActions[kind]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid note type: %s", kind))
	}
	args, err := dateArgs(req.Date)
	if err != nil {
		return err
	}
	if kind == "tomorrow" {
		args = nil
	}

	return s.submit(c, &routing.Command{Action: id, Args: args},
		"daily_note_"+kind,
		fmt.Sprintf("%s note automation triggered successfully", title(kind)))
}

// TriggerStudio schedules a studio launch.
func (s *APIV1Service) TriggerStudio(c echo.Context) error {
	var req StudioRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	act := strings.ToLower(strings.TrimSpace(req.Action))
	if act == "" {
		act = "open_session"
	}
	id, ok := studioActions[act]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid studio action: %s", act))
	}

	return s.submit(c, &routing.Command{Action: id},
		"studio_"+act,
		fmt.Sprintf("FL Studio %s automation triggered successfully", strings.ReplaceAll(act, "_", " ")))
}

// ProcessVoiceCommand schedules a free-text command. In agent mode the raw
// text goes to the agent; otherwise it must match a spell up front.
func (s *APIV1Service) ProcessVoiceCommand(c echo.Context) error {
	var req VoiceCommandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	text := strings.TrimSpace(req.Command)
	if text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Command must not be empty")
	}

	var in dispatch.Input
	if req.UseAgent {
		if !s.AgentAvailable {
			return echo.NewHTTPError(http.StatusBadRequest, "Agent mode is not configured")
		}
		in = dispatch.Text(text)
	} else {
		cmd := s.Parser.Parse(text)
		if cmd == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Could not parse the voice command")
		}
		in = dispatch.FromCommand(cmd)
	}

	jobID, err := s.Dispatcher.Submit(c.Request().Context(), in, req.UseAgent)
	if err != nil {
		return submitError(err)
	}
	return c.JSON(http.StatusOK, AutomationResponse{
		Success:        true,
		Message:        fmt.Sprintf("Voice command '%s' processed successfully", text),
		Timestamp:      time.Now(),
		AutomationType: "voice_command",
		JobID:          jobID,
	})
}

func (s *APIV1Service) submit(c echo.Context, cmd *routing.Command, automationType, message string) error {
	jobID, err := s.Dispatcher.Submit(c.Request().Context(), dispatch.FromCommand(cmd), false)
	if err != nil {
		return submitError(err)
	}
	slog.Info("automation scheduled", "automation_type", automationType, "job_id", jobID)
	return c.JSON(http.StatusOK, AutomationResponse{
		Success:        true,
		Message:        message,
		Timestamp:      time.Now(),
		AutomationType: automationType,
		JobID:          jobID,
	})
}

func submitError(err error) error {
	if errors.Is(err, dispatch.ErrShuttingDown) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Server is shutting down")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func dateArgs(date string) (action.Args, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil, nil
	}
	if _, err := obsidian.ParseDate(date, time.Now()); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid date: %s (expected YYYY-MM-DD)", date))
	}
	return action.Args{"date": date}, nil
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
