package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/orchestra/ai/routing"
	"github.com/hrygo/orchestra/dispatch"
	"github.com/hrygo/orchestra/internal/profile"
	"github.com/hrygo/orchestra/spell"
)

// Dispatcher schedules background work. Implemented by dispatch.Dispatcher.
type Dispatcher interface {
	Submit(ctx context.Context, in dispatch.Input, useAgent bool) (string, error)
}

// APIV1Service serves the automation endpoints under /api/v1.
type APIV1Service struct {
	Profile    *profile.Profile
	Catalog    *spell.Catalog
	Parser     *routing.Parser
	Dispatcher Dispatcher
	// AgentAvailable reports whether use_agent requests can be served.
	AgentAvailable bool
}

func NewAPIV1Service(profile *profile.Profile, catalog *spell.Catalog, parser *routing.Parser, dispatcher Dispatcher, agentAvailable bool) *APIV1Service {
	return &APIV1Service{
		Profile:        profile,
		Catalog:        catalog,
		Parser:         parser,
		Dispatcher:     dispatcher,
		AgentAvailable: agentAvailable,
	}
}

// RegisterRoutes mounts the API on e.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	cors := middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
			"http://localhost:8083",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:5173",
			"http://127.0.0.1:8083",
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	})

	g := e.Group("/api/v1", cors)
	g.GET("", s.Info)
	g.GET("/health", s.Health)
	g.POST("/workout", s.TriggerWorkout)
	g.POST("/daily-note", s.TriggerDailyNote)
	g.POST("/studio", s.TriggerStudio)
	g.POST("/voice-command", s.ProcessVoiceCommand)
	g.GET("/automations", s.ListAutomations)
	g.GET("/spells", s.ListSpells)
}
