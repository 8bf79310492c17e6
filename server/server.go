package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/orchestra/internal/profile"
	apiv1 "github.com/hrygo/orchestra/server/router/api/v1"
	"github.com/hrygo/orchestra/server/router/frontend"
)

// Backend is the long-lived work the server fronts. Implemented by
// dispatch.Dispatcher.
type Backend interface {
	apiv1.Dispatcher
	Shutdown(ctx context.Context) error
}

// Deps are the components wired into the HTTP surface.
type Deps struct {
	API            *apiv1.APIV1Service
	Frontend       *frontend.FrontendService
	Backend        Backend
	MetricsHandler http.Handler
}

type Server struct {
	Profile    *profile.Profile
	echoServer *echo.Echo
	backend    Backend
	limiter    *RateLimiter
	cancel     context.CancelFunc
}

func NewServer(ctx context.Context, profile *profile.Profile, deps Deps) (*Server, error) {
	if deps.API == nil {
		return nil, errors.New("api service is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Server{
		Profile: profile,
		backend: deps.Backend,
		limiter: NewRateLimiter(ctx, profile.RateLimit, profile.RateBurst),
		cancel:  cancel,
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(ProcessTime())
	echoServer.Use(RequestLogger())
	echoServer.Use(s.limiter.Middleware())
	s.echoServer = echoServer

	if deps.Frontend != nil {
		deps.Frontend.Serve(ctx, echoServer)
	}
	deps.API.RegisterRoutes(echoServer)
	if deps.MetricsHandler != nil {
		echoServer.GET("/metrics", echo.WrapHandler(deps.MetricsHandler))
	}

	return s, nil
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echoServer
}

// Start listens on the profile address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests, then drains background dispatches.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown echo server", "error", err)
	}
	if s.backend != nil {
		if err := s.backend.Shutdown(ctx); err != nil {
			slog.Error("background dispatches did not finish", "error", err)
		}
	}
	s.cancel()

	slog.Info("server stopped properly")
}
