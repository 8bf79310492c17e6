// Package studio launches the music production application.
package studio

import (
	"context"
	"log/slog"
	"os/exec"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/orchestra/action"
	"github.com/hrygo/orchestra/spell"
)

const (
	DefaultApp     = "FL Studio 2024"
	DefaultProject = "DRUMS.flp"
)

// Runner starts a command without waiting for it to exit.
type Runner func(ctx context.Context, name string, args ...string) error

// StartDetached runs name via os/exec and reaps it in the background.
func StartDetached(ctx context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Warn("launched process exited with error", "command", name, "error", err)
		}
	}()
	return nil
}

// Config configures the launcher.
type Config struct {
	App     string
	Project string
	// Settle is how long to wait after launching before opening the project.
	Settle time.Duration
}

// Launcher opens the studio application and its session project.
type Launcher struct {
	cfg Config
	run Runner
}

// NewLauncher creates a launcher. A nil run uses StartDetached.
func NewLauncher(cfg Config, run Runner) *Launcher {
	if cfg.App == "" {
		cfg.App = DefaultApp
	}
	if cfg.Project == "" {
		cfg.Project = DefaultProject
	}
	if run == nil {
		run = StartDetached
	}
	return &Launcher{cfg: cfg, run: run}
}

// Launch starts the application without a project.
func (l *Launcher) Launch(ctx context.Context) error {
	slog.Info("launching studio", "app", l.cfg.App)
	if err := l.run(ctx, "open", "-a", l.cfg.App); err != nil {
		return errors.Wrapf(err, "failed to launch %s", l.cfg.App)
	}
	return nil
}

// OpenSession starts the application with the configured project.
func (l *Launcher) OpenSession(ctx context.Context) error {
	if l.cfg.Settle > 0 {
		if err := l.Launch(ctx); err != nil {
			return err
		}
		select {
		case <-time.After(l.cfg.Settle):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	slog.Info("opening studio session", "app", l.cfg.App, "project", l.cfg.Project)
	if err := l.run(ctx, "open", "-a", l.cfg.App, l.cfg.Project); err != nil {
		return errors.Wrapf(err, "failed to open %s in %s", l.cfg.Project, l.cfg.App)
	}
	return nil
}

// Handlers returns the registry entries backed by this launcher.
func (l *Launcher) Handlers() map[action.ID]action.Handler {
	return map[action.ID]action.Handler{
		spell.OpenDrumSession: action.ArgsFunc(func(ctx context.Context, _ action.Args) error {
			return l.OpenSession(ctx)
		}),
		spell.LaunchStudio: action.ArgsFunc(func(ctx context.Context, _ action.Args) error {
			return l.Launch(ctx)
		}),
	}
}
