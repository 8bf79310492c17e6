package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"

	"github.com/hrygo/orchestra/action"
	"github.com/hrygo/orchestra/ai/agent"
	"github.com/hrygo/orchestra/ai/core/llm"
	"github.com/hrygo/orchestra/ai/metrics"
	"github.com/hrygo/orchestra/ai/routing"
	"github.com/hrygo/orchestra/dispatch"
	"github.com/hrygo/orchestra/internal/profile"
	"github.com/hrygo/orchestra/plugin/obsidian"
	"github.com/hrygo/orchestra/plugin/studio"
	"github.com/hrygo/orchestra/spell"
)

// app holds the components shared by the serve and repl commands.
type app struct {
	catalog    *spell.Catalog
	registry   *action.Registry
	parser     *routing.Parser
	resolver   *agent.Resolver
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.PrometheusExporter

	agentFallback bool
}

func (a *app) agentEnabled() bool {
	return a.resolver != nil
}

// cast parses text once and dispatches the command. The agent executes while
// parsing, so its command reaches the dispatcher already resolved.
func (a *app) cast(ctx context.Context, text string, useAgent bool) action.Result {
	var cmd *routing.Command
	if useAgent {
		cmd = a.parser.ParseWithAgent(ctx, text)
	} else {
		cmd = a.parser.Parse(text)
		if cmd == nil && a.agentFallback && a.agentEnabled() {
			cmd = a.parser.ParseWithAgent(ctx, text)
		}
	}
	return a.dispatcher.Dispatch(ctx, dispatch.FromCommand(cmd), false)
}

func consoleReporter(w io.Writer) dispatch.Reporter {
	return dispatch.ConsoleReporter{W: w}
}

// newApp wires catalog, registry, agent and dispatcher from the profile.
// out receives the spell book listing. A nil reporter logs outcomes.
func newApp(ctx context.Context, p *profile.Profile, out io.Writer, reporter dispatch.Reporter) (*app, error) {
	catalog, err := spell.LoadFile(p.SpellsFile)
	if err != nil {
		return nil, err
	}

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	exporter.Registry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	vault := obsidian.NewVault(afero.NewOsFs(), p.MainVaultPath, p.ExerciseVaultPath)
	launcher := studio.NewLauncher(studio.Config{
		App:     p.StudioApp,
		Project: p.StudioProject,
		Settle:  time.Duration(p.StudioSettle) * time.Second,
	}, nil)

	handlers := map[action.ID]action.Handler{
		spell.ListSpells: action.Func(func() error {
			return catalog.Render(out)
		}),
	}
	for id, h := range vault.Handlers() {
		handlers[id] = h
	}
	for id, h := range launcher.Handlers() {
		handlers[id] = h
	}
	registry := action.NewRegistry(handlers)
	slog.Debug("actions registered", "actions", registry.IDs())
	if missing := catalog.Missing(registry); len(missing) > 0 {
		slog.Warn("spells without a registered action will fail when triggered", "actions", missing)
	}

	matcher := routing.NewCatalogMatcher(catalog)
	a := &app{
		catalog:       catalog,
		registry:      registry,
		metrics:       exporter,
		agentFallback: p.AgentFallback,
	}

	var commandResolver routing.CommandResolver
	opts := []dispatch.Option{
		dispatch.WithRecorder(exporter),
		dispatch.WithAgentFallback(p.AgentFallback),
		dispatch.WithMaxConcurrent(int64(p.MaxBackground)),
		dispatch.WithReporter(reporter),
	}

	if p.IsAIEnabled() {
		svc, err := llm.NewService(&llm.Config{
			Provider: p.LLMProvider,
			Model:    p.LLMModel,
			APIKey:   p.LLMAPIKey,
			BaseURL:  p.LLMBaseURL,
			Timeout:  p.LLMTimeout,
		})
		if err != nil {
			slog.Warn("Failed to initialize LLM service",
				"provider", p.LLMProvider,
				"error", err,
				"note", "Agent mode will be disabled",
			)
		} else {
			slog.Info("LLM service initialized", "provider", p.LLMProvider, "model", p.LLMModel)
			// Best-effort warmup to reduce first-request latency.
			go func() {
				warmupCtx, warmupCancel := context.WithTimeout(ctx, 10*time.Second)
				defer warmupCancel()
				svc.Warmup(warmupCtx)
			}()

			a.resolver = agent.NewResolver(svc, registry, catalog,
				agent.WithTimeout(p.AgentTimeoutDuration()),
				agent.WithRecorder(exporter),
			)
			commandResolver = a.resolver
			opts = append(opts, dispatch.WithAgent(a.resolver))
		}
	} else {
		slog.Info("Agent mode disabled", "provider", p.LLMProvider)
	}

	a.parser = routing.NewParser(matcher, commandResolver)
	a.dispatcher = dispatch.New(registry, matcher, opts...)
	return a, nil
}
