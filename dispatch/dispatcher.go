// Package dispatch turns a resolved command or raw text into exactly one
// executed outcome, blocking or in the background.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/orchestra/action"
	"github.com/hrygo/orchestra/ai/routing"
)

// ErrShuttingDown is returned by Submit after Shutdown has begun.
var ErrShuttingDown = errors.New("dispatcher is shutting down")

// Source names the strategy that produced a result.
type Source string

const (
	SourcePhrase      Source = "phrase"
	SourceCommand     Source = "command"
	SourceAgent       Source = "agent"
	SourcePreResolved Source = "preresolved"
	SourceNone        Source = "none"
)

// State is a dispatch lifecycle step.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateExecuting
	StateReported
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateExecuting:
		return "executing"
	case StateReported:
		return "reported"
	default:
		return "unknown"
	}
}

// Input is either raw text or an already resolved command.
type Input struct {
	Text    string
	Command *routing.Command
}

// Text wraps a raw utterance.
func Text(s string) Input {
	return Input{Text: s}
}

// FromCommand wraps a resolved command.
func FromCommand(cmd *routing.Command) Input {
	return Input{Command: cmd}
}

func (in Input) describe() string {
	if in.Command != nil {
		return "command:" + string(in.Command.Action)
	}
	return truncate(in.Text, 50)
}

// AgentResolver resolves and executes raw text. Implemented by agent.Resolver.
type AgentResolver interface {
	Resolve(ctx context.Context, text string) action.Result
}

// Recorder receives dispatch metrics. Implemented by metrics.PrometheusExporter.
type Recorder interface {
	RecordDispatch(source, status string, latency time.Duration)
	AddInflight(delta int)
}

// Dispatcher routes each input through exactly one resolution strategy and
// reports the outcome. It keeps no per-call state; the registry and matcher
// are read-only, so concurrent dispatches are independent.
type Dispatcher struct {
	registry *action.Registry
	matcher  *routing.PhraseMatcher
	agent    AgentResolver
	reporter Reporter
	recorder Recorder

	agentFallback     bool
	backgroundTimeout time.Duration
	sem               *semaphore.Weighted

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAgent enables agent resolution.
func WithAgent(a AgentResolver) Option {
	return func(d *Dispatcher) { d.agent = a }
}

// WithReporter sets where outcomes are reported. Defaults to slog.
func WithReporter(r Reporter) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.reporter = r
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithAgentFallback lets non-agent dispatch of raw text try the agent when no
// phrase rule matches.
func WithAgentFallback(enabled bool) Option {
	return func(d *Dispatcher) { d.agentFallback = enabled }
}

// WithMaxConcurrent bounds concurrently running background dispatches.
func WithMaxConcurrent(n int64) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithBackgroundTimeout bounds each background dispatch.
func WithBackgroundTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.backgroundTimeout = t }
}

// New creates a dispatcher.
func New(registry *action.Registry, matcher *routing.PhraseMatcher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:          registry,
		matcher:           matcher,
		reporter:          LogReporter{},
		backgroundTimeout: 5 * time.Minute,
		sem:               semaphore.NewWeighted(4),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch resolves and executes in, blocking until the outcome is reported.
// Every failure is returned as a Result; Dispatch never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, in Input, useAgent bool) action.Result {
	return d.dispatch(ctx, "", in, useAgent)
}

// DispatchAsync runs Dispatch on its own goroutine. The channel receives
// exactly one result.
func (d *Dispatcher) DispatchAsync(ctx context.Context, in Input, useAgent bool) <-chan action.Result {
	ch := make(chan action.Result, 1)
	go func() {
		ch <- d.Dispatch(ctx, in, useAgent)
	}()
	return ch
}

// Submit schedules a fire-and-forget dispatch and returns its job id
// immediately. The job is detached from ctx cancellation so it outlives the
// request that submitted it; values such as loggers still flow through.
func (d *Dispatcher) Submit(ctx context.Context, in Input, useAgent bool) (string, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return "", ErrShuttingDown
	}
	d.wg.Add(1)
	d.mu.Unlock()

	jobID := uuid.NewString()
	jobCtx := context.WithoutCancel(ctx)

	go func() {
		defer d.wg.Done()

		if d.backgroundTimeout > 0 {
			var cancel context.CancelFunc
			jobCtx, cancel = context.WithTimeout(jobCtx, d.backgroundTimeout)
			defer cancel()
		}

		if err := d.sem.Acquire(jobCtx, 1); err != nil {
			res := action.Failed("", fmt.Sprintf("Error: background dispatch not started: %v", err))
			d.report(jobCtx, Report{JobID: jobID, Input: in.describe(), Source: SourceNone, Result: res})
			return
		}
		defer d.sem.Release(1)

		d.addInflight(1)
		defer d.addInflight(-1)

		d.dispatch(jobCtx, jobID, in, useAgent)
	}()

	slog.Debug("background dispatch submitted", "job_id", jobID, "input", in.describe(), "use_agent", useAgent)
	return jobID, nil
}

// Shutdown stops accepting background work and waits for in-flight jobs.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background dispatches: %w", ctx.Err())
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, jobID string, in Input, useAgent bool) (res action.Result) {
	start := time.Now()
	source := SourceNone

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("dispatch panicked", "job_id", jobID, "panic", rec)
			res = action.Failed("", fmt.Sprintf("Error: dispatch panicked: %v", rec))
		}
		d.transition(jobID, StateReported)
		d.report(ctx, Report{
			JobID:    jobID,
			Input:    in.describe(),
			Source:   source,
			Result:   res,
			Duration: time.Since(start),
		})
	}()

	d.transition(jobID, StateResolving)

	switch {
	case in.Command.Executed():
		// Pre-resolved upstream by the agent: report only, never re-execute.
		source = SourcePreResolved
		return *in.Command.Result

	case in.Command != nil:
		source = SourceCommand
		d.transition(jobID, StateExecuting)
		return d.execute(ctx, in.Command)

	case useAgent:
		source = SourceAgent
		return d.resolveWithAgent(ctx, jobID, in.Text)
	}

	if strings.TrimSpace(in.Text) == "" {
		return action.Unrecognized()
	}

	if d.matcher != nil {
		if id, ok := d.matcher.Resolve(in.Text); ok {
			source = SourcePhrase
			d.transition(jobID, StateExecuting)
			return d.execute(ctx, &routing.Command{Action: id})
		}
	}

	if d.agentFallback && d.agent != nil {
		source = SourceAgent
		return d.resolveWithAgent(ctx, jobID, in.Text)
	}

	return action.Unrecognized()
}

// resolveWithAgent delegates to the agent, which resolves and executes in one step.
func (d *Dispatcher) resolveWithAgent(ctx context.Context, jobID string, text string) action.Result {
	if d.agent == nil {
		return action.Failed("", "Error: agent mode is not available")
	}
	d.transition(jobID, StateExecuting)
	return d.agent.Resolve(ctx, text)
}

func (d *Dispatcher) execute(ctx context.Context, cmd *routing.Command) action.Result {
	err := d.registry.Invoke(ctx, cmd.Action, cmd.Args)
	switch {
	case err == nil:
		return action.Succeeded(cmd.Action, fmt.Sprintf("%s completed successfully", cmd.Action))
	case errors.Is(err, action.ErrUnknownAction):
		return action.Failed(cmd.Action, fmt.Sprintf("Unknown action: %s", cmd.Action))
	default:
		return action.Failed(cmd.Action, fmt.Sprintf("Failed to execute %s: %v", cmd.Action, err))
	}
}

func (d *Dispatcher) transition(jobID string, s State) {
	slog.Debug("dispatch state", "job_id", jobID, "state", s.String())
}

func (d *Dispatcher) report(ctx context.Context, r Report) {
	if d.recorder != nil {
		status := "success"
		if !r.Result.Success {
			status = "failure"
		}
		d.recorder.RecordDispatch(string(r.Source), status, r.Duration)
	}
	d.reporter.Report(ctx, r)
}

func (d *Dispatcher) addInflight(delta int) {
	if d.recorder != nil {
		d.recorder.AddInflight(delta)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
