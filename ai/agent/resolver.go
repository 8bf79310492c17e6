// Package agent resolves utterances through an LLM that selects and runs one
// tool from the spell catalog, returning a structured result.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/orchestra/action"
	"github.com/hrygo/orchestra/ai/core/llm"
	"github.com/hrygo/orchestra/ai/routing"
	"github.com/hrygo/orchestra/spell"
)

// DefaultTimeout bounds one resolution when no timeout is configured.
const DefaultTimeout = 60 * time.Second

const structuredOutputName = "command_result"

// Recorder receives agent metrics. Implemented by metrics.PrometheusExporter.
type Recorder interface {
	RecordToolCall(tool, status string, d time.Duration)
	RecordAgentRun(status string, d time.Duration)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout sets the bounded wait for one resolution.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) {
		r.recorder = rec
	}
}

// Resolver is the agent-backed resolution strategy. Unlike the phrase
// matcher it performs the side effect itself.
type Resolver struct {
	llm          llm.Service
	registry     *action.Registry
	catalog      *spell.Catalog
	tools        []llm.ToolDescriptor
	systemPrompt string
	timeout      time.Duration
	recorder     Recorder
}

// NewResolver creates a resolver exposing every catalog spell that has a
// registered handler as a tool.
func NewResolver(svc llm.Service, registry *action.Registry, catalog *spell.Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		llm:      svc,
		registry: registry,
		catalog:  catalog,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.tools = buildTools(catalog, registry)
	r.systemPrompt = buildSystemPrompt(catalog)
	return r
}

// Tools returns the tool set offered to the model.
func (r *Resolver) Tools() []llm.ToolDescriptor {
	out := make([]llm.ToolDescriptor, len(r.tools))
	copy(out, r.tools)
	return out
}

// outcome is one resolution: the reported result plus which tool, if any, ran.
// refused is set only when the model answered and chose no tool.
type outcome struct {
	result   action.Result
	executed action.ID
	refused  bool
}

// Resolve resolves and executes text, blocking until the agent finishes or
// the bounded wait elapses. It never panics and never returns an error:
// every failure is a Result with Success false.
func (r *Resolver) Resolve(ctx context.Context, text string) action.Result {
	return r.resolve(ctx, text).result
}

// ResolveAsync starts a resolution and returns a channel that receives
// exactly one result. Safe to call from any number of goroutines.
func (r *Resolver) ResolveAsync(ctx context.Context, text string) <-chan action.Result {
	ch := make(chan action.Result, 1)
	go func() {
		ch <- r.Resolve(ctx, text)
	}()
	return ch
}

// ResolveCommand implements routing.CommandResolver. It returns nil only when
// the model answered and chose no tool. Every other outcome, including
// transport errors and timeouts, comes back as an executed command carrying
// the result so callers never retry a tool that may already have run.
func (r *Resolver) ResolveCommand(ctx context.Context, text string) *routing.Command {
	o := r.resolve(ctx, text)
	if o.refused {
		return nil
	}
	res := o.result
	return &routing.Command{Action: o.executed, Result: &res}
}

func (r *Resolver) resolve(ctx context.Context, text string) outcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// The agent runs on its own goroutine so the caller's wait stays bounded
	// even if the model or a tool ignores cancellation.
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("agent panicked", "panic", rec)
				done <- outcome{result: action.Failed("", fmt.Sprintf("Error: agent panicked: %v", rec))}
			}
		}()
		done <- r.run(ctx, text)
	}()

	var o outcome
	select {
	case o = <-done:
	case <-ctx.Done():
		msg := "Error: agent cancelled"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("Error: agent timed out after %s", r.timeout)
		}
		slog.Warn("agent resolution abandoned", "input", truncate(text, 50), "error", ctx.Err())
		o = outcome{result: action.Failed("", msg)}
	}

	r.recordRun(o.result, time.Since(start))
	return o
}

func (r *Resolver) run(ctx context.Context, text string) outcome {
	if r.llm == nil {
		return outcome{result: action.Failed("", "Error: agent is not configured")}
	}

	messages := []llm.Message{
		llm.SystemPrompt(r.systemPrompt),
		llm.UserMessage(text),
	}

	resp, _, err := r.llm.ChatWithTools(ctx, messages, r.tools)
	if err != nil {
		return outcome{result: action.Failed("", "Error: "+err.Error())}
	}

	if len(resp.ToolCalls) == 0 {
		msg := strings.TrimSpace(resp.Content)
		if msg == "" {
			msg = action.UnrecognizedMessage
		}
		slog.Info("agent selected no tool", "input", truncate(text, 50))
		return outcome{result: action.Result{Success: false, Message: msg}, refused: true}
	}
	if len(resp.ToolCalls) > 1 {
		slog.Warn("agent requested several tools, running only the first",
			"requested", len(resp.ToolCalls),
			"tool", resp.ToolCalls[0].Function.Name,
		)
	}

	call := resp.ToolCalls[0]
	id := action.ID(call.Function.Name)
	if !r.registry.Has(id) {
		return outcome{result: action.Failed(id, fmt.Sprintf("Error: agent selected unknown tool %q", id))}
	}

	args, err := parseArguments(call.Function.Arguments)
	if err != nil {
		return outcome{result: action.Failed(id, "Error: "+err.Error())}
	}

	toolStart := time.Now()
	if err := r.registry.Invoke(ctx, id, args); err != nil {
		r.recordTool(id, "error", time.Since(toolStart))
		return outcome{
			result:   action.Failed(id, fmt.Sprintf("Error: %s failed: %v", id, err)),
			executed: id,
		}
	}
	r.recordTool(id, "success", time.Since(toolStart))

	toolOutput := "✅ Done"
	if s, ok := r.catalog.Lookup(id); ok {
		toolOutput = "✅ " + s.Description
	}

	messages = append(messages,
		llm.AssistantToolCalls(resp.Content, []llm.ToolCall{call}),
		llm.ToolResult(call.ID, toolOutput),
	)

	raw, _, err := r.llm.ChatStructured(ctx, messages, structuredOutputName, resultSchema)
	if err != nil {
		return outcome{result: action.Failed(id, "Error: "+err.Error()), executed: id}
	}

	var out structuredResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return outcome{
			result:   action.Failed(id, fmt.Sprintf("Error: malformed agent output: %v", err)),
			executed: id,
		}
	}
	if out.Explanation == "" {
		out.Explanation = toolOutput
	}
	if out.Action == "" {
		out.Action = string(id)
	}

	return outcome{
		result:   action.Result{Success: true, Action: out.Action, Message: out.Explanation},
		executed: id,
	}
}

func (r *Resolver) recordTool(id action.ID, status string, d time.Duration) {
	if r.recorder != nil {
		r.recorder.RecordToolCall(string(id), status, d)
	}
}

func (r *Resolver) recordRun(res action.Result, d time.Duration) {
	if r.recorder == nil {
		return
	}
	status := "success"
	if !res.Success {
		status = "failure"
	}
	r.recorder.RecordAgentRun(status, d)
}

// parseArguments flattens the tool call's JSON object into keyword args.
func parseArguments(raw string) (action.Args, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("malformed tool arguments: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	args := make(action.Args, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case nil:
		case string:
			if val != "" {
				args[k] = val
			}
		default:
			args[k] = fmt.Sprint(val)
		}
	}
	return args, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
