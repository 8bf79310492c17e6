package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/orchestra/action"
	"github.com/hrygo/orchestra/ai/core/llm"
	"github.com/hrygo/orchestra/spell"
)

// fakeLLM scripts the two agent rounds.
type fakeLLM struct {
	toolResp   *llm.ChatResponse
	toolErr    error
	structured string
	structErr  error
	block      chan struct{}
	panicMsg   string

	mu       sync.Mutex
	lastMsgs []llm.Message
}

func (f *fakeLLM) ChatWithTools(ctx context.Context, _ []llm.Message, _ []llm.ToolDescriptor) (*llm.ChatResponse, *llm.LLMCallStats, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	if f.toolErr != nil {
		return nil, nil, f.toolErr
	}
	return f.toolResp, &llm.LLMCallStats{}, nil
}

func (f *fakeLLM) ChatStructured(_ context.Context, messages []llm.Message, _ string, _ *llm.JSONSchema) (string, *llm.LLMCallStats, error) {
	f.mu.Lock()
	f.lastMsgs = messages
	f.mu.Unlock()
	if f.structErr != nil {
		return "", nil, f.structErr
	}
	return f.structured, &llm.LLMCallStats{}, nil
}

func (f *fakeLLM) Warmup(context.Context) {}

func toolCall(name, args string) *llm.ChatResponse {
	return &llm.ChatResponse{ToolCalls: []llm.ToolCall{{
		ID:       "call_1",
		Type:     "function",
		Function: llm.FunctionCall{Name: name, Arguments: args},
	}}}
}

type countingRegistry struct {
	calls    map[action.ID]*atomic.Int32
	registry *action.Registry

	mu       sync.Mutex
	lastArgs action.Args
}

func (cr *countingRegistry) args() action.Args {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.lastArgs
}

func newCountingRegistry(failing action.ID) *countingRegistry {
	cr := &countingRegistry{calls: map[action.ID]*atomic.Int32{}}
	handlers := map[action.ID]action.Handler{}
	for _, s := range spell.DefaultSpells() {
		id := s.Action
		counter := &atomic.Int32{}
		cr.calls[id] = counter
		handlers[id] = action.ArgsFunc(func(_ context.Context, args action.Args) error {
			counter.Add(1)
			cr.mu.Lock()
			cr.lastArgs = args
			cr.mu.Unlock()
			if id == failing {
				return errors.New("vault path not set")
			}
			return nil
		})
	}
	cr.registry = action.NewRegistry(handlers)
	return cr
}

func TestResolver_ExecutesSelectedTool(t *testing.T) {
	reg := newCountingRegistry("")
	fake := &fakeLLM{
		toolResp:   toolCall("create_daily_note", `{}`),
		structured: `{"action":"create_daily_note","explanation":"done"}`,
	}
	r := NewResolver(fake, reg.registry, spell.Default())

	res := r.Resolve(context.Background(), "make me today's note")

	assert.True(t, res.Success)
	assert.Equal(t, "create_daily_note", res.Action)
	assert.Equal(t, "done", res.Message)
	assert.Equal(t, int32(1), reg.calls[spell.CreateDailyNote].Load())

	// The tool result is fed back for the structured round.
	require.Len(t, fake.lastMsgs, 4)
	assert.Equal(t, "tool", fake.lastMsgs[3].Role)
	assert.Equal(t, "call_1", fake.lastMsgs[3].ToolCallID)
}

func TestResolver_PassesDateArgument(t *testing.T) {
	reg := newCountingRegistry("")
	fake := &fakeLLM{
		toolResp:   toolCall("create_today_running_note", `{"date":"2024-01-15"}`),
		structured: `{"action":"create_today_running_note","explanation":"logged"}`,
	}
	r := NewResolver(fake, reg.registry, spell.Default())

	res := r.Resolve(context.Background(), "log a run for january 15")
	require.True(t, res.Success)
	assert.Equal(t, "2024-01-15", reg.args().Get("date"))
}

func TestResolver_Refusal(t *testing.T) {
	reg := newCountingRegistry("")

	t.Run("with explanation", func(t *testing.T) {
		r := NewResolver(&fakeLLM{toolResp: &llm.ChatResponse{Content: "I can't order pizza."}}, reg.registry, spell.Default())
		res := r.Resolve(context.Background(), "order pizza")
		assert.False(t, res.Success)
		assert.Equal(t, "I can't order pizza.", res.Message)
	})

	t.Run("silent", func(t *testing.T) {
		r := NewResolver(&fakeLLM{toolResp: &llm.ChatResponse{}}, reg.registry, spell.Default())
		res := r.Resolve(context.Background(), "order pizza")
		assert.False(t, res.Success)
		assert.Equal(t, action.UnrecognizedMessage, res.Message)
	})

	for id, c := range reg.calls {
		assert.Zero(t, c.Load(), "action %s must not run", id)
	}
}

func TestResolver_Failures(t *testing.T) {
	testCases := []struct {
		name       string
		fake       *fakeLLM
		failing    action.ID
		wantAction string
		wantMsg    string
	}{
		{
			name:    "network error",
			fake:    &fakeLLM{toolErr: errors.New("connection refused")},
			wantMsg: "Error: connection refused",
		},
		{
			name:       "unknown tool",
			fake:       &fakeLLM{toolResp: toolCall("launch_rocket", `{}`)},
			wantAction: "launch_rocket",
			wantMsg:    "unknown tool",
		},
		{
			name:       "malformed arguments",
			fake:       &fakeLLM{toolResp: toolCall("create_gym_dir", `{not json`)},
			wantAction: "create_gym_dir",
			wantMsg:    "malformed tool arguments",
		},
		{
			name:       "tool failure",
			fake:       &fakeLLM{toolResp: toolCall("create_gym_dir", `{}`)},
			failing:    spell.CreateGymDir,
			wantAction: "create_gym_dir",
			wantMsg:    "vault path not set",
		},
		{
			name:       "structured round error",
			fake:       &fakeLLM{toolResp: toolCall("create_gym_dir", `{}`), structErr: errors.New("malformed structured output")},
			wantAction: "create_gym_dir",
			wantMsg:    "malformed structured output",
		},
		{
			name:       "structured output not an object",
			fake:       &fakeLLM{toolResp: toolCall("create_gym_dir", `{}`), structured: `["x"]`},
			wantAction: "create_gym_dir",
			wantMsg:    "malformed agent output",
		},
		{
			name:    "panic",
			fake:    &fakeLLM{panicMsg: "sdk bug"},
			wantMsg: "sdk bug",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reg := newCountingRegistry(tc.failing)
			r := NewResolver(tc.fake, reg.registry, spell.Default())

			res := r.Resolve(context.Background(), "new gym")
			assert.False(t, res.Success)
			assert.Equal(t, tc.wantAction, res.Action)
			assert.Contains(t, res.Message, tc.wantMsg)
		})
	}
}

func TestResolver_OnlyFirstToolRuns(t *testing.T) {
	reg := newCountingRegistry("")
	resp := toolCall("create_gym_dir", `{}`)
	resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{ID: "call_2", Function: llm.FunctionCall{Name: "create_daily_note"}})
	r := NewResolver(&fakeLLM{toolResp: resp, structured: `{"action":"create_gym_dir","explanation":"ok"}`}, reg.registry, spell.Default())

	res := r.Resolve(context.Background(), "gym and day")
	assert.True(t, res.Success)
	assert.Equal(t, int32(1), reg.calls[spell.CreateGymDir].Load())
	assert.Zero(t, reg.calls[spell.CreateDailyNote].Load())
}

func TestResolver_Timeout(t *testing.T) {
	reg := newCountingRegistry("")
	block := make(chan struct{})
	defer close(block)
	r := NewResolver(&fakeLLM{block: block}, reg.registry, spell.Default(), WithTimeout(20*time.Millisecond))

	start := time.Now()
	res := r.Resolve(context.Background(), "new gym")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "timed out")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResolver_NilLLM(t *testing.T) {
	reg := newCountingRegistry("")
	r := NewResolver(nil, reg.registry, spell.Default())
	res := r.Resolve(context.Background(), "new gym")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "not configured")
}

func TestResolver_ResolveAsync(t *testing.T) {
	reg := newCountingRegistry("")
	fake := &fakeLLM{
		toolResp:   toolCall("create_gym_dir", `{}`),
		structured: `{"action":"create_gym_dir","explanation":"gym ready"}`,
	}
	r := NewResolver(fake, reg.registry, spell.Default())

	const n = 8
	chans := make([]<-chan action.Result, n)
	for i := range chans {
		chans[i] = r.ResolveAsync(context.Background(), "new gym")
	}
	for _, ch := range chans {
		select {
		case res := <-ch:
			assert.True(t, res.Success)
			assert.Equal(t, "gym ready", res.Message)
		case <-time.After(2 * time.Second):
			t.Fatal("async resolution did not complete")
		}
	}
	assert.Equal(t, int32(n), reg.calls[spell.CreateGymDir].Load())
}

func TestResolver_ResolveCommand(t *testing.T) {
	reg := newCountingRegistry("")

	t.Run("executed", func(t *testing.T) {
		r := NewResolver(&fakeLLM{
			toolResp:   toolCall("create_tomorrow_note", `{}`),
			structured: `{"action":"create_tomorrow_note","explanation":"ok"}`,
		}, reg.registry, spell.Default())
		cmd := r.ResolveCommand(context.Background(), "tomorrow please")
		require.NotNil(t, cmd)
		assert.Equal(t, spell.CreateTomorrowNote, cmd.Action)
		require.True(t, cmd.Executed())
		assert.True(t, cmd.Result.Success)
	})

	t.Run("refused", func(t *testing.T) {
		r := NewResolver(&fakeLLM{toolResp: &llm.ChatResponse{Content: "no"}}, reg.registry, spell.Default())
		assert.Nil(t, r.ResolveCommand(context.Background(), "pizza"))
	})

	t.Run("llm error", func(t *testing.T) {
		r := NewResolver(&fakeLLM{toolErr: errors.New("connection refused")}, reg.registry, spell.Default())
		cmd := r.ResolveCommand(context.Background(), "new gym")
		require.NotNil(t, cmd)
		require.True(t, cmd.Executed())
		assert.False(t, cmd.Result.Success)
		assert.Contains(t, cmd.Result.Message, "connection refused")
	})

	t.Run("timeout while the tool runs", func(t *testing.T) {
		var ran atomic.Int32
		release := make(chan struct{})
		t.Cleanup(func() { close(release) })
		slow := action.NewRegistry(map[action.ID]action.Handler{
			spell.CreateGymDir: action.Func(func() error {
				ran.Add(1)
				<-release
				return nil
			}),
		})

		r := NewResolver(&fakeLLM{toolResp: toolCall("create_gym_dir", `{}`)}, slow, spell.Default(),
			WithTimeout(30*time.Millisecond))
		cmd := r.ResolveCommand(context.Background(), "new gym")
		require.NotNil(t, cmd)
		require.True(t, cmd.Executed(), "a timed out command must not be retried by the caller")
		assert.False(t, cmd.Result.Success)
		assert.Contains(t, cmd.Result.Message, "timed out")
		assert.Equal(t, int32(1), ran.Load())
	})
}

func TestResolver_ToolsOnlyForRegisteredActions(t *testing.T) {
	reg := action.NewRegistry(map[action.ID]action.Handler{
		spell.CreateGymDir:           action.Func(func() error { return nil }),
		spell.CreateTodayRunningNote: action.Func(func() error { return nil }),
	})
	r := NewResolver(&fakeLLM{}, reg, spell.Default())

	tools := r.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "create_gym_dir", tools[0].Name)
	assert.Nil(t, tools[0].Parameters)
	assert.Equal(t, "create_today_running_note", tools[1].Name)
	require.NotNil(t, tools[1].Parameters)
	assert.Contains(t, tools[1].Parameters.Properties, "date")
}

func TestBuildTools_DescriptionPunctuation(t *testing.T) {
	reg := newCountingRegistry("")
	for _, tool := range buildTools(spell.Default(), reg.registry) {
		assert.NotContains(t, tool.Description, "..", tool.Name)
		assert.Contains(t, tool.Description, ". Use this when the user says something like ", tool.Name)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	p := buildSystemPrompt(spell.Default())
	assert.Contains(t, p, "Command Orchestra Manager")
	assert.Contains(t, p, `"muscle up"`)
}

func TestParseArguments(t *testing.T) {
	args, err := parseArguments(`{"date":"2024-01-15","count":3,"empty":"","none":null}`)
	require.NoError(t, err)
	assert.Equal(t, action.Args{"date": "2024-01-15", "count": "3"}, args)

	args, err = parseArguments("")
	require.NoError(t, err)
	assert.Nil(t, args)
}

type recorderStub struct {
	mu    sync.Mutex
	tools []string
	runs  []string
}

func (s *recorderStub) RecordToolCall(tool, status string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append(s.tools, tool+":"+status)
}

func (s *recorderStub) RecordAgentRun(status string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, status)
}

func TestResolver_RecordsMetrics(t *testing.T) {
	reg := newCountingRegistry("")
	rec := &recorderStub{}
	r := NewResolver(&fakeLLM{
		toolResp:   toolCall("create_gym_dir", `{}`),
		structured: `{"action":"create_gym_dir","explanation":"ok"}`,
	}, reg.registry, spell.Default(), WithRecorder(rec))

	r.Resolve(context.Background(), "new gym")
	assert.Equal(t, []string{"create_gym_dir:success"}, rec.tools)
	assert.Equal(t, []string{"success"}, rec.runs)
}
