package dispatch

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/orchestra/action"
	"github.com/hrygo/orchestra/ai/routing"
	"github.com/hrygo/orchestra/spell"
)

type fakeAgent struct {
	result action.Result
	calls  atomic.Int32
}

func (f *fakeAgent) Resolve(_ context.Context, _ string) action.Result {
	f.calls.Add(1)
	return f.result
}

type captureReporter struct {
	mu      sync.Mutex
	reports []Report
}

func (c *captureReporter) Report(_ context.Context, r Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

func (c *captureReporter) all() []Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Report(nil), c.reports...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []string
	inflight int
	peak     int
}

func (f *fakeRecorder) RecordDispatch(source, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, source+"/"+status)
}

func (f *fakeRecorder) AddInflight(delta int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight += delta
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
}

type harness struct {
	counts   map[action.ID]*atomic.Int32
	registry *action.Registry
	matcher  *routing.PhraseMatcher
	reporter *captureReporter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		counts:   map[action.ID]*atomic.Int32{},
		matcher:  routing.NewCatalogMatcher(spell.Default()),
		reporter: &captureReporter{},
	}
	handlers := map[action.ID]action.Handler{}
	for _, id := range []action.ID{spell.CreateDailyNote, spell.CreateTomorrowNote, spell.CreateGymDir, spell.OpenDrumSession} {
		c := &atomic.Int32{}
		h.counts[id] = c
		handlers[id] = action.Func(func() error {
			c.Add(1)
			return nil
		})
	}
	handlers["broken"] = action.Func(func() error { return errors.New("vault not mounted") })
	handlers["exploding"] = action.Func(func() error { panic("boom") })
	h.registry = action.NewRegistry(handlers)
	return h
}

func (h *harness) count(id action.ID) int32 {
	return h.counts[id].Load()
}

func TestDispatch_PhraseMatch(t *testing.T) {
	h := newHarness(t)
	d := New(h.registry, h.matcher, WithReporter(h.reporter))

	res := d.Dispatch(context.Background(), Text("make a new day note"), false)

	assert.True(t, res.Success)
	assert.Equal(t, string(spell.CreateDailyNote), res.Action)
	assert.EqualValues(t, 1, h.count(spell.CreateDailyNote))

	reports := h.reporter.all()
	require.Len(t, reports, 1)
	assert.Equal(t, SourcePhrase, reports[0].Source)
	assert.Equal(t, res, reports[0].Result)
}

func TestDispatch_TomorrowBeatsDay(t *testing.T) {
	h := newHarness(t)
	d := New(h.registry, h.matcher, WithReporter(h.reporter))

	res := d.Dispatch(context.Background(), Text("plan tomorrow"), false)

	assert.True(t, res.Success)
	assert.EqualValues(t, 1, h.count(spell.CreateTomorrowNote))
	assert.EqualValues(t, 0, h.count(spell.CreateDailyNote))
}

func TestDispatch_Unrecognized(t *testing.T) {
	h := newHarness(t)
	d := New(h.registry, h.matcher, WithReporter(h.reporter))

	for _, text := range []string{"", "   ", "hello there"} {
		res := d.Dispatch(context.Background(), Text(text), false)
		assert.False(t, res.Success, text)
		assert.Equal(t, action.UnrecognizedMessage, res.Message, text)
	}
	for id := range h.counts {
		assert.EqualValues(t, 0, h.count(id), id)
	}
}

func TestDispatch_ResolvedCommand(t *testing.T) {
	h := newHarness(t)
	d := New(h.registry, h.matcher, WithReporter(h.reporter))

	res := d.Dispatch(context.Background(), FromCommand(&routing.Command{Action: spell.CreateGymDir}), false)

	assert.True(t, res.Success)
	assert.EqualValues(t, 1, h.count(spell.CreateGymDir))
	assert.Equal(t, SourceCommand, h.reporter.all()[0].Source)
}

func TestDispatch_HandlerFailures(t *testing.T) {
	h := newHarness(t)
	d := New(h.registry, h.matcher, WithReporter(h.reporter))
	ctx := context.Background()

	res := d.Dispatch(ctx, FromCommand(&routing.Command{Action: "broken"}), false)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "vault not mounted")

	res = d.Dispatch(ctx, FromCommand(&routing.Command{Action: "exploding"}), false)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "boom")

	res = d.Dispatch(ctx, FromCommand(&routing.Command{Action: "launch_rockets"}), false)
	assert.False(t, res.Success)
	assert.Equal(t, "Unknown action: launch_rockets", res.Message)
}

func TestDispatch_AgentMode(t *testing.T) {
	h := newHarness(t)
	agent := &fakeAgent{result: action.Succeeded(spell.CreateDailyNote, "done")}
	d := New(h.registry, h.matcher, WithAgent(agent), WithReporter(h.reporter))

	res := d.Dispatch(context.Background(), Text("i would like today's note"), true)

	assert.Equal(t, agent.result, res)
	assert.EqualValues(t, 1, agent.calls.Load())
	// The agent performs the side effect itself.
	assert.EqualValues(t, 0, h.count(spell.CreateDailyNote))
	assert.Equal(t, SourceAgent, h.reporter.all()[0].Source)
}

func TestDispatch_AgentModeWithoutAgent(t *testing.T) {
	h := newHarness(t)
	d := New(h.registry, h.matcher, WithReporter(h.reporter))

	res := d.Dispatch(context.Background(), Text("new day"), true)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "agent mode is not available")
	assert.EqualValues(t, 0, h.count(spell.CreateDailyNote))
}

func TestDispatch_AgentFailureReported(t *testing.T) {
	h := newHarness(t)
	agent := &fakeAgent{result: action.Failed("", "Error: agent timed out")}
	d := New(h.registry, h.matcher, WithAgent(agent), WithReporter(h.reporter))

	res := d.Dispatch(context.Background(), Text("something"), true)

	assert.False(t, res.Success)
	assert.Equal(t, "Error: agent timed out", res.Message)
	require.Len(t, h.reporter.all(), 1)
}

func TestDispatch_PreResolvedNeverReExecutes(t *testing.T) {
	h := newHarness(t)
	agent := &fakeAgent{}
	d := New(h.registry, h.matcher, WithAgent(agent), WithReporter(h.reporter))

	embedded := action.Succeeded(spell.CreateDailyNote, "already done")
	cmd := &routing.Command{Action: spell.CreateDailyNote, Result: &embedded}

	for _, useAgent := range []bool{true, false} {
		res := d.Dispatch(context.Background(), FromCommand(cmd), useAgent)
		assert.Equal(t, embedded, res)
	}
	assert.EqualValues(t, 0, h.count(spell.CreateDailyNote))
	assert.EqualValues(t, 0, agent.calls.Load())
	for _, r := range h.reporter.all() {
		assert.Equal(t, SourcePreResolved, r.Source)
	}
}

func TestDispatch_AgentFallback(t *testing.T) {
	h := newHarness(t)
	agent := &fakeAgent{result: action.Succeeded(spell.OpenDrumSession, "opened")}

	without := New(h.registry, h.matcher, WithAgent(agent), WithReporter(h.reporter))
	res := without.Dispatch(context.Background(), Text("let me make a beat"), false)
	assert.Equal(t, action.UnrecognizedMessage, res.Message)
	assert.EqualValues(t, 0, agent.calls.Load())

	with := New(h.registry, h.matcher, WithAgent(agent), WithAgentFallback(true), WithReporter(h.reporter))
	res = with.Dispatch(context.Background(), Text("let me make a beat"), false)
	assert.True(t, res.Success)
	assert.EqualValues(t, 1, agent.calls.Load())

	// A phrase match still wins over the fallback.
	res = with.Dispatch(context.Background(), Text("new gym session"), false)
	assert.True(t, res.Success)
	assert.EqualValues(t, 1, h.count(spell.CreateGymDir))
	assert.EqualValues(t, 1, agent.calls.Load())
}

func TestDispatchAsync(t *testing.T) {
	h := newHarness(t)
	d := New(h.registry, h.matcher, WithReporter(h.reporter))

	var chans []<-chan action.Result
	for i := 0; i < 10; i++ {
		chans = append(chans, d.DispatchAsync(context.Background(), Text("new day"), false))
	}
	for _, ch := range chans {
		select {
		case res := <-ch:
			assert.True(t, res.Success)
		case <-time.After(2 * time.Second):
			t.Fatal("async dispatch did not complete")
		}
	}
	assert.EqualValues(t, 10, h.count(spell.CreateDailyNote))
}

func TestSubmit_RunsInBackgroundAndShutdownDrains(t *testing.T) {
	release := make(chan struct{})
	var ran atomic.Int32
	registry := action.NewRegistry(map[action.ID]action.Handler{
		"slow": action.Func(func() error {
			<-release
			ran.Add(1)
			return nil
		}),
	})
	rec := &fakeRecorder{}
	reporter := &captureReporter{}
	d := New(registry, nil, WithReporter(reporter), WithRecorder(rec), WithMaxConcurrent(2))

	ctx, cancel := context.WithCancel(context.Background())
	ids := map[string]bool{}
	for i := 0; i < 3; i++ {
		id, err := d.Submit(ctx, FromCommand(&routing.Command{Action: "slow"}), false)
		require.NoError(t, err)
		ids[id] = true
	}
	assert.Len(t, ids, 3)
	// Cancelling the submitting request must not abort the jobs.
	cancel()

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer shortCancel()
	assert.Error(t, d.Shutdown(shortCtx))

	_, err := d.Submit(context.Background(), Text("new day"), false)
	assert.ErrorIs(t, err, ErrShuttingDown)

	close(release)
	require.NoError(t, d.Shutdown(context.Background()))

	assert.EqualValues(t, 3, ran.Load())
	reports := reporter.all()
	require.Len(t, reports, 3)
	for _, r := range reports {
		assert.True(t, r.Result.Success)
		assert.True(t, ids[r.JobID])
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.LessOrEqual(t, rec.peak, 2)
	assert.Equal(t, 0, rec.inflight)
	assert.Len(t, rec.statuses, 3)
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := ConsoleReporter{W: &buf}

	r.Report(context.Background(), Report{Result: action.Succeeded("x", "x completed successfully")})
	r.Report(context.Background(), Report{Result: action.Failed("", "")})
	r.Report(context.Background(), Report{Result: action.Unrecognized()})

	assert.Equal(t, "x completed successfully\n"+action.UnrecognizedMessage+"\n"+action.UnrecognizedMessage+"\n", buf.String())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "reported", StateReported.String())
	assert.Equal(t, "unknown", State(42).String())
}
