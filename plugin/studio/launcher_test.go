package studio

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/orchestra/action"
	"github.com/hrygo/orchestra/spell"
)

type recordingRunner struct {
	calls []string
	err   error
}

func (r *recordingRunner) run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	return r.err
}

func TestLauncher_Defaults(t *testing.T) {
	rec := &recordingRunner{}
	l := NewLauncher(Config{}, rec.run)

	require.NoError(t, l.Launch(context.Background()))
	require.NoError(t, l.OpenSession(context.Background()))

	assert.Equal(t, []string{
		"open -a FL Studio 2024",
		"open -a FL Studio 2024 DRUMS.flp",
	}, rec.calls)
}

func TestLauncher_SettleLaunchesFirst(t *testing.T) {
	rec := &recordingRunner{}
	l := NewLauncher(Config{App: "Studio", Project: "beat.flp", Settle: time.Millisecond}, rec.run)

	require.NoError(t, l.OpenSession(context.Background()))
	assert.Equal(t, []string{"open -a Studio", "open -a Studio beat.flp"}, rec.calls)
}

func TestLauncher_SettleHonorsCancel(t *testing.T) {
	rec := &recordingRunner{}
	l := NewLauncher(Config{Settle: time.Hour}, rec.run)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.OpenSession(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.calls, 1)
}

func TestLauncher_ErrorWrapped(t *testing.T) {
	rec := &recordingRunner{err: errors.New("no such app")}
	reg := action.NewRegistry(NewLauncher(Config{App: "Ghost"}, rec.run).Handlers())

	err := reg.Invoke(context.Background(), spell.LaunchStudio, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to launch Ghost")
	assert.Contains(t, err.Error(), "no such app")

	assert.True(t, reg.Has(spell.OpenDrumSession))
}
