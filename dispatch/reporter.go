package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hrygo/orchestra/action"
)

// Report describes one finished dispatch.
type Report struct {
	JobID    string
	Input    string
	Source   Source
	Result   action.Result
	Duration time.Duration
}

// Reporter receives every dispatch outcome.
type Reporter interface {
	Report(ctx context.Context, r Report)
}

// LogReporter reports outcomes through slog.
type LogReporter struct{}

// Report implements Reporter.
func (LogReporter) Report(ctx context.Context, r Report) {
	attrs := []any{
		"job_id", r.JobID,
		"input", r.Input,
		"source", string(r.Source),
		"action", r.Result.Action,
		"message", r.Result.Message,
		"duration_ms", r.Duration.Milliseconds(),
	}
	if r.Result.Success {
		slog.InfoContext(ctx, "command dispatched", attrs...)
		return
	}
	slog.WarnContext(ctx, "command failed", attrs...)
}

// ConsoleReporter prints the outcome message for the interactive loop.
type ConsoleReporter struct {
	W io.Writer
}

// Report implements Reporter.
func (c ConsoleReporter) Report(_ context.Context, r Report) {
	msg := r.Result.Message
	if msg == "" && !r.Result.Success {
		msg = action.UnrecognizedMessage
	}
	fmt.Fprintln(c.W, msg)
}
