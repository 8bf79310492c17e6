// Package action holds the registry of side-effecting operations a spell can trigger.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ID identifies a registered action, e.g. "create_daily_note".
type ID string

// Args carries keyword arguments for parameterized actions (e.g. "date").
type Args map[string]string

// Get returns the value for key, or "" when absent.
func (a Args) Get(key string) string {
	if a == nil {
		return ""
	}
	return a[key]
}

// ErrUnknownAction is returned by Invoke for ids absent from the registry.
var ErrUnknownAction = errors.New("unknown action")

// Handler runs one action.
type Handler interface {
	Run(ctx context.Context, args Args) error
}

// Func adapts a zero-argument function to a Handler. Args are ignored.
type Func func() error

// Run implements Handler.
func (f Func) Run(_ context.Context, _ Args) error {
	return f()
}

// ArgsFunc adapts a keyword-argument function to a Handler.
type ArgsFunc func(ctx context.Context, args Args) error

// Run implements Handler.
func (f ArgsFunc) Run(ctx context.Context, args Args) error {
	return f(ctx, args)
}

// Registry is a static id -> handler mapping. It is built once at start-up
// via NewRegistry and is safe for concurrent reads afterwards.
type Registry struct {
	handlers map[ID]Handler
}

// NewRegistry copies handlers into a new registry.
func NewRegistry(handlers map[ID]Handler) *Registry {
	m := make(map[ID]Handler, len(handlers))
	for id, h := range handlers {
		if h == nil {
			slog.Warn("skipping nil action handler", "action", id)
			continue
		}
		m[id] = h
	}
	return &Registry{handlers: m}
}

// Has reports whether id is registered.
func (r *Registry) Has(id ID) bool {
	_, ok := r.handlers[id]
	return ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []ID {
	ids := make([]ID, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Invoke runs the handler registered for id. A panicking handler is
// converted into an error so callers never crash on a faulty collaborator.
func (r *Registry) Invoke(ctx context.Context, id ID, args Args) (err error) {
	h, ok := r.handlers[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, id)
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("action handler panicked", "action", id, "panic", rec)
			err = fmt.Errorf("action %q panicked: %v", id, rec)
		}
	}()

	return h.Run(ctx, args)
}
