// Package shutdown releases process resources in the reverse order they were
// acquired.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Func releases one resource within ctx
type Func func(ctx context.Context) error

type step struct {
	name string
	fn   Func
}

// Stack collects release steps while a binary wires itself up
type Stack struct {
	logger *slog.Logger

	mu    sync.Mutex
	steps []step
}

// NewStack returns an empty stack that logs each step on release
func NewStack(logger *slog.Logger) *Stack {
	return &Stack{logger: logger}
}

// Push registers fn to run before everything pushed earlier
func (s *Stack) Push(name string, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{name: name, fn: fn})
}

// PushCloser registers a context-free Close method
func (s *Stack) PushCloser(name string, closeFn func() error) {
	s.Push(name, func(context.Context) error { return closeFn() })
}

// Release runs every step last-in first-out. A failing step is logged and
// does not stop the ones after it; all failures are returned joined.
// The stack is empty afterwards.
func (s *Stack) Release(ctx context.Context) error {
	s.mu.Lock()
	steps := s.steps
	s.steps = nil
	s.mu.Unlock()

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		st := steps[i]
		if err := st.fn(ctx); err != nil {
			s.logger.Error("Shutdown step failed", "step", st.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
			continue
		}
		s.logger.Debug("Shutdown step done", "step", st.name)
	}
	return errors.Join(errs...)
}
