package publish

import (
	"context"
	"fmt"
	"sync"

	"github.com/uiua-boo/registry/internal/log"
)

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// CompensationStack accumulates undo actions as the publish pipeline's
// side effects succeed. On failure the actions run in strict reverse of
// push order, undoing the most recent side effect first. The stack exists
// because blob moves and puts are not covered by the relational
// transaction; a rollback alone cannot undo them.
//
// Push and Run are safe for concurrent use so entry processing could be
// parallelized without corrupting the stack.
type CompensationStack struct {
	mu      sync.Mutex
	entries []compensation
}

// Push registers an undo action. The name is used for diagnostics when
// the action fails.
func (s *CompensationStack) Push(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, compensation{name: name, fn: fn})
}

// Clear discards all registered actions. Called after a successful commit,
// when every recorded side effect has become desired durable state.
func (s *CompensationStack) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Len returns the number of pending actions.
func (s *CompensationStack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Run executes the registered actions in reverse of push order, halting
// on the first failure. Each action must be idempotent and tolerate
// "already gone" conditions, since partial re-runs are possible.
func (s *CompensationStack) Run(ctx context.Context) error {
	s.mu.Lock()
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		log.Debug(log.CatPublish, "running compensation", "name", entry.name)
		if err := entry.fn(ctx); err != nil {
			return fmt.Errorf("compensation %q failed with %d earlier action(s) not run: %w", entry.name, i, err)
		}
	}
	return nil
}
