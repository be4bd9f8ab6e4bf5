// Package publish owns the publish job state machine: the submission
// service that creates and queues jobs, the worker pool that processes
// them, and the pipeline that turns an uploaded archive into an immutable
// package version with saga-style rollback on partial failure.
package publish

import (
	"errors"
	"sync"
	"time"
)

// DefaultQueueSize is the default maximum number of pending triggers.
const DefaultQueueSize = 100

// ErrQueueFull is returned when attempting to enqueue to a full queue.
var ErrQueueFull = errors.New("trigger queue is full")

// Trigger is one "process this job" request waiting for a worker.
type Trigger struct {
	JobID      int64
	EnqueuedAt time.Time
}

// TriggerQueue is a thread-safe FIFO queue of publish triggers.
type TriggerQueue struct {
	entries []Trigger
	mu      sync.Mutex
	maxSize int
}

// NewTriggerQueue creates a queue with the specified maximum size.
// If maxSize is <= 0, DefaultQueueSize is used.
func NewTriggerQueue(maxSize int) *TriggerQueue {
	if maxSize <= 0 {
		maxSize = DefaultQueueSize
	}
	return &TriggerQueue{
		entries: make([]Trigger, 0),
		maxSize: maxSize,
	}
}

// Enqueue adds a trigger to the back of the queue.
// Returns ErrQueueFull if the queue is at maximum capacity.
func (q *TriggerQueue) Enqueue(t Trigger) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		return ErrQueueFull
	}

	q.entries = append(q.entries, t)
	return nil
}

// Dequeue removes and returns the trigger at the front of the queue.
// Returns (zero value, false) if the queue is empty.
func (q *TriggerQueue) Dequeue() (Trigger, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return Trigger{}, false
	}

	t := q.entries[0]
	q.entries = q.entries[1:]
	return t, true
}

// Len returns the current number of queued triggers.
func (q *TriggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.entries)
}

// Drain removes and returns all triggers, leaving the queue empty.
func (q *TriggerQueue) Drain() []Trigger {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return []Trigger{}
	}

	result := q.entries
	q.entries = make([]Trigger, 0)
	return result
}
