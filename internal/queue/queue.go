// Package queue holds admitted jobs until the worker picks them up.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/mediaflow/api/internal/task"
)

// Common errors returned by queues
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)

// Job is an admitted unit of work. It names its route instead of carrying
// code, so it can cross a process boundary.
type Job struct {
	ID         string      `json:"id"`
	Route      string      `json:"route"`
	Params     task.Params `json:"params"`
	UserID     string      `json:"user_id,omitempty"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
}

// Queue is the admission side of a bounded FIFO.
type Queue interface {
	// Push appends job unless the queue is at capacity and returns the
	// length right after the push.
	Push(ctx context.Context, job *Job) (int, error)
	Len(ctx context.Context) (int, error)
	// Capacity is the maximum length, 0 meaning unbounded.
	Capacity() int
	// ID identifies this queue instance in envelopes.
	ID() string
	Close() error
}
