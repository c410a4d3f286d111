package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process FIFO. The capacity check and the push happen
// under one lock, so admission is exact.
type MemoryQueue struct {
	mu       sync.Mutex
	jobs     []*Job
	capacity int
	id       string
	closed   bool
	// notify has one slot; a pending signal means "jobs may be available".
	notify chan struct{}
	done   chan struct{}
}

// NewMemoryQueue creates a queue holding at most capacity jobs (0 = unbounded).
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &MemoryQueue{
		capacity: capacity,
		id:       uuid.New().String(),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (q *MemoryQueue) Push(_ context.Context, job *Job) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return len(q.jobs), ErrQueueClosed
	}
	if q.capacity > 0 && len(q.jobs) >= q.capacity {
		return len(q.jobs), fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, q.capacity)
	}

	q.jobs = append(q.jobs, job)
	n := len(q.jobs)

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return n, nil
}

// Pop blocks until a job is available, the queue is closed and drained, or
// ctx is done.
func (q *MemoryQueue) Pop(ctx context.Context) (*Job, error) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs[0] = nil
			q.jobs = q.jobs[1:]
			if len(q.jobs) > 0 {
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return job, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs), nil
}

func (q *MemoryQueue) Capacity() int { return q.capacity }

func (q *MemoryQueue) ID() string { return q.id }

// Close rejects further pushes. Jobs already queued can still be popped.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}
