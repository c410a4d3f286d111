package worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/mediaflow/api/internal/queue"
)

// Loop drains a MemoryQueue one job at a time, in FIFO order.
type Loop struct {
	queue     *queue.MemoryQueue
	processor *Processor

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewLoop(q *queue.MemoryQueue, processor *Processor) *Loop {
	return &Loop{
		queue:     q,
		processor: processor,
		done:      make(chan struct{}),
	}
}

// Start launches the loop goroutine. Later calls are no-ops.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		l.cancel = cancel
		go l.run(ctx)
		log.Printf("Worker loop started on queue %s", l.queue.ID())
	})
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	for ctx.Err() == nil {
		job, err := l.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("Failed to pop job: %v", err)
			continue
		}

		// Tasks get a context that outlives Stop; a running job is never
		// interrupted.
		l.processor.Process(context.WithoutCancel(ctx), job)
	}
}

// Stop stops taking new jobs and waits for the job in flight, or until ctx
// is done. Jobs still queued are left unprocessed.
func (l *Loop) Stop(ctx context.Context) error {
	if l.cancel == nil {
		return nil
	}
	l.cancel()

	select {
	case <-l.done:
		log.Println("Worker loop stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
