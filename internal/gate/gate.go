// Package gate decides, per submission, whether a job runs inline, is
// queued, or is rejected because the queue is full.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mediaflow/api/internal/envelope"
	"github.com/mediaflow/api/internal/model"
	"github.com/mediaflow/api/internal/queue"
	"github.com/mediaflow/api/internal/task"
	"github.com/mediaflow/api/internal/worker"
)

// Request is one submission: the route name and its request parameters.
type Request struct {
	Route  string
	Params task.Params
	UserID string
}

// Gate is the admission point for every media route.
type Gate struct {
	registry    *task.Registry
	queue       queue.Queue
	pid         int
	buildNumber string
	now         func() time.Time
	newID       func() string
}

func New(registry *task.Registry, q queue.Queue, pid int, buildNumber string) *Gate {
	return &Gate{
		registry:    registry,
		queue:       q,
		pid:         pid,
		buildNumber: buildNumber,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
}

// Admit runs the request synchronously when the route bypasses the queue
// or no webhook was given; otherwise it queues the job and acknowledges
// with 202, or answers 429 when the queue is at capacity.
func (g *Gate) Admit(ctx context.Context, req Request) model.Envelope {
	jobID := g.newID()

	params := req.Params.Clone()
	if req.UserID != "" {
		params["user_id"] = req.UserID
	}
	ref := envelope.RefFromParams(req.Route, jobID, params)

	route, err := g.registry.Lookup(req.Route)
	if err != nil {
		return envelope.NotFound(ref, g.meta(ctx))
	}

	if route.BypassQueue || params.WebhookURL() == "" {
		return g.runSync(ctx, route, ref, params)
	}

	job := &queue.Job{
		ID:         jobID,
		Route:      route.Name,
		Params:     params,
		UserID:     req.UserID,
		EnqueuedAt: g.now(),
	}

	length, err := g.queue.Push(ctx, job)
	if err != nil {
		meta := g.meta(ctx)
		if errors.Is(err, queue.ErrQueueFull) {
			log.Printf("Rejected job %s for %s: queue full (%d)", jobID, route.Name, g.queue.Capacity())
			meta.QueueLength = length
			return envelope.Rejected(ref, g.queue.Capacity(), meta)
		}
		log.Printf("Failed to enqueue job %s: %v", jobID, err)
		return envelope.Completed(ref, task.Outcome{}, fmt.Errorf("failed to enqueue job: %w", err), envelope.Timing{}, meta)
	}

	log.Printf("Queued job %s for %s (queue length %d)", jobID, route.Name, length)
	meta := g.meta(ctx)
	meta.QueueLength = length
	return envelope.Accepted(ref, g.queue.Capacity(), meta)
}

func (g *Gate) runSync(ctx context.Context, route task.Route, ref envelope.Ref, params task.Params) model.Envelope {
	start := g.now()
	outcome, err := worker.Execute(ctx, route, params)
	elapsed := g.now().Sub(start)

	if err != nil {
		log.Printf("Job %s (%s) failed: %v", ref.JobID, route.Name, err)
	}

	return envelope.Completed(ref, outcome, err, envelope.Timing{Run: elapsed, Total: elapsed}, g.meta(ctx))
}

func (g *Gate) meta(ctx context.Context) envelope.Meta {
	meta := envelope.Meta{PID: g.pid, QueueID: g.queue.ID(), BuildNumber: g.buildNumber}
	if n, err := g.queue.Len(ctx); err == nil {
		meta.QueueLength = n
	}
	return meta
}
