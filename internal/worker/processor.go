package worker

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/mediaflow/api/internal/envelope"
	"github.com/mediaflow/api/internal/model"
	"github.com/mediaflow/api/internal/notify"
	"github.com/mediaflow/api/internal/queue"
	"github.com/mediaflow/api/internal/task"
)

// Broadcaster receives every completion envelope, e.g. the websocket hub.
type Broadcaster interface {
	BroadcastEnvelope(env *model.Envelope)
}

// Processor executes one job and reports its result.
type Processor struct {
	registry    *task.Registry
	queue       queue.Queue
	notifier    notify.Notifier
	broadcaster Broadcaster
	pid         int
	buildNumber string
	now         func() time.Time
}

func NewProcessor(registry *task.Registry, q queue.Queue, notifier notify.Notifier, broadcaster Broadcaster, pid int, buildNumber string) *Processor {
	return &Processor{
		registry:    registry,
		queue:       q,
		notifier:    notifier,
		broadcaster: broadcaster,
		pid:         pid,
		buildNumber: buildNumber,
		now:         time.Now,
	}
}

// Process runs job, builds its completion envelope, and delivers it to the
// job's webhook (if any) and to the broadcaster. It never returns a task
// fault; faults are reported in the envelope.
func (p *Processor) Process(ctx context.Context, job *queue.Job) *model.Envelope {
	log.Printf("Starting job %s (%s)", job.ID, job.Route)

	start := p.now()
	outcome, err := p.run(ctx, job)
	end := p.now()

	timing := envelope.Timing{
		Queue: start.Sub(job.EnqueuedAt),
		Run:   end.Sub(start),
		Total: end.Sub(job.EnqueuedAt),
	}

	ref := envelope.RefFromParams(job.Route, job.ID, job.Params)
	if ref.UserID == "" {
		ref.UserID = job.UserID
	}

	env := envelope.Completed(ref, outcome, err, timing, p.meta(ctx))

	if err != nil {
		log.Printf("Job %s failed: %v", job.ID, err)
	} else {
		log.Printf("Job %s completed with code %d", job.ID, env.Code)
	}

	if url := job.Params.WebhookURL(); url != "" && p.notifier != nil {
		p.notifier.Notify(ctx, url, &env)
	}
	if p.broadcaster != nil {
		p.broadcaster.BroadcastEnvelope(&env)
	}

	return &env
}

func (p *Processor) run(ctx context.Context, job *queue.Job) (task.Outcome, error) {
	route, err := p.registry.Lookup(job.Route)
	if err != nil {
		return task.Outcome{}, err
	}
	return Execute(ctx, route, job.Params)
}

func (p *Processor) meta(ctx context.Context) envelope.Meta {
	meta := envelope.Meta{PID: p.pid, BuildNumber: p.buildNumber}
	if p.queue != nil {
		meta.QueueID = p.queue.ID()
		if n, err := p.queue.Len(ctx); err == nil {
			meta.QueueLength = n
		}
	}
	return meta
}

// Execute runs a route's task, turning a panic into a fault.
func Execute(ctx context.Context, route task.Route, params task.Params) (outcome task.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Task %s panicked: %v\n%s", route.Name, r, debug.Stack())
			outcome = task.Outcome{}
			err = fmt.Errorf("%v", r)
		}
	}()
	return route.Run(ctx, params)
}
