// Package envelope builds the response / notification bodies. Builders are
// pure: they never read a clock or touch I/O.
package envelope

import (
	"fmt"
	"math"
	"time"

	"github.com/mediaflow/api/internal/model"
	"github.com/mediaflow/api/internal/task"
)

// Ref identifies the job an envelope describes.
type Ref struct {
	Endpoint string
	JobID    string
	ID       *string
	UserID   string
}

// RefFromParams builds a Ref from a route name, job id and request params.
func RefFromParams(endpoint, jobID string, params task.Params) Ref {
	ref := Ref{Endpoint: endpoint, JobID: jobID, UserID: params.UserID()}
	if id, ok := params.ID(); ok {
		ref.ID = &id
	}
	return ref
}

// Meta is process/queue context stamped on every envelope.
type Meta struct {
	PID         int
	QueueID     string
	QueueLength int
	BuildNumber string
}

// Timing holds the three measured durations of a finished job.
type Timing struct {
	Queue time.Duration
	Run   time.Duration
	Total time.Duration
}

func base(ref Ref, code int, message string, meta Meta) model.Envelope {
	return model.Envelope{
		Endpoint:    ref.Endpoint,
		Code:        code,
		ID:          ref.ID,
		UserID:      ref.UserID,
		JobID:       ref.JobID,
		Message:     message,
		PID:         meta.PID,
		QueueID:     meta.QueueID,
		QueueLength: meta.QueueLength,
		BuildNumber: meta.BuildNumber,
	}
}

// Completed describes a finished job. A fault (err != nil) always yields 500
// with the fault text; a declared non-200 status is passed through with the
// payload as message; only status 200 carries a response.
func Completed(ref Ref, outcome task.Outcome, err error, timing Timing, meta Meta) model.Envelope {
	var env model.Envelope
	switch {
	case err != nil:
		env = base(ref, 500, err.Error(), meta)
	case outcome.Status == 200:
		env = base(ref, 200, model.MessageSuccess, meta)
		env.Response = outcome.Payload
	default:
		env = base(ref, outcome.Status, payloadText(outcome.Payload), meta)
	}

	env.RunTime = seconds(timing.Run)
	env.QueueTime = seconds(timing.Queue)
	env.TotalTime = seconds(timing.Total)
	return env
}

// Accepted is the 202 acknowledgement of a queued job.
func Accepted(ref Ref, capacity int, meta Meta) model.Envelope {
	env := base(ref, 202, model.MessageProcessing, meta)
	env.MaxQueueLength = MaxQueueLength(capacity)
	return env
}

// Rejected is the 429 answer when the queue is at capacity.
func Rejected(ref Ref, capacity int, meta Meta) model.Envelope {
	return base(ref, 429, fmt.Sprintf("MAX_QUEUE_LENGTH (%d) reached", capacity), meta)
}

// NotFound answers a submission for a route nobody registered.
func NotFound(ref Ref, meta Meta) model.Envelope {
	return base(ref, 404, fmt.Sprintf("route %s not found", ref.Endpoint), meta)
}

// MaxQueueLength renders a capacity, 0 meaning unbounded.
func MaxQueueLength(capacity int) any {
	if capacity <= 0 {
		return model.MaxQueueUnlimited
	}
	return capacity
}

func payloadText(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

func seconds(d time.Duration) *float64 {
	if d < 0 {
		d = 0
	}
	v := math.Round(d.Seconds()*1000) / 1000
	return &v
}
