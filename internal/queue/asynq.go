package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskTypeJob is the asynq task type carrying a serialized Job.
const TaskTypeJob = "media:job"

// AsynqQueue stores jobs in Redis through asynq. The capacity check reads
// the queue size before enqueueing, so under concurrent submissions it can
// overshoot by the number of racing requests.
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	name      string
	capacity  int
	id        string
}

func NewAsynqQueue(client *asynq.Client, inspector *asynq.Inspector, name string, capacity int) *AsynqQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &AsynqQueue{
		client:    client,
		inspector: inspector,
		name:      name,
		capacity:  capacity,
		id:        uuid.New().String(),
	}
}

// NewJobTask wraps a job into an asynq task.
func NewJobTask(job *Job) (*asynq.Task, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return asynq.NewTask(TaskTypeJob, data), nil
}

// DecodeJob reads a job back from an asynq task payload.
func DecodeJob(t *asynq.Task) (*Job, error) {
	var job Job
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func (q *AsynqQueue) Push(ctx context.Context, job *Job) (int, error) {
	n, err := q.Len(ctx)
	if err != nil {
		return 0, err
	}
	if q.capacity > 0 && n >= q.capacity {
		return n, fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, q.capacity)
	}

	t, err := NewJobTask(job)
	if err != nil {
		return n, err
	}

	_, err = q.client.EnqueueContext(ctx, t,
		asynq.Queue(q.name),
		asynq.TaskID(job.ID),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return n, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return n + 1, nil
}

// Len counts tasks waiting to run. The task a worker is currently running
// has already left the queue, as with MemoryQueue.
func (q *AsynqQueue) Len(_ context.Context) (int, error) {
	// asynq only registers a queue on its first enqueue, and GetQueueInfo on
	// an unknown queue fails with an error that does not wrap
	// asynq.ErrQueueNotFound.
	queues, err := q.inspector.Queues()
	if err != nil {
		return 0, fmt.Errorf("failed to list queues: %w", err)
	}
	if !slices.Contains(queues, q.name) {
		return 0, nil
	}

	info, err := q.inspector.GetQueueInfo(q.name)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}
	return info.Pending, nil
}

func (q *AsynqQueue) Capacity() int { return q.capacity }

func (q *AsynqQueue) ID() string { return q.id }

func (q *AsynqQueue) Close() error {
	return q.client.Close()
}
