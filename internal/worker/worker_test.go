package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflow/api/internal/model"
	"github.com/mediaflow/api/internal/queue"
	"github.com/mediaflow/api/internal/task"
)

type delivery struct {
	url string
	env model.Envelope
}

type recordingNotifier struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (n *recordingNotifier) Notify(_ context.Context, url string, env *model.Envelope) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, delivery{url: url, env: *env})
}

func (n *recordingNotifier) all() []delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]delivery(nil), n.deliveries...)
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	envs []model.Envelope
}

func (b *recordingBroadcaster) BroadcastEnvelope(env *model.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.envs = append(b.envs, *env)
}

func newRegistry(t *testing.T, routes ...task.Route) *task.Registry {
	t.Helper()
	r := task.NewRegistry()
	for _, route := range routes {
		require.NoError(t, r.Register(route))
	}
	return r
}

func TestProcessSuccessNotifies(t *testing.T) {
	reg := newRegistry(t, task.Route{Name: "/x", Run: func(ctx context.Context, p task.Params) (task.Outcome, error) {
		return task.OK("/x", "done"), nil
	}})
	q := queue.NewMemoryQueue(0)
	n := &recordingNotifier{}
	b := &recordingBroadcaster{}
	p := NewProcessor(reg, q, n, b, 99, "5")

	enqueued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := []time.Time{enqueued.Add(2 * time.Second), enqueued.Add(5 * time.Second)}
	p.now = func() time.Time {
		now := ticks[0]
		ticks = ticks[1:]
		return now
	}

	env := p.Process(context.Background(), &queue.Job{
		ID:         "j1",
		Route:      "/x",
		Params:     task.Params{"id": "A", "webhook_url": "http://h"},
		UserID:     "u1",
		EnqueuedAt: enqueued,
	})

	assert.Equal(t, 200, env.Code)
	assert.Equal(t, "done", env.Response)
	assert.Equal(t, 2.0, *env.QueueTime)
	assert.Equal(t, 3.0, *env.RunTime)
	assert.Equal(t, 5.0, *env.TotalTime)
	assert.Equal(t, "u1", env.UserID)
	assert.Equal(t, 99, env.PID)
	assert.Equal(t, q.ID(), env.QueueID)

	deliveries := n.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "http://h", deliveries[0].url)
	assert.Equal(t, "j1", deliveries[0].env.JobID)
	assert.Len(t, b.envs, 1)
}

func TestProcessWithoutWebhookDoesNotNotify(t *testing.T) {
	reg := newRegistry(t, task.Route{Name: "/x", Run: func(ctx context.Context, p task.Params) (task.Outcome, error) {
		return task.OK("/x", nil), nil
	}})
	n := &recordingNotifier{}
	p := NewProcessor(reg, queue.NewMemoryQueue(0), n, nil, 1, "")

	env := p.Process(context.Background(), &queue.Job{ID: "j1", Route: "/x", Params: task.Params{}, EnqueuedAt: time.Now()})
	assert.Equal(t, 200, env.Code)
	assert.Empty(t, n.all())
}

func TestProcessFaultAndPanicBecome500(t *testing.T) {
	reg := newRegistry(t,
		task.Route{Name: "/err", Run: func(ctx context.Context, p task.Params) (task.Outcome, error) {
			return task.Outcome{}, errors.New("decode failed")
		}},
		task.Route{Name: "/panic", Run: func(ctx context.Context, p task.Params) (task.Outcome, error) {
			panic("kaboom")
		}},
		task.Route{Name: "/declared", Run: func(ctx context.Context, p task.Params) (task.Outcome, error) {
			return task.Fail("/declared", 400, "bad input"), nil
		}},
	)
	p := NewProcessor(reg, queue.NewMemoryQueue(0), &recordingNotifier{}, nil, 1, "")

	env := p.Process(context.Background(), &queue.Job{ID: "a", Route: "/err", Params: task.Params{}, EnqueuedAt: time.Now()})
	assert.Equal(t, 500, env.Code)
	assert.Equal(t, "decode failed", env.Message)
	assert.Nil(t, env.Response)

	env = p.Process(context.Background(), &queue.Job{ID: "b", Route: "/panic", Params: task.Params{}, EnqueuedAt: time.Now()})
	assert.Equal(t, 500, env.Code)
	assert.Equal(t, "kaboom", env.Message)

	env = p.Process(context.Background(), &queue.Job{ID: "c", Route: "/declared", Params: task.Params{}, EnqueuedAt: time.Now()})
	assert.Equal(t, 400, env.Code)
	assert.Equal(t, "bad input", env.Message)

	env = p.Process(context.Background(), &queue.Job{ID: "d", Route: "/missing", Params: task.Params{}, EnqueuedAt: time.Now()})
	assert.Equal(t, 500, env.Code)
}

func TestLoopRunsJobsInOrderAndSurvivesFaults(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	reg := newRegistry(t, task.Route{Name: "/x", Run: func(ctx context.Context, p task.Params) (task.Outcome, error) {
		id, _ := p.ID()
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
		if id == "2" {
			panic("bad job")
		}
		return task.OK("/x", id), nil
	}})

	q := queue.NewMemoryQueue(0)
	n := &recordingNotifier{}
	loop := NewLoop(q, NewProcessor(reg, q, n, nil, 1, ""))

	for _, id := range []string{"1", "2", "3"} {
		_, err := q.Push(context.Background(), &queue.Job{
			ID:         "job-" + id,
			Route:      "/x",
			Params:     task.Params{"id": id, "webhook_url": "http://h"},
			EnqueuedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	loop.Start()
	loop.Start()

	require.Eventually(t, func() bool { return len(n.all()) == 3 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, loop.Stop(ctx))

	mu.Lock()
	assert.Equal(t, []string{"1", "2", "3"}, order)
	mu.Unlock()

	codes := []int{}
	for _, d := range n.all() {
		codes = append(codes, d.env.Code)
	}
	assert.Equal(t, []int{200, 500, 200}, codes)
}

func TestLoopStopWaitsForRunningJob(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})

	reg := newRegistry(t, task.Route{Name: "/slow", Run: func(ctx context.Context, p task.Params) (task.Outcome, error) {
		close(started)
		<-release
		assert.NoError(t, ctx.Err())
		close(finished)
		return task.OK("/slow", nil), nil
	}})

	q := queue.NewMemoryQueue(0)
	loop := NewLoop(q, NewProcessor(reg, q, nil, nil, 1, ""))
	_, err := q.Push(context.Background(), &queue.Job{ID: "s", Route: "/slow", Params: task.Params{}, EnqueuedAt: time.Now()})
	require.NoError(t, err)
	loop.Start()
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- loop.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("stop returned while a job was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-finished
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
}

func TestLoopStopLeavesQueuedJobs(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32

	reg := newRegistry(t, task.Route{Name: "/slow", Run: func(ctx context.Context, p task.Params) (task.Outcome, error) {
		if runs.Add(1) == 1 {
			close(started)
			<-release
		}
		return task.OK("/slow", nil), nil
	}})

	q := queue.NewMemoryQueue(0)
	loop := NewLoop(q, NewProcessor(reg, q, nil, nil, 1, ""))
	for _, id := range []string{"a", "b"} {
		_, err := q.Push(context.Background(), &queue.Job{ID: id, Route: "/slow", Params: task.Params{}, EnqueuedAt: time.Now()})
		require.NoError(t, err)
	}
	loop.Start()
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- loop.Stop(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}

	assert.Equal(t, int32(1), runs.Load())
	n, _ := q.Len(context.Background())
	assert.Equal(t, 1, n)
}

func TestStopBeforeStart(t *testing.T) {
	loop := NewLoop(queue.NewMemoryQueue(0), nil)
	assert.NoError(t, loop.Stop(context.Background()))
}

func TestAsynqLogLevel(t *testing.T) {
	assert.Equal(t, asynq.DebugLevel, asynqLogLevel("DEBUG"))
	assert.Equal(t, asynq.WarnLevel, asynqLogLevel("warn"))
	assert.Equal(t, asynq.InfoLevel, asynqLogLevel(""))
}
