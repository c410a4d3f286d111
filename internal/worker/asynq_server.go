package worker

import (
	"context"
	"log"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/mediaflow/api/internal/queue"
)

// NewAsynqServer builds an asynq server that runs one job at a time from a
// single queue, keeping execution sequential and FIFO.
func NewAsynqServer(opt asynq.RedisConnOpt, queueName, logLevel string) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency:    1,
		Queues:         map[string]int{queueName: 1},
		StrictPriority: true,
		LogLevel:       asynqLogLevel(logLevel),
	})
}

// NewAsynqMux routes job tasks to the processor.
func NewAsynqMux(processor *Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeJob, func(ctx context.Context, t *asynq.Task) error {
		job, err := queue.DecodeJob(t)
		if err != nil {
			log.Printf("Dropping undecodable job: %v", err)
			return nil
		}
		processor.Process(context.WithoutCancel(ctx), job)
		return nil
	})
	return mux
}

func asynqLogLevel(level string) asynq.LogLevel {
	switch {
	case strings.EqualFold(level, "debug"):
		return asynq.DebugLevel
	case strings.EqualFold(level, "warn"):
		return asynq.WarnLevel
	case strings.EqualFold(level, "error"):
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}
