package jobs

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/autoeval/autoeval-go-api/internal/observability"
)

// Enqueuer hands tasks to the async backend. Handlers depend on this interface
// so tests can capture tasks without a running redis.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task) error
}

type asynqEnqueuer struct {
	client *asynq.Client
	logger zerolog.Logger
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(client *asynq.Client, logger zerolog.Logger) Enqueuer {
	return &asynqEnqueuer{
		client: client,
		logger: logger.With().Str("component", "task_enqueuer").Logger(),
	}
}

func (e *asynqEnqueuer) Enqueue(ctx context.Context, task *asynq.Task) error {
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return err
	}

	observability.TasksEnqueued().WithLabelValues(task.Type()).Inc()
	e.logger.Debug().
		Str("task", task.Type()).
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Msg("task enqueued")
	return nil
}
