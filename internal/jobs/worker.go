package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/autoeval/autoeval-go-api/internal/service"
)

// Worker consumes pipeline tasks. Pipeline errors are reported through the
// notification channel by the services, so handlers return nil for them and
// reserve errors for undecodable payloads.
type Worker struct {
	evaluations service.EvaluationService
	uploads     service.UploadService
	logger      zerolog.Logger
}

// NewWorker builds the task handler set.
func NewWorker(evaluations service.EvaluationService, uploads service.UploadService, logger zerolog.Logger) *Worker {
	return &Worker{
		evaluations: evaluations,
		uploads:     uploads,
		logger:      logger.With().Str("component", "job_worker").Logger(),
	}
}

// Mux registers every task type on a fresh ServeMux.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEvaluateSheet, w.handleEvaluateSheet)
	mux.HandleFunc(TypeEvaluateCourse, w.handleEvaluateCourse)
	mux.HandleFunc(TypeUploadSheet, w.handleUploadSheet)
	mux.HandleFunc(TypeUploadBulk, w.handleUploadBulk)
	return mux
}

// NewServer builds the asynq server with the bounded worker pool shared by
// both queues.
func NewServer(redisOpt asynq.RedisClientOpt, concurrency int, logger zerolog.Logger) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 4
	}
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueEvaluations: 1,
			QueueUploads:     1,
		},
		Logger: asynqLogger{logger.With().Str("component", "asynq").Logger()},
	})
}

func (w *Worker) handleEvaluateSheet(ctx context.Context, task *asynq.Task) error {
	var payload EvaluateSheetPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", task.Type(), err)
	}

	if err := w.evaluations.EvaluateSheet(ctx, payload.Request, payload.Teacher); err != nil {
		w.logger.Warn().Err(err).Str("task", task.Type()).Msg("evaluation job ended in failure event")
	}
	return nil
}

func (w *Worker) handleEvaluateCourse(ctx context.Context, task *asynq.Task) error {
	var payload EvaluateCoursePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", task.Type(), err)
	}

	if err := w.evaluations.EvaluateCourse(ctx, payload.Request, payload.Teacher); err != nil {
		w.logger.Warn().Err(err).Str("task", task.Type()).Msg("bulk evaluation job ended in failure event")
	}
	return nil
}

func (w *Worker) handleUploadSheet(ctx context.Context, task *asynq.Task) error {
	var payload UploadSheetPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", task.Type(), err)
	}

	if err := w.uploads.ProcessSheet(ctx, payload.Request, payload.Files, payload.Teacher); err != nil {
		w.logger.Warn().Err(err).Str("task", task.Type()).Msg("upload job ended in failure event")
	}
	return nil
}

func (w *Worker) handleUploadBulk(ctx context.Context, task *asynq.Task) error {
	var payload UploadBulkPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", task.Type(), err)
	}

	if err := w.uploads.ProcessBulk(ctx, payload.Request, payload.Archive, payload.Teacher); err != nil {
		w.logger.Warn().Err(err).Str("task", task.Type()).Msg("bulk upload job ended in failure event")
	}
	return nil
}

// asynqLogger adapts zerolog to asynq's logging interface.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
