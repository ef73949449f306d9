package worker

import (
	"context"
	"errors"
	"time"

	"content-calendar/internal/dispatch"

	"go.uber.org/zap"
)

// JobSource yields queued generation jobs. dispatch.Queue implements it.
type JobSource interface {
	Pop(ctx context.Context) (dispatch.Job, error)
}

// Worker drains the generation queue and starts each job on the workflow runner.
type Worker struct {
	jobs       JobSource
	runner     dispatch.Trigger
	logger     *zap.Logger
	jobTimeout time.Duration
}

func NewWorker(jobs JobSource, runner dispatch.Trigger, logger *zap.Logger) *Worker {
	return &Worker{
		jobs:       jobs,
		runner:     runner,
		logger:     logger,
		jobTimeout: 30 * time.Second,
	}
}

// Start runs the worker loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started. Waiting for jobs...")

	for {
		job, err := w.jobs.Pop(ctx)
		if err == nil {
			// The job is already off the queue, so it is handed over even
			// when shutdown started while Pop returned.
			w.processJob(ctx, job)
		}
		if ctx.Err() != nil {
			w.logger.Info("Worker shutting down")
			return
		}
		if err == nil || errors.Is(err, dispatch.ErrQueueEmpty) {
			continue
		}

		w.logger.Error("Queue error", zap.Error(err))
		time.Sleep(time.Second)
	}
}

// processJob hands one job to the runner. A failure is logged only: the
// entry stays generating until the workflow reports back or an operator
// intervenes.
func (w *Worker) processJob(ctx context.Context, job dispatch.Job) {
	logger := w.logger.With(
		zap.String("entry_id", job.EntryID.String()),
		zap.String("keyword", job.Keyword))
	logger.Info("Triggering workflow")

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.jobTimeout)
	defer cancel()

	if err := w.runner.Trigger(jobCtx, job); err != nil {
		logger.Error("Workflow trigger failed", zap.Error(err))
		return
	}
	logger.Info("Workflow triggered")
}
