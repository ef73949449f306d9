// Package dispatch hands calendar entries to the external article generation
// workflow.
//
// The entry is moved to generating before the workflow is contacted. That
// status change is the commitment; the trigger itself is best effort and a
// failed trigger never moves the entry back, because retrying a job that may
// already have started is not safe without idempotency keys on the runner.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"content-calendar/internal/lifecycle"
	"content-calendar/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrDispatchFailure = errors.New("external dispatch failed")

// Job is what the generation workflow needs to write an article.
type Job struct {
	EntryID     uuid.UUID `json:"entry_id"`
	Keyword     string    `json:"keyword"`
	ArticleType string    `json:"article_type"`
	RequestedAt time.Time `json:"requested_at"`
}

// Trigger starts a generation job. Implementations return once the job is
// handed off; they do not wait for the article.
type Trigger interface {
	Trigger(ctx context.Context, job Job) error
}

// Transitioner persists lifecycle transitions. calendar.Service implements it.
type Transitioner interface {
	Transition(ctx context.Context, id uuid.UUID, t lifecycle.Transition) (*model.Entry, error)
}

// Result reports a dispatch. Error is set when the entry moved to generating
// but the trigger failed.
type Result struct {
	Entry     *model.Entry `json:"entry"`
	Triggered bool         `json:"triggered"`
	Error     string       `json:"error,omitempty"`
}

type Dispatcher struct {
	entries Transitioner
	trigger Trigger
	logger  *zap.Logger
	now     func() time.Time
}

func NewDispatcher(entries Transitioner, trigger Trigger, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		entries: entries,
		trigger: trigger,
		logger:  logger,
		now:     time.Now,
	}
}

// Dispatch moves the entry to generating and fires the workflow trigger.
// An entry already generating fails with lifecycle.ErrAlreadyGenerating and
// the trigger is not called.
func (d *Dispatcher) Dispatch(ctx context.Context, id uuid.UUID) (*Result, error) {
	entry, err := d.entries.Transition(ctx, id, lifecycle.StartGeneration(d.now().UTC()))
	if err != nil {
		return nil, err
	}

	logger := d.logger.With(zap.String("entry_id", id.String()), zap.String("keyword", entry.Keyword))
	res := &Result{Entry: entry}

	job := Job{
		EntryID:     entry.ID,
		Keyword:     entry.Keyword,
		ArticleType: entry.ArticleType,
		RequestedAt: *entry.GenerationStartedAt,
	}
	if err := d.trigger.Trigger(ctx, job); err != nil {
		err = fmt.Errorf("%w: %v", ErrDispatchFailure, err)
		logger.Error("Workflow trigger failed, entry stays generating", zap.Error(err))
		res.Error = err.Error()
		return res, nil
	}

	res.Triggered = true
	logger.Info("Generation dispatched")
	return res, nil
}
