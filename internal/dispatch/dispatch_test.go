package dispatch

import (
	"context"
	"errors"
	"testing"

	"content-calendar/internal/calendar"
	"content-calendar/internal/lifecycle"
	"content-calendar/internal/model"
	"content-calendar/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingTrigger struct {
	jobs []Job
	err  error
}

func (r *recordingTrigger) Trigger(ctx context.Context, job Job) error {
	r.jobs = append(r.jobs, job)
	return r.err
}

func setup(t *testing.T) (*calendar.Service, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return calendar.NewService(store.NewRedisStore(rdb, zap.NewNop()), zap.NewNop(), calendar.Config{}), rdb
}

func TestDispatch_TriggersAndMarksGenerating(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, calendar.CreateInput{Keyword: "vector databases", ArticleType: "comparison"})
	require.NoError(t, err)

	trig := &recordingTrigger{}
	d := NewDispatcher(svc, trig, zap.NewNop())

	res, err := d.Dispatch(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, res.Triggered)
	assert.Empty(t, res.Error)
	assert.Equal(t, model.StatusGenerating, res.Entry.Status)
	require.NotNil(t, res.Entry.GenerationStartedAt)

	require.Len(t, trig.jobs, 1)
	assert.Equal(t, e.ID, trig.jobs[0].EntryID)
	assert.Equal(t, "vector databases", trig.jobs[0].Keyword)
	assert.Equal(t, "comparison", trig.jobs[0].ArticleType)
}

func TestDispatch_AlreadyGeneratingMakesNoExternalCall(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, calendar.CreateInput{Keyword: "k"})
	require.NoError(t, err)

	trig := &recordingTrigger{}
	d := NewDispatcher(svc, trig, zap.NewNop())

	_, err = d.Dispatch(ctx, e.ID)
	require.NoError(t, err)

	_, err = d.Dispatch(ctx, e.ID)
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyGenerating)
	assert.Len(t, trig.jobs, 1, "second dispatch must not reach the runner")
}

func TestDispatch_RejectsOtherStatuses(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, calendar.CreateInput{Keyword: "k"})
	require.NoError(t, err)
	_, err = svc.Reject(ctx, e.ID, nil)
	require.NoError(t, err)

	trig := &recordingTrigger{}
	_, err = NewDispatcher(svc, trig, zap.NewNop()).Dispatch(ctx, e.ID)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
	assert.Empty(t, trig.jobs)

	_, err = NewDispatcher(svc, trig, zap.NewNop()).Dispatch(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDispatch_TriggerFailureKeepsGenerating(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, calendar.CreateInput{Keyword: "k"})
	require.NoError(t, err)

	trig := &recordingTrigger{err: errors.New("connection refused")}
	res, err := NewDispatcher(svc, trig, zap.NewNop()).Dispatch(ctx, e.ID)
	require.NoError(t, err, "trigger failures are reported, not returned")
	assert.False(t, res.Triggered)
	assert.Contains(t, res.Error, "external dispatch failed")
	assert.Contains(t, res.Error, "connection refused")

	stored, err := svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusGenerating, stored.Status)
}

func TestQueue_TriggerAndPop(t *testing.T) {
	svc, rdb := setup(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, calendar.CreateInput{Keyword: "queued"})
	require.NoError(t, err)

	q := NewQueue(rdb)
	res, err := NewDispatcher(svc, q, zap.NewNop()).Dispatch(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, res.Triggered)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	job, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.ID, job.EntryID)
	assert.Equal(t, "queued", job.Keyword)
}
