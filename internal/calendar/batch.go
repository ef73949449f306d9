package calendar

import (
	"context"
	"errors"

	"content-calendar/internal/lifecycle"
	"content-calendar/internal/model"
	"content-calendar/internal/schedule"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchRequest approves a set of entries and optionally schedules them.
// StartDate defaults to today plus the configured offset; PerDay 0 uses the
// configured default.
type BatchRequest struct {
	IDs          []uuid.UUID
	Actor        string
	AutoSchedule bool
	StartDate    *model.Date
	PerDay       int
}

type BatchResult struct {
	Approved    []model.Entry `json:"approved"`
	Scheduled   []model.Entry `json:"scheduled"`
	FailedCount int           `json:"failed_count"`
}

// ApproveBatch approves every id still in suggested or rejected with one
// conditional bulk update, then, when asked, assigns planned dates in
// descending priority order. Each date is an independent conditional write;
// a miss is skipped and the batch is never rolled back.
func (s *Service) ApproveBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	ids := uniqueIDs(req.IDs)
	if len(ids) == 0 {
		return nil, invalid("ids are required")
	}

	perDay := req.PerDay
	if perDay == 0 {
		perDay = s.cfg.PerDay
	}
	if perDay < 1 {
		return nil, invalid("per_day must be at least 1")
	}
	start := s.today().AddDays(s.cfg.StartOffsetDays)
	if req.StartDate != nil && !req.StartDate.IsZero() {
		start = *req.StartDate
	}

	approve := lifecycle.Approve(actorOrDefault(req.Actor), s.now().UTC())
	approved, err := s.store.ConditionalUpdate(ctx, ids, approve.From, approve.Patch)
	if err != nil {
		return nil, err
	}

	res := &BatchResult{
		Approved:    approved,
		Scheduled:   []model.Entry{},
		FailedCount: len(ids) - len(approved),
	}
	logger := s.logger.With(zap.Int("requested", len(ids)), zap.Int("approved", len(approved)))

	if !req.AutoSchedule || len(approved) == 0 {
		logger.Info("Batch approved")
		return res, nil
	}

	plan, err := schedule.Plan(approved, start, perDay)
	if err != nil {
		return nil, err
	}

	for _, a := range plan {
		date := a.Date
		t, err := lifecycle.Reschedule(&date)
		if err != nil {
			return nil, err
		}

		updated, err := s.store.ConditionalUpdate(ctx, []uuid.UUID{a.Entry.ID}, t.From, t.Patch)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return res, err
			}
			logger.Warn("Scheduling skipped", zap.String("id", a.Entry.ID.String()), zap.Error(err))
			continue
		}
		if len(updated) == 0 {
			logger.Debug("Scheduling skipped, entry moved on", zap.String("id", a.Entry.ID.String()))
			continue
		}
		res.Scheduled = append(res.Scheduled, updated[0])
	}

	logger.Info("Batch approved and scheduled",
		zap.Int("scheduled", len(res.Scheduled)),
		zap.String("start", start.String()),
		zap.Int("per_day", perDay))
	return res, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
