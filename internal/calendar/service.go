// Package calendar implements the approval workflow for content calendar
// entries on top of a record store.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"content-calendar/internal/lifecycle"
	"content-calendar/internal/model"
	"content-calendar/internal/scoring"
	"content-calendar/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultActor = "dashboard"

// ValidationError reports malformed input. It is surfaced to callers as is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Config holds auto-schedule defaults.
type Config struct {
	PerDay          int
	StartOffsetDays int
}

type Service struct {
	store  store.Store
	logger *zap.Logger
	cfg    Config
	now    func() time.Time
}

func NewService(st store.Store, logger *zap.Logger, cfg Config) *Service {
	if cfg.PerDay < 1 {
		cfg.PerDay = 1
	}
	if cfg.StartOffsetDays < 0 {
		cfg.StartOffsetDays = 0
	}
	return &Service{
		store:  st,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// CreateInput describes a new suggestion.
type CreateInput struct {
	Keyword               string             `json:"keyword"`
	ArticleType           string             `json:"article_type"`
	SearchVolume          *int               `json:"search_volume"`
	SearchVolumeSource    model.MetricSource `json:"search_volume_source"`
	Difficulty            *int               `json:"difficulty"`
	DifficultySource      model.MetricSource `json:"difficulty_source"`
	CompetitorCount       *int               `json:"competitor_count"`
	CompetitorCountSource model.MetricSource `json:"competitor_count_source"`
	PriorityScore         *float64           `json:"priority_score"`
	QualityScore          *float64           `json:"quality_score"`
}

// Create adds a suggested entry. Without an explicit priority the opportunity
// score of its metrics is used.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Entry, error) {
	keyword := strings.TrimSpace(in.Keyword)
	if keyword == "" {
		return nil, invalid("keyword is required")
	}
	if err := validateMetrics(in.SearchVolume, in.Difficulty, in.CompetitorCount); err != nil {
		return nil, err
	}
	for _, src := range []model.MetricSource{in.SearchVolumeSource, in.DifficultySource, in.CompetitorCountSource} {
		if !src.Valid() {
			return nil, invalid("unknown metric source %q", src)
		}
	}

	e := model.NewEntry(keyword)
	if t := strings.TrimSpace(in.ArticleType); t != "" {
		e.ArticleType = t
	}
	e.SearchVolume, e.SearchVolumeSource = in.SearchVolume, in.SearchVolumeSource
	e.Difficulty, e.DifficultySource = in.Difficulty, in.DifficultySource
	e.CompetitorCount, e.CompetitorCountSource = in.CompetitorCount, in.CompetitorCountSource
	e.QualityScore = in.QualityScore
	e.PriorityScore = in.PriorityScore
	if e.PriorityScore == nil && e.SearchVolume != nil && e.Difficulty != nil {
		p := float64(scoring.OpportunityScore(e.SearchVolume, e.Difficulty, e.CompetitorCount))
		e.PriorityScore = &p
	}

	if err := s.store.Insert(ctx, &e); err != nil {
		return nil, err
	}
	s.logger.Info("Entry created", zap.String("id", e.ID.String()), zap.String("keyword", e.Keyword))
	return &e, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Entry, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, q store.Query) ([]model.Entry, int, error) {
	if err := q.Validate(); err != nil {
		return nil, 0, &ValidationError{Msg: err.Error()}
	}
	return s.store.Find(ctx, q)
}

// UpdateInput lists the fields an operator may edit directly.
type UpdateInput struct {
	ArticleType           *string             `json:"article_type"`
	SearchVolume          *int                `json:"search_volume"`
	SearchVolumeSource    *model.MetricSource `json:"search_volume_source"`
	Difficulty            *int                `json:"difficulty"`
	DifficultySource      *model.MetricSource `json:"difficulty_source"`
	CompetitorCount       *int                `json:"competitor_count"`
	CompetitorCountSource *model.MetricSource `json:"competitor_count_source"`
	PriorityScore         *float64            `json:"priority_score"`
	QualityScore          *float64            `json:"quality_score"`
	DeclineReason         *string             `json:"decline_reason"`
}

func (in UpdateInput) patch() (model.Patch, error) {
	if err := validateMetrics(in.SearchVolume, in.Difficulty, in.CompetitorCount); err != nil {
		return model.Patch{}, err
	}
	for _, src := range []*model.MetricSource{in.SearchVolumeSource, in.DifficultySource, in.CompetitorCountSource} {
		if src != nil && !src.Valid() {
			return model.Patch{}, invalid("unknown metric source %q", *src)
		}
	}
	if in.ArticleType != nil && strings.TrimSpace(*in.ArticleType) == "" {
		return model.Patch{}, invalid("article_type must not be empty")
	}

	p := model.Patch{
		ArticleType:           in.ArticleType,
		SearchVolume:          in.SearchVolume,
		SearchVolumeSource:    in.SearchVolumeSource,
		Difficulty:            in.Difficulty,
		DifficultySource:      in.DifficultySource,
		CompetitorCount:       in.CompetitorCount,
		CompetitorCountSource: in.CompetitorCountSource,
		PriorityScore:         in.PriorityScore,
		QualityScore:          in.QualityScore,
		DeclineReason:         in.DeclineReason,
	}
	if p.Empty() {
		return model.Patch{}, invalid("no fields to update")
	}
	return p, nil
}

// Update edits entry fields without changing its status.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*model.Entry, error) {
	p, err := in.patch()
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, id, lifecycle.Edit(p))
}

func (s *Service) Approve(ctx context.Context, id uuid.UUID, actor string) (*model.Entry, error) {
	e, err := s.Transition(ctx, id, lifecycle.Approve(actorOrDefault(actor), s.now().UTC()))
	if err != nil {
		return nil, err
	}
	s.logger.Info("Entry approved", zap.String("id", id.String()), zap.String("actor", *e.ApprovedBy))
	return e, nil
}

func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason *string) (*model.Entry, error) {
	e, err := s.Transition(ctx, id, lifecycle.Reject(reason))
	if err != nil {
		return nil, err
	}
	s.logger.Info("Entry rejected", zap.String("id", id.String()))
	return e, nil
}

func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date *model.Date) (*model.Entry, error) {
	t, err := lifecycle.Reschedule(date)
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, id, t)
}

// ReportOutcome records a status reported back by the generation workflow.
func (s *Service) ReportOutcome(ctx context.Context, id uuid.UUID, status model.Status, message string) (*model.Entry, error) {
	t, err := lifecycle.Outcome(status, message)
	if err != nil {
		return nil, err
	}
	e, err := s.Transition(ctx, id, t)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Generation outcome recorded",
		zap.String("id", id.String()),
		zap.String("status", string(status)))
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Entry deleted", zap.String("id", id.String()))
	return nil
}

// Transition checks t against the entry's current status and persists it
// with a conditional update. When the conditional update misses because a
// concurrent writer moved the entry, the error describes the new status.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, t lifecycle.Transition) (*model.Entry, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.Check(current.Status); err != nil {
		return nil, err
	}

	updated, err := s.store.ConditionalUpdate(ctx, []uuid.UUID{id}, t.From, t.Patch)
	if err != nil {
		return nil, err
	}
	if len(updated) == 1 {
		return &updated[0], nil
	}

	latest, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.Check(latest.Status); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: entry %s changed concurrently", lifecycle.ErrInvalidTransition, id)
}

func validateMetrics(volume, difficulty, competitors *int) error {
	if volume != nil && *volume < 0 {
		return invalid("search_volume must not be negative")
	}
	if difficulty != nil && (*difficulty < 0 || *difficulty > 100) {
		return invalid("difficulty must be between 0 and 100")
	}
	if competitors != nil && *competitors < 0 {
		return invalid("competitor_count must not be negative")
	}
	return nil
}

func actorOrDefault(actor string) string {
	if a := strings.TrimSpace(actor); a != "" {
		return a
	}
	return DefaultActor
}

// today is the current calendar day in UTC.
func (s *Service) today() model.Date {
	return model.DateOf(s.now().UTC())
}
