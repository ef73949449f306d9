package model

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSuggested  Status = "suggested"
	StatusApproved   Status = "approved"
	StatusScheduled  Status = "scheduled"
	StatusGenerating Status = "generating"
	StatusInProgress Status = "in_progress"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
	StatusRejected   Status = "rejected"
)

// Statuses lists every lifecycle state in display order.
var Statuses = []Status{
	StatusSuggested,
	StatusApproved,
	StatusScheduled,
	StatusGenerating,
	StatusInProgress,
	StatusPublished,
	StatusFailed,
	StatusRejected,
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// MetricSource records where a keyword metric came from.
type MetricSource string

const (
	SourceMeasured  MetricSource = "measured"
	SourceEstimated MetricSource = "estimated"
)

func (s MetricSource) Valid() bool {
	return s == "" || s == SourceMeasured || s == SourceEstimated
}

const DefaultArticleType = "guide"

// Entry is a keyword/article candidate tracked on the content calendar.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	Keyword     string    `json:"keyword"`
	ArticleType string    `json:"article_type"`

	SearchVolume          *int         `json:"search_volume"`
	SearchVolumeSource    MetricSource `json:"search_volume_source,omitempty"`
	Difficulty            *int         `json:"difficulty"`
	DifficultySource      MetricSource `json:"difficulty_source,omitempty"`
	CompetitorCount       *int         `json:"competitor_count"`
	CompetitorCountSource MetricSource `json:"competitor_count_source,omitempty"`

	Status        Status   `json:"status"`
	PlannedDate   *Date    `json:"planned_date"`
	PriorityScore *float64 `json:"priority_score"`
	QualityScore  *float64 `json:"quality_score"`

	ApprovedAt    *time.Time `json:"approved_at"`
	ApprovedBy    *string    `json:"approved_by"`
	DeclineReason *string    `json:"decline_reason"`
	ErrorMessage  string     `json:"error_message,omitempty"`

	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	GenerationStartedAt *time.Time `json:"generation_started_at"`
}

// NewEntry creates a suggested entry for keyword with default values.
// The store assigns ID and timestamps on insert.
func NewEntry(keyword string) Entry {
	return Entry{
		Keyword:     keyword,
		ArticleType: DefaultArticleType,
		Status:      StatusSuggested,
	}
}

// Priority returns the priority score, treating a missing score as zero.
func (e Entry) Priority() float64 {
	if e.PriorityScore == nil {
		return 0
	}
	return *e.PriorityScore
}
