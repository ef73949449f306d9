package model

import (
	"time"

	"github.com/google/uuid"
)

// Report is an editorial insight summary generated from calendar activity.
// A failed generation is still recorded, with OK false and Error set.
type Report struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	OK        bool      `json:"ok"`
	Summary   string    `json:"summary,omitempty"`
	Error     string    `json:"error,omitempty"`

	RecentCount    int      `json:"recent_count"`
	DeclinedCount  int      `json:"declined_count"`
	PublishedCount int      `json:"published_count"`
	ContextSources []string `json:"context_sources,omitempty"`
}
