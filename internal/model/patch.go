package model

import "time"

// Patch is a partial update to an Entry. Nil fields are left untouched.
type Patch struct {
	Status *Status

	PlannedDate      *Date
	ClearPlannedDate bool

	ApprovedAt    *time.Time
	ApprovedBy    *string
	ClearApproval bool

	DeclineReason       *string
	ErrorMessage        *string
	GenerationStartedAt *time.Time

	ArticleType           *string
	SearchVolume          *int
	SearchVolumeSource    *MetricSource
	Difficulty            *int
	DifficultySource      *MetricSource
	CompetitorCount       *int
	CompetitorCountSource *MetricSource
	PriorityScore         *float64
	QualityScore          *float64
}

// Empty reports whether applying p would change nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply writes the patch onto e. Clears run before sets so a patch may
// clear and set the same field.
func (p Patch) Apply(e *Entry) {
	if p.ClearPlannedDate {
		e.PlannedDate = nil
	}
	if p.ClearApproval {
		e.ApprovedAt = nil
		e.ApprovedBy = nil
	}

	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.PlannedDate != nil {
		d := *p.PlannedDate
		e.PlannedDate = &d
	}
	if p.ApprovedAt != nil {
		t := *p.ApprovedAt
		e.ApprovedAt = &t
	}
	if p.ApprovedBy != nil {
		s := *p.ApprovedBy
		e.ApprovedBy = &s
	}
	if p.DeclineReason != nil {
		s := *p.DeclineReason
		e.DeclineReason = &s
	}
	if p.ErrorMessage != nil {
		e.ErrorMessage = *p.ErrorMessage
	}
	if p.GenerationStartedAt != nil {
		t := *p.GenerationStartedAt
		e.GenerationStartedAt = &t
	}

	if p.ArticleType != nil {
		e.ArticleType = *p.ArticleType
	}
	if p.SearchVolume != nil {
		v := *p.SearchVolume
		e.SearchVolume = &v
	}
	if p.SearchVolumeSource != nil {
		e.SearchVolumeSource = *p.SearchVolumeSource
	}
	if p.Difficulty != nil {
		v := *p.Difficulty
		e.Difficulty = &v
	}
	if p.DifficultySource != nil {
		e.DifficultySource = *p.DifficultySource
	}
	if p.CompetitorCount != nil {
		v := *p.CompetitorCount
		e.CompetitorCount = &v
	}
	if p.CompetitorCountSource != nil {
		e.CompetitorCountSource = *p.CompetitorCountSource
	}
	if p.PriorityScore != nil {
		v := *p.PriorityScore
		e.PriorityScore = &v
	}
	if p.QualityScore != nil {
		v := *p.QualityScore
		e.QualityScore = &v
	}
}
