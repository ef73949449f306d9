package store

import (
	"fmt"
	"sort"
	"time"

	"content-calendar/internal/model"
)

type SortField string

const (
	SortCreatedAt     SortField = "created_at"
	SortUpdatedAt     SortField = "updated_at"
	SortPlannedDate   SortField = "planned_date"
	SortPriorityScore SortField = "priority_score"
	SortKeyword       SortField = "keyword"
	SortSearchVolume  SortField = "search_volume"
	SortDifficulty    SortField = "difficulty"
)

var sortFields = map[SortField]bool{
	SortCreatedAt:     true,
	SortUpdatedAt:     true,
	SortPlannedDate:   true,
	SortPriorityScore: true,
	SortKeyword:       true,
	SortSearchVolume:  true,
	SortDifficulty:    true,
}

// Query selects entries. Zero values mean no filter; Limit 0 means no limit.
// From and To bound planned_date inclusively and exclude undated entries.
type Query struct {
	Statuses []model.Status
	From     *model.Date
	To       *model.Date
	Sort     SortField
	Desc     bool
	Limit    int
	Offset   int
}

func (q Query) Validate() error {
	for _, s := range q.Statuses {
		if !s.Valid() {
			return fmt.Errorf("unknown status %q", s)
		}
	}
	if q.Sort != "" && !sortFields[q.Sort] {
		return fmt.Errorf("unknown sort field %q", q.Sort)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("limit and offset must not be negative")
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return fmt.Errorf("date range ends before it starts")
	}
	return nil
}

func (q Query) sortField() SortField {
	if q.Sort == "" {
		return SortCreatedAt
	}
	return q.Sort
}

// Match reports whether e passes the query's filters.
func (q Query) Match(e model.Entry) bool {
	if len(q.Statuses) > 0 && !statusIn(e.Status, q.Statuses) {
		return false
	}
	if q.From != nil || q.To != nil {
		if e.PlannedDate == nil {
			return false
		}
		if q.From != nil && e.PlannedDate.Before(*q.From) {
			return false
		}
		if q.To != nil && e.PlannedDate.After(*q.To) {
			return false
		}
	}
	return true
}

// apply filters, sorts and pages entries in memory and returns the page with
// the filtered total.
func (q Query) apply(entries []model.Entry) ([]model.Entry, int) {
	matched := entries[:0:0]
	for _, e := range entries {
		if q.Match(e) {
			matched = append(matched, e)
		}
	}
	sortEntries(matched, q.sortField(), q.Desc)

	total := len(matched)
	if q.Offset >= total {
		return []model.Entry{}, total
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, total
}

// sortEntries orders by field, nulls last in both directions, then by
// creation time and id.
func sortEntries(entries []model.Entry, field SortField, desc bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		c := compare(a, b, field)
		if c == 0 {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID.String() < b.ID.String()
		}
		if c == nullsLast || c == -nullsLast {
			return c < 0
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// nullsLast is returned by compare when exactly one side is null so the
// direction flip does not move nulls to the front.
const nullsLast = 2

func compare(a, b model.Entry, field SortField) int {
	switch field {
	case SortKeyword:
		return cmpOrdered(a.Keyword, b.Keyword)
	case SortUpdatedAt:
		return cmpTime(a.UpdatedAt, b.UpdatedAt)
	case SortPlannedDate:
		var at, bt *time.Time
		if a.PlannedDate != nil {
			t := a.PlannedDate.Time()
			at = &t
		}
		if b.PlannedDate != nil {
			t := b.PlannedDate.Time()
			bt = &t
		}
		return cmpNullable(at, bt, cmpTime)
	case SortPriorityScore:
		return cmpNullable(a.PriorityScore, b.PriorityScore, cmpOrdered[float64])
	case SortSearchVolume:
		return cmpNullable(a.SearchVolume, b.SearchVolume, cmpOrdered[int])
	case SortDifficulty:
		return cmpNullable(a.Difficulty, b.Difficulty, cmpOrdered[int])
	default:
		return cmpTime(a.CreatedAt, b.CreatedAt)
	}
}

func cmpNullable[T any](a, b *T, cmp func(T, T) int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return nullsLast
	case b == nil:
		return -nullsLast
	default:
		return cmp(*a, *b)
	}
}

func cmpOrdered[T int | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpTime(a, b time.Time) int {
	return a.Compare(b)
}
