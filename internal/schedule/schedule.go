// Package schedule assigns calendar days to approved entries.
package schedule

import (
	"errors"
	"sort"

	"content-calendar/internal/model"
)

var ErrInvalidPerDay = errors.New("per-day count must be at least 1")

// Assignment pairs an entry with the day it should be published.
type Assignment struct {
	Entry model.Entry
	Date  model.Date
}

// Plan orders entries by descending priority (missing scores count as 0,
// ties keep input order) and fills days from start, perDay entries per day.
// The input slice is not modified.
func Plan(entries []model.Entry, start model.Date, perDay int) ([]Assignment, error) {
	if perDay < 1 {
		return nil, ErrInvalidPerDay
	}

	sorted := make([]model.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})

	out := make([]Assignment, 0, len(sorted))
	day := start
	used := 0
	for _, e := range sorted {
		if used == perDay {
			day = day.AddDays(1)
			used = 0
		}
		out = append(out, Assignment{Entry: e, Date: day})
		used++
	}
	return out, nil
}
