package calendar

import (
	"context"

	"content-calendar/internal/model"
	"content-calendar/internal/store"
)

type Stats struct {
	Counts map[model.Status]int `json:"counts"`
	Total  int                  `json:"total"`
	Today  *model.Entry         `json:"today"`
}

// Stats counts entries per status and picks the highest-priority entry
// planned for today, if any.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Counts: make(map[model.Status]int, len(model.Statuses))}
	for _, status := range model.Statuses {
		st.Counts[status] = 0
	}

	all, total, err := s.store.Find(ctx, store.Query{})
	if err != nil {
		return nil, err
	}
	st.Total = total
	for _, e := range all {
		st.Counts[e.Status]++
	}

	today := s.today()
	planned, _, err := s.store.Find(ctx, store.Query{
		From:  &today,
		To:    &today,
		Sort:  store.SortPriorityScore,
		Desc:  true,
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(planned) > 0 {
		st.Today = &planned[0]
	}
	return st, nil
}
