package schedule

import (
	"testing"
	"time"

	"content-calendar/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(keyword string, score *float64) model.Entry {
	e := model.NewEntry(keyword)
	e.Status = model.StatusApproved
	e.PriorityScore = score
	return e
}

func score(v float64) *float64 { return &v }

func TestPlan_OnePerDay(t *testing.T) {
	d := model.NewDate(2026, time.October, 20)
	in := []model.Entry{entry("a", score(90)), entry("b", score(10)), entry("c", score(50))}

	plan, err := Plan(in, d, 1)
	require.NoError(t, err)
	require.Len(t, plan, 3)

	assert.Equal(t, 90.0, plan[0].Entry.Priority())
	assert.Equal(t, "2026-10-20", plan[0].Date.String())
	assert.Equal(t, 50.0, plan[1].Entry.Priority())
	assert.Equal(t, "2026-10-21", plan[1].Date.String())
	assert.Equal(t, 10.0, plan[2].Entry.Priority())
	assert.Equal(t, "2026-10-22", plan[2].Date.String())

	assert.Equal(t, "a", in[0].Keyword, "input must not be reordered")
}

func TestPlan_TwoPerDay(t *testing.T) {
	d := model.NewDate(2026, time.October, 30)
	in := []model.Entry{entry("w", score(20)), entry("x", score(40)), entry("y", score(10)), entry("z", score(30))}

	plan, err := Plan(in, d, 2)
	require.NoError(t, err)

	var keywords, dates []string
	for _, a := range plan {
		keywords = append(keywords, a.Entry.Keyword)
		dates = append(dates, a.Date.String())
	}
	assert.Equal(t, []string{"x", "z", "w", "y"}, keywords)
	assert.Equal(t, []string{"2026-10-30", "2026-10-30", "2026-10-31", "2026-10-31"}, dates)
}

func TestPlan_NilScoresSortAsZeroAndTiesKeepInputOrder(t *testing.T) {
	d := model.NewDate(2026, time.December, 31)
	in := []model.Entry{entry("first-nil", nil), entry("zero", score(0)), entry("top", score(5)), entry("second-nil", nil)}

	plan, err := Plan(in, d, 3)
	require.NoError(t, err)

	assert.Equal(t, "top", plan[0].Entry.Keyword)
	assert.Equal(t, "first-nil", plan[1].Entry.Keyword)
	assert.Equal(t, "zero", plan[2].Entry.Keyword)
	assert.Equal(t, "second-nil", plan[3].Entry.Keyword)
	assert.Equal(t, "2027-01-01", plan[3].Date.String(), "day rolls over the year boundary")
}

func TestPlan_Validation(t *testing.T) {
	_, err := Plan(nil, model.NewDate(2026, 1, 1), 0)
	assert.ErrorIs(t, err, ErrInvalidPerDay)

	plan, err := Plan(nil, model.NewDate(2026, 1, 1), 1)
	require.NoError(t, err)
	assert.Empty(t, plan)
}
