package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"content-calendar/internal/archive"
	"content-calendar/internal/calendar"
	"content-calendar/internal/dispatch"
	"content-calendar/internal/insights"
	"content-calendar/internal/model"
	"content-calendar/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingTrigger struct {
	jobs []dispatch.Job
	err  error
}

func (r *recordingTrigger) Trigger(ctx context.Context, job dispatch.Job) error {
	r.jobs = append(r.jobs, job)
	return r.err
}

type cannedSummarizer struct{}

func (cannedSummarizer) Summarize(ctx context.Context, in insights.Input) (string, error) {
	return "Cover more comparisons.", nil
}

type fixture struct {
	srv     *Server
	trigger *recordingTrigger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	arch, err := archive.Open("", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(arch.Close)

	st := store.NewRedisStore(rdb, zap.NewNop())
	cal := calendar.NewService(st, zap.NewNop(), calendar.Config{PerDay: 1, StartOffsetDays: 1})
	trig := &recordingTrigger{}
	ins := insights.NewService(st, cannedSummarizer{}, nil, arch, zap.NewNop(), insights.Config{})

	return &fixture{
		srv:     NewServer(cal, dispatch.NewDispatcher(cal, trig, zap.NewNop()), ins, zap.NewNop()),
		trigger: trig,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decodeEntry(t *testing.T, rec *httptest.ResponseRecorder) model.Entry {
	t.Helper()
	var e model.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func (f *fixture) create(t *testing.T, keyword string, volume, difficulty int) model.Entry {
	t.Helper()
	rec := f.do(t, "POST", "/api/entries", map[string]any{
		"keyword":       keyword,
		"search_volume": volume,
		"difficulty":    difficulty,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeEntry(t, rec)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/healthz", "/api/healthz"} {
		rec := f.do(t, "GET", path, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	}
}

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)

	e := f.create(t, "postgres indexing", 5000, 30)
	assert.Equal(t, model.StatusSuggested, e.Status)
	assert.Equal(t, model.DefaultArticleType, e.ArticleType)
	require.NotNil(t, e.PriorityScore)

	rec := f.do(t, "GET", "/api/entries/"+e.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, e.ID, decodeEntry(t, rec).ID)

	rec = f.do(t, "POST", "/api/entries", map[string]any{"keyword": "postgres indexing"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, "POST", "/api/entries", map[string]any{"keyword": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "keyword is required", errorOf(t, rec))

	rec = f.do(t, "POST", "/api/entries", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGet_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/entries/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "GET", "/api/entries/7b0e6f5e-4a8f-4d55-9a4c-1f1f0e2a9b10", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestList_FilterSortPage(t *testing.T) {
	f := newFixture(t)
	low := f.create(t, "low", 100, 80)
	high := f.create(t, "high", 20000, 10)
	mid := f.create(t, "mid", 3000, 40)

	rec := f.do(t, "PATCH", "/api/entries/"+mid.ID.String(), map[string]any{"action": "approve"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "GET", "/api/entries?status=suggested&sort=priority_score&order=desc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)
	require.Len(t, list.Entries, 2)
	assert.Equal(t, high.ID, list.Entries[0].ID)
	assert.Equal(t, low.ID, list.Entries[1].ID)

	rec = f.do(t, "GET", "/api/entries?status=suggested,approved&sort=keyword&limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 3, list.Total)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "low", list.Entries[0].Keyword)

	for _, q := range []string{"sort=title", "order=sideways", "status=archived", "limit=ten", "from=16-10-2026"} {
		rec = f.do(t, "GET", "/api/entries?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestPatch_Actions(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, "rust async", 4000, 50)
	path := "/api/entries/" + e.ID.String()

	rec := f.do(t, "PATCH", path, map[string]any{"action": "reschedule", "planned_date": "2026-11-02"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, "PATCH", path, map[string]any{"action": "reject", "decline_reason": "too niche"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusRejected, decodeEntry(t, rec).Status)

	rec = f.do(t, "PATCH", path, map[string]any{"action": "approve", "actor": "body"}, "X-Actor", "maria")
	require.Equal(t, http.StatusOK, rec.Code)
	approved := decodeEntry(t, rec)
	assert.Equal(t, model.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "maria", *approved.ApprovedBy)
	require.NotNil(t, approved.DeclineReason)
	assert.Equal(t, "too niche", *approved.DeclineReason)

	rec = f.do(t, "PATCH", path, map[string]any{"action": "reschedule"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "PATCH", path, map[string]any{"action": "reschedule", "planned_date": "2026-11-02"})
	require.Equal(t, http.StatusOK, rec.Code)
	scheduled := decodeEntry(t, rec)
	assert.Equal(t, model.StatusScheduled, scheduled.Status)
	assert.Equal(t, "2026-11-02", scheduled.PlannedDate.String())

	rec = f.do(t, "PATCH", path, map[string]any{"article_type": "tutorial"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tutorial", decodeEntry(t, rec).ArticleType)

	rec = f.do(t, "PATCH", path, map[string]any{"action": "archive"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "PATCH", path, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApprove_DefaultActor(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, "kafka basics", 1000, 20)

	rec := f.do(t, "PATCH", "/api/entries/"+e.ID.String(), map[string]any{"action": "approve"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, calendar.DefaultActor, *decodeEntry(t, rec).ApprovedBy)
}

func TestBatchApprove(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "a", 20000, 10)
	b := f.create(t, "b", 100, 90)
	c := f.create(t, "c", 5000, 30)

	rec := f.do(t, "PATCH", "/api/entries/"+c.ID.String(), map[string]any{"action": "approve"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "POST", "/api/entries/batch-approve", map[string]any{
		"ids":           []string{a.ID.String(), b.ID.String(), c.ID.String()},
		"auto_schedule": true,
		"start_date":    "2026-12-31",
		"per_day":       1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res calendar.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Approved, 2)
	assert.Equal(t, 1, res.FailedCount)
	require.Len(t, res.Scheduled, 2)
	assert.Equal(t, a.ID, res.Scheduled[0].ID)
	assert.Equal(t, "2026-12-31", res.Scheduled[0].PlannedDate.String())
	assert.Equal(t, b.ID, res.Scheduled[1].ID)
	assert.Equal(t, "2027-01-01", res.Scheduled[1].PlannedDate.String())

	rec = f.do(t, "POST", "/api/entries/batch-approve", map[string]any{"ids": []string{a.ID.String()}, "per_day": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "POST", "/api/entries/batch-approve", map[string]any{"ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateAndOutcome(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, "go profiling", 2500, 35)
	path := "/api/entries/" + e.ID.String()

	rec := f.do(t, "POST", path+"/outcome", map[string]any{"status": "published"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, "POST", path+"/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res dispatch.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Triggered)
	assert.Equal(t, model.StatusGenerating, res.Entry.Status)
	require.Len(t, f.trigger.jobs, 1)
	assert.Equal(t, "go profiling", f.trigger.jobs[0].Keyword)

	rec = f.do(t, "POST", path+"/generate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, f.trigger.jobs, 1)

	rec = f.do(t, "POST", path+"/outcome", map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "POST", path+"/outcome", map[string]any{"status": "failed", "error": "model timeout"})
	require.Equal(t, http.StatusOK, rec.Code)
	failed := decodeEntry(t, rec)
	assert.Equal(t, model.StatusFailed, failed.Status)
	assert.Equal(t, "model timeout", failed.ErrorMessage)
	assert.Nil(t, failed.PlannedDate)
}

func TestGenerate_TriggerFailureKeepsGenerating(t *testing.T) {
	f := newFixture(t)
	f.trigger.err = errors.New("401 bad credentials")
	e := f.create(t, "grpc streaming", 900, 60)

	rec := f.do(t, "POST", "/api/entries/"+e.ID.String()+"/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res dispatch.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Triggered)
	assert.Contains(t, res.Error, "bad credentials")

	rec = f.do(t, "GET", "/api/entries/"+e.ID.String(), nil)
	assert.Equal(t, model.StatusGenerating, decodeEntry(t, rec).Status)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	keep := f.create(t, "published piece", 1000, 10)
	drop := f.create(t, "throwaway", 10, 10)

	require.Equal(t, http.StatusOK, f.do(t, "POST", "/api/entries/"+keep.ID.String()+"/generate", nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/api/entries/"+keep.ID.String()+"/outcome",
		map[string]any{"status": "published"}).Code)

	rec := f.do(t, "DELETE", "/api/entries/"+keep.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, "PATCH", "/api/entries/"+keep.ID.String(), map[string]any{"article_type": "news"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, "DELETE", "/api/entries/"+drop.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, "DELETE", "/api/entries/"+drop.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.create(t, "one", 100, 10)
	two := f.create(t, "two", 100, 10)
	require.Equal(t, http.StatusOK, f.do(t, "PATCH", "/api/entries/"+two.ID.String(),
		map[string]any{"action": "approve"}).Code)

	rec := f.do(t, "GET", "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats calendar.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Counts[model.StatusSuggested])
	assert.Equal(t, 1, stats.Counts[model.StatusApproved])
	assert.Equal(t, 0, stats.Counts[model.StatusPublished])
	assert.Nil(t, stats.Today)
}

func TestInsights(t *testing.T) {
	f := newFixture(t)
	f.create(t, "observability", 700, 45)

	rec := f.do(t, "GET", "/api/insights/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, "POST", "/api/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report model.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.OK)
	assert.Equal(t, "Cover more comparisons.", report.Summary)
	assert.Equal(t, 1, report.RecentCount)

	rec = f.do(t, "GET", "/api/insights/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var latest model.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, report.ID, latest.ID)
}

func TestUnconfiguredCollaborators(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.srv.calendar, nil, nil, zap.NewNop())

	for _, tc := range []struct{ method, path string }{
		{"POST", "/api/entries/7b0e6f5e-4a8f-4d55-9a4c-1f1f0e2a9b10/generate"},
		{"POST", "/api/insights"},
		{"GET", "/api/insights/latest"},
	} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("redis down")))
	assert.Equal(t, http.StatusConflict, statusFor(store.ErrConflict))
	assert.Equal(t, http.StatusNotFound, statusFor(archive.ErrNoReports))
}
