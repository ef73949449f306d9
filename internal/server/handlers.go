package server

import (
	"net/http"
	"strconv"
	"strings"

	"content-calendar/internal/calendar"
	"content-calendar/internal/model"
	"content-calendar/internal/store"

	"github.com/google/uuid"
)

type listResponse struct {
	Entries []model.Entry `json:"entries"`
	Total   int           `json:"total"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	entries, total, err := s.calendar.List(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.Entry{}
	}
	s.writeJSON(w, http.StatusOK, listResponse{Entries: entries, Total: total})
}

// parseQuery reads list filters. status may repeat or hold a comma list.
func parseQuery(r *http.Request) (store.Query, error) {
	values := r.URL.Query()
	var q store.Query

	for _, raw := range values["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				q.Statuses = append(q.Statuses, model.Status(s))
			}
		}
	}

	for name, dst := range map[string]**model.Date{"from": &q.From, "to": &q.To} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		d, err := model.ParseDate(raw)
		if err != nil {
			return q, &calendar.ValidationError{Msg: name + ": " + err.Error()}
		}
		*dst = &d
	}

	q.Sort = store.SortField(values.Get("sort"))
	switch values.Get("order") {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return q, &calendar.ValidationError{Msg: "order must be asc or desc"}
	}

	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, &calendar.ValidationError{Msg: name + " must be an integer"}
		}
		*dst = n
	}
	return q, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in calendar.CreateInput
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	entry, err := s.calendar.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	entry, err := s.calendar.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

// patchRequest either edits fields or, when Action is set, runs a lifecycle
// action. Field edits are ignored when an action is given.
type patchRequest struct {
	Action      string      `json:"action"`
	Actor       string      `json:"actor"`
	PlannedDate *model.Date `json:"planned_date"`
	calendar.UpdateInput
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req patchRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	var entry *model.Entry
	switch req.Action {
	case "":
		entry, err = s.calendar.Update(r.Context(), id, req.UpdateInput)
	case "approve":
		entry, err = s.calendar.Approve(r.Context(), id, actor(r, req.Actor))
	case "reject":
		entry, err = s.calendar.Reject(r.Context(), id, req.DeclineReason)
	case "reschedule":
		entry, err = s.calendar.Reschedule(r.Context(), id, req.PlannedDate)
	default:
		err = &calendar.ValidationError{Msg: "unknown action " + strconv.Quote(req.Action)}
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.calendar.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type batchRequest struct {
	IDs          []uuid.UUID `json:"ids"`
	Actor        string      `json:"actor"`
	AutoSchedule bool        `json:"auto_schedule"`
	StartDate    *model.Date `json:"start_date"`
	PerDay       int         `json:"per_day"`
}

func (s *Server) handleBatchApprove(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.calendar.ApproveBatch(r.Context(), calendar.BatchRequest{
		IDs:          req.IDs,
		Actor:        actor(r, req.Actor),
		AutoSchedule: req.AutoSchedule,
		StartDate:    req.StartDate,
		PerDay:       req.PerDay,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		s.writeError(w, http.StatusServiceUnavailable, "generation workflow is not configured")
		return
	}
	id, err := entryID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.dispatcher.Dispatch(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type outcomeRequest struct {
	Status model.Status `json:"status"`
	Error  string       `json:"error"`
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req outcomeRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if !req.Status.Valid() {
		s.writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(string(req.Status)))
		return
	}

	entry, err := s.calendar.ReportOutcome(r.Context(), id, req.Status, req.Error)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.calendar.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGenerateInsights(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil {
		s.writeError(w, http.StatusServiceUnavailable, "insights are not configured")
		return
	}

	report, err := s.insights.Generate(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLatestInsights(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil {
		s.writeError(w, http.StatusServiceUnavailable, "insights are not configured")
		return
	}

	report, err := s.insights.Latest()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// actor prefers the X-Actor header over the body field.
func actor(r *http.Request, fromBody string) string {
	if a := strings.TrimSpace(r.Header.Get("X-Actor")); a != "" {
		return a
	}
	if a := strings.TrimSpace(fromBody); a != "" {
		return a
	}
	return calendar.DefaultActor
}

