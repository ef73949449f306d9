package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"content-calendar/internal/archive"
	"content-calendar/internal/calendar"
	"content-calendar/internal/lifecycle"
	"content-calendar/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorBody{Error: msg})
}

// fail maps a service error to its HTTP status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.writeError(w, status, "internal error")
		return
	}
	s.writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, archive.ErrNoReports):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateKey),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, lifecycle.ErrImmutable),
		errors.Is(err, lifecycle.ErrAlreadyGenerating),
		errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrMissingDate), calendar.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &calendar.ValidationError{Msg: "invalid JSON body: " + err.Error()}
	}
	return nil
}

func entryID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, &calendar.ValidationError{Msg: "invalid entry id"}
	}
	return id, nil
}
