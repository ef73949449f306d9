package server

import (
	"context"
	"net/http"
	"time"

	"content-calendar/internal/calendar"
	"content-calendar/internal/dispatch"
	"content-calendar/internal/insights"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Server struct {
	calendar   *calendar.Service
	dispatcher *dispatch.Dispatcher
	insights   *insights.Service
	logger     *zap.Logger
	router     *mux.Router
	server     *http.Server
}

// NewServer wires the JSON API. dispatcher and insights may be nil, in which
// case their routes answer 503.
func NewServer(cal *calendar.Service, dispatcher *dispatch.Dispatcher, ins *insights.Service, logger *zap.Logger) *Server {
	s := &Server{
		calendar:   cal,
		dispatcher: dispatcher,
		insights:   ins,
		logger:     logger,
		router:     mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/entries", s.handleList).Methods("GET")
	api.HandleFunc("/entries", s.handleCreate).Methods("POST")
	api.HandleFunc("/entries/batch-approve", s.handleBatchApprove).Methods("POST")
	api.HandleFunc("/entries/{id}", s.handleGet).Methods("GET")
	api.HandleFunc("/entries/{id}", s.handlePatch).Methods("PATCH")
	api.HandleFunc("/entries/{id}", s.handleDelete).Methods("DELETE")
	api.HandleFunc("/entries/{id}/generate", s.handleGenerate).Methods("POST")
	api.HandleFunc("/entries/{id}/outcome", s.handleOutcome).Methods("POST")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/insights", s.handleGenerateInsights).Methods("POST")
	api.HandleFunc("/insights/latest", s.handleLatestInsights).Methods("GET")
	api.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start launches the HTTP server
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.logger.Info("API server listening", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
