// Package httpapi exposes the comparison pipeline over HTTP: a synchronous
// compare endpoint, a polling endpoint for evaluation results, and the
// operational health and metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modelarena/arena/internal/domain"
	"github.com/modelarena/arena/internal/ports"
)

// Pipeline is the application surface the HTTP layer talks to.
type Pipeline interface {
	// RunComparison executes the synchronous phase of a comparison run.
	RunComparison(ctx context.Context, req domain.ComparisonRequest) (domain.ComparisonResult, error)

	// GetResults returns the polling view of one thread.
	GetResults(ctx context.Context, sessionID, threadID string) (domain.ThreadResults, error)

	// ListSessionResults returns the polling view of every thread in a
	// session, oldest first.
	ListSessionResults(ctx context.Context, sessionID string) ([]domain.ThreadResults, error)
}

// Server handles the HTTP surface.
type Server struct {
	pipeline Pipeline
	logger   *slog.Logger
}

// NewServer creates the HTTP server around the given pipeline.
func NewServer(pipeline Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{pipeline: pipeline, logger: logger.With("component", "http")}
}

// Router builds the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/compare", s.handleCompare)
		r.Get("/results/{sessionID}", s.handleResults)
	})

	return r
}

// sessionResults is the session-level polling response.
type sessionResults struct {
	SessionID string                 `json:"session_id"`
	Threads   []domain.ThreadResults `json:"threads"`
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req domain.ComparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.pipeline.RunComparison(r.Context(), req)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "comparison failed", "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "comparison failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if threadID := r.URL.Query().Get("thread_id"); threadID != "" {
		results, err := s.pipeline.GetResults(r.Context(), sessionID, threadID)
		if err != nil {
			s.writeResultsError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, results)
		return
	}

	threads, err := s.pipeline.ListSessionResults(r.Context(), sessionID)
	if err != nil {
		s.writeResultsError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResults{SessionID: sessionID, Threads: threads})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeResultsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ports.ErrSessionNotFound), errors.Is(err, ports.ErrThreadNotFound):
		s.writeError(w, r, http.StatusNotFound, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "results lookup failed", "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "results lookup failed")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, _ *http.Request, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// requestLogger emits one structured log line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
