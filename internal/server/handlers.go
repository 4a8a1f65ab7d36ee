package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"firerag/internal/domain"
	"firerag/internal/guard"
	"firerag/internal/usecase"
)

type answerRequest struct {
	Question string `json:"question"`
}

type answerResponse struct {
	domain.Answer
	LatencyMS int64 `json:"latency_ms"`
}

type healthResponse struct {
	Status     string `json:"status"`
	IndexReady bool   `json:"index_ready"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(s.cfg.Server.RequestTimeoutMS) * time.Millisecond))

	r.Post("/chat/answer", s.handleAnswer)
	r.Get("/health", s.handleHealth)
	r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(s.cfg.Server.MediaDir))))

	return r
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	// Held until the response is written, so a concurrent Reload cannot
	// close the index pair under this request.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.generator == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "index not ready, run ingest first"})
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	start := time.Now()
	answer, err := s.generator.Answer(r.Context(), req.Question)
	if err != nil {
		s.writeAnswerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{
		Answer:    *answer,
		LatencyMS: time.Since(start).Milliseconds(),
	})
}

// writeAnswerError maps pipeline errors onto status codes: caller
// mistakes are 400, unavailable dependencies 503, a model that
// produced an unusable answer 502.
func (s *Server) writeAnswerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrIndexUnavailable), errors.Is(err, domain.ErrScoringUnavailable):
		s.logger.Error("dependency unavailable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.Is(err, guard.ErrAnswerRejected), errors.Is(err, usecase.ErrMalformedAnswer):
		s.logger.Error("model produced an unusable answer", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "model produced an unusable answer"})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "request timed out"})
	default:
		s.logger.Error("answer failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		IndexReady: s.Ready(),
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
