package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DeafMist/topic-radar/backend/internal/pipeline"
)

const (
	queryTimeout  = 45 * time.Second
	healthTimeout = 2 * time.Second
)

type server struct {
	log    *slog.Logger
	svc    *pipeline.Service
	health func(ctx context.Context) error
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/topics/{query}", func(r chi.Router) {
		r.Use(s.withRequest)
		r.Get("/graph", s.handleGraph)
		r.Get("/keywords", s.handleKeywords)
		r.Get("/weights", s.handleWeights)
		r.Get("/overview", s.handleOverview)
		r.Get("/relation", s.handleRelation)
	})
	return r
}

// withRequest resolves the topic path parameter into a pipeline.Request
// and stores it in the request context.
func (s *server) withRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := s.svc.NewRequest(chi.URLParam(r, "query"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if id := middleware.GetReqID(r.Context()); id != "" {
			req.ID = id
		}
		q := r.URL.Query()
		req.Size = clampInt(q.Get("size"), req.Size, s.svc.Options().GraphMaxSize)
		req.Seed = parseSeed(q.Get("seed"), req.Seed)

		next.ServeHTTP(w, r.WithContext(pipeline.WithRequest(r.Context(), req)))
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.health(ctx); err != nil {
		s.writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleGraph(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, req pipeline.Request) (any, error) {
		return s.svc.Graph(ctx, req)
	})
}

func (s *server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, req pipeline.Request) (any, error) {
		return s.svc.Aggregation(ctx, req)
	})
}

func (s *server) handleWeights(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, req pipeline.Request) (any, error) {
		return s.svc.Weights(ctx, req)
	})
}

func (s *server) handleOverview(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, req pipeline.Request) (any, error) {
		return s.svc.Overview(ctx, req)
	})
}

var errMissingKeyword = errors.New("query parameter \"with\" is required")

func (s *server) handleRelation(w http.ResponseWriter, r *http.Request) {
	keyword := strings.Join(strings.Fields(r.URL.Query().Get("with")), " ")
	if keyword == "" {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: errMissingKeyword.Error()})
		return
	}
	s.serve(w, r, func(ctx context.Context, req pipeline.Request) (any, error) {
		return s.svc.Relation(ctx, req, keyword)
	})
}

func (s *server) serve(w http.ResponseWriter, r *http.Request, run func(context.Context, pipeline.Request) (any, error)) {
	req, ok := pipeline.FromContext(r.Context())
	if !ok {
		s.writeError(w, r, pipeline.ErrEmptyQuery)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	out, err := run(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, pipeline.ErrEmptyQuery) {
		status = http.StatusBadRequest
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
	}
	s.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if max > 0 && value > max {
		return max
	}
	return value
}

func parseSeed(raw string, fallback uint64) uint64 {
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}

// writeJSON encodes payload before writing the status so an encoding
// failure turns into a 500 instead of a truncated response.
func (s *server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		s.log.Error("encode response",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		status = http.StatusInternalServerError
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(errorResponse{Error: "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
