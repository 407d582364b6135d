// Package api exposes the HTTP interface: crawl triggers, run status and the
// aggregate statistics endpoints backing the dashboard.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobradar/internal/crawl"
	"jobradar/internal/metrics"
	"jobradar/internal/store"
)

const (
	defaultStatsLimit = 20
	maxStatsLimit     = 200
	statsTimeout      = 3 * time.Second
)

// CrawlRunner is the trigger surface the server needs from the crawl runner.
type CrawlRunner interface {
	Run(ctx context.Context, sources []crawl.SourceRun) (store.RunStatus, error)
	Running() bool
}

// Server wires HTTP handlers to the store and the crawl runner.
type Server struct {
	router  chi.Router
	store   store.Store
	runner  CrawlRunner
	sources []crawl.SourceRun
	logger  *zap.Logger
	timeout time.Duration
}

// NewServer constructs a Server with middleware and routes. sources is the
// crawl plan a sync trigger executes.
func NewServer(st store.Store, runner CrawlRunner, sources []crawl.SourceRun, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:   st,
		runner:  runner,
		sources: sources,
		logger:  logger,
		timeout: statsTimeout,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Post("/run", s.triggerRun)
			r.Get("/status", s.runStatus)
		})
		r.Route("/stats", func(r chi.Router) {
			r.Get("/technologies", s.termStats(s.store.TechnologyStats, "technologies"))
			r.Get("/skills", s.termStats(s.store.SkillStats, "skills"))
			r.Get("/regions", s.termStats(s.store.RegionStats, "regions"))
			r.Get("/sources", s.sourceStats)
			r.Get("/global", s.globalStats)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if _, err := s.store.GlobalStats(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// triggerRun starts a crawl run in the background and returns immediately.
// A run already in flight yields 409.
func (s *Server) triggerRun(w http.ResponseWriter, _ *http.Request) {
	if s.runner.Running() {
		writeError(w, http.StatusConflict, "a crawl run is already in flight")
		return
	}
	go func() {
		// The run outlives the triggering request on purpose.
		run, err := s.runner.Run(context.Background(), s.sources)
		if err != nil {
			if !errors.Is(err, crawl.ErrRunInFlight) {
				s.logger.Error("triggered run failed", zap.Error(err))
			}
			return
		}
		s.logger.Info("triggered run finished",
			zap.String("run_id", run.ID.String()),
			zap.String("status", string(run.Status)))
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) runStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	run, err := s.store.LatestRun(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no runs recorded yet")
			return
		}
		s.logger.Error("load latest run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toRunDTO(run)})
}

// termStats builds a handler over one of the term-count aggregates. The name
// doubles as the JSON key so each endpoint keeps its own envelope.
func (s *Server) termStats(query func(context.Context, int) ([]store.TermCount, error), name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r, defaultStatsLimit, maxStatsLimit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()

		counts, err := query(ctx, limit)
		if err != nil {
			s.logger.Error("stats query failed", zap.String("stat", name), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load statistics")
			return
		}
		if counts == nil {
			counts = []store.TermCount{}
		}
		writeJSON(w, http.StatusOK, map[string]any{name: counts})
	}
}

func (s *Server) sourceStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	counts, err := s.store.SourceStats(ctx)
	if err != nil {
		s.logger.Error("source stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	if counts == nil {
		counts = []store.TermCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": counts})
}

func (s *Server) globalStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	stats, err := s.store.GlobalStats(ctx)
	if err != nil {
		s.logger.Error("global stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	if val > max {
		val = max
	}
	return val, nil
}

type runDTO struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	JobsAdded  int        `json:"jobs_added"`
	Duplicates int        `json:"duplicates"`
	Error      *string    `json:"error,omitempty"`
}

func toRunDTO(run store.RunStatus) runDTO {
	return runDTO{
		ID:         run.ID.String(),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Status:     string(run.Status),
		JobsAdded:  run.JobsAdded,
		Duplicates: run.Duplicates,
		Error:      run.ErrorText,
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type requestIDKey struct{}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
