package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/connect"
	"github.com/JakeFAU/linkedin-prospector/internal/metrics"
	"github.com/JakeFAU/linkedin-prospector/internal/runs"
	"github.com/JakeFAU/linkedin-prospector/internal/session"
	"github.com/JakeFAU/linkedin-prospector/internal/store"
	"github.com/JakeFAU/linkedin-prospector/internal/worker"
)

const requestTimeout = 60 * time.Second

// Scheduler is the connect scheduler control surface.
type Scheduler interface {
	Start(ctx context.Context)
	Stop()
	Pause()
	Resume()
	Nudge()
	Status(ctx context.Context) (worker.Status, error)
	Settings(ctx context.Context) (connect.Settings, error)
	UpdateSettings(ctx context.Context, u connect.Update) (connect.Settings, error)
	Retry(ctx context.Context, leadID int64, note string) (int, error)
}

// Sessions reports and refreshes login health.
type Sessions interface {
	Last() session.Result
	Check(ctx context.Context) session.Result
}

// Runs starts crawls and reports the active one.
type Runs interface {
	Active() (runs.Snapshot, bool)
	Start(ctx context.Context, plan runs.Plan) (runs.Snapshot, error)
}

// RunRepository reads the run audit history.
type RunRepository interface {
	ListRuns(ctx context.Context, f store.RunFilter) ([]store.Run, error)
	CountRuns(ctx context.Context, f store.RunFilter) (int, error)
	GetRun(ctx context.Context, id int64) (store.Run, error)
}

// Pinger reports readiness of a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the long-lived services the handlers call into.
type Deps struct {
	Scheduler Scheduler
	Sessions  Sessions
	Runs      Runs
	History   RunRepository
	Ready     Pinger
	// APIKey, when set, is required in X-API-Key on every /v1 route.
	APIKey string
}

// Server wires HTTP handlers to the prospector services.
type Server struct {
	router chi.Router
	deps   Deps
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, logger: logger.Named("api")}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(requestTimeout))
		if deps.APIKey != "" {
			r.Use(apiKeyMiddleware(deps.APIKey))
		}
		r.Route("/connect", func(r chi.Router) {
			r.Get("/status", s.connectStatus)
			r.Post("/start", s.connectStart)
			r.Post("/stop", s.connectStop)
			r.Post("/pause", s.connectPause)
			r.Post("/resume", s.connectResume)
			r.Post("/nudge", s.connectNudge)
			r.Post("/retry", s.connectRetry)
			r.Get("/settings", s.getSettings)
			r.Patch("/settings", s.patchSettings)
		})
		r.Get("/session", s.getSession)
		r.Post("/session/check", s.checkSession)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Get("/active", s.activeRun)
			r.Post("/search", s.startSearch)
			r.Post("/scrape-url", s.startScrapeURL)
			r.Get("/{run_id}", s.getRun)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) connectStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Scheduler.Status(r.Context())
	if err != nil {
		s.logger.Error("scheduler status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load scheduler status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) connectStart(w http.ResponseWriter, r *http.Request) {
	s.deps.Scheduler.Start(r.Context())
	s.connectStatus(w, r)
}

func (s *Server) connectStop(w http.ResponseWriter, r *http.Request) {
	s.deps.Scheduler.Stop()
	s.connectStatus(w, r)
}

func (s *Server) connectPause(w http.ResponseWriter, r *http.Request) {
	s.deps.Scheduler.Pause()
	s.connectStatus(w, r)
}

func (s *Server) connectResume(w http.ResponseWriter, r *http.Request) {
	s.deps.Scheduler.Resume()
	s.connectStatus(w, r)
}

func (s *Server) connectNudge(w http.ResponseWriter, r *http.Request) {
	s.deps.Scheduler.Nudge()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "nudged"})
}

type retryRequest struct {
	LeadID int64  `json:"lead_id"`
	Note   string `json:"note"`
}

func (s *Server) connectRetry(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LeadID <= 0 {
		writeError(w, http.StatusBadRequest, "lead_id required")
		return
	}
	added, err := s.deps.Scheduler.Retry(r.Context(), req.LeadID, req.Note)
	if err != nil {
		s.logger.Error("retry failed", zap.Int64("lead_id", req.LeadID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to queue lead")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Scheduler.Settings(r.Context())
	if err != nil {
		s.logger.Error("load settings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) patchSettings(w http.ResponseWriter, r *http.Request) {
	var u connect.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	settings, err := s.deps.Scheduler.UpdateSettings(r.Context(), u)
	if err != nil {
		s.logger.Error("update settings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) getSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Sessions.Last())
}

func (s *Server) checkSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Sessions.Check(r.Context()))
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the id requestIDMiddleware stored on ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Debug("request completed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
