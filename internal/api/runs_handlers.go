package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
	"github.com/JakeFAU/linkedin-prospector/internal/runs"
	"github.com/JakeFAU/linkedin-prospector/internal/store"
)

const historyTimeout = 3 * time.Second

// activeRun handles GET /v1/runs/active. It returns {"active": false} before
// the first run and the snapshot otherwise.
func (s *Server) activeRun(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.deps.Runs.Active()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": !snap.Done, "run": snap})
}

type searchRequest struct {
	Source string `json:"source"`
	lead.SearchRequest
}

// startSearch handles POST /v1/runs/search. 202 on start, 400 for invalid
// input, 409 while another run is active.
func (s *Server) startSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	kind := lead.SourceSearch
	if req.Source != "" {
		parsed, err := lead.ParseSource(req.Source)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		kind = parsed
	}
	plan, err := runs.PlanSearch(kind, req.SearchRequest)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.startRun(w, r, plan)
}

type scrapeURLRequest struct {
	URL      string `json:"url"`
	MaxPages int    `json:"max_pages"`
}

// startScrapeURL handles POST /v1/runs/scrape-url.
func (s *Server) startScrapeURL(w http.ResponseWriter, r *http.Request) {
	var req scrapeURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	plan, err := runs.PlanURL(strings.TrimSpace(req.URL), req.MaxPages)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.startRun(w, r, plan)
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request, plan runs.Plan) {
	snap, err := s.deps.Runs.Start(r.Context(), plan)
	switch {
	case errors.Is(err, runs.ErrRunActive):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.logger.Error("start run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start run")
	default:
		writeJSON(w, http.StatusAccepted, snap)
	}
}

// listRuns handles GET /v1/runs?status=&run_type=&limit=&offset=. It returns
// {"runs": [...], "total": n}.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, store.DefaultRunLimit, store.MaxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := store.RunFilter{
		RunType: strings.TrimSpace(r.URL.Query().Get("run_type")),
		Limit:   limit,
		Offset:  offset,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, perr := parseStatus(raw)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		filter.Status = status
	}

	ctx, cancel := context.WithTimeout(r.Context(), historyTimeout)
	defer cancel()
	list, err := s.deps.History.ListRuns(ctx, filter)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	total, err := s.deps.History.CountRuns(ctx, filter)
	if err != nil {
		s.logger.Error("count runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if list == nil {
		list = []store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": list, "total": total})
}

// getRun handles GET /v1/runs/{run_id}. 400 for a malformed id, 404 when the
// store reports store.ErrNotFound.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "run_id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid run_id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), historyTimeout)
	defer cancel()
	run, err := s.deps.History.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("get run failed", zap.Int64("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (store.RunStatus, error) {
	switch strings.ToLower(input) {
	case "running":
		return store.RunRunning, nil
	case "completed", "success":
		return store.RunCompleted, nil
	case "failed", "error":
		return store.RunFailed, nil
	default:
		return "", errors.New("invalid status")
	}
}
