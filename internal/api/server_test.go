package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkedin-prospector/internal/connect"
	"github.com/JakeFAU/linkedin-prospector/internal/lead"
	"github.com/JakeFAU/linkedin-prospector/internal/runs"
	"github.com/JakeFAU/linkedin-prospector/internal/session"
	"github.com/JakeFAU/linkedin-prospector/internal/store"
	"github.com/JakeFAU/linkedin-prospector/internal/worker"
)

type fakeScheduler struct {
	mu       sync.Mutex
	calls    []string
	running  bool
	paused   bool
	settings connect.Settings
	retried  []int64
	err      error
}

func (f *fakeScheduler) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeScheduler) Start(context.Context) {
	f.record("start")
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()
}

func (f *fakeScheduler) Stop() {
	f.record("stop")
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
}

func (f *fakeScheduler) Pause() {
	f.record("pause")
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

func (f *fakeScheduler) Resume() {
	f.record("resume")
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
}

func (f *fakeScheduler) Nudge() { f.record("nudge") }

func (f *fakeScheduler) Status(context.Context) (worker.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return worker.Status{}, f.err
	}
	return worker.Status{Running: f.running, Paused: f.paused, SendsToday: 3, Settings: f.settings}, nil
}

func (f *fakeScheduler) Settings(context.Context) (connect.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings, f.err
}

func (f *fakeScheduler) UpdateSettings(_ context.Context, u connect.Update) (connect.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = f.settings.Merge(u)
	return f.settings, f.err
}

func (f *fakeScheduler) Retry(_ context.Context, leadID int64, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried = append(f.retried, leadID)
	return 1, f.err
}

type fakeSessions struct {
	mu     sync.Mutex
	last   session.Result
	checks int
}

func (f *fakeSessions) Last() session.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeSessions) Check(context.Context) session.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	f.last = session.Result{Status: session.StatusConnected, CheckedAt: time.Unix(100, 0)}
	return f.last
}

type fakeRuns struct {
	mu      sync.Mutex
	active  *runs.Snapshot
	started []runs.Plan
	err     error
}

func (f *fakeRuns) Active() (runs.Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return runs.Snapshot{}, false
	}
	return *f.active, true
}

func (f *fakeRuns) Start(_ context.Context, plan runs.Plan) (runs.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return runs.Snapshot{}, f.err
	}
	f.started = append(f.started, plan)
	return runs.Snapshot{RunID: 7, RunType: plan.RunType, Label: plan.Label, Status: "running"}, nil
}

type fakeHistory struct {
	runs   []store.Run
	filter store.RunFilter
	err    error
}

func (f *fakeHistory) ListRuns(_ context.Context, filter store.RunFilter) ([]store.Run, error) {
	f.filter = filter
	return f.runs, f.err
}

func (f *fakeHistory) CountRuns(context.Context, store.RunFilter) (int, error) {
	return len(f.runs), f.err
}

func (f *fakeHistory) GetRun(_ context.Context, id int64) (store.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	if f.err != nil {
		return store.Run{}, f.err
	}
	return store.Run{}, store.ErrNotFound
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testDeps struct {
	scheduler *fakeScheduler
	sessions  *fakeSessions
	runs      *fakeRuns
	history   *fakeHistory
}

func newTestServer(t *testing.T, mutate func(*Deps)) (*Server, testDeps) {
	t.Helper()
	td := testDeps{
		scheduler: &fakeScheduler{settings: connect.DefaultSettings()},
		sessions:  &fakeSessions{last: session.Result{Status: session.StatusUnknown}},
		runs:      &fakeRuns{},
		history:   &fakeHistory{},
	}
	deps := Deps{
		Scheduler: td.scheduler,
		Sessions:  td.sessions,
		Runs:      td.runs,
		History:   td.history,
		Ready:     fakePinger{},
	}
	if mutate != nil {
		mutate(&deps)
	}
	return NewServer(deps, nil), td
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/readyz", "").Code)

	down, _ := newTestServer(t, func(d *Deps) { d.Ready = fakePinger{err: errors.New("disk I/O error")} })
	require.Equal(t, http.StatusServiceUnavailable, do(t, down, http.MethodGet, "/readyz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	do(t, s, http.MethodGet, "/healthz", "")
	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestConnectControls(t *testing.T) {
	t.Parallel()

	s, td := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/v1/connect/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["running"])

	rec = do(t, s, http.MethodPost, "/v1/connect/pause", "")
	assert.Equal(t, true, decode(t, rec)["paused"])

	rec = do(t, s, http.MethodPost, "/v1/connect/resume", "")
	assert.Equal(t, false, decode(t, rec)["paused"])

	require.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/v1/connect/nudge", "").Code)

	rec = do(t, s, http.MethodPost, "/v1/connect/stop", "")
	assert.Equal(t, false, decode(t, rec)["running"])

	rec = do(t, s, http.MethodGet, "/v1/connect/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 3, decode(t, rec)["sends_today"], 0)

	assert.Equal(t, []string{"start", "pause", "resume", "nudge", "stop"}, td.scheduler.calls)
}

func TestConnectStatusError(t *testing.T) {
	t.Parallel()

	s, td := newTestServer(t, nil)
	td.scheduler.err = errors.New("database is locked")
	require.Equal(t, http.StatusInternalServerError, do(t, s, http.MethodGet, "/v1/connect/status", "").Code)
}

func TestConnectRetry(t *testing.T) {
	t.Parallel()

	s, td := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/v1/connect/retry", `{"lead_id": 42, "note": "hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1, decode(t, rec)["added"], 0)
	assert.Equal(t, []int64{42}, td.scheduler.retried)

	require.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/v1/connect/retry", `{}`).Code)
}

func TestConnectSettingsPatch(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodPatch, "/v1/connect/settings", `{"daily_limit": 25, "min_delay_seconds": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.InDelta(t, 25, body["daily_limit"], 0)
	assert.InDelta(t, 5, body["min_delay_seconds"], 0)

	rec = do(t, s, http.MethodGet, "/v1/connect/settings", "")
	assert.InDelta(t, 25, decode(t, rec)["daily_limit"], 0)

	require.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPatch, "/v1/connect/settings", "{bad").Code)
}

func TestSessionRoutes(t *testing.T) {
	t.Parallel()

	s, td := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/v1/session", "")
	assert.Equal(t, "unknown", decode(t, rec)["status"])

	rec = do(t, s, http.MethodPost, "/v1/session/check", "")
	assert.Equal(t, "connected", decode(t, rec)["status"])
	assert.Equal(t, 1, td.sessions.checks)
}

func TestActiveRun(t *testing.T) {
	t.Parallel()

	s, td := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/v1/runs/active", "")
	assert.Equal(t, false, decode(t, rec)["active"])

	td.runs.active = &runs.Snapshot{RunID: 3, Found: 12, Page: 2}
	body := decode(t, do(t, s, http.MethodGet, "/v1/runs/active", ""))
	assert.Equal(t, true, body["active"])
	run := body["run"].(map[string]any)
	assert.InDelta(t, 12, run["found"], 0)
}

func TestStartSearch(t *testing.T) {
	t.Parallel()

	s, td := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/v1/runs/search", `{"source":"sales_navigator","keywords":"cfo","max_pages":2}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, td.runs.started, 1)
	plan := td.runs.started[0]
	assert.Equal(t, lead.SourceSalesNavigator, plan.Source.Kind)
	assert.Equal(t, 2, plan.MaxPages)
	assert.Equal(t, "Sales Nav query: cfo", plan.Label)

	require.Equal(t, http.StatusBadRequest,
		do(t, s, http.MethodPost, "/v1/runs/search", `{"source":"twitter"}`).Code)
	require.Equal(t, http.StatusBadRequest,
		do(t, s, http.MethodPost, "/v1/runs/search", `{"source":"company_employees"}`).Code)

	td.runs.err = runs.ErrRunActive
	require.Equal(t, http.StatusConflict,
		do(t, s, http.MethodPost, "/v1/runs/search", `{"keywords":"cto"}`).Code)
}

func TestStartScrapeURL(t *testing.T) {
	t.Parallel()

	s, td := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/v1/runs/scrape-url",
		`{"url":"https://www.linkedin.com/search/results/people/?keywords=growth","max_pages":3}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "LinkedIn people: growth", td.runs.started[0].Label)

	require.Equal(t, http.StatusBadRequest,
		do(t, s, http.MethodPost, "/v1/runs/scrape-url", `{"url":"https://example.com"}`).Code)
}

func TestRunHistory(t *testing.T) {
	t.Parallel()

	s, td := newTestServer(t, nil)
	td.history.runs = []store.Run{{ID: 2, RunType: runs.TypeSearch, Status: store.RunCompleted}}

	rec := do(t, s, http.MethodGet, "/v1/runs?status=success&limit=1000&offset=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.RunCompleted, td.history.filter.Status)
	assert.Equal(t, store.MaxRunLimit, td.history.filter.Limit)
	assert.Equal(t, 5, td.history.filter.Offset)
	assert.InDelta(t, 1, decode(t, rec)["total"], 0)

	require.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/runs?status=weird", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/runs?limit=-1", "").Code)

	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/v1/runs/2", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/runs/9", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/runs/abc", "").Code)
}

func TestAPIKeyRequired(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, func(d *Deps) { d.APIKey = "secret" })
	require.Equal(t, http.StatusForbidden, do(t, s, http.MethodGet, "/v1/session", "").Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, func(d *Deps) { d.Sessions = panickySessions{} })
	rec := do(t, s, http.MethodGet, "/v1/session", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panickySessions struct{}

func (panickySessions) Last() session.Result { panic("boom") }

func (panickySessions) Check(context.Context) session.Result { panic("boom") }
