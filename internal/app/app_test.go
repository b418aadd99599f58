package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkedin-prospector/internal/app"
	"github.com/JakeFAU/linkedin-prospector/internal/config"
	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
	"github.com/JakeFAU/linkedin-prospector/internal/lead"
	"github.com/JakeFAU/linkedin-prospector/internal/runs"
	"github.com/JakeFAU/linkedin-prospector/internal/session"
	"github.com/JakeFAU/linkedin-prospector/internal/store"
)

const firstPage = `<html><body><div role="list">
<div data-view-name="people-search-result">
  <a data-view-name="search-result-lockup-title" href="https://www.linkedin.com/in/jane-doe?miniProfileUrn=1">Jane Doe</a>
  <p>Head of Data at Acme Corp</p>
  <p>Austin, Texas</p>
</div>
</div></body></html>`

type stubFetcher struct {
	mu   sync.Mutex
	urls []string
}

func (f *stubFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.Page, error) {
	f.mu.Lock()
	f.urls = append(f.urls, req.URL)
	f.mu.Unlock()
	body := "<html><body><p>No results found</p></body></html>"
	if strings.Contains(req.URL, "page=1") {
		body = firstPage
	}
	return crawler.Page{URL: req.URL, FinalURL: req.URL, StatusCode: http.StatusOK, Body: []byte(body), Headless: req.Headless}, nil
}

func newTestApp(t *testing.T) (*app.App, *stubFetcher) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prospector.yaml")
	yaml := "data_dir: " + filepath.Join(dir, "data") + `
crawler:
  default_delay_seconds: 0
  sales_nav_delay_seconds: 0
  block_wait_seconds: 0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	fetcher := &stubFetcher{}
	a, err := app.New(context.Background(), cfg, nil,
		app.WithRegisterer(prometheus.NewRegistry()),
		app.WithFetcher(fetcher),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, a.Close(ctx))
	})
	return a, fetcher
}

func TestNewCreatesDataLayout(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t)
	paths := a.Config.Paths()
	assert.FileExists(t, paths.Database)
	for _, dir := range []string{paths.Profile, paths.DebugHTML, paths.Logs, paths.Enrichments} {
		assert.DirExists(t, dir)
	}
	assert.NotNil(t, a.Enricher)
	require.NoError(t, a.Store.Ping(context.Background()))
}

func TestSearchRunPersistsLeadsAndAudit(t *testing.T) {
	t.Parallel()

	a, fetcher := newTestApp(t)
	ctx := context.Background()
	plan, err := runs.PlanSearch(lead.SourceSearch, lead.SearchRequest{Keywords: "data", MaxPages: 3})
	require.NoError(t, err)

	snap, err := a.Runs.Execute(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Found)
	assert.Equal(t, string(crawler.StopEmptyPage), snap.Stop)
	assert.Len(t, fetcher.urls, 2)

	total, err := a.Store.Count(ctx, store.LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	run, err := a.Store.GetRun(ctx, snap.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, run.Status)
	assert.Equal(t, 1, run.LeadsFound)
	require.NotNil(t, run.FinishedAt)

	assert.FileExists(t, a.Snapshots.Path(crawler.PageSnapshotName(1)))
}

func TestSessionCheckUsesFetcher(t *testing.T) {
	t.Parallel()

	a, fetcher := newTestApp(t)
	res := a.Sessions.Check(context.Background())
	assert.Equal(t, session.StatusConnected, res.Status)
	assert.Equal(t, []string{session.FeedURL}, fetcher.urls)
}

func TestHandlerServesReadiness(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t)
	h := a.Handler()

	for _, path := range []string{"/healthz", "/readyz", "/v1/runs/active", "/v1/connect/status"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestSweepLogsRemovesExpiredFiles(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t)
	old := filepath.Join(a.Config.Paths().Logs, "server-2000-01-01.log")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))
	stamp := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, stamp, stamp))

	a.SweepLogs(context.Background())
	assert.NoFileExists(t, old)
}
