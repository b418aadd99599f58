// Package runs owns the crawl run lifecycle: the scrape_runs audit row, the
// single active run, progress events and persisting the harvested leads.
package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
	"github.com/JakeFAU/linkedin-prospector/internal/lead"
	"github.com/JakeFAU/linkedin-prospector/internal/metrics"
	"github.com/JakeFAU/linkedin-prospector/internal/progress"
	"github.com/JakeFAU/linkedin-prospector/internal/store"
)

// ErrRunActive is returned when a crawl is requested while another is running.
var ErrRunActive = errors.New("a crawl is already running")

// Run types recorded in scrape_runs.run_type.
const (
	TypeSearch    = "api_search"
	TypeScrapeURL = "api_scrape_url"
)

// Crawler runs one crawl to completion.
type Crawler interface {
	Crawl(ctx context.Context, src crawler.Source, maxPages int, progress crawler.ProgressFunc) crawler.Result
}

// Store is the persistence the runner needs.
type Store interface {
	CreateRun(ctx context.Context, spec store.NewRun) (int64, error)
	UpdateRun(ctx context.Context, id int64, upd store.RunUpdate) error
	UpsertMany(ctx context.Context, leads []lead.Lead) (int, error)
}

// IDGenerator yields run correlation ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Plan is a crawl ready to start.
type Plan struct {
	RunType  string
	Source   crawler.Source
	MaxPages int
	Label    string
	InputURL string
	Params   any
}

// PlanSearch validates a form search and builds its plan.
func PlanSearch(kind lead.Source, req lead.SearchRequest) (Plan, error) {
	req = req.WithDefaults()
	if err := req.Validate(kind); err != nil {
		return Plan{}, err
	}
	src, err := crawler.SourceFor(kind, req)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		RunType:  TypeSearch,
		Source:   src,
		MaxPages: req.MaxPages,
		Label:    SummarizeRequest(kind, req),
		Params:   req,
	}, nil
}

// PlanURL validates a pasted result URL and builds its plan.
func PlanURL(raw string, maxPages int) (Plan, error) {
	if maxPages == 0 {
		maxPages = lead.DefaultPages
	}
	if maxPages < lead.MinPages || maxPages > lead.MaxPages {
		return Plan{}, fmt.Errorf("max_pages must be between %d and %d", lead.MinPages, lead.MaxPages)
	}
	src, err := crawler.URLSource(raw)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		RunType:  TypeScrapeURL,
		Source:   src,
		MaxPages: maxPages,
		Label:    SummarizeURL(raw, src.Kind),
		InputURL: raw,
		Params:   map[string]any{"url": raw, "max_pages": maxPages},
	}, nil
}

// Snapshot describes the current or most recent run.
type Snapshot struct {
	RunID     int64     `json:"run_id"`
	TraceID   string    `json:"trace_id"`
	RunType   string    `json:"run_type"`
	Source    string    `json:"source"`
	Label     string    `json:"label"`
	Status    string    `json:"status"`
	Found     int       `json:"found"`
	Page      int       `json:"page"`
	Done      bool      `json:"done"`
	Error     string    `json:"error,omitempty"`
	Stop      string    `json:"stop_reason,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Runner executes at most one crawl at a time.
type Runner struct {
	crawler Crawler
	store   Store
	ids     IDGenerator
	emitter progress.Emitter
	now     func() time.Time
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	current *Snapshot
}

// Option customizes a Runner.
type Option func(*Runner)

// WithEmitter sends progress events to e.
func WithEmitter(e progress.Emitter) Option {
	return func(r *Runner) {
		if e != nil {
			r.emitter = e
		}
	}
}

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New builds a Runner.
func New(c Crawler, st Store, ids IDGenerator, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		crawler: c,
		store:   st,
		ids:     ids,
		emitter: discard{},
		now:     time.Now,
		logger:  logger.Named("runs"),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Active returns the current run, or the last finished one. ok is false when
// nothing has run yet.
func (r *Runner) Active() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Snapshot{}, false
	}
	return *r.current, true
}

// Start records the run and crawls in the background. It fails fast with
// ErrRunActive while another run is in flight.
func (r *Runner) Start(ctx context.Context, plan Plan) (Snapshot, error) {
	traceID, runID, err := r.begin(ctx, plan)
	if err != nil {
		return Snapshot{}, err
	}
	snap, _ := r.Active()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(r.ctx, plan, traceID, runID)
	}()
	return snap, nil
}

// Execute records the run and crawls in the caller's goroutine.
func (r *Runner) Execute(ctx context.Context, plan Plan) (Snapshot, error) {
	traceID, runID, err := r.begin(ctx, plan)
	if err != nil {
		return Snapshot{}, err
	}
	r.execute(ctx, plan, traceID, runID)
	snap, _ := r.Active()
	if snap.Status == string(store.RunFailed) {
		return snap, errors.New(snap.Error)
	}
	return snap, nil
}

// Close cancels a background run and waits for it to finalize.
func (r *Runner) Close(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for run: %w", ctx.Err())
	}
}

func (r *Runner) begin(ctx context.Context, plan Plan) ([16]byte, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil && !r.current.Done {
		return [16]byte{}, 0, ErrRunActive
	}

	traceID, err := r.ids.NewID()
	if err != nil {
		return [16]byte{}, 0, err
	}
	trace, err := progress.ParseRunID(traceID)
	if err != nil {
		return [16]byte{}, 0, err
	}
	runID, err := r.store.CreateRun(ctx, store.NewRun{
		RunType:   plan.RunType,
		Source:    string(plan.Source.Kind),
		QueryText: plan.Label,
		InputURL:  plan.InputURL,
		MaxPages:  plan.MaxPages,
		Params:    plan.Params,
	})
	if err != nil {
		return [16]byte{}, 0, fmt.Errorf("create run: %w", err)
	}

	started := r.now()
	r.current = &Snapshot{
		RunID:     runID,
		TraceID:   traceID,
		RunType:   plan.RunType,
		Source:    string(plan.Source.Kind),
		Label:     plan.Label,
		Status:    string(store.RunRunning),
		StartedAt: started,
	}
	r.emitter.Emit(progress.Event{
		RunID:   trace,
		AuditID: runID,
		TS:      started,
		Stage:   progress.StageRunStart,
		Source:  string(plan.Source.Kind),
		Note:    plan.Label,
	})
	r.logger.Info("run started",
		zap.Int64("run_id", runID),
		zap.String("trace_id", traceID),
		zap.String("source", string(plan.Source.Kind)),
		zap.String("label", plan.Label),
		zap.Int("max_pages", plan.MaxPages),
	)
	return trace, runID, nil
}

func (r *Runner) execute(ctx context.Context, plan Plan, trace [16]byte, runID int64) {
	source := string(plan.Source.Kind)
	res := r.crawl(ctx, plan, trace, runID)

	var upsertErr error
	if len(res.Leads) > 0 {
		if _, err := r.store.UpsertMany(context.WithoutCancel(ctx), res.Leads); err != nil {
			upsertErr = fmt.Errorf("save leads: %w", err)
		}
	}

	status, errText := outcome(res, upsertErr)
	found := len(res.Leads)
	upd := store.RunUpdate{Status: &status, LeadsFound: &found}
	if errText != "" {
		upd.Error = &errText
	}
	if err := r.store.UpdateRun(context.WithoutCancel(ctx), runID, upd); err != nil {
		r.logger.Error("finalize run", zap.Int64("run_id", runID), zap.Error(err))
	}
	metrics.ObserveRun(plan.RunType, string(status))

	r.mu.Lock()
	r.current.Found = found
	r.current.Done = true
	r.current.Status = string(status)
	r.current.Error = errText
	r.current.Stop = string(res.StopReason)
	started := r.current.StartedAt
	r.mu.Unlock()

	stage := progress.StageRunDone
	if status == store.RunFailed {
		stage = progress.StageRunError
	}
	r.emitter.Emit(progress.Event{
		RunID:   trace,
		AuditID: runID,
		TS:      r.now(),
		Stage:   stage,
		Source:  source,
		Found:   found,
		Dur:     max(r.now().Sub(started), 0),
		Note:    errText,
	})
	r.logger.Info("run finished",
		zap.Int64("run_id", runID),
		zap.String("status", string(status)),
		zap.String("stop_reason", string(res.StopReason)),
		zap.Int("pages", res.Pages),
		zap.Int("found", found),
	)
}

func (r *Runner) crawl(ctx context.Context, plan Plan, trace [16]byte, runID int64) (res crawler.Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("crawl panicked", zap.Int64("run_id", runID), zap.Any("panic", p))
			res.Err = fmt.Errorf("crawl panicked: %v", p)
			res.StopReason = crawler.StopFetchFailed
		}
	}()
	source := string(plan.Source.Kind)
	return r.crawler.Crawl(ctx, plan.Source, plan.MaxPages, func(found, page int) {
		r.mu.Lock()
		r.current.Found = found
		r.current.Page = page
		r.mu.Unlock()
		r.emitter.Emit(progress.Event{
			RunID:   trace,
			AuditID: runID,
			TS:      r.now(),
			Stage:   progress.StagePage,
			Source:  source,
			URL:     plan.Source.BuildURL(page),
			Page:    page,
			Found:   found,
		})
	})
}

// outcome maps a crawl result to the audit status. A crawl that stopped
// abnormally still completes when earlier pages produced records.
func outcome(res crawler.Result, upsertErr error) (store.RunStatus, string) {
	switch {
	case upsertErr != nil:
		return store.RunFailed, upsertErr.Error()
	case res.Err != nil && res.Pages == 0:
		return store.RunFailed, res.Err.Error()
	case res.Err != nil:
		return store.RunCompleted, res.Err.Error()
	default:
		return store.RunCompleted, ""
	}
}

type discard struct{}

func (discard) Emit(progress.Event) {}
