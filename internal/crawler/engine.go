package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
	"github.com/JakeFAU/linkedin-prospector/internal/metrics"
	"github.com/JakeFAU/linkedin-prospector/internal/policy/ratelimit"
)

// StopReason says why a crawl ended.
type StopReason string

// Crawl stop reasons.
const (
	StopMaxPages      StopReason = "max_pages"
	StopEmptyPage     StopReason = "empty_page"
	StopBlocked       StopReason = "blocked"
	StopFetchFailed   StopReason = "fetch_failed"
	StopExtractFailed StopReason = "extract_failed"
	StopCanceled      StopReason = "canceled"
)

// Result is what a crawl gathered before it stopped. Leads are always the
// records accumulated up to the stopping point; Err explains an abnormal stop.
type Result struct {
	Leads      []lead.Lead
	Pages      int
	StopReason StopReason
	Err        error
}

// Engine drives the page loop shared by every Source.
type Engine struct {
	cfg       Config
	fetcher   Fetcher
	extractor Extractor
	locker    Locker
	throttle  Throttle
	pauser    Pauser
	detector  *BlockDetector
	snapshots Snapshotter
	logger    *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithThrottle replaces the request spacer.
func WithThrottle(t Throttle) Option {
	return func(e *Engine) { e.throttle = t }
}

// WithPauser replaces the block cooldown sleeper.
func WithPauser(p Pauser) Option {
	return func(e *Engine) { e.pauser = p }
}

// WithSnapshotter enables raw HTML snapshots of every fetched page.
func WithSnapshotter(s Snapshotter) Option {
	return func(e *Engine) { e.snapshots = s }
}

// WithBlockDetector replaces the block detector.
func WithBlockDetector(d *BlockDetector) Option {
	return func(e *Engine) { e.detector = d }
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine wires a crawl engine. The locker must be the process-wide browser
// coordinator.
func NewEngine(cfg Config, fetcher Fetcher, extractor Extractor, locker Locker, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil || extractor == nil || locker == nil {
		return nil, errors.New("crawler: fetcher, extractor and locker are required")
	}
	e := &Engine{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		locker:    locker,
		throttle:  ratelimit.New(),
		pauser:    TimerPauser{},
		detector:  NewBlockDetector(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("crawler")
	return e, nil
}

// Crawl fetches pages 1..maxPages of src in order and extracts leads from each,
// stopping early on an empty page, a persistent block or a failed fetch.
func (e *Engine) Crawl(ctx context.Context, src Source, maxPages int, progress ProgressFunc) Result {
	maxPages = clampPages(maxPages)
	source := string(src.Kind)
	log := e.logger.With(zap.String("source", source), zap.String("query", src.Query))
	res := Result{StopReason: StopMaxPages}

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			res.StopReason, res.Err = StopCanceled, err
			break
		}
		target := src.BuildURL(page)
		log.Info("fetching page", zap.Int("page", page), zap.String("url", target))

		fetched, err := e.fetchWithRetry(ctx, src, target)
		if err != nil {
			res.StopReason, res.Err = e.classify(ctx, err), err
			metrics.ObservePage(source, string(res.StopReason))
			log.Warn("crawl aborted", zap.Int("page", page), zap.Error(err))
			break
		}
		e.snapshot(ctx, page, fetched)

		found, err := e.extractor.Extract(fetched, src.Binding)
		if err != nil {
			res.StopReason = StopExtractFailed
			res.Err = fmt.Errorf("extract page %d: %w", page, err)
			metrics.ObservePage(source, string(StopExtractFailed))
			log.Warn("extraction failed", zap.Int("page", page), zap.Error(err))
			break
		}
		if len(found) == 0 {
			res.StopReason = StopEmptyPage
			metrics.ObservePage(source, "empty")
			log.Info("no results on page, stopping", zap.Int("page", page))
			break
		}

		metrics.ObservePage(source, "ok")
		metrics.ObserveLeads(source, len(found))
		res.Leads = append(res.Leads, found...)
		res.Pages = page
		log.Info("page extracted", zap.Int("page", page), zap.Int("found", len(found)), zap.Int("total", len(res.Leads)))
		if progress != nil {
			progress(len(res.Leads), page)
		}
	}

	log.Info("crawl finished",
		zap.String("stop_reason", string(res.StopReason)),
		zap.Int("pages", res.Pages),
		zap.Int("leads", len(res.Leads)),
	)
	return res
}

// fetchWithRetry makes up to MaxRetries attempts at target, cooling down after
// every blocked response.
func (e *Engine) fetchWithRetry(ctx context.Context, src Source, target string) (Page, error) {
	var reason string
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := e.throttle.Wait(ctx, ratelimit.HostKey(target), e.cfg.DelayFor(src)); err != nil {
			return Page{}, err
		}

		var page Page
		err := e.locker.Do(ctx, "crawl_fetch", func(ctx context.Context) error {
			var ferr error
			page, ferr = e.fetchOnce(ctx, target)
			return ferr
		})
		if err != nil {
			FetchErrors.Inc()
			return Page{}, fmt.Errorf("fetch %s: %w", target, err)
		}

		var blocked bool
		reason, blocked = e.detector.Detect(page)
		if !blocked {
			return page, nil
		}
		BlockedResponses.WithLabelValues(reason).Inc()
		e.logger.Warn("blocked response, cooling down",
			zap.String("url", target),
			zap.String("reason", reason),
			zap.Int("status", page.StatusCode),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", e.cfg.MaxRetries),
			zap.Duration("cooldown", e.cfg.BlockWait),
		)
		if err := e.pauser.Pause(ctx, e.cfg.BlockWait); err != nil {
			return Page{}, err
		}
	}
	return Page{}, fmt.Errorf("%w: %s after %d attempts", ErrBlocked, reason, e.cfg.MaxRetries)
}

// fetchOnce runs one fetch and, when a headless fetch returns a loading
// skeleton, one fully rendered refetch. The caller holds the browser lock.
func (e *Engine) fetchOnce(ctx context.Context, target string) (Page, error) {
	req := FetchRequest{URL: target, Headless: e.cfg.Headless, Prepare: PrepareFor(target)}
	page, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		return Page{}, err
	}
	if !req.Headless || !e.cfg.Skeleton.Matches(target, page.Body) {
		return page, nil
	}
	HeadfulRetries.Inc()
	e.logger.Info("loading skeleton detected, retrying headful", zap.String("url", target))
	req.Headless = false
	page, err = e.fetcher.Fetch(ctx, req)
	if err != nil {
		return Page{}, fmt.Errorf("headful retry: %w", err)
	}
	return page, nil
}

func (e *Engine) snapshot(ctx context.Context, page int, fetched Page) {
	if e.snapshots == nil {
		return
	}
	path, err := e.snapshots.SaveHTML(ctx, PageSnapshotName(page), fetched.Body)
	if err != nil {
		e.logger.Debug("snapshot failed", zap.Int("page", page), zap.Error(err))
		return
	}
	if path != "" {
		e.logger.Debug("snapshot saved", zap.Int("page", page), zap.String("path", path))
	}
}

func (e *Engine) classify(ctx context.Context, err error) StopReason {
	switch {
	case ctx.Err() != nil:
		return StopCanceled
	case errors.Is(err, ErrBlocked):
		return StopBlocked
	default:
		return StopFetchFailed
	}
}

func clampPages(n int) int {
	if n < lead.MinPages {
		return lead.MinPages
	}
	if n > lead.MaxPages {
		return lead.MaxPages
	}
	return n
}
