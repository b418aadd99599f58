// Package app builds and holds the long-lived prospector services. Commands
// construct one App per process and close it on the way out.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/api"
	"github.com/JakeFAU/linkedin-prospector/internal/browser"
	"github.com/JakeFAU/linkedin-prospector/internal/clock/system"
	"github.com/JakeFAU/linkedin-prospector/internal/config"
	"github.com/JakeFAU/linkedin-prospector/internal/connect"
	"github.com/JakeFAU/linkedin-prospector/internal/coordinator"
	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
	"github.com/JakeFAU/linkedin-prospector/internal/enrich"
	"github.com/JakeFAU/linkedin-prospector/internal/extract"
	"github.com/JakeFAU/linkedin-prospector/internal/fetcher/headless"
	"github.com/JakeFAU/linkedin-prospector/internal/id/uuid"
	"github.com/JakeFAU/linkedin-prospector/internal/logging"
	"github.com/JakeFAU/linkedin-prospector/internal/metrics"
	"github.com/JakeFAU/linkedin-prospector/internal/progress"
	"github.com/JakeFAU/linkedin-prospector/internal/progress/sinks"
	"github.com/JakeFAU/linkedin-prospector/internal/runs"
	"github.com/JakeFAU/linkedin-prospector/internal/session"
	"github.com/JakeFAU/linkedin-prospector/internal/store"
	"github.com/JakeFAU/linkedin-prospector/internal/worker"
)

// LogSweepSchedule is when old log files are removed.
const LogSweepSchedule = "@daily"

// App is the service container.
type App struct {
	Config      config.Config
	Logger      *zap.Logger
	Store       *store.Store
	Coordinator *coordinator.Coordinator
	Launcher    *browser.Launcher
	Snapshots   *crawler.FileSystemSink
	Extractor   *extract.Extractor
	Engine      *crawler.Engine
	Enricher    *enrich.Enricher
	Sessions    *session.Manager
	Monitor     *session.Monitor
	Worker      *worker.Worker
	Hub         *progress.Hub
	Runs        *runs.Runner
}

type options struct {
	registerer prometheus.Registerer
	fetcher    crawler.Fetcher
}

// Option customizes New.
type Option func(*options)

// WithRegisterer registers the run collectors against reg instead of the
// default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithFetcher replaces the Chrome-backed page fetcher.
func WithFetcher(f crawler.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// New wires every service from cfg. Nothing here starts Chrome; browser
// sessions open on demand under the coordinator.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}
	metrics.Init()

	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	paths := cfg.Paths()

	st, err := store.Open(ctx, paths.Database, store.WithClock(system.NewUTC()), store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &App{Config: cfg, Logger: logger, Store: st}
	fail := func(err error) (*App, error) {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("close store after init failure", zap.Error(cerr))
		}
		return nil, err
	}

	a.Coordinator = coordinator.New(logger)
	a.Launcher, err = browser.NewLauncher(cfg.BrowserConfig(), logger)
	if err != nil {
		return fail(fmt.Errorf("init browser: %w", err))
	}
	a.Snapshots, err = crawler.NewFileSystemSink(paths.DebugHTML, cfg.Crawler.MaxSnapshotBytes, cfg.Crawler.SaveDebugHTML, logger)
	if err != nil {
		return fail(fmt.Errorf("init snapshots: %w", err))
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher, err = headless.NewChromedp(a.Launcher, logger)
		if err != nil {
			return fail(fmt.Errorf("init fetcher: %w", err))
		}
	}
	a.Extractor = extract.New(logger)
	a.Engine, err = crawler.NewEngine(cfg.CrawlerConfig(), fetcher, a.Extractor, a.Coordinator,
		crawler.WithSnapshotter(a.Snapshots),
		crawler.WithLogger(logger),
	)
	if err != nil {
		return fail(fmt.Errorf("init crawler: %w", err))
	}
	a.Enricher, err = enrich.New(fetcher, a.Extractor, a.Coordinator,
		enrich.WithHeadless(cfg.Browser.Headless),
		enrich.WithDetails(cfg.Enrich.IncludeDetails),
		enrich.WithMaxPosts(cfg.Enrich.MaxPosts),
		enrich.WithLogger(logger),
	)
	if err != nil {
		return fail(fmt.Errorf("init enricher: %w", err))
	}

	flow := connect.NewFlow(crawler.TimerPauser{}, connect.NewJitter(), logger)
	sender := browser.NewSender(a.Launcher, flow, a.Snapshots, cfg.Browser.Headless, logger)
	workerCfg := worker.DefaultConfig()
	workerCfg.Defaults = cfg.Connect
	a.Worker = worker.New(st, sender, a.Coordinator, workerCfg, logger, worker.WithClock(system.New()))

	a.Sessions = session.NewManager(fetcher, a.Launcher, a.Coordinator, cfg.LoginTimeout(), logger)
	a.Monitor = session.NewMonitor(a.Sessions, cfg.Session.CheckSchedule, logger)
	if err := a.Monitor.AddJob(LogSweepSchedule, "log_sweep", a.SweepLogs); err != nil {
		return fail(err)
	}

	promSink, err := sinks.NewPrometheusSink(o.registerer)
	if err != nil {
		return fail(err)
	}
	a.Hub = progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		promSink,
		sinks.NewStoreSink(st, logger),
	)
	a.Runs = runs.New(a.Engine, st, uuid.New(), logger, runs.WithEmitter(a.Hub))

	logger.Info("application services initialized",
		zap.String("data_dir", cfg.DataDir),
		zap.String("database", paths.Database),
		zap.Bool("headless", cfg.Browser.Headless),
	)
	return a, nil
}

// Handler returns the ops API router.
func (a *App) Handler() http.Handler {
	return api.NewServer(api.Deps{
		Scheduler: a.Worker,
		Sessions:  a.Sessions,
		Runs:      a.Runs,
		History:   a.Store,
		Ready:     a.Store,
		APIKey:    a.Config.Server.APIKey,
	}, a.Logger).Handler()
}

// SweepLogs removes log files past the retention window.
func (a *App) SweepLogs(context.Context) {
	removed, err := logging.Sweep(a.Config.Paths().Logs, a.Config.Retention(), time.Now())
	if err != nil {
		a.Logger.Warn("log sweep failed", zap.Error(err))
	}
	if len(removed) > 0 {
		a.Logger.Info("removed old log files", zap.Int("count", len(removed)))
	}
}

// Close stops background work and releases the database. Runs finalize
// before the hub drains so their last events reach the sinks.
func (a *App) Close(ctx context.Context) error {
	a.Logger.Info("shutting down application services")
	a.Worker.Stop()
	var errs []error
	if err := a.Worker.Wait(ctx); err != nil {
		errs = append(errs, err)
	}
	select {
	case <-a.Monitor.Stop().Done():
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait for monitor jobs: %w", ctx.Err()))
	}
	if err := a.Runs.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Hub.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
