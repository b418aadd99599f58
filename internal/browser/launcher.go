// Package browser launches Chrome over the persistent profile directory and
// exposes the interactive page driver used by the send flow and session
// checks.
package browser

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// DefaultNavigationTimeout bounds a single browser action.
const DefaultNavigationTimeout = 45 * time.Second

// Config controls how Chrome is started.
type Config struct {
	ProfileDir        string
	ExecPath          string
	UserAgent         string
	NavigationTimeout time.Duration
	WindowWidth       int
	WindowHeight      int
}

// Launcher starts browser sessions on the shared profile. Callers must hold
// the coordinator for the whole life of a Session.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

// NewLauncher validates cfg and creates the profile directory.
func NewLauncher(cfg Config, logger *zap.Logger) (*Launcher, error) {
	if cfg.ProfileDir == "" {
		return nil, fmt.Errorf("profile dir is required")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		cfg.WindowWidth, cfg.WindowHeight = 1366, 900
	}
	if err := os.MkdirAll(cfg.ProfileDir, 0o700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger.Named("browser")}, nil
}

// NavigationTimeout is the per-action deadline sessions apply.
func (l *Launcher) NavigationTimeout() time.Duration {
	return l.cfg.NavigationTimeout
}

// Session is one running Chrome instance. Close it to release the profile.
type Session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	headless bool
	timeout  time.Duration
}

// Open starts Chrome in headless or headful mode. The browser lives until
// Close is called or parent is done.
func (l *Launcher) Open(parent context.Context, headless bool) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, l.allocatorOptions(headless)...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(l.logger.Sugar().Debugf),
		chromedp.WithErrorf(l.logger.Sugar().Debugf),
	)
	cancel := func() {
		taskCancel()
		allocCancel()
	}
	if err := chromedp.Run(taskCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	l.logger.Debug("browser started", zap.Bool("headless", headless))
	return &Session{ctx: taskCtx, cancel: cancel, headless: headless, timeout: l.cfg.NavigationTimeout}, nil
}

// ResetProfile removes and recreates the profile directory, discarding the
// stored login.
func (l *Launcher) ResetProfile() error {
	if err := os.RemoveAll(l.cfg.ProfileDir); err != nil {
		return fmt.Errorf("remove profile dir: %w", err)
	}
	if err := os.MkdirAll(l.cfg.ProfileDir, 0o700); err != nil {
		return fmt.Errorf("recreate profile dir: %w", err)
	}
	l.logger.Info("browser profile reset", zap.String("dir", l.cfg.ProfileDir))
	return nil
}

func (l *Launcher) allocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(l.cfg.ProfileDir),
		chromedp.WindowSize(l.cfg.WindowWidth, l.cfg.WindowHeight),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	return opts
}

// Context returns the chromedp context actions must run on.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Headless reports the mode the session was opened in.
func (s *Session) Headless() bool {
	return s.headless
}

// Run executes actions with the per-action deadline. The run also stops when
// ctx, the caller's context, is done.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Close shuts Chrome down.
func (s *Session) Close() {
	s.cancel()
}
