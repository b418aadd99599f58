// Package session reports whether the browser profile is logged in, drives
// interactive login and logout, and re-checks health on a schedule.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
	"github.com/JakeFAU/linkedin-prospector/internal/metrics"
)

// Status is the health of the stored login.
type Status string

// Session states.
const (
	StatusConnected Status = "connected"
	StatusExpired   Status = "expired"
	StatusUnknown   Status = "unknown"
)

// Well-known pages.
const (
	FeedURL  = "https://www.linkedin.com/feed/"
	LoginURL = "https://www.linkedin.com/login"
)

// DefaultLoginTimeout bounds how long Login waits for the user.
const DefaultLoginTimeout = 180 * time.Second

var loggedInFragments = []string{"/feed", "/mynetwork", "/in/", "/sales"}

// Browser is the interactive capability Login and Logout need.
type Browser interface {
	WaitForLogin(ctx context.Context, startURL string, timeout time.Duration, match func(string) bool) (string, bool, error)
	ResetProfile() error
}

// Locker grants exclusive use of the browser profile.
type Locker interface {
	Do(ctx context.Context, operation string, fn func(context.Context) error) error
}

// Result is the outcome of the most recent session operation.
type Result struct {
	Status    Status    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Manager owns session health for the shared profile.
type Manager struct {
	fetcher      crawler.Fetcher
	browser      Browser
	locker       Locker
	loginTimeout time.Duration
	now          func() time.Time
	logger       *zap.Logger

	mu   sync.RWMutex
	last Result
}

// NewManager builds a Manager. A non-positive loginTimeout uses the default.
func NewManager(fetcher crawler.Fetcher, browser Browser, locker Locker, loginTimeout time.Duration, logger *zap.Logger) *Manager {
	if loginTimeout <= 0 {
		loginTimeout = DefaultLoginTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		fetcher:      fetcher,
		browser:      browser,
		locker:       locker,
		loginTimeout: loginTimeout,
		now:          time.Now,
		logger:       logger.Named("session"),
		last:         Result{Status: StatusUnknown},
	}
}

// Last returns the most recent result without touching the browser.
func (m *Manager) Last() Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Check loads the feed headlessly and classifies where it lands.
func (m *Manager) Check(ctx context.Context) Result {
	var page crawler.Page
	err := m.locker.Do(ctx, "session_check", func(c context.Context) error {
		var ferr error
		page, ferr = m.fetcher.Fetch(c, crawler.FetchRequest{URL: FeedURL, Headless: true})
		return ferr
	})
	if err != nil {
		m.logger.Warn("session check failed", zap.Error(err))
		return m.record(StatusUnknown, err.Error())
	}
	return m.record(Classify(page), page.LandingURL())
}

// Classify maps a fetched feed page to a session status.
func Classify(page crawler.Page) Status {
	landing := page.LandingURL()
	if strings.Contains(landing, "/login") || strings.Contains(landing, "/checkpoint") {
		return StatusExpired
	}
	if page.StatusCode == 200 {
		return StatusConnected
	}
	return StatusExpired
}

// LoggedInURL reports whether a location means login completed.
func LoggedInURL(u string) bool {
	for _, frag := range loggedInFragments {
		if strings.Contains(u, frag) {
			return true
		}
	}
	return false
}

// Login opens a visible browser and waits for the user to finish signing in.
func (m *Manager) Login(ctx context.Context) Result {
	m.logger.Info("opening browser for login", zap.Duration("timeout", m.loginTimeout))
	var (
		landed string
		ok     bool
	)
	err := m.locker.Do(ctx, "session_login", func(c context.Context) error {
		var werr error
		landed, ok, werr = m.browser.WaitForLogin(c, LoginURL, m.loginTimeout, LoggedInURL)
		return werr
	})
	switch {
	case err != nil:
		m.logger.Warn("login failed", zap.Error(err))
		return m.record(StatusUnknown, err.Error())
	case ok:
		m.logger.Info("login completed", zap.String("url", landed))
		return m.record(StatusConnected, landed)
	default:
		m.logger.Warn("login timed out", zap.String("url", landed))
		return m.record(StatusExpired, fmt.Sprintf("login timed out at %s", landed))
	}
}

// Logout discards the stored profile.
func (m *Manager) Logout(ctx context.Context) (Result, error) {
	err := m.locker.Do(ctx, "session_logout", func(context.Context) error {
		return m.browser.ResetProfile()
	})
	if err != nil {
		return m.Last(), fmt.Errorf("logout: %w", err)
	}
	return m.record(StatusUnknown, "profile cleared"), nil
}

func (m *Manager) record(status Status, detail string) Result {
	res := Result{Status: status, Detail: detail, CheckedAt: m.now()}
	m.mu.Lock()
	m.last = res
	m.mu.Unlock()
	metrics.SetSessionStatus(string(status))
	return res
}
