// Package worker implements the connect scheduler: a long-lived loop that
// drains the connect queue under daily caps, business hours and jittered
// spacing.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/connect"
	"github.com/JakeFAU/linkedin-prospector/internal/lead"
	"github.com/JakeFAU/linkedin-prospector/internal/metrics"
	"github.com/JakeFAU/linkedin-prospector/internal/store"
)

// DefaultFailureReason is recorded when a send fails without a reason.
const DefaultFailureReason = "Connect button not found or send not verified"

// Store is the persistence the scheduler needs.
type Store interface {
	NextPending(ctx context.Context) (store.QueueItem, error)
	MarkConnect(ctx context.Context, id int64, status store.QueueStatus, errText string) error
	QueueStats(ctx context.Context) (store.QueueStats, error)
	SentCountForLocalDay(ctx context.Context, day time.Time) (int, error)
	Enqueue(ctx context.Context, leadIDs []int64, note string) (int, error)
	GetJSONSetting(ctx context.Context, key string, dst any) (bool, error)
	SetJSONSetting(ctx context.Context, key string, value any) error
}

// Sender drives one send flow. It never fails past its boundary.
type Sender interface {
	Send(ctx context.Context, profileURL, note string) connect.Outcome
}

// Locker grants exclusive use of the browser profile.
type Locker interface {
	Do(ctx context.Context, operation string, fn func(context.Context) error) error
}

// Clock reports local wall time.
type Clock interface {
	Now() time.Time
}

// Config holds the settings defaults and the loop's fixed sleeps.
type Config struct {
	Defaults     connect.Settings
	PausedPoll   time.Duration
	OffHoursPoll time.Duration
	CapPoll      time.Duration
	IdlePoll     time.Duration
	ErrorBackoff time.Duration
}

// DefaultConfig returns the production sleeps.
func DefaultConfig() Config {
	return Config{
		Defaults:     connect.DefaultSettings(),
		PausedPoll:   5 * time.Second,
		OffHoursPoll: 60 * time.Second,
		CapPoll:      300 * time.Second,
		IdlePoll:     30 * time.Second,
		ErrorBackoff: 60 * time.Second,
	}
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running       bool             `json:"running"`
	Paused        bool             `json:"paused"`
	LastSent      string           `json:"last_sent,omitempty"`
	SendsToday    int              `json:"sends_today"`
	Settings      connect.Settings `json:"settings"`
	BusinessStart string           `json:"business_start"`
	BusinessEnd   string           `json:"business_end"`
	Queue         store.QueueStats `json:"queue"`
}

// Option customizes a Worker.
type Option func(*Worker)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(w *Worker) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithDelay overrides how the post-send pause is drawn.
func WithDelay(fn func(connect.Settings) time.Duration) Option {
	return func(w *Worker) {
		if fn != nil {
			w.delay = fn
		}
	}
}

type localClock struct{}

func (localClock) Now() time.Time { return time.Now() }

// Worker is the connect scheduler.
type Worker struct {
	store  Store
	sender Sender
	locker Locker
	clock  Clock
	delay  func(connect.Settings) time.Duration
	cfg    Config
	logger *zap.Logger

	wake chan struct{}

	mu        sync.Mutex
	running   bool
	paused    bool
	gen       int
	cancel    context.CancelFunc
	done      chan struct{}
	lastSent  string
	sentToday int
	day       string
}

// New constructs an idle Worker.
func New(st Store, sender Sender, locker Locker, cfg Config, logger *zap.Logger, opts ...Option) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	jitter := connect.NewJitter()
	w := &Worker{
		store:  st,
		sender: sender,
		locker: locker,
		clock:  localClock{},
		delay:  jitter.SendDelay,
		cfg:    cfg,
		logger: logger.Named("connect_worker"),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the loop and clears Pause. It is a no-op when already
// running. The loop outlives ctx's cancellation; use Stop to end it. A loop
// still finishing a send from before the last Stop is waited for before the
// new one reads the queue.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = false
	if w.running {
		return
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	prev := w.done
	w.gen++
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(loopCtx, w.gen, prev, w.done)
	w.logger.Info("connect worker started")
}

// Stop ends the loop at its next wake point. A send in flight finishes and
// its outcome is recorded.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	w.cancel()
	w.logger.Info("connect worker stopping")
}

// Wait blocks until the most recent loop has exited or ctx is done.
func (w *Worker) Wait(ctx context.Context) error {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for connect worker: %w", ctx.Err())
	}
}

// Pause keeps the loop alive but stops it sending.
func (w *Worker) Pause() {
	w.mu.Lock()
	w.paused = true
	w.mu.Unlock()
}

// Resume clears Pause and wakes the loop.
func (w *Worker) Resume() {
	w.mu.Lock()
	w.paused = false
	w.mu.Unlock()
	w.Nudge()
}

// Nudge interrupts whatever sleep the loop is in.
func (w *Worker) Nudge() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Running reports whether the loop is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Settings loads the persisted settings over the configured defaults.
func (w *Worker) Settings(ctx context.Context) (connect.Settings, error) {
	s := w.cfg.Defaults
	if _, err := w.store.GetJSONSetting(ctx, store.ConnectSettingsKey, &s); err != nil {
		return w.cfg.Defaults.Normalize(), fmt.Errorf("load connect settings: %w", err)
	}
	return s.Normalize(), nil
}

// UpdateSettings merges u into the current settings and persists the result.
func (w *Worker) UpdateSettings(ctx context.Context, u connect.Update) (connect.Settings, error) {
	cur, err := w.Settings(ctx)
	if err != nil {
		return connect.Settings{}, err
	}
	next := cur.Merge(u)
	if err := w.store.SetJSONSetting(ctx, store.ConnectSettingsKey, next); err != nil {
		return connect.Settings{}, fmt.Errorf("save connect settings: %w", err)
	}
	w.logger.Info("connect settings updated",
		zap.Int("daily_limit", next.DailyLimit),
		zap.Float64("min_delay_seconds", next.MinDelaySeconds),
		zap.Float64("max_delay_seconds", next.MaxDelaySeconds),
		zap.Bool("business_hours_only", next.BusinessHoursOnly),
	)
	w.Nudge()
	return next, nil
}

// Retry re-enqueues a lead. When a row became pending the loop is started if
// needed and woken.
func (w *Worker) Retry(ctx context.Context, leadID int64, note string) (int, error) {
	added, err := w.store.Enqueue(ctx, []int64{leadID}, note)
	if err != nil {
		return 0, fmt.Errorf("retry lead %d: %w", leadID, err)
	}
	if added > 0 {
		w.Start(ctx)
		w.Nudge()
	}
	return added, nil
}

// Status reports the loop state. The day's send count comes from the store.
func (w *Worker) Status(ctx context.Context) (Status, error) {
	w.mu.Lock()
	st := Status{Running: w.running, Paused: w.paused, LastSent: w.lastSent}
	w.mu.Unlock()

	settings, err := w.Settings(ctx)
	if err != nil {
		return Status{}, err
	}
	sent, err := w.store.SentCountForLocalDay(ctx, w.clock.Now())
	if err != nil {
		return Status{}, fmt.Errorf("count sends today: %w", err)
	}
	w.mu.Lock()
	w.sentToday = sent
	w.mu.Unlock()
	queue, err := w.store.QueueStats(ctx)
	if err != nil {
		return Status{}, err
	}
	st.SendsToday = sent
	st.Settings = settings
	st.BusinessStart = settings.BusinessStart()
	st.BusinessEnd = settings.BusinessEnd()
	st.Queue = queue
	return st, nil
}

func (w *Worker) run(ctx context.Context, gen int, prev <-chan struct{}, done chan struct{}) {
	defer func() {
		w.mu.Lock()
		if w.gen == gen {
			w.running = false
		}
		w.mu.Unlock()
		close(done)
		w.logger.Info("connect worker stopped")
	}()
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return
		}
	}
	for ctx.Err() == nil {
		wait := w.iterate(ctx)
		if !w.sleep(ctx, wait) {
			return
		}
	}
}

// iterate runs one loop body. Unexpected errors and panics become the error
// backoff.
func (w *Worker) iterate(ctx context.Context) (wait time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("connect worker iteration panicked", zap.Any("panic", r))
			wait = w.cfg.ErrorBackoff
		}
	}()
	wait, err := w.step(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		w.logger.Error("connect worker iteration failed", zap.Error(err))
		return w.cfg.ErrorBackoff
	}
	return wait
}

func (w *Worker) step(ctx context.Context) (time.Duration, error) {
	now := w.clock.Now()
	if err := w.syncSent(ctx, now); err != nil {
		return 0, err
	}
	if w.isPaused() {
		return w.cfg.PausedPoll, nil
	}
	settings, err := w.Settings(ctx)
	if err != nil {
		return 0, err
	}
	if settings.BusinessHoursOnly && !settings.InBusinessHours(now) {
		return w.cfg.OffHoursPoll, nil
	}
	if w.sentCount() >= settings.DailyLimit {
		return w.cfg.CapPoll, nil
	}
	item, err := w.store.NextPending(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return w.cfg.IdlePoll, nil
	}
	if err != nil {
		return 0, err
	}
	if err := w.process(ctx, item); err != nil {
		return 0, err
	}
	w.refreshGauges(ctx)
	return w.delay(settings), nil
}

// process sends one item and records the outcome. The send runs to
// completion even if the loop is stopped meanwhile.
func (w *Worker) process(ctx context.Context, item store.QueueItem) error {
	sendCtx := context.WithoutCancel(ctx)
	log := w.logger.With(zap.Int64("queue_id", item.ID), zap.String("profile", item.ProfileURL))
	log.Info("sending connect request", zap.String("name", item.FullName))

	var out connect.Outcome
	err := w.locker.Do(sendCtx, "connect_send", func(c context.Context) error {
		out = w.sender.Send(c, item.ProfileURL, lead.Value(item.Note))
		return nil
	})
	if err != nil {
		out = connect.Outcome{Reason: err.Error()}
	}

	if out.Sent {
		w.mu.Lock()
		w.sentToday++
		w.lastSent = item.FullName
		w.mu.Unlock()
		metrics.ObserveSend("sent")
		log.Info("connect request sent", zap.String("path", out.Path), zap.Bool("already_connected", out.AlreadyConnected))
		return w.store.MarkConnect(sendCtx, item.ID, store.QueueSent, "")
	}

	reason := out.Reason
	if reason == "" {
		reason = DefaultFailureReason
	}
	metrics.ObserveSend("failed")
	log.Warn("connect request failed", zap.String("reason", reason), zap.String("path", out.Path))
	return w.store.MarkConnect(sendCtx, item.ID, store.QueueFailed, reason)
}

// syncSent re-derives the local day's send count from the store. Rows can
// disappear under the loop (lead deletion, clear), so memory is never
// trusted across iterations.
func (w *Worker) syncSent(ctx context.Context, now time.Time) error {
	day := now.Format(time.DateOnly)
	n, err := w.store.SentCountForLocalDay(ctx, now)
	if err != nil {
		return fmt.Errorf("count sends for %s: %w", day, err)
	}
	w.mu.Lock()
	rolled := w.day != day
	w.day = day
	w.sentToday = n
	w.mu.Unlock()
	metrics.SetSendsToday(n)
	if rolled {
		w.logger.Debug("send day rolled", zap.String("day", day), zap.Int("sent", n))
	}
	return nil
}

func (w *Worker) refreshGauges(ctx context.Context) {
	metrics.SetSendsToday(w.sentCount())
	if stats, err := w.store.QueueStats(ctx); err == nil {
		metrics.SetQueueDepth(stats.Pending, stats.Sent, stats.Failed)
	}
}

func (w *Worker) isPaused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

func (w *Worker) sentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sentToday
}

// sleep waits d unless nudged. A nudge left over from before the sleep
// began is discarded. It reports false when ctx ended.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-w.wake:
	default:
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-w.wake:
		return true
	case <-timer.C:
		return true
	}
}
