package session

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultCheckSchedule is how often the monitor re-checks the session.
const DefaultCheckSchedule = "@every 30m"

// Monitor runs the session check, and any other housekeeping jobs, on cron
// schedules.
type Monitor struct {
	cron    *cron.Cron
	manager *Manager
	spec    string
	ctx     context.Context
	logger  *zap.Logger
}

// NewMonitor builds a stopped Monitor. An empty spec uses the default.
func NewMonitor(manager *Manager, spec string, logger *zap.Logger) *Monitor {
	if spec == "" {
		spec = DefaultCheckSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("monitor")
	cl := cronLogger{logger.Sugar()}
	return &Monitor{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		manager: manager,
		spec:    spec,
		ctx:     context.Background(),
		logger:  logger,
	}
}

// AddJob registers fn under spec. Register jobs before Start; they receive
// the context Start was given.
func (m *Monitor) AddJob(spec, name string, fn func(ctx context.Context)) error {
	if _, err := m.cron.AddFunc(spec, func() {
		m.logger.Debug("job running", zap.String("job", name))
		fn(m.ctx)
	}); err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	return nil
}

// Start registers the session check and starts the scheduler.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx = ctx
	if err := m.AddJob(m.spec, "session_check", m.check); err != nil {
		return err
	}
	m.cron.Start()
	m.logger.Info("monitor started", zap.String("session_check", m.spec), zap.Int("jobs", len(m.cron.Entries())))
	return nil
}

// Stop halts scheduling and returns a context that is done once running jobs
// finish.
func (m *Monitor) Stop() context.Context {
	m.logger.Info("monitor stopping")
	return m.cron.Stop()
}

// Entries reports how many jobs are scheduled.
func (m *Monitor) Entries() int {
	return len(m.cron.Entries())
}

func (m *Monitor) check(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res := m.manager.Check(ctx)
	m.logger.Info("scheduled session check", zap.String("status", string(res.Status)))
}

// cronLogger adapts zap to cron's logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
