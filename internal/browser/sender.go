package browser

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/connect"
)

// Sender opens a browser session per request and runs the send flow in it.
// The caller holds the coordinator around Send.
type Sender struct {
	launcher  *Launcher
	flow      *connect.Flow
	snapshots Snapshotter
	headless  bool
	logger    *zap.Logger
}

// NewSender binds a flow to the launcher.
func NewSender(launcher *Launcher, flow *connect.Flow, snapshots Snapshotter, headless bool, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		launcher:  launcher,
		flow:      flow,
		snapshots: snapshots,
		headless:  headless,
		logger:    logger.Named("sender"),
	}
}

// Send drives one connect request. A browser that fails to start is a failed
// outcome like any other.
func (s *Sender) Send(ctx context.Context, profileURL, note string) connect.Outcome {
	sess, err := s.launcher.Open(ctx, s.headless)
	if err != nil {
		s.logger.Warn("browser unavailable for send", zap.String("profile", profileURL), zap.Error(err))
		return connect.Outcome{Reason: err.Error()}
	}
	defer sess.Close()
	return s.flow.Send(ctx, NewPage(sess, s.snapshots, s.logger), profileURL, note)
}
