package crawler

import (
	"context"
	"fmt"
	"time"
)

// Pauser abstracts how the engine waits out a block cooldown.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration) error
}

// TimerPauser sleeps on a timer and returns early when ctx is done.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is canceled.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("cooldown interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
