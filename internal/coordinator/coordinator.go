// Package coordinator guards the single on-disk browser profile. Every
// operation that drives a browser holds the Coordinator for its full duration.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/metrics"
)

// Coordinator is a size-1 semaphore. Acquisition order is whatever the Go
// scheduler picks among waiters; only exclusivity is guaranteed.
type Coordinator struct {
	slot   chan struct{}
	logger *zap.Logger
}

// New constructs an idle Coordinator.
func New(logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		slot:   make(chan struct{}, 1),
		logger: logger.Named("coordinator"),
	}
}

// Acquire blocks until the profile is free or ctx is done.
func (c *Coordinator) Acquire(ctx context.Context) error {
	select {
	case c.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser profile wait canceled: %w", ctx.Err())
	}
}

// Release frees the profile. Releasing an idle Coordinator is a no-op.
func (c *Coordinator) Release() {
	select {
	case <-c.slot:
	default:
	}
}

// Held reports whether some operation currently holds the profile.
func (c *Coordinator) Held() bool {
	return len(c.slot) == 1
}

// Do runs fn while holding the profile and records wait and hold durations
// under the operation label.
func (c *Coordinator) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	waitStart := time.Now()
	if err := c.Acquire(ctx); err != nil {
		return err
	}
	defer c.Release()

	wait := time.Since(waitStart)
	metrics.ObserveBrowserWait(operation, wait)
	if wait > time.Second {
		c.logger.Debug("browser profile acquired after wait",
			zap.String("operation", operation),
			zap.Duration("wait", wait),
		)
	}

	holdStart := time.Now()
	defer func() {
		metrics.ObserveBrowserHold(operation, time.Since(holdStart))
	}()
	return fn(ctx)
}
