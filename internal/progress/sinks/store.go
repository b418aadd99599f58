package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/progress"
	"github.com/JakeFAU/linkedin-prospector/internal/store"
)

// RunRepository is the slice of the store the audit sink writes through.
type RunRepository interface {
	UpdateRun(ctx context.Context, id int64, upd store.RunUpdate) error
}

// StoreSink keeps scrape_runs.leads_found current while a run is in flight.
// Events are collapsed to one write per run per batch, the last event
// winning. Terminal status is written by the runner itself; the terminal
// event's count is replayed so a late page write cannot leave a stale total.
type StoreSink struct {
	repo   RunRepository
	logger *zap.Logger
}

// NewStoreSink builds a StoreSink over repo.
func NewStoreSink(repo RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume writes the latest lead count per audited run in batch.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	latest := make(map[int64]int)
	var order []int64
	for _, evt := range batch {
		if evt.Stage == progress.StageRunStart || evt.AuditID == 0 {
			continue
		}
		if _, seen := latest[evt.AuditID]; !seen {
			order = append(order, evt.AuditID)
		}
		latest[evt.AuditID] = evt.Found
	}
	for _, id := range order {
		found := latest[id]
		if err := s.repo.UpdateRun(ctx, id, store.RunUpdate{LeadsFound: &found}); err != nil {
			return fmt.Errorf("update run %d progress: %w", id, err)
		}
		s.logger.Debug("run progress persisted", zap.Int64("audit_id", id), zap.Int("found", found))
	}
	return nil
}

// Close is a no-op.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
