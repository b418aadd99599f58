package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/progress"
)

// LogSink writes each event to the log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wraps logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the batch. Page events log at debug.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("run_id", evt.RunUUID()),
			zap.Int64("audit_id", evt.AuditID),
			zap.String("stage", string(evt.Stage)),
			zap.String("source", evt.Source),
			zap.Int("found", evt.Found),
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("url", evt.URL))
		}
		if evt.Page > 0 {
			fields = append(fields, zap.Int("page", evt.Page))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		switch evt.Stage {
		case progress.StagePage:
			s.logger.Debug("run progress", fields...)
		case progress.StageRunError:
			s.logger.Warn("run progress", fields...)
		default:
			s.logger.Info("run progress", fields...)
		}
	}
	return nil
}

// Close is a no-op.
func (s *LogSink) Close(context.Context) error {
	return nil
}
