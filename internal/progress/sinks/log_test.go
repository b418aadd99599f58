package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/linkedin-prospector/internal/progress"
)

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))
	runID := progress.UUIDToBytes(uuid.New())

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunStart, Source: "company_people"},
		{RunID: runID, TS: time.Now(), Stage: progress.StagePage, Page: 1, Found: 4},
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunError, Note: "blocked"},
	}))

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, zapcore.DebugLevel, entries[1].Level)
	require.Equal(t, int64(1), entries[1].ContextMap()["page"])
	require.Equal(t, zapcore.WarnLevel, entries[2].Level)
	require.Equal(t, "blocked", entries[2].ContextMap()["note"])
}
