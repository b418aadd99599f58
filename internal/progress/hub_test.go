package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func TestHubDeliversInOrder(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 8}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	for page := 1; page <= 3; page++ {
		evt := sampleEvent(StagePage)
		evt.Page = page
		hub.Emit(evt)
	}
	require.Eventually(t, func() bool {
		return len(sink.Events()) == 3
	}, time.Second, 5*time.Millisecond)
	for i, evt := range sink.Events() {
		require.Equal(t, i+1, evt.Page)
	}
}

func TestHubEmitNonBlockingWhenFull(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		events:  make(chan Event),
		logger:  zap.NewNop(),
		dropLog: &rate.Sometimes{Interval: time.Minute},
	}
	start := time.Now()
	hub.Emit(sampleEvent(StageRunStart))
	hub.Emit(sampleEvent(StageRunStart))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, int64(1), hub.dropped.Load())
}

func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4}, sink)

	hub.Emit(sampleEvent(StageRunStart))
	hub.Emit(sampleEvent(StageRunDone))

	require.NoError(t, hub.Close(context.Background()))
	events := sink.Events()
	require.Len(t, events, 2)
	require.Equal(t, StageRunDone, events[1].Stage)
	require.True(t, sink.Closed())
}

func TestHubDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{Stage: StageRunStart, TS: time.Now()})
	bad := sampleEvent(StagePage)
	bad.Page = 0
	hub.Emit(bad)
	hub.Emit(sampleEvent(StagePage))

	require.NoError(t, hub.Close(context.Background()))
	events := sink.Events()
	require.Len(t, events, 1)
	require.Equal(t, StagePage, events[0].Stage)
}

func TestHubIgnoresEmitAfterClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(sampleEvent(StageRunDone))
	require.Empty(t, sink.Events())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Event)
		wantErr string
	}{
		{name: "ok", mutate: func(*Event) {}},
		{name: "missing run", mutate: func(e *Event) { e.RunID = [16]byte{} }, wantErr: "run id"},
		{name: "missing ts", mutate: func(e *Event) { e.TS = time.Time{} }, wantErr: "timestamp"},
		{name: "bad stage", mutate: func(e *Event) { e.Stage = "FETCH_DONE" }, wantErr: "unknown stage"},
		{name: "no page", mutate: func(e *Event) { e.Page = 0 }, wantErr: "page number"},
		{name: "negative found", mutate: func(e *Event) { e.Found = -1 }, wantErr: "found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			evt := sampleEvent(StagePage)
			tt.mutate(&evt)
			err := evt.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseRunID(t *testing.T) {
	t.Parallel()

	id := uuid.Must(uuid.NewV7())
	got, err := ParseRunID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, Event{RunID: got}.RunUUID())

	_, err = ParseRunID("run-1")
	require.Error(t, err)
}

type stubSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func newStubSink() *stubSink {
	return &stubSink{}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *stubSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func sampleEvent(stage Stage) Event {
	evt := Event{
		RunID:  UUIDToBytes(uuid.Must(uuid.NewV7())),
		TS:     time.Now(),
		Stage:  stage,
		Source: "sales_navigator",
	}
	if stage == StagePage {
		evt.Page = 1
		evt.Found = 25
	}
	return evt
}
