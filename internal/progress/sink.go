package progress

import "context"

// Sink consumes batches of run events. Consume may be called repeatedly and
// must honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes single events. Hub satisfies it, so the runner does not
// care how events are buffered.
type Emitter interface {
	Emit(evt Event)
}
