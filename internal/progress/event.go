package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StagePage     Stage = "RUN_PAGE"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
)

// Event captures one step of a crawl run.
type Event struct {
	// RunID is the run's correlation id in 16-byte UUID form.
	RunID [16]byte
	// AuditID is the scrape_runs row id, zero when the run has no audit row.
	AuditID int64
	// TS is when the emitter observed the step.
	TS time.Time
	Stage Stage
	// Source is the page family being crawled.
	Source string
	URL    string
	// Page is the page just processed, for StagePage.
	Page int
	// Found is the running lead total.
	Found int
	// Dur is the run's elapsed time on completion events.
	Dur time.Duration
	// Note carries low-volume context such as error text or a stop reason.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StagePage:
		if e.Page < 1 {
			return errors.New("page event requires a page number")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Found < 0 {
		return errors.New("found must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ParseRunID decodes a textual UUID into the Event form.
func ParseRunID(s string) ([16]byte, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return [16]byte{}, fmt.Errorf("parse run id: %w", err)
	}
	return UUIDToBytes(id), nil
}
