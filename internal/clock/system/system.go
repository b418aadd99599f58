// Package system provides the wall clock.
package system

import "time"

// Clock reads time.Now in a fixed location.
type Clock struct {
	loc *time.Location
}

// New returns a clock in the machine's local zone. Calendar-day and
// business-hour decisions use it.
func New() *Clock {
	return &Clock{loc: time.Local}
}

// NewUTC returns a clock that stamps persisted records.
func NewUTC() *Clock {
	return &Clock{loc: time.UTC}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	if c == nil || c.loc == nil {
		return time.Now()
	}
	return time.Now().In(c.loc)
}
