// Package connect holds the outbound connect-request logic: scheduler
// settings, business-hours windows, human-like jitter, the connect-action
// classifier and the send-flow state machine.
package connect

import (
	"fmt"
	"time"
)

// Bounds enforced by Normalize.
const (
	MinDailyLimit   = 1
	MinDelaySeconds = 5.0
	MaxHour         = 23
)

// Settings control the connect scheduler. They are persisted as JSON and
// reloaded on every loop iteration.
type Settings struct {
	DailyLimit        int     `json:"daily_limit" mapstructure:"daily_limit"`
	MinDelaySeconds   float64 `json:"min_delay_seconds" mapstructure:"min_delay_seconds"`
	MaxDelaySeconds   float64 `json:"max_delay_seconds" mapstructure:"max_delay_seconds"`
	BusinessHoursOnly bool    `json:"business_hours_only" mapstructure:"business_hours_only"`
	BizStartHour      int     `json:"biz_start_hour" mapstructure:"biz_start_hour"`
	BizEndHour        int     `json:"biz_end_hour" mapstructure:"biz_end_hour"`
}

// DefaultSettings returns the conservative defaults.
func DefaultSettings() Settings {
	return Settings{
		DailyLimit:      10,
		MinDelaySeconds: 90,
		MaxDelaySeconds: 300,
		BizStartHour:    9,
		BizEndHour:      17,
	}
}

// Normalize clamps every field into its valid range.
func (s Settings) Normalize() Settings {
	if s.DailyLimit < MinDailyLimit {
		s.DailyLimit = MinDailyLimit
	}
	if s.MinDelaySeconds < MinDelaySeconds {
		s.MinDelaySeconds = MinDelaySeconds
	}
	if s.MaxDelaySeconds < s.MinDelaySeconds {
		s.MaxDelaySeconds = s.MinDelaySeconds
	}
	s.BizStartHour = clampHour(s.BizStartHour)
	s.BizEndHour = clampHour(s.BizEndHour)
	return s
}

// Update is a partial settings change. Nil fields keep their current value.
type Update struct {
	DailyLimit        *int     `json:"daily_limit,omitempty"`
	MinDelaySeconds   *float64 `json:"min_delay_seconds,omitempty"`
	MaxDelaySeconds   *float64 `json:"max_delay_seconds,omitempty"`
	BusinessHoursOnly *bool    `json:"business_hours_only,omitempty"`
	BizStartHour      *int     `json:"biz_start_hour,omitempty"`
	BizEndHour        *int     `json:"biz_end_hour,omitempty"`
}

// Merge applies u on top of s and normalizes the result.
func (s Settings) Merge(u Update) Settings {
	if u.DailyLimit != nil {
		s.DailyLimit = *u.DailyLimit
	}
	if u.MinDelaySeconds != nil {
		s.MinDelaySeconds = *u.MinDelaySeconds
	}
	if u.MaxDelaySeconds != nil {
		s.MaxDelaySeconds = *u.MaxDelaySeconds
	}
	if u.BusinessHoursOnly != nil {
		s.BusinessHoursOnly = *u.BusinessHoursOnly
	}
	if u.BizStartHour != nil {
		s.BizStartHour = *u.BizStartHour
	}
	if u.BizEndHour != nil {
		s.BizEndHour = *u.BizEndHour
	}
	return s.Normalize()
}

// InBusinessHours reports whether now's wall-clock time falls inside the
// configured window. Both ends are inclusive at the top of the hour, and a
// start after the end describes a window that crosses midnight.
func (s Settings) InBusinessHours(now time.Time) bool {
	start := time.Duration(s.BizStartHour) * time.Hour
	end := time.Duration(s.BizEndHour) * time.Hour
	h, m, sec := now.Clock()
	t := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second
	if start <= end {
		return start <= t && t <= end
	}
	return t >= start || t <= end
}

// BusinessStart formats the window start as HH:MM.
func (s Settings) BusinessStart() string {
	return fmt.Sprintf("%02d:00", s.BizStartHour)
}

// BusinessEnd formats the window end as HH:MM.
func (s Settings) BusinessEnd() string {
	return fmt.Sprintf("%02d:00", s.BizEndHour)
}

// MinDelay is the lower jitter bound.
func (s Settings) MinDelay() time.Duration {
	return seconds(s.MinDelaySeconds)
}

// MaxDelay is the upper jitter bound.
func (s Settings) MaxDelay() time.Duration {
	return seconds(s.MaxDelaySeconds)
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func clampHour(h int) int {
	if h < 0 {
		return 0
	}
	if h > MaxHour {
		return MaxHour
	}
	return h
}
