package snapshot

import (
	"errors"
	"fmt"
	"time"
)

// TargetLayout is how targets are written on the command line, always in UTC.
const TargetLayout = "2006-01-02 15:04:05"

// DefaultHour is the hour of day (UTC) snapshots are taken at by default.
const DefaultHour = 10

// ErrFutureTarget is returned by ParseTarget for instants after now.
var ErrFutureTarget = errors.New("snapshot target is in the future")

// DefaultTarget returns today at DefaultHour UTC, or yesterday's if that is still ahead of now.
func DefaultTarget(now time.Time) time.Time {
	now = now.UTC()
	t := time.Date(now.Year(), now.Month(), now.Day(), DefaultHour, 0, 0, 0, time.UTC)
	if t.After(now) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// ParseTarget parses s as a UTC instant; an empty s yields DefaultTarget(now).
func ParseTarget(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return DefaultTarget(now), nil
	}
	t, err := time.ParseInLocation(TargetLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse target %q (want %q): %w", s, TargetLayout, err)
	}
	if t.After(now) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrFutureTarget, t.Format(TargetLayout))
	}
	return t, nil
}
