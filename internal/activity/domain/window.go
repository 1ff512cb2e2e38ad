package activity

import "time"

// Window is a half-open [Start, End) range. A zero bound is open.
type Window struct {
	Start time.Time
	End   time.Time
}

// HasStart reports whether the window has an explicit start.
func (w Window) HasStart() bool { return !w.Start.IsZero() }

// HasEnd reports whether the window has an explicit end.
func (w Window) HasEnd() bool { return !w.End.IsZero() }

// EffectiveEnd resolves an open end to now.
func (w Window) EffectiveEnd(now time.Time) time.Time {
	if w.HasEnd() {
		return w.End
	}
	return now
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	if w.HasStart() && ts.Before(w.Start) {
		return false
	}
	if w.HasEnd() && !ts.Before(w.End) {
		return false
	}
	return true
}

// Validate rejects windows whose end is not after their start.
func (w Window) Validate() error {
	if w.HasStart() && w.HasEnd() && !w.End.After(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}
