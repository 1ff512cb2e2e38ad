package reconstruction

import (
	"errors"
	"sort"
	"strings"
	"time"

	activity "factory-monitor/internal/activity/domain"
)

// ProductCountMode controls how product_count events affect state intervals.
type ProductCountMode string

const (
	// ModeState treats product_count as a state of its own: the interval that follows one
	// accumulates into neither active nor idle time.
	ModeState ProductCountMode = "state"
	// ModeAnnotation treats product_count as a counter only; the previous state continues.
	ModeAnnotation ProductCountMode = "annotation"
)

// ErrInvalidMode is returned for an unknown product count mode.
var ErrInvalidMode = errors.New("reconstruction: invalid product count mode")

// ParseMode parses a mode name. Empty selects ModeState.
func ParseMode(value string) (ProductCountMode, error) {
	switch ProductCountMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeState:
		return ModeState, nil
	case ModeAnnotation:
		return ModeAnnotation, nil
	default:
		return "", ErrInvalidMode
	}
}

// Result holds accumulated durations and production for one entity over one window.
type Result struct {
	ActiveMinutes   float64
	IdleMinutes     float64
	OccupiedMinutes float64
	UnitsProduced   int64
	EventCount      int
	FirstEventAt    time.Time
	LastEventAt     time.Time
}

// Empty reports whether no events were reconstructed.
func (r Result) Empty() bool { return r.EventCount == 0 }

// Utilization is active time as a percentage of active plus idle time.
func (r Result) Utilization() float64 {
	return Utilization(r.ActiveMinutes, r.IdleMinutes)
}

// UnitsPerHour is production per hour of active time.
func (r Result) UnitsPerHour() float64 {
	return PerHour(r.UnitsProduced, r.ActiveMinutes)
}

// ThroughputRate is production per hour of occupied time.
func (r Result) ThroughputRate() float64 {
	return PerHour(r.UnitsProduced, r.OccupiedMinutes)
}

// Engine converts point-in-time events into continuous state intervals.
type Engine struct {
	mode ProductCountMode
}

// NewEngine constructs an engine. An empty mode selects ModeState.
func NewEngine(mode ProductCountMode) (*Engine, error) {
	if mode == "" {
		mode = ModeState
	}
	if mode != ModeState && mode != ModeAnnotation {
		return nil, ErrInvalidMode
	}
	return &Engine{mode: mode}, nil
}

// Mode returns the configured product count mode.
func (e *Engine) Mode() ProductCountMode { return e.mode }

// Reconstruct scans the events of one entity. Each state event opens an interval that lasts until
// the next state event, the last one until end. The input slice is not modified.
func (e *Engine) Reconstruct(events []activity.Event, end time.Time) Result {
	if len(events) == 0 {
		return Result{}
	}

	ordered := make([]activity.Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool { return activity.Less(ordered[i], ordered[j]) })

	result := Result{
		EventCount:   len(ordered),
		FirstEventAt: ordered[0].Timestamp,
		LastEventAt:  ordered[len(ordered)-1].Timestamp,
	}

	var (
		open      bool
		lastTS    time.Time
		lastState activity.EventType
	)
	for _, ev := range ordered {
		if ev.Type == activity.EventProductCount {
			result.UnitsProduced += ev.Count
			if e.mode == ModeAnnotation {
				continue
			}
		}
		if open {
			result.accumulate(lastState, minutesBetween(lastTS, ev.Timestamp))
		}
		open = true
		lastTS = ev.Timestamp
		lastState = ev.Type
	}
	if open {
		result.accumulate(lastState, minutesBetween(lastTS, end))
	}
	return result
}

func (r *Result) accumulate(state activity.EventType, minutes float64) {
	switch state {
	case activity.EventWorking:
		r.ActiveMinutes += minutes
	case activity.EventIdle:
		r.IdleMinutes += minutes
	}
	if state != activity.EventAbsent {
		r.OccupiedMinutes += minutes
	}
}

// minutesBetween never goes negative; events past the window end contribute nothing.
func minutesBetween(from, to time.Time) float64 {
	delta := to.Sub(from)
	if delta <= 0 {
		return 0
	}
	return delta.Minutes()
}
