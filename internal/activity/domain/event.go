package activity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// EventType is the kind of observation reported by the vision pipeline.
type EventType string

const (
	EventWorking      EventType = "working"
	EventIdle         EventType = "idle"
	EventAbsent       EventType = "absent"
	EventProductCount EventType = "product_count"
)

// EventTypes lists every accepted event type in a stable order.
var EventTypes = []EventType{EventWorking, EventIdle, EventAbsent, EventProductCount}

// IsValid checks if the event type is one of the supported values.
func (t EventType) IsValid() bool {
	switch t {
	case EventWorking, EventIdle, EventAbsent, EventProductCount:
		return true
	default:
		return false
	}
}

// Rank orders event types sharing a timestamp so reconstruction is independent of input order.
func (t EventType) Rank() int {
	switch t {
	case EventWorking:
		return 1
	case EventIdle:
		return 2
	case EventAbsent:
		return 3
	case EventProductCount:
		return 4
	default:
		return 5
	}
}

// fingerprintLayout mirrors ISO-8601 with millisecond precision in UTC.
const fingerprintLayout = "2006-01-02T15:04:05.000Z"

// Event is an immutable activity observation.
type Event struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	WorkerID      string    `json:"worker_id"`
	WorkstationID string    `json:"workstation_id"`
	Type          EventType `json:"event_type"`
	Confidence    float64   `json:"confidence"`
	Count         int64     `json:"count"`
	Fingerprint   string    `json:"fingerprint"`
	CreatedAt     time.Time `json:"created_at"`
}

// NormalizeTimestamp truncates to the millisecond precision used for storage and fingerprints.
func NormalizeTimestamp(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Millisecond)
}

// Fingerprint computes the deterministic duplicate-detection digest of an event.
func Fingerprint(ts time.Time, workerID, workstationID string, eventType EventType, count int64) string {
	raw := fmt.Sprintf("%s_%s_%s_%s_%d",
		NormalizeTimestamp(ts).Format(fingerprintLayout),
		workerID,
		workstationID,
		eventType,
		count,
	)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// WithFingerprint returns a copy of the event with a normalized timestamp and computed fingerprint.
func (e Event) WithFingerprint() Event {
	e.Timestamp = NormalizeTimestamp(e.Timestamp)
	e.Fingerprint = Fingerprint(e.Timestamp, e.WorkerID, e.WorkstationID, e.Type, e.Count)
	return e
}

// Less orders events by timestamp, then type rank, fingerprint and id.
func Less(a, b Event) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.Type.Rank() != b.Type.Rank() {
		return a.Type.Rank() < b.Type.Rank()
	}
	if a.Fingerprint != b.Fingerprint {
		return a.Fingerprint < b.Fingerprint
	}
	return a.ID < b.ID
}
