package events

import "time"

// EventIngested is raised after a new activity event is stored.
type EventIngested struct {
	EventID       string    `json:"event_id"`
	WorkerID      string    `json:"worker_id"`
	WorkstationID string    `json:"workstation_id"`
	EventType     string    `json:"event_type"`
	Count         int64     `json:"count"`
	Timestamp     time.Time `json:"timestamp"`
	OccurredAt    time.Time `json:"occurred_at"`
}
