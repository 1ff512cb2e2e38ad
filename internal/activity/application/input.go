package application

import (
	"bytes"
	"encoding/json"
	"strings"

	activity "factory-monitor/internal/activity/domain"
)

// DefaultCount is applied when an event omits count.
const DefaultCount int64 = 1

// EventInput is the wire shape of an ingested event.
type EventInput struct {
	Timestamp     string   `json:"timestamp"`
	WorkerID      string   `json:"worker_id"`
	WorkstationID string   `json:"workstation_id"`
	EventType     string   `json:"event_type"`
	Confidence    *float64 `json:"confidence"`
	Count         *int64   `json:"count"`
}

// DecodeEventInput strictly decodes one event object.
func DecodeEventInput(raw []byte) (EventInput, error) {
	var input EventInput
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&input); err != nil {
		return EventInput{}, &activity.ValidationError{Fields: []activity.FieldError{{
			Field:   "body",
			Message: "invalid json: " + err.Error(),
		}}}
	}
	return input, nil
}

// Validate checks every field and builds the event to store.
func (in EventInput) Validate() (activity.Event, error) {
	verr := &activity.ValidationError{}

	ts, err := activity.ParseTimestamp(in.Timestamp)
	if err != nil {
		verr.Add("timestamp", "Valid ISO8601 timestamp required", in.Timestamp)
	}
	workerID := strings.TrimSpace(in.WorkerID)
	if workerID == "" {
		verr.Add("worker_id", "worker_id is required", nil)
	}
	stationID := strings.TrimSpace(in.WorkstationID)
	if stationID == "" {
		verr.Add("workstation_id", "workstation_id is required", nil)
	}
	eventType := activity.EventType(in.EventType)
	if !eventType.IsValid() {
		verr.Add("event_type", "Invalid event_type", in.EventType)
	}
	if in.Confidence == nil {
		verr.Add("confidence", "confidence is required", nil)
	} else if *in.Confidence < 0 || *in.Confidence > 1 {
		verr.Add("confidence", "confidence must be between 0 and 1", *in.Confidence)
	}
	count := DefaultCount
	if in.Count != nil {
		if *in.Count < 0 {
			verr.Add("count", "count must be a non-negative integer", *in.Count)
		}
		count = *in.Count
	}
	if err := verr.OrNil(); err != nil {
		return activity.Event{}, err
	}

	confidence := *in.Confidence
	event := activity.Event{
		Timestamp:     ts,
		WorkerID:      workerID,
		WorkstationID: stationID,
		Type:          eventType,
		Confidence:    confidence,
		Count:         count,
	}
	return event.WithFingerprint(), nil
}
