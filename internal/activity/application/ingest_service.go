package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"factory-monitor/internal/activity/application/events"
	activity "factory-monitor/internal/activity/domain"
)

// DefaultDedupTolerance is the window around a timestamp searched for duplicates.
const DefaultDedupTolerance = time.Second

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Publisher delivers application messages.
type Publisher interface {
	Publish(ctx context.Context, message any) error
}

// FingerprintGuard claims a fingerprint before the read-then-write duplicate check.
// Claim returns false when another submission holds the claim. Release drops a
// claim whose submission did not reach the store.
type FingerprintGuard interface {
	Claim(ctx context.Context, fingerprint string) (bool, error)
	Release(ctx context.Context, fingerprint string) error
}

const releaseTimeout = 2 * time.Second

// IngestResult is the outcome of one ingestion.
type IngestResult struct {
	Event     activity.Event
	Duplicate bool
}

// BatchItemError describes one failed batch item.
type BatchItemError struct {
	Index int             `json:"index"`
	Event json.RawMessage `json:"event"`
	Error string          `json:"error"`
}

// BatchResult accumulates batch ingestion outcomes.
type BatchResult struct {
	Success    int              `json:"success"`
	Duplicates int              `json:"duplicates"`
	Errors     int              `json:"errors"`
	ErrorsList []BatchItemError `json:"errors_list"`
}

// IngestService validates, deduplicates and stores activity events.
type IngestService struct {
	store     activity.EventStore
	guard     FingerprintGuard
	bus       Publisher
	clock     Clock
	logger    *zap.Logger
	tolerance time.Duration
	timeout   time.Duration
	newID     func() string
}

// IngestOption configures the ingest service.
type IngestOption func(*IngestService)

// WithFingerprintGuard enables the concurrent-duplicate guard.
func WithFingerprintGuard(guard FingerprintGuard) IngestOption {
	return func(s *IngestService) {
		s.guard = guard
	}
}

// WithPublisher publishes EventIngested after each insert.
func WithPublisher(bus Publisher) IngestOption {
	return func(s *IngestService) {
		s.bus = bus
	}
}

// WithDedupTolerance overrides the duplicate search tolerance.
func WithDedupTolerance(tolerance time.Duration) IngestOption {
	return func(s *IngestService) {
		if tolerance >= 0 {
			s.tolerance = tolerance
		}
	}
}

// WithStoreTimeout bounds every store call made for one event.
func WithStoreTimeout(timeout time.Duration) IngestOption {
	return func(s *IngestService) {
		s.timeout = timeout
	}
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(fn func() string) IngestOption {
	return func(s *IngestService) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewIngestService constructs an IngestService.
func NewIngestService(store activity.EventStore, clock Clock, logger *zap.Logger, opts ...IngestOption) (*IngestService, error) {
	if store == nil {
		return nil, errors.New("ingest: nil event store")
	}
	if clock == nil {
		return nil, errors.New("ingest: nil clock")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &IngestService{
		store:     store,
		clock:     clock,
		logger:    logger,
		tolerance: DefaultDedupTolerance,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ingest validates input and stores it unless a duplicate already exists.
func (s *IngestService) Ingest(ctx context.Context, input EventInput) (IngestResult, error) {
	event, err := input.Validate()
	if err != nil {
		return IngestResult{}, err
	}
	return s.ingestEvent(ctx, event)
}

// IngestBatch ingests every item independently. Failures are enumerated, never returned.
func (s *IngestService) IngestBatch(ctx context.Context, items []json.RawMessage) BatchResult {
	result := BatchResult{ErrorsList: []BatchItemError{}}
	for idx, raw := range items {
		res, err := s.ingestRaw(ctx, raw)
		if err != nil {
			result.Errors++
			result.ErrorsList = append(result.ErrorsList, BatchItemError{
				Index: idx,
				Event: raw,
				Error: err.Error(),
			})
			s.logger.Debug("batch item rejected", zap.Int("index", idx), zap.Error(err))
			continue
		}
		if res.Duplicate {
			result.Duplicates++
			continue
		}
		result.Success++
	}
	return result
}

func (s *IngestService) ingestRaw(ctx context.Context, raw json.RawMessage) (IngestResult, error) {
	input, err := DecodeEventInput(raw)
	if err != nil {
		return IngestResult{}, err
	}
	return s.Ingest(ctx, input)
}

func (s *IngestService) ingestEvent(ctx context.Context, event activity.Event) (IngestResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	claimed := false
	if s.guard != nil {
		ok, err := s.guard.Claim(ctx, event.Fingerprint)
		switch {
		case err != nil:
			s.logger.Warn("fingerprint guard unavailable, continuing unguarded",
				zap.String("fingerprint", event.Fingerprint),
				zap.Error(err),
			)
		case !ok:
			existing, err := s.store.FindByFingerprint(ctx, event.Fingerprint, event.Timestamp, s.tolerance)
			if err != nil {
				return IngestResult{}, err
			}
			if existing != nil {
				return IngestResult{Event: *existing, Duplicate: true}, nil
			}
			// the holder has not stored the event yet, or failed to
			return IngestResult{}, fmt.Errorf("%w: fingerprint %s claimed by an in-flight submission",
				activity.ErrStoreUnavailable, event.Fingerprint)
		default:
			claimed = true
		}
	}

	stored, err := s.store.FindByFingerprint(ctx, event.Fingerprint, event.Timestamp, s.tolerance)
	if err != nil {
		s.release(ctx, claimed, event.Fingerprint)
		return IngestResult{}, err
	}
	if stored != nil {
		return IngestResult{Event: *stored, Duplicate: true}, nil
	}

	event.ID = s.newID()
	event.CreatedAt = s.clock.Now().UTC()
	if err := s.store.Insert(ctx, event); err != nil {
		s.release(ctx, claimed, event.Fingerprint)
		return IngestResult{}, err
	}

	if s.bus != nil {
		msg := events.EventIngested{
			EventID:       event.ID,
			WorkerID:      event.WorkerID,
			WorkstationID: event.WorkstationID,
			EventType:     string(event.Type),
			Count:         event.Count,
			Timestamp:     event.Timestamp,
			OccurredAt:    event.CreatedAt,
		}
		if err := s.bus.Publish(ctx, msg); err != nil {
			s.logger.Warn("publish event ingested failed", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
	return IngestResult{Event: event}, nil
}

func (s *IngestService) release(ctx context.Context, claimed bool, fingerprint string) {
	if !claimed {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.guard.Release(ctx, fingerprint); err != nil {
		s.logger.Warn("fingerprint release failed", zap.String("fingerprint", fingerprint), zap.Error(err))
	}
}
