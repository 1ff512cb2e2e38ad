package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factory-monitor/internal/activity/application/events"
	activity "factory-monitor/internal/activity/domain"
	"factory-monitor/internal/activity/infrastructure/memory"
	"factory-monitor/internal/eventing"
)

var now = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return now }

func float(v float64) *float64 { return &v }

func count(v int64) *int64 { return &v }

func validInput(ts string) EventInput {
	return EventInput{
		Timestamp:     ts,
		WorkerID:      "W1",
		WorkstationID: "S1",
		EventType:     "working",
		Confidence:    float(0.93),
	}
}

func newIngestService(t *testing.T, store activity.EventStore, opts ...IngestOption) *IngestService {
	t.Helper()
	seq := 0
	opts = append([]IngestOption{WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("evt-%d", seq)
	})}, opts...)
	svc, err := NewIngestService(store, fixedClock{}, nil, opts...)
	require.NoError(t, err)
	return svc
}

func TestIngest_StoresAndPublishes(t *testing.T) {
	store := memory.NewStore()
	bus := eventing.NewInMemoryBus()
	var published []events.EventIngested
	eventing.Subscribe(bus, func(_ context.Context, msg events.EventIngested) error {
		published = append(published, msg)
		return nil
	})
	svc := newIngestService(t, store, WithPublisher(bus))

	res, err := svc.Ingest(context.Background(), validInput("2026-01-15T10:00:00.123456Z"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "evt-1", res.Event.ID)
	assert.Equal(t, now, res.Event.CreatedAt)
	assert.Equal(t, time.Date(2026, 1, 15, 10, 0, 0, 123000000, time.UTC), res.Event.Timestamp)
	assert.Equal(t, int64(1), res.Event.Count)
	assert.NotEmpty(t, res.Event.Fingerprint)

	require.Len(t, published, 1)
	assert.Equal(t, "evt-1", published[0].EventID)
	assert.Equal(t, "working", published[0].EventType)
}

func TestIngest_DuplicateIsNoOp(t *testing.T) {
	store := memory.NewStore()
	svc := newIngestService(t, store)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, validInput("2026-01-15T10:00:00Z"))
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, validInput("2026-01-15T10:00:00.000Z"))
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Event.ID, second.Event.ID)
	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestIngest_DifferentTimestampsAreBothStored(t *testing.T) {
	store := memory.NewStore()
	svc := newIngestService(t, store)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, validInput("2026-01-15T10:00:00Z"))
	require.NoError(t, err)
	res, err := svc.Ingest(ctx, validInput("2026-01-15T10:00:02Z"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestIngest_ValidationErrors(t *testing.T) {
	svc := newIngestService(t, memory.NewStore())

	_, err := svc.Ingest(context.Background(), EventInput{
		Timestamp:  "yesterday",
		EventType:  "sleeping",
		Confidence: float(1.5),
		Count:      count(-1),
	})
	var verr *activity.ValidationError
	require.ErrorAs(t, err, &verr)

	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{"timestamp", "worker_id", "workstation_id", "event_type", "confidence", "count"} {
		assert.True(t, fields[want], "missing field error for %s", want)
	}
}

func TestIngest_ExplicitZeroCountIsKept(t *testing.T) {
	svc := newIngestService(t, memory.NewStore())
	input := validInput("2026-01-15T10:00:00Z")
	input.EventType = "product_count"
	input.Count = count(0)

	res, err := svc.Ingest(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Event.Count)
}

func rawEvent(t *testing.T, ts, eventType string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"timestamp":      ts,
		"worker_id":      "W2",
		"workstation_id": "S3",
		"event_type":     eventType,
		"confidence":     0.9,
	})
	require.NoError(t, err)
	return raw
}

func TestIngestBatch_CountsOutcomes(t *testing.T) {
	store := memory.NewStore()
	svc := newIngestService(t, store)
	ctx := context.Background()

	for _, ts := range []string{"2026-01-15T09:00:00Z", "2026-01-15T09:05:00Z"} {
		var input EventInput
		require.NoError(t, json.Unmarshal(rawEvent(t, ts, "working"), &input))
		_, err := svc.Ingest(ctx, input)
		require.NoError(t, err)
	}

	items := []json.RawMessage{
		rawEvent(t, "2026-01-15T09:00:00Z", "working"),
		rawEvent(t, "2026-01-15T09:05:00Z", "working"),
		rawEvent(t, "2026-01-15T09:10:00Z", "teleporting"),
	}
	for i := 0; i < 7; i++ {
		items = append(items, rawEvent(t, fmt.Sprintf("2026-01-15T10:%02d:00Z", i*5), "idle"))
	}

	result := svc.IngestBatch(ctx, items)
	assert.Equal(t, 7, result.Success)
	assert.Equal(t, 2, result.Duplicates)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.ErrorsList, 1)
	assert.Equal(t, 2, result.ErrorsList[0].Index)
	assert.Contains(t, result.ErrorsList[0].Error, "event_type")
}

func TestIngestBatch_MalformedItemDoesNotAbort(t *testing.T) {
	svc := newIngestService(t, memory.NewStore())

	result := svc.IngestBatch(context.Background(), []json.RawMessage{
		json.RawMessage(`"not an object"`),
		rawEvent(t, "2026-01-15T09:00:00Z", "absent"),
	})
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 0, result.ErrorsList[0].Index)
}

type stubGuard struct {
	claimed bool
	err     error
}

func (g stubGuard) Claim(context.Context, string) (bool, error) { return g.claimed, g.err }

func (stubGuard) Release(context.Context, string) error { return nil }

func TestIngest_HeldClaimWithoutRecordIsRetryable(t *testing.T) {
	store := memory.NewStore()
	svc := newIngestService(t, store, WithFingerprintGuard(stubGuard{claimed: false}))

	res, err := svc.Ingest(context.Background(), validInput("2026-01-15T10:00:00Z"))
	require.Error(t, err)
	assert.True(t, activity.IsRetryable(err))
	assert.False(t, res.Duplicate)
	total, _ := store.Count(context.Background())
	assert.Equal(t, int64(0), total)
}

func TestIngest_HeldClaimWithRecordIsDuplicate(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	first, err := newIngestService(t, store).Ingest(ctx, validInput("2026-01-15T10:00:00Z"))
	require.NoError(t, err)

	svc := newIngestService(t, store, WithFingerprintGuard(stubGuard{claimed: false}))
	res, err := svc.Ingest(ctx, validInput("2026-01-15T10:00:00Z"))
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, first.Event.ID, res.Event.ID)
}

func TestIngest_GuardFailureFallsBack(t *testing.T) {
	store := memory.NewStore()
	svc := newIngestService(t, store, WithFingerprintGuard(stubGuard{err: errors.New("redis down")}))

	res, err := svc.Ingest(context.Background(), validInput("2026-01-15T10:00:00Z"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	total, _ := store.Count(context.Background())
	assert.Equal(t, int64(1), total)
}

type unavailableStore struct {
	*memory.Store
}

func (unavailableStore) FindByFingerprint(context.Context, string, time.Time, time.Duration) (*activity.Event, error) {
	return nil, fmt.Errorf("%w: connection refused", activity.ErrStoreUnavailable)
}

func TestIngest_StoreUnavailable(t *testing.T) {
	svc := newIngestService(t, unavailableStore{memory.NewStore()})

	_, err := svc.Ingest(context.Background(), validInput("2026-01-15T10:00:00Z"))
	assert.True(t, activity.IsRetryable(err))
}

func TestNewIngestService_RequiresDependencies(t *testing.T) {
	_, err := NewIngestService(nil, fixedClock{}, nil)
	assert.Error(t, err)
	_, err = NewIngestService(memory.NewStore(), nil, nil)
	assert.Error(t, err)
}
