package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	activity "factory-monitor/internal/activity/domain"
	"factory-monitor/internal/activity/infrastructure/memory"
	"factory-monitor/internal/analytics/domain/reconstruction"
)

var base = time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func event(id string, offset time.Duration, worker, station string, typ activity.EventType, count int64) activity.Event {
	e := activity.Event{
		ID:            id,
		Timestamp:     base.Add(offset),
		WorkerID:      worker,
		WorkstationID: station,
		Type:          typ,
		Confidence:    0.95,
		Count:         count,
	}.WithFingerprint()
	e.CreatedAt = e.Timestamp
	return e
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertEntities(ctx, []activity.Entity{
		{Role: activity.RoleWorker, ID: "W1", DisplayName: "John Smith", Kind: "worker"},
		{Role: activity.RoleWorker, ID: "W2", DisplayName: "Sarah Johnson", Kind: "worker"},
		{Role: activity.RoleWorker, ID: "W3", DisplayName: "Mike Williams", Kind: "worker"},
		{Role: activity.RoleWorkstation, ID: "S1", DisplayName: "Assembly Line 1", Kind: "assembly"},
		{Role: activity.RoleWorkstation, ID: "S2", DisplayName: "Assembly Line 2", Kind: "assembly"},
	}))
	require.NoError(t, store.InsertMany(ctx, []activity.Event{
		event("e1", 0, "W1", "S1", activity.EventWorking, 1),
		event("e2", 10*time.Minute, "W1", "S1", activity.EventIdle, 1),
		event("e3", 20*time.Minute, "W1", "S1", activity.EventWorking, 1),
		event("e4", 5*time.Minute, "W2", "S2", activity.EventWorking, 1),
		event("e5", 15*time.Minute, "W2", "S2", activity.EventProductCount, 3),
		event("e6", 25*time.Minute, "W2", "S2", activity.EventAbsent, 1),
	}))
	return store
}

func newService(t *testing.T, store *memory.Store, now time.Time, opts ...Option) *MetricsService {
	t.Helper()
	engine, err := reconstruction.NewEngine(reconstruction.ModeState)
	require.NoError(t, err)
	svc, err := NewMetricsService(store, store, engine, fixedClock{now: now}, nil, opts...)
	require.NoError(t, err)
	return svc
}

func window30() activity.Window {
	return activity.Window{Start: base, End: base.Add(30 * time.Minute)}
}

func TestWorkerMetrics(t *testing.T) {
	svc := newService(t, seededStore(t), base.Add(time.Hour))

	w1, err := svc.WorkerMetrics(context.Background(), "W1", window30())
	require.NoError(t, err)
	assert.Equal(t, WorkerMetrics{
		WorkerID:              "W1",
		TotalActiveTime:       20,
		TotalIdleTime:         10,
		UtilizationPercentage: 66.67,
	}, w1)

	w2, err := svc.WorkerMetrics(context.Background(), "W2", window30())
	require.NoError(t, err)
	assert.Equal(t, 10.0, w2.TotalActiveTime)
	assert.Equal(t, 100.0, w2.UtilizationPercentage)
	assert.Equal(t, int64(3), w2.TotalUnitsProduced)
	assert.Equal(t, 18.0, w2.UnitsPerHour)
}

func TestWorkerMetrics_WindowEndIsExclusive(t *testing.T) {
	svc := newService(t, seededStore(t), base.Add(time.Hour))

	w1, err := svc.WorkerMetrics(context.Background(), "W1", activity.Window{Start: base, End: base.Add(20 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 10.0, w1.TotalActiveTime)
	assert.Equal(t, 10.0, w1.TotalIdleTime)
	assert.Equal(t, 50.0, w1.UtilizationPercentage)
}

func TestWorkerMetrics_OpenWindowUsesClock(t *testing.T) {
	svc := newService(t, seededStore(t), base.Add(40*time.Minute))

	w1, err := svc.WorkerMetrics(context.Background(), "W1", activity.Window{})
	require.NoError(t, err)
	assert.Equal(t, 30.0, w1.TotalActiveTime)
	assert.Equal(t, 10.0, w1.TotalIdleTime)
	assert.Equal(t, 75.0, w1.UtilizationPercentage)
}

func TestWorkstationMetrics(t *testing.T) {
	svc := newService(t, seededStore(t), base.Add(30*time.Minute))

	s2, err := svc.WorkstationMetrics(context.Background(), "S2", window30())
	require.NoError(t, err)
	assert.Equal(t, WorkstationMetrics{
		StationID:             "S2",
		OccupancyTime:         20,
		UtilizationPercentage: 66.67,
		TotalUnitsProduced:    3,
		ThroughputRate:        9,
	}, s2)

	// Without an explicit start the window begins at the first event.
	open, err := svc.WorkstationMetrics(context.Background(), "S2", activity.Window{})
	require.NoError(t, err)
	assert.Equal(t, 80.0, open.UtilizationPercentage)
}

func TestFactoryMetrics(t *testing.T) {
	svc := newService(t, seededStore(t), base.Add(time.Hour))

	factory, err := svc.FactoryMetrics(context.Background(), window30())
	require.NoError(t, err)
	assert.Equal(t, FactoryMetrics{
		TotalProductiveTime:   30,
		TotalProductionCount:  3,
		AverageProductionRate: 6,
		AverageUtilization:    83.33,
		WorkerCount:           3,
		ActiveWorkers:         2,
	}, factory)
}

func TestAllWorkersAndWorkstations_RosterOrder(t *testing.T) {
	svc := newService(t, seededStore(t), base.Add(time.Hour), WithParallelism(1))

	workers, err := svc.AllWorkers(context.Background(), window30())
	require.NoError(t, err)
	require.Len(t, workers, 3)
	assert.Equal(t, "W1", workers[0].WorkerID)
	assert.Equal(t, "John Smith", workers[0].Name)
	assert.Equal(t, "W3", workers[2].WorkerID)
	assert.Equal(t, WorkerMetrics{WorkerID: "W3", Name: "Mike Williams"}, workers[2])

	stations, err := svc.AllWorkstations(context.Background(), window30())
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "Assembly Line 1", stations[0].Name)
	assert.Equal(t, 100.0, stations[0].UtilizationPercentage)
}

func TestMetrics_ZeroEventsWindow(t *testing.T) {
	svc := newService(t, seededStore(t), base.Add(48*time.Hour))
	empty := activity.Window{Start: base.Add(24 * time.Hour), End: base.Add(25 * time.Hour)}

	w, err := svc.WorkerMetrics(context.Background(), "W1", empty)
	require.NoError(t, err)
	assert.Equal(t, WorkerMetrics{WorkerID: "W1"}, w)

	s, err := svc.WorkstationMetrics(context.Background(), "S1", empty)
	require.NoError(t, err)
	assert.Equal(t, WorkstationMetrics{StationID: "S1"}, s)

	f, err := svc.FactoryMetrics(context.Background(), empty)
	require.NoError(t, err)
	assert.Equal(t, FactoryMetrics{WorkerCount: 3}, f)
}

func TestMetrics_InvalidWindow(t *testing.T) {
	svc := newService(t, seededStore(t), base)
	_, err := svc.FactoryMetrics(context.Background(), activity.Window{Start: base.Add(time.Hour), End: base})
	assert.ErrorIs(t, err, activity.ErrInvalidWindow)
}

type failingStore struct {
	*memory.Store
}

func (failingStore) Query(context.Context, activity.EventQuery) ([]activity.Event, error) {
	return nil, fmt.Errorf("%w: timeout", activity.ErrStoreUnavailable)
}

func TestMetrics_StoreUnavailablePropagates(t *testing.T) {
	store := seededStore(t)
	engine, err := reconstruction.NewEngine(reconstruction.ModeState)
	require.NoError(t, err)
	svc, err := NewMetricsService(failingStore{store}, store, engine, fixedClock{now: base}, nil)
	require.NoError(t, err)

	_, err = svc.AllWorkers(context.Background(), activity.Window{})
	assert.True(t, errors.Is(err, activity.ErrStoreUnavailable))
}

func TestReport_SharesEndInstant(t *testing.T) {
	var (
		mu       sync.Mutex
		observed = map[string]int{}
	)
	svc := newService(t, seededStore(t), base.Add(30*time.Minute), WithReconstructionObserver(func(level string, events int) {
		mu.Lock()
		observed[level] += events
		mu.Unlock()
	}))

	report, err := svc.Report(context.Background(), activity.Window{})
	require.NoError(t, err)
	assert.Equal(t, base.Add(30*time.Minute), report.End)
	assert.Len(t, report.Workers, 3)
	assert.Len(t, report.Workstations, 2)
	assert.Equal(t, 6.0, report.Factory.AverageProductionRate)
	assert.Greater(t, observed[LevelWorker], 0)
	assert.Equal(t, 6, observed[LevelWorkstation])
}

func TestNewMetricsService_RequiresDependencies(t *testing.T) {
	store := memory.NewStore()
	engine, _ := reconstruction.NewEngine(reconstruction.ModeState)
	_, err := NewMetricsService(nil, store, engine, fixedClock{}, nil)
	assert.Error(t, err)
	_, err = NewMetricsService(store, store, nil, fixedClock{}, nil)
	assert.Error(t, err)
	_, err = NewMetricsService(store, store, engine, nil, nil)
	assert.Error(t, err)
}
