package application

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	activity "factory-monitor/internal/activity/domain"
	"factory-monitor/internal/analytics/domain/reconstruction"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Level names used when reporting reconstruction volume.
const (
	LevelWorker      = "worker"
	LevelWorkstation = "workstation"
)

// ReconstructionObserver receives the number of events reconstructed per entity.
// It is called from concurrent goroutines.
type ReconstructionObserver func(level string, events int)

// MetricsService derives worker, workstation and factory metrics from stored events.
type MetricsService struct {
	events      activity.EventStore
	entities    activity.EntityRepository
	engine      *reconstruction.Engine
	clock       Clock
	logger      *zap.Logger
	timeout     time.Duration
	parallelism int
	observe     ReconstructionObserver
}

// Option configures the metrics service.
type Option func(*MetricsService)

// WithQueryTimeout bounds the store calls of one metrics query.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(s *MetricsService) {
		s.timeout = timeout
	}
}

// WithParallelism caps concurrent per-entity reconstructions.
func WithParallelism(n int) Option {
	return func(s *MetricsService) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithReconstructionObserver reports reconstruction volume.
func WithReconstructionObserver(fn ReconstructionObserver) Option {
	return func(s *MetricsService) {
		s.observe = fn
	}
}

// NewMetricsService constructs a MetricsService.
func NewMetricsService(
	events activity.EventStore,
	entities activity.EntityRepository,
	engine *reconstruction.Engine,
	clock Clock,
	logger *zap.Logger,
	opts ...Option,
) (*MetricsService, error) {
	if events == nil {
		return nil, errors.New("metrics: nil event store")
	}
	if entities == nil {
		return nil, errors.New("metrics: nil entity repository")
	}
	if engine == nil {
		return nil, errors.New("metrics: nil engine")
	}
	if clock == nil {
		return nil, errors.New("metrics: nil clock")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MetricsService{
		events:      events,
		entities:    entities,
		engine:      engine,
		clock:       clock,
		logger:      logger,
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// WorkerMetrics computes metrics for one worker.
func (s *MetricsService) WorkerMetrics(ctx context.Context, workerID string, window activity.Window) (WorkerMetrics, error) {
	if err := window.Validate(); err != nil {
		return WorkerMetrics{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	end := window.EffectiveEnd(s.clock.Now())
	res, err := s.reconstructWorker(ctx, workerID, window, end)
	if err != nil {
		return WorkerMetrics{}, err
	}
	return newWorkerMetrics(workerID, "", res), nil
}

// WorkstationMetrics computes metrics for one workstation.
func (s *MetricsService) WorkstationMetrics(ctx context.Context, stationID string, window activity.Window) (WorkstationMetrics, error) {
	if err := window.Validate(); err != nil {
		return WorkstationMetrics{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	end := window.EffectiveEnd(s.clock.Now())
	res, err := s.reconstructWorkstation(ctx, stationID, window, end)
	if err != nil {
		return WorkstationMetrics{}, err
	}
	return newWorkstationMetrics(stationID, "", res, window, end), nil
}

// AllWorkers computes metrics for every known worker, in roster order.
func (s *MetricsService) AllWorkers(ctx context.Context, window activity.Window) ([]WorkerMetrics, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.allWorkers(ctx, window, window.EffectiveEnd(s.clock.Now()))
}

// AllWorkstations computes metrics for every known workstation, in roster order.
func (s *MetricsService) AllWorkstations(ctx context.Context, window activity.Window) ([]WorkstationMetrics, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.allWorkstations(ctx, window, window.EffectiveEnd(s.clock.Now()))
}

// FactoryMetrics aggregates all known workers.
func (s *MetricsService) FactoryMetrics(ctx context.Context, window activity.Window) (FactoryMetrics, error) {
	if err := window.Validate(); err != nil {
		return FactoryMetrics{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.factory(ctx, window, window.EffectiveEnd(s.clock.Now()))
}

// Report computes factory, worker and workstation metrics against a single end instant.
func (s *MetricsService) Report(ctx context.Context, window activity.Window) (Report, error) {
	if err := window.Validate(); err != nil {
		return Report{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.clock.Now().UTC()
	end := window.EffectiveEnd(now)

	factory, err := s.factory(ctx, window, end)
	if err != nil {
		return Report{}, err
	}
	workers, err := s.allWorkers(ctx, window, end)
	if err != nil {
		return Report{}, err
	}
	stations, err := s.allWorkstations(ctx, window, end)
	if err != nil {
		return Report{}, err
	}
	return Report{
		GeneratedAt:  now,
		Start:        window.Start,
		End:          end,
		Factory:      factory,
		Workers:      workers,
		Workstations: stations,
	}, nil
}

func (s *MetricsService) allWorkers(ctx context.Context, window activity.Window, end time.Time) ([]WorkerMetrics, error) {
	roster, err := s.entities.ListEntities(ctx, activity.RoleWorker)
	if err != nil {
		return nil, err
	}
	results, err := s.fanOut(ctx, roster, func(ctx context.Context, id string) (reconstruction.Result, error) {
		return s.reconstructWorker(ctx, id, window, end)
	})
	if err != nil {
		return nil, err
	}
	out := make([]WorkerMetrics, 0, len(roster))
	for i, entity := range roster {
		out = append(out, newWorkerMetrics(entity.ID, entity.DisplayName, results[i]))
	}
	return out, nil
}

func (s *MetricsService) allWorkstations(ctx context.Context, window activity.Window, end time.Time) ([]WorkstationMetrics, error) {
	roster, err := s.entities.ListEntities(ctx, activity.RoleWorkstation)
	if err != nil {
		return nil, err
	}
	results, err := s.fanOut(ctx, roster, func(ctx context.Context, id string) (reconstruction.Result, error) {
		return s.reconstructWorkstation(ctx, id, window, end)
	})
	if err != nil {
		return nil, err
	}
	out := make([]WorkstationMetrics, 0, len(roster))
	for i, entity := range roster {
		out = append(out, newWorkstationMetrics(entity.ID, entity.DisplayName, results[i], window, end))
	}
	return out, nil
}

func (s *MetricsService) factory(ctx context.Context, window activity.Window, end time.Time) (FactoryMetrics, error) {
	roster, err := s.entities.ListEntities(ctx, activity.RoleWorker)
	if err != nil {
		return FactoryMetrics{}, err
	}
	earliest, err := s.events.Query(ctx, activity.EventQuery{Window: window, Order: activity.SortAscending, Limit: 1})
	if err != nil {
		return FactoryMetrics{}, err
	}
	if len(earliest) == 0 {
		return FactoryMetrics{WorkerCount: len(roster)}, nil
	}

	results, err := s.fanOut(ctx, roster, func(ctx context.Context, id string) (reconstruction.Result, error) {
		return s.reconstructWorker(ctx, id, window, end)
	})
	if err != nil {
		return FactoryMetrics{}, err
	}

	var (
		activeMinutes  float64
		units          int64
		utilizationSum float64
		activeWorkers  int
	)
	for _, res := range results {
		if res.Empty() {
			continue
		}
		activeWorkers++
		activeMinutes += res.ActiveMinutes
		units += res.UnitsProduced
		utilizationSum += res.Utilization()
	}

	start := earliest[0].Timestamp
	if window.HasStart() {
		start = window.Start
	}

	metrics := FactoryMetrics{
		TotalProductiveTime:   reconstruction.Round2(activeMinutes),
		TotalProductionCount:  units,
		AverageProductionRate: reconstruction.Round2(reconstruction.PerHour(units, reconstruction.WindowMinutes(start, end))),
		WorkerCount:           len(roster),
		ActiveWorkers:         activeWorkers,
	}
	if activeWorkers > 0 {
		metrics.AverageUtilization = reconstruction.Round2(utilizationSum / float64(activeWorkers))
	}
	return metrics, nil
}

func (s *MetricsService) reconstructWorker(ctx context.Context, workerID string, window activity.Window, end time.Time) (reconstruction.Result, error) {
	events, err := s.events.Query(ctx, activity.EventQuery{WorkerID: workerID, Window: window, Order: activity.SortAscending})
	if err != nil {
		return reconstruction.Result{}, err
	}
	if s.observe != nil {
		s.observe(LevelWorker, len(events))
	}
	return s.engine.Reconstruct(events, end), nil
}

func (s *MetricsService) reconstructWorkstation(ctx context.Context, stationID string, window activity.Window, end time.Time) (reconstruction.Result, error) {
	events, err := s.events.Query(ctx, activity.EventQuery{WorkstationID: stationID, Window: window, Order: activity.SortAscending})
	if err != nil {
		return reconstruction.Result{}, err
	}
	if s.observe != nil {
		s.observe(LevelWorkstation, len(events))
	}
	return s.engine.Reconstruct(events, end), nil
}

// fanOut reconstructs every entity with bounded parallelism. Results keep roster order.
func (s *MetricsService) fanOut(ctx context.Context, roster []activity.Entity, fn func(ctx context.Context, id string) (reconstruction.Result, error)) ([]reconstruction.Result, error) {
	results := make([]reconstruction.Result, len(roster))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, entity := range roster {
		g.Go(func() error {
			res, err := fn(gctx, entity.ID)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("metrics fan-out failed", zap.Int("entities", len(roster)), zap.Error(err))
		return nil, err
	}
	return results, nil
}

func (s *MetricsService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}
