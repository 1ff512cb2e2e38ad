package seed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	activity "factory-monitor/internal/activity/domain"
)

const (
	// BatchSize is the number of events inserted per store call.
	BatchSize = 100

	initialHistory     = 8 * time.Hour
	DefaultExtendHours = 2
	maxExtendHours     = 7 * 24
)

var (
	// ErrNotSeeded is returned when events are extended before the roster exists.
	ErrNotSeeded = errors.New("seed: please seed initial data first")
	// ErrInvalidRequest is returned for out of range extension parameters.
	ErrInvalidRequest = errors.New("seed: invalid request")
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// InitResult summarizes a reseed.
type InitResult struct {
	Message      string `json:"message"`
	Workers      int    `json:"workers"`
	Workstations int    `json:"workstations"`
	Events       int    `json:"events"`
}

// TimeRange is the span of generated events.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AddResult summarizes an extension.
type AddResult struct {
	Message     string    `json:"message"`
	EventsAdded int       `json:"events_added"`
	TimeRange   TimeRange `json:"time_range"`
}

// Service resets and extends demo data.
type Service struct {
	events    activity.EventStore
	entities  activity.EntityRepository
	generator *Generator
	clock     Clock
	logger    *zap.Logger
	newID     func() string
}

// NewService constructs a Service.
func NewService(events activity.EventStore, entities activity.EntityRepository, generator *Generator, clock Clock, logger *zap.Logger) (*Service, error) {
	if events == nil || entities == nil {
		return nil, errors.New("seed: nil store")
	}
	if generator == nil {
		return nil, errors.New("seed: nil generator")
	}
	if clock == nil {
		return nil, errors.New("seed: nil clock")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		events:    events,
		entities:  entities,
		generator: generator,
		clock:     clock,
		logger:    logger,
		newID:     uuid.NewString,
	}, nil
}

// Init clears all events and entities, recreates the demo roster and generates the last eight hours.
func (s *Service) Init(ctx context.Context) (InitResult, error) {
	if err := s.events.DeleteAll(ctx); err != nil {
		return InitResult{}, err
	}
	if err := s.entities.DeleteEntities(ctx); err != nil {
		return InitResult{}, err
	}
	roster := append(append([]activity.Entity{}, DefaultWorkers...), DefaultWorkstations...)
	if err := s.entities.UpsertEntities(ctx, roster); err != nil {
		return InitResult{}, err
	}

	now := s.clock.Now().UTC()
	events := s.generator.Generate(DefaultWorkers, DefaultWorkstations, now.Add(-initialHistory), now)
	if err := s.insert(ctx, events); err != nil {
		return InitResult{}, err
	}

	s.logger.Info("demo data seeded",
		zap.Int("workers", len(DefaultWorkers)),
		zap.Int("workstations", len(DefaultWorkstations)),
		zap.Int("events", len(events)),
	)
	return InitResult{
		Message:      "Database seeded successfully",
		Workers:      len(DefaultWorkers),
		Workstations: len(DefaultWorkstations),
		Events:       len(events),
	}, nil
}

// AddEvents generates hours of data for the first workersCount workers, starting one minute
// after the latest stored event.
func (s *Service) AddEvents(ctx context.Context, hours, workersCount int) (AddResult, error) {
	if hours <= 0 || hours > maxExtendHours {
		return AddResult{}, fmt.Errorf("%w: hours must be between 1 and %d", ErrInvalidRequest, maxExtendHours)
	}
	if workersCount <= 0 {
		return AddResult{}, fmt.Errorf("%w: workers_count must be positive", ErrInvalidRequest)
	}

	workers, err := s.entities.ListEntities(ctx, activity.RoleWorker)
	if err != nil {
		return AddResult{}, err
	}
	stations, err := s.entities.ListEntities(ctx, activity.RoleWorkstation)
	if err != nil {
		return AddResult{}, err
	}
	if len(workers) == 0 || len(stations) == 0 {
		return AddResult{}, ErrNotSeeded
	}
	if len(workers) > workersCount {
		workers = workers[:workersCount]
	}

	latest, err := s.events.Query(ctx, activity.EventQuery{Order: activity.SortDescending, Limit: 1})
	if err != nil {
		return AddResult{}, err
	}
	start := s.clock.Now().UTC()
	if len(latest) > 0 {
		start = latest[0].Timestamp.Add(time.Minute)
	}
	end := start.Add(time.Duration(hours) * time.Hour)

	events := s.generator.Generate(workers, stations, start, end)
	if err := s.insert(ctx, events); err != nil {
		return AddResult{}, err
	}

	s.logger.Info("demo events added", zap.Int("events", len(events)), zap.Time("start", start), zap.Time("end", end))
	return AddResult{
		Message:     fmt.Sprintf("Added %d new events", len(events)),
		EventsAdded: len(events),
		TimeRange:   TimeRange{Start: start, End: end},
	}, nil
}

func (s *Service) insert(ctx context.Context, events []activity.Event) error {
	createdAt := s.clock.Now().UTC()
	for i := range events {
		events[i].ID = s.newID()
		events[i].CreatedAt = createdAt
	}
	for i := 0; i < len(events); i += BatchSize {
		end := min(i+BatchSize, len(events))
		if err := s.events.InsertMany(ctx, events[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func activitySort(events []activity.Event) {
	sort.SliceStable(events, func(i, j int) bool { return activity.Less(events[i], events[j]) })
}
