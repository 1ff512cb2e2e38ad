package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	activity "factory-monitor/internal/activity/domain"
)

// Store is an in-memory event log and entity registry for demo/testing.
// It implements both activity.EventStore and activity.EntityRepository.
type Store struct {
	mu       sync.RWMutex
	events   []activity.Event
	entities map[activity.Role]map[string]activity.Entity
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		entities: make(map[activity.Role]map[string]activity.Entity),
	}
}

// Insert appends an event.
func (s *Store) Insert(ctx context.Context, event activity.Event) error {
	return s.InsertMany(ctx, []activity.Event{event})
}

// InsertMany appends events atomically.
func (s *Store) InsertMany(ctx context.Context, events []activity.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, e := range events {
		if e.ID == "" || e.Fingerprint == "" || e.Timestamp.IsZero() {
			return activity.ErrInvalidEvent
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// FindByFingerprint returns the first stored event matching fingerprint within tolerance of ts.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string, ts time.Time, tolerance time.Duration) (*activity.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from := ts.Add(-tolerance)
	to := ts.Add(tolerance)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.Fingerprint != fingerprint {
			continue
		}
		if e.Timestamp.Before(from) || e.Timestamp.After(to) {
			continue
		}
		found := e
		return &found, nil
	}
	return nil, nil
}

// Query filters, orders and limits events.
func (s *Store) Query(ctx context.Context, query activity.EventQuery) ([]activity.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]activity.Event, 0)
	for _, e := range s.events {
		if query.WorkerID != "" && e.WorkerID != query.WorkerID {
			continue
		}
		if query.WorkstationID != "" && e.WorkstationID != query.WorkstationID {
			continue
		}
		if query.Type != "" && e.Type != query.Type {
			continue
		}
		if !query.Window.Contains(e.Timestamp) {
			continue
		}
		result = append(result, e)
	}
	s.mu.RUnlock()

	if query.Order == activity.SortDescending {
		sort.SliceStable(result, func(i, j int) bool { return activity.Less(result[j], result[i]) })
	} else {
		sort.SliceStable(result, func(i, j int) bool { return activity.Less(result[i], result[j]) })
	}
	if query.Limit > 0 && len(result) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}

// Count returns the number of stored events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events)), nil
}

// DeleteAll removes every event.
func (s *Store) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// ListEntities returns entities of a role ordered by id.
func (s *Store) ListEntities(ctx context.Context, role activity.Role) ([]activity.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, activity.ErrInvalidEntity
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]activity.Entity, 0, len(s.entities[role]))
	for _, e := range s.entities[role] {
		result = append(result, e)
	}
	activity.SortEntities(result)
	return result, nil
}

// UpsertEntities inserts or replaces entities.
func (s *Store) UpsertEntities(ctx context.Context, entities []activity.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, e := range entities {
		if !e.Role.IsValid() || e.ID == "" {
			return activity.ErrInvalidEntity
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		byID := s.entities[e.Role]
		if byID == nil {
			byID = make(map[string]activity.Entity)
			s.entities[e.Role] = byID
		}
		byID[e.ID] = e
	}
	return nil
}

// DeleteEntities removes every entity.
func (s *Store) DeleteEntities(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.entities = make(map[activity.Role]map[string]activity.Entity)
	s.mu.Unlock()
	return nil
}
