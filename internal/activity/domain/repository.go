package activity

import (
	"context"
	"time"
)

// SortOrder controls timestamp ordering of query results.
type SortOrder int

const (
	SortAscending SortOrder = iota
	SortDescending
)

// EventQuery filters events. Empty fields are not applied; Limit <= 0 means unbounded.
type EventQuery struct {
	WorkerID      string
	WorkstationID string
	Type          EventType
	Window        Window
	Order         SortOrder
	Limit         int
}

// EventStore is the append-only event log.
type EventStore interface {
	Insert(ctx context.Context, event Event) error
	InsertMany(ctx context.Context, events []Event) error
	// FindByFingerprint returns an event with the fingerprint whose timestamp lies within
	// [ts-tolerance, ts+tolerance], or nil.
	FindByFingerprint(ctx context.Context, fingerprint string, ts time.Time, tolerance time.Duration) (*Event, error)
	Query(ctx context.Context, query EventQuery) ([]Event, error)
	Count(ctx context.Context) (int64, error)
	// DeleteAll is the bulk reset used by seeding.
	DeleteAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

// EntityRepository stores worker and workstation reference data.
type EntityRepository interface {
	// ListEntities returns a role's entities ordered by id, compared byte-wise.
	ListEntities(ctx context.Context, role Role) ([]Entity, error)
	UpsertEntities(ctx context.Context, entities []Entity) error
	DeleteEntities(ctx context.Context) error
}
