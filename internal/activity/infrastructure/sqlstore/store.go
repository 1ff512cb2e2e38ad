package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	activity "factory-monitor/internal/activity/domain"
)

// Store is a SQL implementation of activity.EventStore and activity.EntityRepository.
// Timestamps are stored as unix milliseconds so both dialects order them identically.
type Store struct {
	db            *sql.DB
	dialect       Dialect
	eventsTable   string
	entitiesTable string
}

// Option configures the store.
type Option func(*Store)

// WithEventsTable overrides the default events table name.
func WithEventsTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.eventsTable = table
		}
	}
}

// WithEntitiesTable overrides the default entities table name.
func WithEntitiesTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.entitiesTable = table
		}
	}
}

// New constructs a store on an open handle.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:            db,
		dialect:       dialect,
		eventsTable:   defaultEventsTable,
		entitiesTable: defaultEntitiesTable,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens a handle for the dialect and verifies connectivity.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlstore: %s dsn is required", dialect.Name)
	}
	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dialect.Name, err)
	}
	if dialect == SQLite {
		// Single writer avoids SQLITE_BUSY under concurrent ingestion.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify("ping", err)
	}
	return db, nil
}

// SQLiteDSN builds a DSN for a database file with WAL and a busy timeout.
func SQLiteDSN(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// EnsureSchema creates tables and indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("sqlstore: nil db")
	}
	for _, stmt := range schemaStatements(s.eventsTable, s.entitiesTable) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return classify("ensure schema", err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: nil db", activity.ErrStoreUnavailable)
	}
	return classify("ping", s.db.PingContext(ctx))
}

// Insert stores one event.
func (s *Store) Insert(ctx context.Context, event activity.Event) error {
	return s.InsertMany(ctx, []activity.Event{event})
}

// InsertMany stores events in a single transaction.
func (s *Store) InsertMany(ctx context.Context, events []activity.Event) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: nil db", activity.ErrStoreUnavailable)
	}
	if len(events) == 0 {
		return nil
	}

	query := s.dialect.Rebind(fmt.Sprintf(`
INSERT INTO %s (
	id,
	ts_ms,
	worker_id,
	workstation_id,
	event_type,
	confidence,
	unit_count,
	fingerprint,
	created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.eventsTable))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return classify("prepare insert", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if e.ID == "" || e.Fingerprint == "" || e.WorkerID == "" || e.WorkstationID == "" || e.Timestamp.IsZero() {
			_ = tx.Rollback()
			return activity.ErrInvalidEvent
		}
		if _, err := stmt.ExecContext(
			ctx,
			e.ID,
			toMillis(e.Timestamp),
			e.WorkerID,
			e.WorkstationID,
			string(e.Type),
			e.Confidence,
			e.Count,
			e.Fingerprint,
			optionalMillis(e.CreatedAt),
		); err != nil {
			_ = tx.Rollback()
			return classify("insert event", err)
		}
	}

	return classify("commit", tx.Commit())
}

// FindByFingerprint returns an event with the fingerprint within tolerance of ts, or nil.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string, ts time.Time, tolerance time.Duration) (*activity.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: nil db", activity.ErrStoreUnavailable)
	}
	query := s.dialect.Rebind(fmt.Sprintf(`
SELECT %s
FROM %s
WHERE fingerprint = ?
	AND ts_ms >= ?
	AND ts_ms <= ?
ORDER BY ts_ms ASC
LIMIT 1`, eventColumns, s.eventsTable))

	row := s.db.QueryRowContext(ctx, query, fingerprint, toMillis(ts.Add(-tolerance)), toMillis(ts.Add(tolerance)))
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("find by fingerprint", err)
	}
	return &event, nil
}

// Query returns events matching the filter.
func (s *Store) Query(ctx context.Context, q activity.EventQuery) ([]activity.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: nil db", activity.ErrStoreUnavailable)
	}

	var (
		conds []string
		args  []any
	)
	if q.WorkerID != "" {
		conds = append(conds, "worker_id = ?")
		args = append(args, q.WorkerID)
	}
	if q.WorkstationID != "" {
		conds = append(conds, "workstation_id = ?")
		args = append(args, q.WorkstationID)
	}
	if q.Type != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, string(q.Type))
	}
	if q.Window.HasStart() {
		conds = append(conds, "ts_ms >= ?")
		args = append(args, toMillis(q.Window.Start))
	}
	if q.Window.HasEnd() {
		conds = append(conds, "ts_ms < ?")
		args = append(args, toMillis(q.Window.End))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", eventColumns, s.eventsTable)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	if q.Order == activity.SortDescending {
		b.WriteString(" ORDER BY ts_ms DESC, id DESC")
	} else {
		b.WriteString(" ORDER BY ts_ms ASC, id ASC")
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(b.String()), args...)
	if err != nil {
		return nil, classify("query events", err)
	}
	defer rows.Close()

	result := make([]activity.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, classify("scan event", err)
		}
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate events", err)
	}
	return result, nil
}

// Count returns the number of stored events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("%w: nil db", activity.ErrStoreUnavailable)
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.eventsTable).Scan(&count); err != nil {
		return 0, classify("count events", err)
	}
	return count, nil
}

// DeleteAll removes every event.
func (s *Store) DeleteAll(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: nil db", activity.ErrStoreUnavailable)
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM "+s.eventsTable)
	return classify("delete events", err)
}

// ListEntities returns entities of a role ordered by id, compared byte-wise.
func (s *Store) ListEntities(ctx context.Context, role activity.Role) ([]activity.Entity, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: nil db", activity.ErrStoreUnavailable)
	}
	if !role.IsValid() {
		return nil, activity.ErrInvalidEntity
	}
	query := s.dialect.Rebind(fmt.Sprintf(`
SELECT role, id, display_name, kind
FROM %s
WHERE role = ?
ORDER BY id ASC`, s.entitiesTable))

	rows, err := s.db.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, classify("list entities", err)
	}
	defer rows.Close()

	result := make([]activity.Entity, 0)
	for rows.Next() {
		var (
			e       activity.Entity
			roleStr string
		)
		if err := rows.Scan(&roleStr, &e.ID, &e.DisplayName, &e.Kind); err != nil {
			return nil, classify("scan entity", err)
		}
		e.Role = activity.Role(roleStr)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate entities", err)
	}
	// database collation may not be byte-wise
	activity.SortEntities(result)
	return result, nil
}

// UpsertEntities inserts or updates entities.
func (s *Store) UpsertEntities(ctx context.Context, entities []activity.Entity) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: nil db", activity.ErrStoreUnavailable)
	}
	if len(entities) == 0 {
		return nil
	}
	query := s.dialect.Rebind(fmt.Sprintf(`
INSERT INTO %s (role, id, display_name, kind)
VALUES (?, ?, ?, ?)
ON CONFLICT (role, id)
DO UPDATE SET
	display_name = EXCLUDED.display_name,
	kind = EXCLUDED.kind`, s.entitiesTable))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return classify("prepare upsert", err)
	}
	defer stmt.Close()

	for _, e := range entities {
		if !e.Role.IsValid() || e.ID == "" {
			_ = tx.Rollback()
			return activity.ErrInvalidEntity
		}
		if _, err := stmt.ExecContext(ctx, string(e.Role), e.ID, e.DisplayName, e.Kind); err != nil {
			_ = tx.Rollback()
			return classify("upsert entity", err)
		}
	}
	return classify("commit", tx.Commit())
}

// DeleteEntities removes every entity.
func (s *Store) DeleteEntities(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: nil db", activity.ErrStoreUnavailable)
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM "+s.entitiesTable)
	return classify("delete entities", err)
}

const eventColumns = "id, ts_ms, worker_id, workstation_id, event_type, confidence, unit_count, fingerprint, created_at_ms"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (activity.Event, error) {
	var (
		e         activity.Event
		tsMs      int64
		createdMs int64
		eventType string
	)
	if err := row.Scan(
		&e.ID,
		&tsMs,
		&e.WorkerID,
		&e.WorkstationID,
		&eventType,
		&e.Confidence,
		&e.Count,
		&e.Fingerprint,
		&createdMs,
	); err != nil {
		return activity.Event{}, err
	}
	e.Timestamp = fromMillis(tsMs)
	e.CreatedAt = fromOptionalMillis(createdMs)
	e.Type = activity.EventType(eventType)
	return e, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// optionalMillis stores an unset time as 0.
func optionalMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return toMillis(value)
}

func fromOptionalMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return fromMillis(value)
}
