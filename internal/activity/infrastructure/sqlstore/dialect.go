package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the differences between supported SQL backends.
type Dialect struct {
	Name       string
	DriverName string
	// Numbered placeholders ($1, $2...) instead of ?.
	Numbered bool
}

var (
	// Postgres uses the pgx stdlib driver.
	Postgres = Dialect{Name: "postgres", DriverName: "pgx", Numbered: true}
	// SQLite uses the pure-Go modernc driver.
	SQLite = Dialect{Name: "sqlite", DriverName: "sqlite"}
)

// Rebind rewrites ? placeholders for the dialect. Queries must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const (
	defaultEventsTable   = "activity_events"
	defaultEntitiesTable = "activity_entities"
)

func schemaStatements(eventsTable, entitiesTable string) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + eventsTable + ` (
	id TEXT PRIMARY KEY,
	ts_ms BIGINT NOT NULL,
	worker_id TEXT NOT NULL,
	workstation_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	unit_count BIGINT NOT NULL,
	fingerprint TEXT NOT NULL,
	created_at_ms BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS ` + eventsTable + `_worker_ts ON ` + eventsTable + ` (worker_id, ts_ms)`,
		`CREATE INDEX IF NOT EXISTS ` + eventsTable + `_station_ts ON ` + eventsTable + ` (workstation_id, ts_ms)`,
		`CREATE INDEX IF NOT EXISTS ` + eventsTable + `_type_ts ON ` + eventsTable + ` (event_type, ts_ms)`,
		`CREATE INDEX IF NOT EXISTS ` + eventsTable + `_fingerprint_ts ON ` + eventsTable + ` (fingerprint, ts_ms)`,
		`CREATE TABLE IF NOT EXISTS ` + entitiesTable + ` (
	role TEXT NOT NULL,
	id TEXT NOT NULL,
	display_name TEXT NOT NULL,
	kind TEXT NOT NULL,
	PRIMARY KEY (role, id)
)`,
	}
}
