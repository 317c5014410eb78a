package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:coursepack.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/coursepack?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS packages (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  blob_key TEXT NOT NULL,
  mastery_score INTEGER,            -- NULL when the course has none
  created_by TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS learner_state (
  enrollment_id TEXT PRIMARY KEY,
  package_id TEXT NOT NULL DEFAULT '',
  suspend_data TEXT NOT NULL DEFAULT '',
  suspend_at INTEGER NOT NULL DEFAULT 0,  -- unix nanos of the envelope that set suspend_data
  score INTEGER,
  score_at INTEGER NOT NULL DEFAULT 0,
  lesson_status TEXT NOT NULL DEFAULT 'not attempted',
  sections_done INTEGER NOT NULL DEFAULT 0,
  sections_json TEXT NOT NULL DEFAULT '[]',
  seconds INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,   -- BIGSERIAL in Postgres
  enrollment_id TEXT NOT NULL,
  message_id TEXT NOT NULL,
  typ TEXT NOT NULL,                       -- bridge message type
  data TEXT NOT NULL,                      -- JSON payload
  sent_at INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS event_log_message ON event_log(enrollment_id, message_id);

CREATE TABLE IF NOT EXISTS kv (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS packages (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  blob_key TEXT NOT NULL,
  mastery_score INTEGER,
  created_by TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS learner_state (
  enrollment_id TEXT PRIMARY KEY,
  package_id TEXT NOT NULL DEFAULT '',
  suspend_data TEXT NOT NULL DEFAULT '',
  suspend_at BIGINT NOT NULL DEFAULT 0,
  score INTEGER,
  score_at BIGINT NOT NULL DEFAULT 0,
  lesson_status TEXT NOT NULL DEFAULT 'not attempted',
  sections_done INTEGER NOT NULL DEFAULT 0,
  sections_json TEXT NOT NULL DEFAULT '[]',
  seconds INTEGER NOT NULL DEFAULT 0,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  enrollment_id TEXT NOT NULL,
  message_id TEXT NOT NULL,
  typ TEXT NOT NULL,
  data TEXT NOT NULL,
  sent_at BIGINT NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS event_log_message ON event_log(enrollment_id, message_id);

CREATE TABLE IF NOT EXISTS kv (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);
`
