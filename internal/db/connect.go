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
			dsn = "file:qbexport.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/qbexport?sslmode=disable"
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
	switch driver {
	case DriverSQLite:
		_, err := db.ExecContext(ctx, schemaSQLite)
		return err
	case DriverPostgres:
		_, err := db.ExecContext(ctx, schemaPostgres)
		return err
	}
	return nil
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS templates (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,               -- presentation | metadata
  owner TEXT NOT NULL,
  name TEXT NOT NULL,
  applies_to TEXT NOT NULL DEFAULT '',
  body_json TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  modified_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS templates_kind_owner ON templates (kind, owner);

CREATE TABLE IF NOT EXISTS export_tasks (
  id TEXT PRIMARY KEY,
  requested_by TEXT NOT NULL,
  session_id TEXT NOT NULL,
  question_ids_json TEXT NOT NULL,
  format TEXT NOT NULL,
  presentation_template_id TEXT NOT NULL,
  metadata_template_id TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL,
  error TEXT NOT NULL DEFAULT '',
  artifact_path TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  completed_at INTEGER
);

CREATE TABLE IF NOT EXISTS export_history (
  task_id TEXT PRIMARY KEY,
  requested_by TEXT NOT NULL,
  format TEXT NOT NULL,
  template_name TEXT NOT NULL DEFAULT '',
  question_count INTEGER NOT NULL,
  file_path TEXT NOT NULL DEFAULT '',
  file_size INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS export_history_created ON export_history (created_at);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS templates (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  owner TEXT NOT NULL,
  name TEXT NOT NULL,
  applies_to TEXT NOT NULL DEFAULT '',
  body_json TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  modified_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS templates_kind_owner ON templates (kind, owner);

CREATE TABLE IF NOT EXISTS export_tasks (
  id TEXT PRIMARY KEY,
  requested_by TEXT NOT NULL,
  session_id TEXT NOT NULL,
  question_ids_json TEXT NOT NULL,
  format TEXT NOT NULL,
  presentation_template_id TEXT NOT NULL,
  metadata_template_id TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL,
  error TEXT NOT NULL DEFAULT '',
  artifact_path TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL,
  completed_at BIGINT
);

CREATE TABLE IF NOT EXISTS export_history (
  task_id TEXT PRIMARY KEY,
  requested_by TEXT NOT NULL,
  format TEXT NOT NULL,
  template_name TEXT NOT NULL DEFAULT '',
  question_count INTEGER NOT NULL,
  file_path TEXT NOT NULL DEFAULT '',
  file_size BIGINT NOT NULL DEFAULT 0,
  failed BOOLEAN NOT NULL DEFAULT FALSE,
  error TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS export_history_created ON export_history (created_at);
`
