package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS security_events (
  id           TEXT PRIMARY KEY,
  session_id   TEXT NOT NULL,
  log_line     TEXT NOT NULL,
  is_anomaly   BOOLEAN NOT NULL,
  confidence   DOUBLE PRECISION NOT NULL,
  criticality  TEXT NOT NULL,
  summary      TEXT NOT NULL,
  actions_json TEXT NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_events_created ON security_events (created_at)`,
	`CREATE TABLE IF NOT EXISTS security_rejections (
  id         BIGSERIAL PRIMARY KEY,
  session_id TEXT NOT NULL,
  reason     TEXT NOT NULL,
  message    TEXT NOT NULL,
  log_line   TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
}

// Migrate creates the ledger tables if they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
