package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
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
  id           VARCHAR(64)  NOT NULL PRIMARY KEY,
  session_id   VARCHAR(64)  NOT NULL,
  log_line     TEXT         NOT NULL,
  is_anomaly   TINYINT(1)   NOT NULL,
  confidence   DOUBLE       NOT NULL,
  criticality  VARCHAR(16)  NOT NULL,
  summary      TEXT         NOT NULL,
  actions_json TEXT         NOT NULL,
  created_at   DATETIME(6)  NOT NULL,
  KEY idx_events_created (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS security_rejections (
  id         BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
  session_id VARCHAR(64)  NOT NULL,
  reason     VARCHAR(64)  NOT NULL,
  message    TEXT         NOT NULL,
  log_line   TEXT         NOT NULL,
  created_at DATETIME(6)  NOT NULL,
  KEY idx_rejections_session (session_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
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
