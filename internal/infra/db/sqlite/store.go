package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bryanwahyu/logsentinel/internal/domain/ledger"
)

const (
	driverName = "sqlite"
	// fixed width so created_at sorts lexically
	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// EventRepository is the embedded ledger backend.
type EventRepository struct {
	path string
	db   *sql.DB
}

// Open creates the database file (and parent dir) and applies the schema.
func Open(path string) (*EventRepository, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("ledger path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("ledger path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite ledger %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return &EventRepository{path: cleanPath, db: db}, nil
}

func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS security_events (
  id           TEXT PRIMARY KEY,
  session_id   TEXT NOT NULL,
  log_line     TEXT NOT NULL,
  is_anomaly   INTEGER NOT NULL,
  confidence   REAL NOT NULL,
  criticality  TEXT NOT NULL,
  summary      TEXT NOT NULL,
  actions_json TEXT NOT NULL,
  created_at   TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created ON security_events(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS security_rejections (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL,
  reason     TEXT NOT NULL,
  message    TEXT NOT NULL,
  log_line   TEXT NOT NULL,
  created_at TEXT NOT NULL
)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the database file path.
func (r *EventRepository) Path() string { return r.path }

func (r *EventRepository) Record(ctx context.Context, e *ledger.Event) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO security_events
  (id, session_id, log_line, is_anomaly, confidence, criticality, summary, actions_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING`,
		string(e.ID),
		e.SessionID,
		e.Log,
		e.IsAnomaly,
		e.Confidence,
		e.Criticality,
		e.Summary,
		ledger.EncodeActions(e.Actions),
		created.UTC().Format(tsLayout),
	)
	return err
}

func (r *EventRepository) RecordRejection(ctx context.Context, rej *ledger.Rejection) error {
	created := rej.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO security_rejections (session_id, reason, message, log_line, created_at)
VALUES (?, ?, ?, ?, ?)`,
		rej.SessionID, rej.Reason, rej.Message, rej.Log, created.UTC().Format(tsLayout),
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		rej.ID = id
	}
	return nil
}

// Rejections lists the newest failed submissions of a session.
func (r *EventRepository) Rejections(ctx context.Context, sessionID string, limit int) ([]*ledger.Rejection, error) {
	limit = ledger.NormalizeLimit(limit)
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, reason, message, log_line, created_at
FROM security_rejections
WHERE session_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*ledger.Rejection{}
	for rows.Next() {
		var rej ledger.Rejection
		var created string
		if err := rows.Scan(&rej.ID, &rej.SessionID, &rej.Reason, &rej.Message, &rej.Log, &created); err != nil {
			return nil, err
		}
		rej.CreatedAt, err = parseTime(created)
		if err != nil {
			return nil, err
		}
		out = append(out, &rej)
	}
	return out, rows.Err()
}

func (r *EventRepository) Paginate(ctx context.Context, page, pageSize int) (ledger.Page, error) {
	page, pageSize = ledger.NormalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, log_line, is_anomaly, confidence, criticality, summary, actions_json, created_at
FROM security_events
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`, pageSize, offset)
	if err != nil {
		return ledger.Page{}, err
	}
	defer rows.Close()

	out := []*ledger.Event{}
	for rows.Next() {
		var e ledger.Event
		var id, actions, created string
		if err := rows.Scan(&id, &e.SessionID, &e.Log, &e.IsAnomaly, &e.Confidence, &e.Criticality, &e.Summary, &actions, &created); err != nil {
			return ledger.Page{}, err
		}
		e.ID = ledger.EventID(id)
		e.Actions = ledger.DecodeActions(actions)
		if e.CreatedAt, err = parseTime(created); err != nil {
			return ledger.Page{}, err
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return ledger.Page{}, err
	}
	return ledger.Page{Data: out, Page: page, PageSize: pageSize}, nil
}

func (r *EventRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *EventRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}
