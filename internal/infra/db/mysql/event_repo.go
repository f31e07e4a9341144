package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/bryanwahyu/logsentinel/internal/domain/ledger"
)

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Record inserts an event; replaying an existing id is a no-op.
func (r *EventRepository) Record(ctx context.Context, e *ledger.Event) error {
	const q = `
INSERT INTO security_events
  (id, session_id, log_line, is_anomaly, confidence, criticality, summary, actions_json, created_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE id=id;
`
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		string(e.ID),
		stringOrDash(e.SessionID),
		e.Log,
		e.IsAnomaly,
		e.Confidence,
		e.Criticality,
		e.Summary,
		ledger.EncodeActions(e.Actions),
		createdAt.UTC(),
	)
	return err
}

// RecordRejection inserts a failed submission
func (r *EventRepository) RecordRejection(ctx context.Context, rej *ledger.Rejection) error {
	const q = `
INSERT INTO security_rejections
  (session_id, reason, message, log_line, created_at)
VALUES (?,?,?,?,?)
`
	created := rej.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.ExecContext(ctx, q,
		stringOrDash(rej.SessionID),
		stringOrDash(rej.Reason),
		stringOrDash(rej.Message),
		rej.Log,
		created.UTC(),
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		rej.ID = id
	}
	return nil
}

// Paginate returns a page of events ordered by created_at desc
func (r *EventRepository) Paginate(ctx context.Context, page, pageSize int) (ledger.Page, error) {
	page, pageSize = ledger.NormalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	const q = `
SELECT id, session_id, log_line, is_anomaly, confidence, criticality, summary, actions_json, created_at
FROM security_events
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, pageSize, offset)
	if err != nil {
		return ledger.Page{}, err
	}
	defer rows.Close()

	out := []*ledger.Event{}
	for rows.Next() {
		var e ledger.Event
		var id, actions string
		var created time.Time
		if err := rows.Scan(&id, &e.SessionID, &e.Log, &e.IsAnomaly, &e.Confidence, &e.Criticality, &e.Summary, &actions, &created); err != nil {
			return ledger.Page{}, err
		}
		e.ID = ledger.EventID(id)
		e.Actions = ledger.DecodeActions(actions)
		e.CreatedAt = created
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return ledger.Page{}, err
	}
	return ledger.Page{Data: out, Page: page, PageSize: pageSize}, nil
}

// Rejections lists the newest failed submissions of a session.
func (r *EventRepository) Rejections(ctx context.Context, sessionID string, limit int) ([]*ledger.Rejection, error) {
	const q = `
SELECT id, session_id, reason, message, log_line, created_at
FROM security_rejections
WHERE session_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, sessionID, ledger.NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*ledger.Rejection{}
	for rows.Next() {
		var rej ledger.Rejection
		if err := rows.Scan(&rej.ID, &rej.SessionID, &rej.Reason, &rej.Message, &rej.Log, &rej.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rej)
	}
	return out, rows.Err()
}

func (r *EventRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *EventRepository) Close() error { return r.db.Close() }
