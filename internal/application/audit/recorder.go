package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/bryanwahyu/logsentinel/internal/application"
	"github.com/bryanwahyu/logsentinel/internal/domain/analysis"
	"github.com/bryanwahyu/logsentinel/internal/domain/ledger"
)

const writeTimeout = 5 * time.Second

// Recorder copies a session's terminal transitions into the ledger.
// Write errors are logged and dropped; they never reach the session.
type Recorder struct {
	Repo      ledger.Repository
	SessionID string
	Clock     application.Clock
	Logger    *slog.Logger
}

// Completed records a successful analysis as an event keyed by the history entry id.
func (r *Recorder) Completed(ctx context.Context, entry analysis.HistoryEntry) {
	ev := &ledger.Event{
		ID:          ledger.EventID(entry.ID),
		SessionID:   r.SessionID,
		Log:         entry.Log,
		IsAnomaly:   entry.Result.IsAnomaly,
		Confidence:  entry.Result.Confidence,
		Criticality: string(entry.Result.Criticality),
		Summary:     entry.Result.Summary,
		Actions:     entry.Result.Actions,
		CreatedAt:   entry.CompletedAt,
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := r.Repo.Record(wctx, ev); err != nil {
		r.logger().Error("ledger record failed", "session", r.SessionID, "event", ev.ID, "error", err)
	}
}

// Rejected records a failed submission.
func (r *Recorder) Rejected(ctx context.Context, log string, f *analysis.Failure) {
	rej := &ledger.Rejection{
		SessionID: r.SessionID,
		Reason:    f.Reason(),
		Message:   f.Message(),
		Log:       log,
		CreatedAt: r.now(),
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := r.Repo.RecordRejection(wctx, rej); err != nil {
		r.logger().Error("ledger rejection failed", "session", r.SessionID, "reason", rej.Reason, "error", err)
	}
}

func (r *Recorder) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock.Now()
}

func (r *Recorder) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
