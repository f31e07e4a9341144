package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/logsentinel/internal/domain/analysis"
	"github.com/bryanwahyu/logsentinel/internal/domain/ledger"
)

type fakeRepo struct {
	events     []*ledger.Event
	rejections []*ledger.Rejection
	err        error
}

func (f *fakeRepo) Record(_ context.Context, e *ledger.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeRepo) RecordRejection(_ context.Context, r *ledger.Rejection) error {
	if f.err != nil {
		return f.err
	}
	f.rejections = append(f.rejections, r)
	return nil
}

func (f *fakeRepo) Paginate(context.Context, int, int) (ledger.Page, error) { return ledger.Page{}, nil }
func (f *fakeRepo) Rejections(context.Context, string, int) ([]*ledger.Rejection, error) {
	return f.rejections, nil
}
func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error { return nil }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestRecorder_Completed(t *testing.T) {
	repo := &fakeRepo{}
	rec := &Recorder{Repo: repo, SessionID: "soc"}
	at := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

	rec.Completed(context.Background(), analysis.HistoryEntry{
		ID:  "01900000-0000-7000-8000-000000000001",
		Log: "Failed password for root",
		Result: analysis.Result{
			IsAnomaly:  true,
			Confidence: 0.8,
			Summary:    "brute force",
			Actions:    []string{"block"},
		},
		CompletedAt: at,
	})

	require.Len(t, repo.events, 1)
	ev := repo.events[0]
	assert.Equal(t, ledger.EventID("01900000-0000-7000-8000-000000000001"), ev.ID)
	assert.Equal(t, "soc", ev.SessionID)
	// absent stays absent; the tier is derived when reading
	assert.Equal(t, "", ev.Criticality)
	assert.Equal(t, at, ev.CreatedAt)
	assert.Equal(t, []string{"block"}, ev.Actions)
}

func TestRecorder_KeepsReportedCriticality(t *testing.T) {
	repo := &fakeRepo{}
	rec := &Recorder{Repo: repo, SessionID: "soc"}

	rec.Completed(context.Background(), analysis.HistoryEntry{ID: "a", Result: analysis.Result{Criticality: "élevée"}})
	rec.Completed(context.Background(), analysis.HistoryEntry{ID: "b", Result: analysis.Result{Criticality: analysis.CriticalityHaute}})

	require.Len(t, repo.events, 2)
	assert.Equal(t, "élevée", repo.events[0].Criticality)
	assert.Equal(t, "haute", repo.events[1].Criticality)
}

func TestRecorder_Rejected(t *testing.T) {
	repo := &fakeRepo{}
	at := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	rec := &Recorder{Repo: repo, SessionID: "soc", Clock: fixedClock{t: at}}

	rec.Rejected(context.Background(), "x", analysis.StatusFailure(502))
	require.Len(t, repo.rejections, 1)
	assert.Equal(t, "ServiceError(502)", repo.rejections[0].Reason)
	assert.Equal(t, "analysis service returned error status 502", repo.rejections[0].Message)
	assert.Equal(t, at, repo.rejections[0].CreatedAt)
}

func TestRecorder_ErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	repo := &fakeRepo{err: errors.New("disk full")}
	rec := &Recorder{Repo: repo, SessionID: "soc", Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	rec.Completed(context.Background(), analysis.HistoryEntry{ID: "a"})
	rec.Rejected(context.Background(), "", analysis.NewFailure(analysis.ErrEmptyInput, nil))

	assert.Contains(t, buf.String(), "ledger record failed")
	assert.Contains(t, buf.String(), "ledger rejection failed")
	assert.Contains(t, buf.String(), "disk full")
}

func TestRecorder_CancelledContextStillWrites(t *testing.T) {
	repo := &fakeRepo{}
	rec := &Recorder{Repo: repo, SessionID: "soc"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec.Completed(ctx, analysis.HistoryEntry{ID: "b"})
	assert.Len(t, repo.events, 1)
}
