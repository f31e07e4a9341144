package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/logsentinel/internal/domain/analysis"
)

// fakeService counts calls and answers from a function.
type fakeService struct {
	calls atomic.Int32
	mu    sync.Mutex
	sent  []string
	fn    func(req analysis.Request) (analysis.Reply, error)
}

func (f *fakeService) Analyze(ctx context.Context, req analysis.Request) (analysis.Reply, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.sent = append(f.sent, req.Log)
	f.mu.Unlock()
	return f.fn(req)
}

func answer(status int, body string) *fakeService {
	return &fakeService{fn: func(analysis.Request) (analysis.Reply, error) {
		return analysis.Reply{Status: status, Body: []byte(body)}, nil
	}}
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("entry-%02d", n)
	}
}

type recordingObserver struct {
	completed []analysis.HistoryEntry
	rejected  []string
}

func (o *recordingObserver) Completed(_ context.Context, e analysis.HistoryEntry) {
	o.completed = append(o.completed, e)
}

func (o *recordingObserver) Rejected(_ context.Context, _ string, f *analysis.Failure) {
	o.rejected = append(o.rejected, f.Reason())
}

const bruteForceBody = `{"is_anomaly":true,"confidence":0.93,"criticality":"haute","summary":"Brute-force attempt","actions":["Block IP","Alert SOC"]}`

func newTestController(svc analysis.Service, opts ...Option) *Controller {
	base := []Option{
		WithClock(fixedClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}),
		WithIDGenerator(sequentialIDs()),
	}
	return NewController(svc, append(base, opts...)...)
}

func TestNewController_StartsIdle(t *testing.T) {
	ctl := newTestController(answer(200, bruteForceBody))
	assert.Equal(t, analysis.PhaseIdle, ctl.State().Phase)
	assert.Empty(t, ctl.History())
	assert.Equal(t, DefaultCapacity, ctl.Capacity())
	assert.False(t, ctl.Busy())
}

func TestSubmit_BruteForceSuccess(t *testing.T) {
	svc := answer(200, bruteForceBody)
	ctl := newTestController(svc)

	log := "Failed password for invalid user root from 91.200.12.74 port 45001 ssh2"
	st := ctl.Submit(context.Background(), log)

	require.Equal(t, analysis.PhaseSuccess, st.Phase)
	require.NotNil(t, st.Result)
	assert.Nil(t, st.Failure)
	assert.Equal(t, analysis.Result{
		IsAnomaly:   true,
		Confidence:  0.93,
		Criticality: analysis.CriticalityHaute,
		Summary:     "Brute-force attempt",
		Actions:     []string{"Block IP", "Alert SOC"},
	}, *st.Result)

	hist := ctl.History()
	require.Len(t, hist, 1)
	assert.Equal(t, log, hist[0].Log)
	assert.Equal(t, analysis.EntryID("entry-01"), hist[0].ID)
	assert.Equal(t, 100.0, ctl.Stats().DetectionRate)
	assert.Equal(t, []string{log}, svc.sent)
}

func TestSubmit_TrimsBeforeSending(t *testing.T) {
	svc := answer(200, bruteForceBody)
	ctl := newTestController(svc)

	ctl.Submit(context.Background(), "\t  GET /admin HTTP/1.1  \n")
	assert.Equal(t, []string{"GET /admin HTTP/1.1"}, svc.sent)
	assert.Equal(t, "GET /admin HTTP/1.1", ctl.History()[0].Log)
}

func TestSubmit_EmptyInputNeverCallsService(t *testing.T) {
	svc := answer(200, bruteForceBody)
	obs := &recordingObserver{}
	ctl := newTestController(svc, WithObserver(obs))
	ctl.Submit(context.Background(), "seed")

	for _, in := range []string{"", "   ", "\n\t"} {
		st := ctl.Submit(context.Background(), in)
		assert.Equal(t, analysis.PhaseFailed, st.Phase)
		assert.Equal(t, "empty_input", st.Reason())
		assert.Nil(t, st.Result)
	}
	assert.EqualValues(t, 1, svc.calls.Load())
	assert.Len(t, ctl.History(), 1)
	assert.Equal(t, []string{"empty_input", "empty_input", "empty_input"}, obs.rejected)
}

func TestSubmit_ServiceErrorLeavesHistory(t *testing.T) {
	ok := answer(200, bruteForceBody)
	ctl := newTestController(ok)
	ctl.Submit(context.Background(), "first")

	ctl.svc = answer(500, `{"error":"boom"}`)
	st := ctl.Submit(context.Background(), "second")

	assert.Equal(t, analysis.PhaseFailed, st.Phase)
	assert.Equal(t, "ServiceError(500)", st.Reason())
	assert.ErrorIs(t, st.Failure, analysis.ErrServiceError)

	hist := ctl.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "first", hist[0].Log)
}

func TestSubmit_Failures(t *testing.T) {
	tests := []struct {
		name   string
		svc    *fakeService
		reason string
		kind   error
	}{
		{
			name: "unreachable",
			svc: &fakeService{fn: func(analysis.Request) (analysis.Reply, error) {
				return analysis.Reply{}, errors.New("dial tcp: connection refused")
			}},
			reason: "service_unreachable",
			kind:   analysis.ErrServiceUnreachable,
		},
		{"not found", answer(404, ""), "ServiceError(404)", analysis.ErrServiceError},
		{"redirect", answer(302, ""), "ServiceError(302)", analysis.ErrServiceError},
		{"html body", answer(200, "<html></html>"), "malformed_response", analysis.ErrMalformedResponse},
		{"missing confidence", answer(200, `{"is_anomaly":true}`), "malformed_response", analysis.ErrMalformedResponse},
		{"legacy rejected", answer(200, `{"classification":"x","suggestion":"y","is_anomaly":true,"confidence":0.4}`), "malformed_response", analysis.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := newTestController(tt.svc)
			st := ctl.Submit(context.Background(), "Accepted password for alice")
			assert.Equal(t, analysis.PhaseFailed, st.Phase)
			assert.Equal(t, tt.reason, st.Reason())
			assert.ErrorIs(t, st.Failure, tt.kind)
			assert.Empty(t, ctl.History())
			assert.EqualValues(t, 1, tt.svc.calls.Load())
		})
	}
}

func TestSubmit_LegacyShapeAccepted(t *testing.T) {
	ctl := newTestController(answer(200, `{"classification":"port_scan","suggestion":"Bloquer","is_anomaly":true,"confidence":0.7}`), WithLegacyShape(true))
	st := ctl.Submit(context.Background(), "SYN to port 22")
	require.Equal(t, analysis.PhaseSuccess, st.Phase)
	assert.Equal(t, "Bloquer", st.Result.Summary)
}

func TestSubmit_FlatAndWrappedProduceSameEntry(t *testing.T) {
	flat := newTestController(answer(200, bruteForceBody))
	wrapped := newTestController(answer(200, `{"result":`+bruteForceBody+`}`))

	a := flat.Submit(context.Background(), "x")
	b := wrapped.Submit(context.Background(), "x")
	assert.Equal(t, a, b)
	assert.Equal(t, flat.History(), wrapped.History())
}

func TestHistory_BoundedNewestFirst(t *testing.T) {
	ctl := newTestController(answer(200, bruteForceBody))
	for i := 1; i <= 11; i++ {
		st := ctl.Submit(context.Background(), fmt.Sprintf("log line %d", i))
		require.Equal(t, analysis.PhaseSuccess, st.Phase)
	}

	hist := ctl.History()
	require.Len(t, hist, 10)
	for i, e := range hist {
		assert.Equal(t, fmt.Sprintf("log line %d", 11-i), e.Log)
	}
	for _, e := range hist {
		assert.NotEqual(t, "log line 1", e.Log)
	}
	assert.Equal(t, 10, ctl.Stats().Total)
}

func TestHistory_CustomCapacity(t *testing.T) {
	ctl := newTestController(answer(200, bruteForceBody), WithCapacity(3))
	for i := 0; i < 5; i++ {
		ctl.Submit(context.Background(), fmt.Sprintf("l%d", i))
	}
	hist := ctl.History()
	require.Len(t, hist, 3)
	assert.Equal(t, "l4", hist[0].Log)
	assert.Equal(t, "l2", hist[2].Log)

	assert.Equal(t, DefaultCapacity, newTestController(nil, WithCapacity(0)).Capacity())
}

func TestHistory_ReturnsCopy(t *testing.T) {
	ctl := newTestController(answer(200, bruteForceBody))
	ctl.Submit(context.Background(), "x")

	hist := ctl.History()
	hist[0].Log = "mutated"
	hist[0].Result.Actions[0] = "mutated"

	fresh := ctl.History()
	assert.Equal(t, "x", fresh[0].Log)
	assert.Equal(t, "Block IP", fresh[0].Result.Actions[0])

	st := ctl.State()
	st.Result.Actions[1] = "mutated"
	assert.Equal(t, "Alert SOC", ctl.State().Result.Actions[1])
}

func TestHistory_TimestampFromClock(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ctl := newTestController(answer(200, bruteForceBody))
	ctl.Submit(context.Background(), "x")

	e := ctl.History()[0]
	assert.Equal(t, at, e.CompletedAt)
	assert.Equal(t, at.Local().Format(analysis.TimestampLayout), e.Timestamp)
}

func TestStats_MixedResults(t *testing.T) {
	bodies := []string{
		`{"is_anomaly":true,"confidence":0.9,"criticality":"critique"}`,
		`{"is_anomaly":false,"confidence":0.6}`,
		`{"is_anomaly":false,"confidence":0.3,"criticality":"basse"}`,
		`{"is_anomaly":true,"confidence":0.8,"criticality":"moyenne"}`,
	}
	i := 0
	svc := &fakeService{fn: func(analysis.Request) (analysis.Reply, error) {
		b := bodies[i]
		i++
		return analysis.Reply{Status: 200, Body: []byte(b)}, nil
	}}
	ctl := newTestController(svc)
	assert.Equal(t, 0.0, ctl.Stats().DetectionRate)

	for range bodies {
		ctl.Submit(context.Background(), "line")
	}
	st := ctl.Stats()
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 2, st.Anomalies)
	assert.Equal(t, 50.0, st.DetectionRate)
	assert.Equal(t, 2, st.ByTier[analysis.TierBasse])
	assert.Equal(t, 1, st.ByTier[analysis.TierCritique])
}

func TestSubmit_LoadingVisibleDuringCall(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	svc := &fakeService{fn: func(analysis.Request) (analysis.Reply, error) {
		close(entered)
		<-release
		return analysis.Reply{Status: 200, Body: []byte(bruteForceBody)}, nil
	}}
	ctl := newTestController(svc)

	done := make(chan analysis.State, 1)
	go func() { done <- ctl.Submit(context.Background(), "slow") }()

	<-entered
	assert.Equal(t, analysis.PhaseLoading, ctl.State().Phase)
	assert.True(t, ctl.Busy())
	assert.Empty(t, ctl.History())

	close(release)
	st := <-done
	assert.Equal(t, analysis.PhaseSuccess, st.Phase)
	assert.False(t, ctl.Busy())
}

func TestSubmit_NotifiesObservers(t *testing.T) {
	obs := &recordingObserver{}
	ctl := newTestController(answer(200, bruteForceBody), WithObserver(obs))
	ctl.Submit(context.Background(), "ok")

	ctl.svc = answer(503, "")
	ctl.Submit(context.Background(), "down")

	require.Len(t, obs.completed, 1)
	assert.Equal(t, "ok", obs.completed[0].Log)
	assert.Equal(t, []string{"ServiceError(503)"}, obs.rejected)
}
