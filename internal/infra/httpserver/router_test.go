package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/logsentinel/internal/application/audit"
	"github.com/bryanwahyu/logsentinel/internal/application/session"
	"github.com/bryanwahyu/logsentinel/internal/domain/analysis"
	"github.com/bryanwahyu/logsentinel/internal/domain/ledger"
	"github.com/bryanwahyu/logsentinel/internal/infra/db/sqlite"
)

type serviceFunc func(ctx context.Context, req analysis.Request) (analysis.Reply, error)

func (f serviceFunc) Analyze(ctx context.Context, req analysis.Request) (analysis.Reply, error) {
	return f(ctx, req)
}

func replyWith(status int, body string) serviceFunc {
	return func(context.Context, analysis.Request) (analysis.Reply, error) {
		return analysis.Reply{Status: status, Body: []byte(body)}, nil
	}
}

const wrappedBody = `{"result":{"is_anomaly":true,"confidence":0.93,"criticality":"haute","summary":"SSH brute force","actions":["block IP"],"mode":"ml"}}`

func newTestServer(t *testing.T, svc analysis.Service, repo ledger.Repository) *httptest.Server {
	t.Helper()
	factory := func(id string) *session.Controller {
		opts := []session.Option{}
		if repo != nil {
			opts = append(opts, session.WithObserver(&audit.Recorder{Repo: repo, SessionID: id}))
		}
		return session.NewController(svc, opts...)
	}
	srv := httptest.NewServer(NewRouter(Options{
		Sessions:       NewSessions(factory),
		Ledger:         repo,
		AllowedOrigins: []string{"http://localhost:5173"},
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postLog(t *testing.T, base, session, log string) (*http.Response, StateView) {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"log": log})
	resp, err := http.Post(base+"/v1/sessions/"+session+"/analyze", "application/json", strings.NewReader(string(payload)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var view StateView
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	}
	return resp, view
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAnalyze_SuccessUpdatesHistoryAndStats(t *testing.T) {
	srv := newTestServer(t, replyWith(200, wrappedBody), nil)

	resp, view := postLog(t, srv.URL, "soc1", "  Failed password for root from 203.0.113.45  ")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", view.Phase)
	require.NotNil(t, view.Result)
	assert.Equal(t, "93.0%", view.Result.ConfidencePct)
	assert.Equal(t, "Haute", view.Result.CriticalityLabel)
	assert.Equal(t, "haute", view.Result.Tier)
	assert.Equal(t, "Anomalie détectée", view.Result.Verdict)
	assert.Equal(t, []string{"block IP"}, view.Result.Actions)

	var hist HistoryView
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/sessions/soc1/history", &hist))
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, "Failed password for root from 203.0.113.45", hist.Entries[0].Log)
	assert.Equal(t, 10, hist.Capacity)

	var stats map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/sessions/soc1/stats", &stats))
	assert.EqualValues(t, 1, stats["total"])
	assert.EqualValues(t, 1, stats["anomalies"])
	assert.EqualValues(t, 100, stats["detection_rate"])
	assert.Equal(t, "100.0%", stats["detection_rate_pct"])
	byTier := stats["by_tier"].(map[string]any)
	assert.EqualValues(t, 1, byTier["haute"])
	assert.EqualValues(t, 0, byTier["critique"])
}

func TestAnalyze_FailureStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		svc    analysis.Service
		log    string
		status int
		reason string
	}{
		{"empty input", replyWith(200, wrappedBody), "   ", http.StatusUnprocessableEntity, "empty_input"},
		{"service error", replyWith(500, ""), "x", http.StatusBadGateway, "ServiceError(500)"},
		{"malformed", replyWith(200, "not json"), "x", http.StatusBadGateway, "malformed_response"},
		{"unreachable", serviceFunc(func(context.Context, analysis.Request) (analysis.Reply, error) {
			return analysis.Reply{}, context.DeadlineExceeded
		}), "x", http.StatusBadGateway, "service_unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.svc, nil)
			resp, view := postLog(t, srv.URL, "s", tt.log)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "failed", view.Phase)
			assert.Equal(t, tt.reason, view.Reason)
			assert.NotEmpty(t, view.Message)
			assert.Nil(t, view.Result)

			var hist HistoryView
			getJSON(t, srv.URL+"/v1/sessions/s/history", &hist)
			assert.Empty(t, hist.Entries)
		})
	}
}

func TestAnalyze_ConflictWhileLoading(t *testing.T) {
	release := make(chan struct{})
	svc := serviceFunc(func(ctx context.Context, req analysis.Request) (analysis.Reply, error) {
		<-release
		return analysis.Reply{Status: 200, Body: []byte(wrappedBody)}, nil
	})
	srv := newTestServer(t, svc, nil)

	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/v1/sessions/busy/analyze", "application/json", strings.NewReader(`{"log":"first"}`))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	require.Eventually(t, func() bool {
		var st StateView
		getJSON(t, srv.URL+"/v1/sessions/busy/state", &st)
		return st.Phase == "loading"
	}, 2*time.Second, 10*time.Millisecond)

	resp, _ := postLog(t, srv.URL, "busy", "second")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// other sessions are unaffected
	other := newTestServer(t, replyWith(200, wrappedBody), nil)
	resp, _ = postLog(t, other.URL, "other", "third")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)

	var hist HistoryView
	getJSON(t, srv.URL+"/v1/sessions/busy/history", &hist)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, "first", hist.Entries[0].Log)
}

func TestState_UnknownSessionIsIdle(t *testing.T) {
	srv := newTestServer(t, replyWith(200, wrappedBody), nil)
	var st StateView
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/sessions/fresh/state", &st))
	assert.Equal(t, "idle", st.Phase)
	assert.Nil(t, st.Result)
}

func TestCloseSession(t *testing.T) {
	srv := newTestServer(t, replyWith(200, wrappedBody), nil)
	postLog(t, srv.URL, "gone", "x")

	del := func() int {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/sessions/gone", nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusNoContent, del())
	assert.Equal(t, http.StatusNotFound, del())

	var hist HistoryView
	getJSON(t, srv.URL+"/v1/sessions/gone/history", &hist)
	assert.Empty(t, hist.Entries)
}

func TestInvalidSessionID(t *testing.T) {
	srv := newTestServer(t, replyWith(200, wrappedBody), nil)
	resp, _ := postLog(t, srv.URL, "bad.id", "x")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLedger(t *testing.T) {
	srv := newTestServer(t, replyWith(200, wrappedBody), nil)
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/v1/ledger", nil))

	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	srv = newTestServer(t, replyWith(200, wrappedBody), repo)
	postLog(t, srv.URL, "audited", "Failed password for admin")
	postLog(t, srv.URL, "audited", " ")

	var page ledger.Page
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/ledger?page=1&page_size=5", &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "audited", page.Data[0].SessionID)
	assert.Equal(t, "haute", page.Data[0].Criticality)
	assert.Equal(t, 5, page.PageSize)

	var rejections struct {
		Session    string              `json:"session"`
		Rejections []*ledger.Rejection `json:"rejections"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/sessions/audited/rejections?limit=5", &rejections))
	require.Len(t, rejections.Rejections, 1)
	assert.Equal(t, "empty_input", rejections.Rejections[0].Reason)

	var health map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &health))
	assert.Equal(t, "healthy", health["status"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, replyWith(200, wrappedBody), nil)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/v1/sessions/s/analyze", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

// capture records exactly what the analysis service received.
type capture struct {
	mu    sync.Mutex
	calls atomic.Int32
	logs  []string
	reply string
}

func (c *capture) Analyze(_ context.Context, req analysis.Request) (analysis.Reply, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.logs = append(c.logs, req.Log)
	c.mu.Unlock()
	return analysis.Reply{Status: 200, Body: []byte(c.reply)}, nil
}

func TestAnalyze_ControlCharactersReachService(t *testing.T) {
	svc := &capture{reply: wrappedBody}
	srv := newTestServer(t, svc, nil)

	forged := "GET /login?u=\x1b[2Jadmin\rforged-line HTTP/1.1"
	resp, view := postLog(t, srv.URL, "raw", "  "+forged+"\n")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", view.Phase)
	assert.Equal(t, []string{forged}, svc.logs)

	var hist HistoryView
	getJSON(t, srv.URL+"/v1/sessions/raw/history", &hist)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, forged, hist.Entries[0].Log)

	// control bytes alone are not whitespace, so they are analyzed too
	resp, _ = postLog(t, srv.URL, "raw", "\x1b\x07")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, svc.calls.Load())
	assert.Equal(t, "\x1b\x07", svc.logs[1])
}

func TestAnalyze_EmptyInputDoesNotOpenSession(t *testing.T) {
	sessions := NewSessions(func(string) *session.Controller {
		return session.NewController(replyWith(200, wrappedBody))
	})
	srv := httptest.NewServer(NewRouter(Options{Sessions: sessions}))
	defer srv.Close()

	for i := 0; i < 50; i++ {
		resp, view := postLog(t, srv.URL, fmt.Sprintf("s%d", i), "   ")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "empty_input", view.Reason)
	}
	assert.Equal(t, 0, sessions.Len())

	// a known session still records the failure in its own state
	postLog(t, srv.URL, "known", "Failed password for root")
	resp, _ := postLog(t, srv.URL, "known", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var st StateView
	getJSON(t, srv.URL+"/v1/sessions/known/state", &st)
	assert.Equal(t, "failed", st.Phase)
	assert.Equal(t, 1, sessions.Len())
}

func TestAnalyze_SessionLimit(t *testing.T) {
	release := make(chan struct{})
	svc := serviceFunc(func(ctx context.Context, req analysis.Request) (analysis.Reply, error) {
		if req.Log == "slow" {
			<-release
		}
		return analysis.Reply{Status: 200, Body: []byte(wrappedBody)}, nil
	})
	sessions := NewSessions(func(string) *session.Controller { return session.NewController(svc) }, WithSessionLimit(1))
	srv := httptest.NewServer(NewRouter(Options{Sessions: sessions}))
	defer srv.Close()

	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/v1/sessions/a/analyze", "application/json", strings.NewReader(`{"log":"slow"}`))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	require.Eventually(t, func() bool {
		var st StateView
		getJSON(t, srv.URL+"/v1/sessions/a/state", &st)
		return st.Phase == "loading"
	}, 2*time.Second, 10*time.Millisecond)

	// the only slot is busy, so nothing can be evicted
	resp, _ := postLog(t, srv.URL, "b", "x")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)

	// once idle, the old session makes room
	resp, _ = postLog(t, srv.URL, "b", "x")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"b"}, sessions.IDs())
}

func TestReady_ProbesAnalysisService(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	defer upstream.Close()

	srv := httptest.NewServer(NewRouter(Options{
		Sessions:    NewSessions(func(string) *session.Controller { return nil }),
		AnalysisURL: upstream.URL,
	}))
	defer srv.Close()

	var body map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/ready", &body))
	assert.Equal(t, "ready", body["status"])

	upstream.Close()
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/ready", nil))
}

func TestLedger_DerivesTierFromStoredCriticality(t *testing.T) {
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	srv := newTestServer(t, replyWith(200, `{"is_anomaly":true,"confidence":0.6,"criticality":"sévère"}`), repo)
	postLog(t, srv.URL, "odd", "kernel: segfault at 0")

	var page LedgerPageView
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/ledger", &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "sévère", page.Data[0].Criticality)
	assert.Equal(t, "basse", page.Data[0].Tier)
	assert.Equal(t, "Sévère", page.Data[0].CriticalityLabel)
}

func TestRejections_LedgerDisabled(t *testing.T) {
	srv := newTestServer(t, replyWith(200, wrappedBody), nil)
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/v1/sessions/s/rejections", nil))
}
