package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/logsentinel/internal/domain/ledger"
)

const checkTimeout = 2 * time.Second

// HealthChecker is one dependency probe.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// LedgerHealthChecker pings the configured ledger backend.
type LedgerHealthChecker struct {
	Repo ledger.Repository
}

func (l *LedgerHealthChecker) Check(ctx context.Context) error {
	return l.Repo.Ping(ctx)
}

// ServiceChecker opens a TCP connection to the analysis service host.
// No analyze request is sent.
type ServiceChecker struct {
	BaseURL string
}

func (s ServiceChecker) Check(ctx context.Context) error {
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Hostname() == "" {
		return fmt.Errorf("analysis base URL not configured")
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(u.Hostname(), port))
	if err != nil {
		return fmt.Errorf("analysis service unreachable: %w", err)
	}
	return conn.Close()
}

type probeResult struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type probeReport struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]probeResult `json:"checks"`
}

// runChecks probes every checker concurrently, each with its own timeout.
func runChecks(ctx context.Context, checkers map[string]HealthChecker) (map[string]probeResult, bool) {
	var (
		mu  sync.Mutex
		g   errgroup.Group
		out = make(map[string]probeResult, len(checkers))
		ok  = true
	)
	for name, c := range checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			start := time.Now()
			err := c.Check(cctx)

			res := probeResult{OK: err == nil, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Error = err.Error()
			}
			mu.Lock()
			out[name] = res
			ok = ok && res.OK
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out, ok
}

func probeHandler(checkers map[string]HealthChecker, up, down string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks, ok := runChecks(r.Context(), checkers)
		rep := probeReport{Status: up, Timestamp: time.Now(), Checks: checks}
		code := http.StatusOK
		if !ok {
			rep.Status = down
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(rep)
	}
}

// HealthHandler reports the console's own backing stores (the ledger).
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return probeHandler(checkers, "healthy", "unhealthy")
}

// ReadinessHandler also expects the analysis service to accept connections.
func ReadinessHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return probeHandler(checkers, "ready", "not_ready")
}

// LivenessHandler only says the process is serving.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
