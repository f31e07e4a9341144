package scenario

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/bryanwahyu/logsentinel/internal/application"
	"github.com/bryanwahyu/logsentinel/internal/domain/analysis"
)

// Status values of a Sample
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Submitter is the part of a session controller the runner drives.
type Submitter interface {
	Submit(ctx context.Context, log string) analysis.State
}

// Sample is the outcome of one submitted line.
type Sample struct {
	Scenario    string        `json:"scenario"`
	Log         string        `json:"log"`
	Timestamp   time.Time     `json:"timestamp"`
	Duration    time.Duration `json:"duration_ns"`
	Detected    bool          `json:"detected"`
	Confidence  float64       `json:"confidence"`
	Criticality string        `json:"criticality"`
	Actions     []string      `json:"actions"`
	Status      string        `json:"status"`
	Reason      string        `json:"reason,omitempty"`
}

// Runner submits every line of every scenario, one at a time, paced by Limiter.
type Runner struct {
	Submitter Submitter
	Limiter   *rate.Limiter
	Clock     application.Clock
	Logger    *slog.Logger
	OnSample  func(Sample)
}

// NewLimiter paces one submission per interval; interval <= 0 disables pacing.
func NewLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Run returns the samples gathered so far and ctx.Err() when cancelled.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) ([]Sample, error) {
	clock, logger, limiter := r.deps()

	var samples []Sample
	for _, sc := range scenarios {
		logger.Info("scenario started", "scenario", sc.Name, "logs", len(sc.Logs))
		for _, line := range sc.Logs {
			if err := limiter.Wait(ctx); err != nil {
				return samples, err
			}

			start := clock.Now()
			st := r.Submitter.Submit(ctx, line)
			s := sampleOf(sc.Name, line, start, clock.Now().Sub(start), st)
			samples = append(samples, s)

			if r.OnSample != nil {
				r.OnSample(s)
			}
			if s.Status == StatusError {
				logger.Warn("scenario line failed", "scenario", sc.Name, "reason", s.Reason)
			}
		}
		if err := ctx.Err(); err != nil {
			return samples, err
		}
	}
	return samples, nil
}

func (r *Runner) deps() (application.Clock, *slog.Logger, *rate.Limiter) {
	clock := r.Clock
	if clock == nil {
		clock = application.SystemClock{}
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limiter := r.Limiter
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	return clock, logger, limiter
}

func sampleOf(name, line string, start time.Time, d time.Duration, st analysis.State) Sample {
	s := Sample{
		Scenario:  name,
		Log:       truncate(line, 200),
		Timestamp: start,
		Actions:   []string{},
	}
	if st.Result == nil {
		// failed lines count as undetected with no latency
		s.Status = StatusError
		s.Criticality = "unknown"
		s.Reason = st.Reason()
		return s
	}
	s.Status = StatusSuccess
	s.Duration = d
	s.Detected = st.Result.IsAnomaly
	s.Confidence = st.Result.Confidence
	s.Criticality = analysis.TierOf(st.Result.Criticality).String()
	if len(st.Result.Actions) > 0 {
		s.Actions = append(s.Actions, st.Result.Actions...)
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
