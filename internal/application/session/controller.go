package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/bryanwahyu/logsentinel/internal/application"
	"github.com/bryanwahyu/logsentinel/internal/domain/analysis"
)

// DefaultCapacity is the number of entries the History Log keeps.
const DefaultCapacity = 10

// Controller owns one analysis session: its state and its History Log.
//
// Only one Submit may be in flight at a time. The controller does not enforce
// this; callers must keep their trigger disabled while State().Phase is
// Loading. The mutex only keeps snapshot readers consistent and is never held
// across the network call.
type Controller struct {
	svc       analysis.Service
	clock     application.Clock
	ids       application.IDGenerator
	capacity  int
	decode    analysis.DecodeOptions
	logger    *slog.Logger
	observers []analysis.Observer

	mu      sync.RWMutex
	state   analysis.State
	history []analysis.HistoryEntry
}

// Option configures a Controller.
type Option func(*Controller)

func WithClock(c application.Clock) Option { return func(ctl *Controller) { ctl.clock = c } }

func WithIDGenerator(g application.IDGenerator) Option {
	return func(ctl *Controller) { ctl.ids = g }
}

// WithCapacity sets the History Log bound; values below 1 keep the default.
func WithCapacity(n int) Option {
	return func(ctl *Controller) {
		if n > 0 {
			ctl.capacity = n
		}
	}
}

func WithLogger(l *slog.Logger) Option { return func(ctl *Controller) { ctl.logger = l } }

// WithLegacyShape accepts classification/suggestion bodies.
func WithLegacyShape(accept bool) Option {
	return func(ctl *Controller) { ctl.decode.AcceptLegacy = accept }
}

func WithObserver(o analysis.Observer) Option {
	return func(ctl *Controller) { ctl.observers = append(ctl.observers, o) }
}

// NewController builds an idle controller with an empty History Log.
func NewController(svc analysis.Service, opts ...Option) *Controller {
	c := &Controller{
		svc:      svc,
		clock:    application.SystemClock{},
		ids:      application.UUIDv7(),
		capacity: DefaultCapacity,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		state:    analysis.Idle(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// outcome is the two-way continuation handed back by the transport:
// either a delivered body or a failure.
type outcome struct {
	body    []byte
	failure *analysis.Failure
}

func settle(reply analysis.Reply, err error) outcome {
	if err != nil {
		return outcome{failure: analysis.NewFailure(analysis.ErrServiceUnreachable, err)}
	}
	if reply.Status < 200 || reply.Status > 299 {
		return outcome{failure: analysis.StatusFailure(reply.Status)}
	}
	return outcome{body: reply.Body}
}

// Submit runs one analysis and returns the resulting state.
func (c *Controller) Submit(ctx context.Context, logText string) analysis.State {
	trimmed, err := analysis.Validate(logText)
	if err != nil {
		return c.fail(ctx, "", analysis.NewFailure(analysis.ErrEmptyInput, nil))
	}

	c.mu.Lock()
	c.state = analysis.Loading()
	c.mu.Unlock()

	reply, err := c.svc.Analyze(ctx, analysis.Request{Log: trimmed})
	return c.resolve(ctx, trimmed, settle(reply, err))
}

// resolve performs the single terminal transition for a submission.
func (c *Controller) resolve(ctx context.Context, log string, o outcome) analysis.State {
	if o.failure != nil {
		return c.fail(ctx, log, o.failure)
	}

	res, shape, err := analysis.DecodeResult(o.body, c.decode)
	if err != nil {
		var f *analysis.Failure
		if !errors.As(err, &f) {
			f = analysis.NewFailure(analysis.ErrMalformedResponse, err)
		}
		return c.fail(ctx, log, f)
	}

	now := c.clock.Now()
	entry := analysis.HistoryEntry{
		ID:          analysis.EntryID(c.ids()),
		Log:         log,
		Result:      res,
		Timestamp:   now.Local().Format(analysis.TimestampLayout),
		CompletedAt: now,
	}

	c.mu.Lock()
	c.state = analysis.Succeeded(res)
	keep := min(len(c.history), c.capacity-1)
	next := make([]analysis.HistoryEntry, 0, keep+1)
	next = append(next, entry)
	next = append(next, c.history[:keep]...)
	c.history = next
	state := c.state.Snapshot()
	size := len(c.history)
	c.mu.Unlock()

	c.logger.Info("analysis completed",
		"entry", entry.ID,
		"shape", shape.String(),
		"anomaly", res.IsAnomaly,
		"confidence", res.Confidence,
		"tier", analysis.TierOf(res.Criticality).String(),
		"history", size,
	)
	for _, obs := range c.observers {
		obs.Completed(ctx, entry.Clone())
	}
	return state
}

func (c *Controller) fail(ctx context.Context, log string, f *analysis.Failure) analysis.State {
	c.mu.Lock()
	c.state = analysis.Failed(f)
	state := c.state
	c.mu.Unlock()

	c.logger.Warn("analysis failed", "reason", f.Reason(), "error", f.Error())
	for _, obs := range c.observers {
		obs.Rejected(ctx, log, f)
	}
	return state
}

// State returns a snapshot of the live session state.
func (c *Controller) State() analysis.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Snapshot()
}

// Busy reports whether a submission is in flight.
func (c *Controller) Busy() bool {
	return c.State().Phase == analysis.PhaseLoading
}

// History returns a copy of the History Log, newest first.
func (c *Controller) History() []analysis.HistoryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]analysis.HistoryEntry, len(c.history))
	for i, e := range c.history {
		out[i] = e.Clone()
	}
	return out
}

// Stats derives the aggregate statistics from the current History Log.
func (c *Controller) Stats() analysis.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return analysis.ComputeStats(c.history)
}

// Capacity returns the History Log bound.
func (c *Controller) Capacity() int { return c.capacity }
