package httpserver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanwahyu/logsentinel/internal/application/session"
	"github.com/bryanwahyu/logsentinel/internal/metrics"
)

// ErrTooManySessions means the registry is full and every session is mid-analysis.
var ErrTooManySessions = errors.New("too many active sessions")

// ControllerFactory builds the controller for a new session id.
type ControllerFactory func(id string) *session.Controller

// slot pairs a controller with its in-flight guard.
type slot struct {
	ctl      *session.Controller
	busy     atomic.Bool
	lastUsed time.Time // guarded by Sessions.mu
}

// acquire claims the slot for one submission; false if one is already running.
func (s *slot) acquire() bool { return s.busy.CompareAndSwap(false, true) }

// Sessions holds one controller per console session, created on first use.
// Sessions idle longer than the TTL are swept; when the limit is reached the
// least recently used idle session makes room for a new one.
type Sessions struct {
	mu      sync.Mutex
	slots   map[string]*slot
	factory ControllerFactory
	limit   int
	ttl     time.Duration
	now     func() time.Time
}

// SessionsOption configures a Sessions registry.
type SessionsOption func(*Sessions)

// WithSessionLimit caps live sessions; n <= 0 means unbounded.
func WithSessionLimit(n int) SessionsOption { return func(s *Sessions) { s.limit = n } }

// WithIdleTTL sets how long an untouched session survives a sweep; 0 disables sweeping.
func WithIdleTTL(d time.Duration) SessionsOption { return func(s *Sessions) { s.ttl = d } }

func withNow(now func() time.Time) SessionsOption { return func(s *Sessions) { s.now = now } }

func NewSessions(factory ControllerFactory, opts ...SessionsOption) *Sessions {
	s := &Sessions{slots: make(map[string]*slot), factory: factory, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// open returns the slot for id, creating it if needed.
func (s *Sessions) open(id string) (*slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if sl, ok := s.slots[id]; ok {
		sl.lastUsed = now
		return sl, nil
	}
	if s.limit > 0 && len(s.slots) >= s.limit {
		s.sweepLocked(now)
		if len(s.slots) >= s.limit && !s.evictOldestLocked() {
			return nil, ErrTooManySessions
		}
	}
	sl := &slot{ctl: s.factory(id), lastUsed: now}
	s.slots[id] = sl
	metrics.SessionsActive.Inc()
	return sl, nil
}

// release ends a submission and refreshes the idle clock.
func (s *Sessions) release(sl *slot) {
	s.mu.Lock()
	sl.lastUsed = s.now()
	s.mu.Unlock()
	sl.busy.Store(false)
}

// lookup returns an existing slot without creating one.
func (s *Sessions) lookup(id string) (*slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if ok {
		sl.lastUsed = s.now()
	}
	return sl, ok
}

// Close drops a session together with its History Log.
func (s *Sessions) Close(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[id]; !ok {
		return false
	}
	s.dropLocked(id)
	return true
}

// Sweep drops sessions idle longer than the TTL. Busy sessions are kept.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Sessions) sweepLocked(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	removed := 0
	for id, sl := range s.slots {
		if !sl.busy.Load() && now.Sub(sl.lastUsed) > s.ttl {
			s.dropLocked(id)
			removed++
		}
	}
	return removed
}

// evictOldestLocked drops the least recently used idle session.
func (s *Sessions) evictOldestLocked() bool {
	var (
		oldest string
		at     time.Time
		found  bool
	)
	for id, sl := range s.slots {
		if sl.busy.Load() {
			continue
		}
		if !found || sl.lastUsed.Before(at) {
			oldest, at, found = id, sl.lastUsed, true
		}
	}
	if found {
		s.dropLocked(oldest)
	}
	return found
}

func (s *Sessions) dropLocked(id string) {
	delete(s.slots, id)
	metrics.SessionsActive.Dec()
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// IDs lists live session ids, sorted.
func (s *Sessions) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.slots))
	for id := range s.slots {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
