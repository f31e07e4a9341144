package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bryanwahyu/logsentinel/internal/domain/analysis"
	"github.com/bryanwahyu/logsentinel/internal/domain/ledger"
	"github.com/bryanwahyu/logsentinel/internal/middleware"
)

// maxLogBytes caps the analyze request body
const maxLogBytes = 256 << 10

var (
	ErrBusy            = errors.New("analysis already in progress for this session")
	ErrSessionNotFound = errors.New("session not found")
	ErrBadRequest      = errors.New("bad request")
)

// Options for the console router
type Options struct {
	Sessions       *Sessions
	Ledger         ledger.Repository // nil when disabled
	Logger         *slog.Logger
	AllowedOrigins []string
	APIKeys        map[string]string
	Limiter        *middleware.RateLimiter
	AnalysisURL    string // probed by /ready when set
}

type Router struct {
	sessions *Sessions
	ledger   ledger.Repository
	logger   *slog.Logger
}

func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{sessions: opts.Sessions, ledger: opts.Ledger, logger: logger}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(logger))
	mux.Use(middleware.Prometheus)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	if opts.Limiter != nil {
		mux.Use(middleware.RateLimit(opts.Limiter))
	}

	checkers := map[string]middleware.HealthChecker{}
	if r.ledger != nil {
		checkers["ledger"] = &middleware.LedgerHealthChecker{Repo: r.ledger}
	}
	ready := map[string]middleware.HealthChecker{}
	for name, c := range checkers {
		ready[name] = c
	}
	if opts.AnalysisURL != "" {
		ready["analysis"] = middleware.ServiceChecker{BaseURL: opts.AnalysisURL}
	}
	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/ready", middleware.ReadinessHandler(ready))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Route("/v1", func(rt chi.Router) {
		rt.Get("/sessions", r.wrap(r.handleListSessions))
		rt.Route("/sessions/{session}", func(s chi.Router) {
			s.Use(middleware.RequireSessionID)
			s.Post("/analyze", r.wrap(r.handleAnalyze))
			s.Get("/state", r.wrap(r.handleState))
			s.Get("/history", r.wrap(r.handleHistory))
			s.Get("/stats", r.wrap(r.handleStats))
			s.Get("/rejections", r.wrap(r.handleRejections))
			s.Delete("/", r.wrap(r.handleClose))
		})
		rt.Get("/ledger", r.wrap(r.handleLedger))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, ErrBadRequest):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrBusy):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, ErrSessionNotFound), errors.Is(err, ledger.ErrDisabled):
				http.Error(w, err.Error(), http.StatusNotFound)
			case errors.Is(err, ErrTooManySessions):
				w.Header().Set("Retry-After", "5")
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
			default:
				r.logger.Error("request failed", "path", req.URL.Path, "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// statusFor maps a terminal state to the HTTP status of the analyze call.
func statusFor(st analysis.State) int {
	if st.Failure == nil {
		return http.StatusOK
	}
	if errors.Is(st.Failure, analysis.ErrEmptyInput) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

// POST /v1/sessions/{session}/analyze
// Body: {"log": "<line>"}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "session")

	var body struct {
		Log string `json:"log"`
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxLogBytes))
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	if _, known := r.sessions.lookup(id); !known {
		// no controller for a session that has nothing to analyze yet
		if _, err := analysis.Validate(body.Log); err != nil {
			st := analysis.Failed(analysis.NewFailure(analysis.ErrEmptyInput, nil))
			return writeJSON(w, statusFor(st), newStateView(id, st))
		}
	}

	sl, err := r.sessions.open(id)
	if err != nil {
		return err
	}
	if !sl.acquire() {
		return ErrBusy
	}
	defer r.sessions.release(sl)

	// the submission finishes even if the browser goes away
	ctx := context.WithoutCancel(req.Context())
	st := sl.ctl.Submit(ctx, body.Log)
	return writeJSON(w, statusFor(st), newStateView(id, st))
}

// GET /v1/sessions/{session}/state
func (r *Router) handleState(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "session")
	sl, ok := r.sessions.lookup(id)
	if !ok {
		// belum pernah submit, sesi masih idle
		return writeJSON(w, http.StatusOK, newStateView(id, analysis.Idle()))
	}
	return writeJSON(w, http.StatusOK, newStateView(id, sl.ctl.State()))
}

// GET /v1/sessions/{session}/history
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "session")
	sl, ok := r.sessions.lookup(id)
	if !ok {
		return writeJSON(w, http.StatusOK, newHistoryView(id, 0, nil))
	}
	return writeJSON(w, http.StatusOK, newHistoryView(id, sl.ctl.Capacity(), sl.ctl.History()))
}

// GET /v1/sessions/{session}/stats
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "session")
	sl, ok := r.sessions.lookup(id)
	if !ok {
		return writeJSON(w, http.StatusOK, newStatsView(id, analysis.ComputeStats(nil)))
	}
	return writeJSON(w, http.StatusOK, newStatsView(id, sl.ctl.Stats()))
}

// DELETE /v1/sessions/{session}
func (r *Router) handleClose(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "session")
	if !r.sessions.Close(id) {
		return ErrSessionNotFound
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/sessions
func (r *Router) handleListSessions(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{"sessions": r.sessions.IDs()})
}

// GET /v1/ledger?page=&page_size=
func (r *Router) handleLedger(w http.ResponseWriter, req *http.Request) error {
	if r.ledger == nil {
		return ledger.ErrDisabled
	}
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	p, err := r.ledger.Paginate(req.Context(), page, size)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, newLedgerPageView(p))
}

// GET /v1/sessions/{session}/rejections?limit=
func (r *Router) handleRejections(w http.ResponseWriter, req *http.Request) error {
	if r.ledger == nil {
		return ledger.ErrDisabled
	}
	id := chi.URLParam(req, "session")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.ledger.Rejections(req.Context(), id, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"session": id, "rejections": list})
}
