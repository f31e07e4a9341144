package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/logsentinel/internal/application"
	"github.com/bryanwahyu/logsentinel/internal/application/audit"
	"github.com/bryanwahyu/logsentinel/internal/application/session"
	"github.com/bryanwahyu/logsentinel/internal/config"
	"github.com/bryanwahyu/logsentinel/internal/domain/ledger"
	"github.com/bryanwahyu/logsentinel/internal/infra/analysisapi"
	"github.com/bryanwahyu/logsentinel/internal/infra/db"
	"github.com/bryanwahyu/logsentinel/internal/infra/httpserver"
	"github.com/bryanwahyu/logsentinel/internal/metrics"
	"github.com/bryanwahyu/logsentinel/internal/middleware"
)

func main() {
	// load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		slog.Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("console stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ledger opsional
	repo, err := db.OpenLedger(ctx, cfg)
	switch {
	case errors.Is(err, ledger.ErrDisabled):
		repo = nil
		logger.Info("ledger disabled")
	case err != nil:
		return fmt.Errorf("open ledger: %w", err)
	default:
		defer repo.Close()
		logger.Info("ledger ready", "driver", cfg.LedgerDriver())
	}

	client := analysisapi.NewClient(cfg.Analysis.BaseURL, cfg.Analysis.Timeout)
	factory := func(id string) *session.Controller {
		opts := []session.Option{
			session.WithCapacity(cfg.Analysis.HistoryCapacity),
			session.WithLegacyShape(cfg.Analysis.AcceptLegacyShape),
			session.WithLogger(logger.With("session", id)),
			session.WithObserver(metrics.Observer{}),
		}
		if repo != nil {
			opts = append(opts, session.WithObserver(&audit.Recorder{
				Repo:      repo,
				SessionID: id,
				Clock:     application.SystemClock{},
				Logger:    logger,
			}))
		}
		return session.NewController(client, opts...)
	}

	limiter := middleware.NewRateLimiter(cfg.Console.RateLimit.RPS, cfg.Console.RateLimit.Burst)
	sessions := httpserver.NewSessions(factory,
		httpserver.WithSessionLimit(cfg.Console.MaxSessions),
		httpserver.WithIdleTTL(cfg.Console.SessionIdle),
	)
	handler := httpserver.NewRouter(httpserver.Options{
		Sessions:       sessions,
		Ledger:         repo,
		Logger:         logger,
		AllowedOrigins: cfg.Console.AllowedOrigins,
		APIKeys:        cfg.Console.APIKeys,
		Limiter:        limiter,
		AnalysisURL:    cfg.Analysis.BaseURL,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Analysis.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", addr, "analysis", client.Endpoint())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	var ms *metrics.Server
	if cfg.Server.MetricsPort > 0 {
		ms = metrics.NewServer(fmt.Sprintf(":%d", cfg.Server.MetricsPort), logger)
		g.Go(ms.Start)
	}

	g.Go(func() error {
		limiter.Run(gctx, 5*time.Minute)
		return nil
	})
	if cfg.Console.SessionIdle > 0 {
		g.Go(func() error {
			sessions.Run(gctx, time.Minute)
			return nil
		})
	}

	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		if ms != nil {
			if err := ms.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics shutdown error", "error", err)
			}
		}
		return nil
	})

	return g.Wait()
}
