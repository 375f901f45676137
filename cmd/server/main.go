package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	httpadapter "coverly/internal/adapters/http"
	pg "coverly/internal/adapters/postgres"
	"coverly/internal/adapters/subscription"
	"coverly/internal/audit"
	"coverly/internal/config"
	"coverly/internal/extract"
	"coverly/internal/normalize"
	"coverly/internal/ratelimit"
	gradersvc "coverly/internal/services/grader"
	historysvc "coverly/internal/services/history"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Warn("config", "err", err)
	}
	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Error("migrate", "err", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(db, cfg.RateLimitMax, cfg.RateLimitWindow, log.With("component", "ratelimit"))
	recorder := audit.NewRecorder(db, cfg.AuditBuffer, log.With("component", "audit"))
	defer recorder.Close()

	extractor := extract.New(cfg.ExtractorBaseURL, cfg.ExtractorAPIKey, cfg.ExtractorTimeout, log.With("component", "extract"))
	subs := subscription.New(cfg.SubscriptionBaseURL)

	runner := normalize.ExecRunner{}
	publicNorm := normalize.New(runner, cfg.PublicMaxUploadBytes)
	vendorNorm := normalize.New(runner, cfg.VendorMaxUploadBytes)

	grader := gradersvc.New(limiter, publicNorm, vendorNorm, extractor, db, db, subs, recorder, log.With("component", "grader"))
	history := historysvc.New(db)

	srv := httpadapter.New(grader, history, cfg.PublicMaxUploadBytes, cfg.VendorMaxUploadBytes, cfg.TrustProxy, log.With("component", "http"))
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	errCh := make(chan error, 1)
	go func() { errCh <- http.ListenAndServe(cfg.ListenAddr, r) }()
	log.Info("listening", "addr", cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", fmt.Sprint(sig))
		cancel()
		time.Sleep(300 * time.Millisecond)
	case err := <-errCh:
		log.Error("server", "err", err)
		os.Exit(1)
	}
}
