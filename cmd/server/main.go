// Package main is the entry point for the notes server.
//
// MAIN PACKAGE IN GO:
// main is the composition root. Its job is to:
//  1. Read configuration (environment only, see internal/config)
//  2. Create dependencies (logger, SQLite, Redis, mail, Google)
//  3. Wire them into services, handlers and the server
//  4. Run until SIGINT/SIGTERM, then shut down and close what it opened
//
// All actual logic lives in the internal/ packages.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/notes-app/internal/auth"
	"github.com/sakif/notes-app/internal/codestore"
	"github.com/sakif/notes-app/internal/config"
	"github.com/sakif/notes-app/internal/email"
	"github.com/sakif/notes-app/internal/health"
	"github.com/sakif/notes-app/internal/logging"
	"github.com/sakif/notes-app/internal/metrics"
	sqliteRepo "github.com/sakif/notes-app/internal/repository/sqlite"
	"github.com/sakif/notes-app/internal/server"
	"github.com/sakif/notes-app/internal/service"
)

func main() {
	// === 1. CONFIGURATION AND LOGGING ===
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.Env, cfg.SlogLevel())
	// writeJSON and writeError in the handler package log through the default.
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// === 2. DATABASE ===
	// os.MkdirAll is `mkdir -p`; SQLite creates the file but not its directory.
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// === 3. CODE STORE ===
	// Redis in every shared environment; a process-local map is enough for
	// one developer on ENV=local without REDIS_URL.
	var (
		codes  codestore.Store
		pinger health.Pinger
	)
	if cfg.RedisURL != "" {
		client, err := codestore.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		store := codestore.NewRedisStore(client)
		codes, pinger = store, store
	} else {
		logger.Warn("REDIS_URL not set, using the in-memory code store")
		store := codestore.NewMemoryStore()
		codes, pinger = store, store
	}

	// === 4. AUTH COLLABORATORS ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, cfg.CodeTTL, logger)

	// A nil *auth.GoogleProvider stored in the interface would not compare
	// equal to nil, so only assign a real provider.
	var google service.GoogleProvider
	if cfg.GoogleEnabled() {
		provider, err := auth.NewGoogleProvider(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL, cfg.GoogleTimeout)
		if err != nil {
			return err
		}
		google = provider
	} else {
		logger.Info("Google sign-in disabled (GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set)")
	}

	// === 5. SERVICES ===
	authSvc := service.NewAuthService(service.AuthDeps{
		Accounts: db.Accounts(),
		Codes:    codes,
		Hasher:   auth.NewCodeHasher(cfg.CodeHashCost),
		Tokens:   tokens,
		Sender:   sender,
		Google:   google,
		CodeTTL:  cfg.CodeTTL,
	}, logger)
	noteSvc := service.NewNoteService(db.Notes(), logger)

	// === 6. METRICS AND HEALTH ===
	metrics.Register()
	checker := health.NewChecker(map[string]health.Pinger{
		"sqlite":    db,
		"codestore": pinger,
	}, logger, prometheus.DefaultRegisterer)

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)
	go func() {
		logger.Info("metrics server started", slog.String("port", cfg.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", slog.String("error", err.Error()))
		}
	}()

	// === 7. HTTP SERVER ===
	srv := server.New(server.Config{
		Port:               cfg.Port,
		FrontendURL:        cfg.FrontendURL,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, server.Deps{
		Auth:   authSvc,
		Notes:  noteSvc,
		Health: checker,
	}, logger)

	// Start blocks until ctx is cancelled (Ctrl+C or SIGTERM).
	return srv.Start(ctx)
}
