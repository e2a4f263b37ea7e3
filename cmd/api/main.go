// Copyright (c) 2026 Jyotir. All rights reserved.
// Author: dev@jyotir.app

// Command api is the entry point for the Jyotir identity API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire token service, repositories and domain services.
//  7. Start the expired-session sweeper.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jyotirlabs/jyotir/internal/api"
	"github.com/jyotirlabs/jyotir/internal/identity/auth"
	"github.com/jyotirlabs/jyotir/internal/platform/config"
	"github.com/jyotirlabs/jyotir/internal/platform/constants"
	"github.com/jyotirlabs/jyotir/internal/platform/email"
	"github.com/jyotirlabs/jyotir/internal/platform/migration"
	pgstore "github.com/jyotirlabs/jyotir/internal/platform/postgres"
	"github.com/jyotirlabs/jyotir/internal/platform/ratelimit"
	redisstore "github.com/jyotirlabs/jyotir/internal/platform/redis"
	"github.com/jyotirlabs/jyotir/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Jyotir] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Token Service ──────────────────────────────────────────────────
	jwtSvc, err := sec.NewTokenService(cfg.JWTSecret, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	notifier := email.NewLogNotifier(log)

	userRepository := auth.NewUserRepository(pool)
	profileRepository := auth.NewProfileRepository(pool)
	sessionRepository := auth.NewSessionRepository(pool)
	otpRepository := auth.NewOtpRepository(rdb)
	registrationRepository := auth.NewRegistrationRepository(rdb)
	resetTokenRepository := auth.NewResetTokenRepository(rdb)

	otpManager := auth.NewOtpManager(otpRepository, notifier, cfg.OtpTTL(), log)
	sessionManager := auth.NewSessionManager(sessionRepository, userRepository, jwtSvc, auth.SessionPolicy{
		MaxActiveSessions: cfg.MaxActiveSessions,
		RefreshTokenBytes: cfg.RefreshTokenBytes,
		RefreshTokenTTL:   cfg.RefreshTokenTTL(),
		AccessTokenTTL:    cfg.AccessTokenTTL(),
	}, log)

	authService := auth.NewService(
		userRepository,
		profileRepository,
		registrationRepository,
		resetTokenRepository,
		otpManager,
		sessionManager,
		notifier,
		cfg.RegistrationTTL(),
		cfg.ResetTokenTTL(),
		log,
	)

	limiter := ratelimit.NewLimiter(rdb, ratelimit.Config{
		Window: cfg.RateLimitWindow(),
		Limits: map[string]int{
			constants.ActionForgotPassword:     cfg.RateLimitForgotPassword,
			constants.ActionValidateResetToken: cfg.RateLimitValidateToken,
			constants.ActionResetPassword:      cfg.RateLimitResetPassword,
		},
		DefaultLimit: cfg.RateLimitForgotPassword,
	})

	authHandler := auth.NewHandler(authService, limiter)

	// ── 9. Session Sweeper ────────────────────────────────────────────────
	// Periodic storage hygiene; expired sessions are already unusable
	// through lazy expiry, this just reclaims rows.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go runSessionSweeper(sweepCtx, sessionManager, cfg.SessionSweepInterval(), log)

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
	}

	server := api.NewServer(sweepCtx, cfg, log, jwtSvc, handlers)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// runSessionSweeper deletes expired session rows on a fixed cadence until
// the context is cancelled.
func runSessionSweeper(ctx context.Context, sessions *auth.SessionManager, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if _, err := sessions.SweepExpired(ctx); err != nil {
				log.Error("session sweep failed", slog.Any("error", err))
			}
		}
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
