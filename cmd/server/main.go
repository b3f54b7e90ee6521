package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	httpapi "github.com/session-hub/session-hub/internal/api/http"
	appAudit "github.com/session-hub/session-hub/internal/application/audit"
	appAuth "github.com/session-hub/session-hub/internal/application/auth"
	appSession "github.com/session-hub/session-hub/internal/application/session"
	"github.com/session-hub/session-hub/internal/application/sweeper"
	appToken "github.com/session-hub/session-hub/internal/application/token"
	"github.com/session-hub/session-hub/internal/config"
	"github.com/session-hub/session-hub/internal/domain/audit"
	"github.com/session-hub/session-hub/internal/domain/session"
	"github.com/session-hub/session-hub/internal/domain/user"
	"github.com/session-hub/session-hub/internal/infrastructure/memory"
	"github.com/session-hub/session-hub/internal/infrastructure/postgres"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// repositories
	var (
		userRepo    user.Repository
		sessionRepo session.Repository
		auditRepo   audit.Repository
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db error: %v", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
			log.Fatalf("migration error: %v", err)
		}

		userRepo = postgres.NewUserRepository(pool)
		sessionRepo = postgres.NewSessionRepository(pool)
		auditRepo = postgres.NewAuditRepository(pool)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store")
		userRepo = memory.NewUserRepository()
		sessionRepo = memory.NewSessionRepository()
		auditRepo = memory.NewAuditRepository()
	}

	// services
	auditSvc := appAudit.NewService(auditRepo, logger, cfg.AuditQueueSize)
	tokenSvc := appToken.NewService(userRepo, cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, logger)
	sessionSvc := appSession.NewService(sessionRepo, auditSvc, logger)
	authSvc := appAuth.NewService(userRepo, appAuth.NewRepositoryVerifier(userRepo), tokenSvc, sessionSvc, logger)

	sweep := sweeper.New(sessionRepo, sessionSvc, cfg.IdleTimeout(), cfg.OfflineTimeout(), cfg.SweepInterval, logger)
	go sweep.Start(ctx)

	// API server
	apiServer := httpapi.NewServer(authSvc, tokenSvc, sessionSvc, auditRepo, logger)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
	auditSvc.Close()
}
