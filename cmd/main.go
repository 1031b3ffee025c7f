package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"reportflow/internal/artifact"
	"reportflow/internal/bootstrap"
	"reportflow/internal/config"
	"reportflow/internal/delivery"
	"reportflow/internal/lock"
	"reportflow/internal/mail"
	"reportflow/internal/permission"
	"reportflow/internal/report"
	"reportflow/internal/repository"
	"reportflow/internal/router"
	"reportflow/internal/scheduler"
	"reportflow/internal/service"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Repositories ---
	scheduleRepo := repository.NewScheduleRepository(db)
	executionRepo := repository.NewExecutionRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)

	// --- Run lock (Redis with in-memory fallback) ---
	locker, lockErr := lock.NewRunLocker(cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB, cfg.Scheduler.LockTTL)
	if lockErr != nil {
		logger.Warn("Redis unavailable for run locks, using in-memory fallback", zap.Error(lockErr))
	}

	// --- Mail transport ---
	var transport mail.Transport
	if cfg.Mailer.Driver == "provider" {
		transport = mail.NewProviderTransport(mail.ProviderConfig{
			BaseURL: cfg.Mailer.ProviderBaseURL,
			APIKey:  cfg.Mailer.ProviderAPIKey,
			From:    cfg.SMTP.From,
		})
	} else {
		transport = mail.NewSMTPTransport(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	dispatcher := delivery.NewDispatcher(transport, cfg.Scheduler.MailRetries, cfg.Scheduler.MailBackoff, logger)

	// --- Artifact store ---
	store, err := artifact.NewStore(cfg.Artifacts.Dir, cfg.Artifacts.TTL, cfg.Server.BaseURL, artifactRepo, logger)
	if err != nil {
		logger.Fatal("Failed to initialize artifact store", zap.Error(err))
	}

	// --- Report pipeline ---
	provider := report.NewAnalyticsProvider(db)
	renderers := report.NewRegistry()
	renderers.Register(report.FormatCSV, report.CSVRenderer{})

	coordinator := scheduler.NewCoordinator(
		scheduleRepo, executionRepo, provider, renderers, store, dispatcher, locker,
		cfg.Scheduler.Workers, cfg.Scheduler.RunTimeout, logger)

	// --- Services ---
	gate := permission.NewGate()
	scheduleService := service.NewScheduleService(scheduleRepo, executionRepo, gate, renderers, logger)
	reportService := service.NewReportService(scheduleRepo, coordinator, provider, renderers, store, dispatcher, gate, logger)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, scheduleService, reportService, cfg.JWT.Secret, logger)

	// --- Clock ---
	clock := scheduler.NewClock(scheduleRepo, coordinator, store, logger)
	clock.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting Reportflow server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop clock, then wait for in-flight runs
	clock.Stop()
	coordinator.Drain()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
