package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/calendar"
	"github.com/openhours/workcheck/internal/checker"
	"github.com/openhours/workcheck/internal/config"
	httpserver "github.com/openhours/workcheck/internal/interfaces/http"
	"github.com/openhours/workcheck/internal/importer"
	"github.com/openhours/workcheck/internal/repository"
	"github.com/openhours/workcheck/internal/worker"
	"github.com/openhours/workcheck/pkg/database"
	"github.com/openhours/workcheck/pkg/utils"
)

func main() {
	// Optional .env for local development; real deployments set env vars
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting time report verification service",
		zap.Int("port", cfg.Server.Port))

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	holidayRepo := repository.NewHolidayRepository(db.DB, logger)
	recordRepo := repository.NewRecordRepository(db.DB, logger)
	batchRepo := repository.NewBatchRepository(db.DB, logger)
	checkRunRepo := repository.NewCheckRunRepository(db, logger)

	// Calendar
	var provider calendar.Provider
	if cfg.Calendar.ProviderURL != "" {
		provider = calendar.NewHTTPProvider(cfg.Calendar.ProviderURL, cfg.Calendar.SyncTimeout, logger)
	}
	calendarService := calendar.NewService(db, holidayRepo, provider, logger)

	// Import pipeline and checkers
	importService := importer.NewService(db, recordRepo, batchRepo, cfg.Import, logger)
	integrityChecker := checker.NewIntegrityChecker(recordRepo, calendarService, checkRunRepo, cfg.Check, logger)
	complianceChecker := checker.NewComplianceChecker(recordRepo, checkRunRepo, cfg.Check, logger)

	// Background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerManager := worker.NewManager(logger)
	if cfg.Check.ScheduleEnabled {
		workerManager.Register(worker.NewCheckWorker(integrityChecker, cfg.Check, logger))
	}
	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	// HTTP server
	handlers := httpserver.NewHandlers(
		importService,
		integrityChecker,
		complianceChecker,
		checkRunRepo,
		calendarService,
		cfg.Import,
		cfg.Check,
		logger,
	)
	server := httpserver.NewServer(cfg.Server, handlers, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutting down server...")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	cancel()
	workerManager.StopAll()
	if err := server.Stop(); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
