package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openhours/workcheck/internal/checker"
	"github.com/openhours/workcheck/internal/config"
	"github.com/openhours/workcheck/internal/domain/entity"
)

// CheckWorker runs the integrity checker on a schedule over a sliding
// recent-days window, so missing reports surface without anyone asking.
type CheckWorker struct {
	integrity *checker.IntegrityChecker
	logger    *zap.Logger

	interval   time.Duration
	windowDays int

	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewCheckWorker creates a new scheduled check worker.
func NewCheckWorker(integrity *checker.IntegrityChecker, cfg config.CheckConfig, logger *zap.Logger) *CheckWorker {
	return &CheckWorker{
		integrity:  integrity,
		logger:     logger,
		interval:   cfg.ScheduleInterval,
		windowDays: cfg.ScheduleWindowDays,
	}
}

// Start launches the check loop. Starting an already running worker fails.
func (w *CheckWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("check worker is already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true

	w.logger.Info("CheckWorker started",
		zap.Duration("interval", w.interval),
		zap.Int("window_days", w.windowDays))

	go w.runLoop()

	return nil
}

// Stop cancels the check loop. Safe to call when the worker never started.
func (w *CheckWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return
	}

	w.isRunning = false
	if w.cancel != nil {
		w.cancel()
	}

	w.logger.Info("CheckWorker stopped")
}

// Name identifies the worker in lifecycle logs.
func (w *CheckWorker) Name() string {
	return "CheckWorker"
}

func (w *CheckWorker) runLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("Check loop context cancelled")
			return

		case <-ticker.C:
			w.runOnce()
		}
	}
}

// runOnce checks the window ending yesterday; today is still being reported.
func (w *CheckWorker) runOnce() {
	end := time.Now().UTC().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(w.windowDays - 1))

	filters := entity.CheckFilters{
		StartDate: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC),
	}

	result, err := w.integrity.Run(w.ctx, filters, entity.TriggerScheduled, "scheduler")
	if err != nil {
		w.logger.Error("Scheduled integrity check failed", zap.Error(err))
		return
	}

	w.logger.Info("Scheduled integrity check completed",
		zap.String("check_no", result.CheckNo),
		zap.Int("issues", result.IssueCount()))
}
