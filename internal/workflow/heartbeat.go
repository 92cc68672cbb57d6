package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"scribed/internal/logging"
	"scribed/internal/queue"
)

// HeartbeatMonitor keeps in-flight jobs visibly alive and fails the
// ones a dead daemon left behind.
type HeartbeatMonitor struct {
	store             *queue.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// FailStale marks processing jobs with expired heartbeats as failed.
// Status transitions are forward-only, so a job interrupted by a crash
// is failed rather than silently re-run with half-finished scratch
// state; the operator can retry it explicitly.
func (h *HeartbeatMonitor) FailStale(ctx context.Context, logger *slog.Logger) error {
	if h.heartbeatTimeout <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-h.heartbeatTimeout)
	failed, err := h.store.FailStaleProcessing(ctx, cutoff)
	if err != nil {
		return err
	}
	if failed > 0 {
		logger.Info("failed stale in-flight jobs",
			logging.Int64("count", failed),
			logging.String(logging.FieldEventType, "stale_jobs_failed"),
		)
	}
	return nil
}

// StartLoop refreshes the heartbeat of one job until ctx is cancelled.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID int64) {
	defer wg.Done()

	logger := logging.WithContext(ctx, logging.NewComponentLogger(h.logger, "workflow-heartbeat"))
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := h.store.UpdateHeartbeat(ctx, jobID)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			logger.Debug("daemon shutting down, heartbeat update cancelled")
		default:
			logger.Warn("heartbeat update failed", logging.Error(err))
		}
	}
}
