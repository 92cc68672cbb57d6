package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scribed/internal/logging"
	"scribed/internal/queue"
	"scribed/internal/services"
	"scribed/internal/stage"
)

// cancelPollInterval bounds how long a running stage keeps working
// after a cancellation request lands in the queue.
const cancelPollInterval = time.Second

// runJob executes the full stage sequence for one claimed job. The
// first stage's processing transition already happened on the
// dispatcher goroutine.
func (m *Manager) runJob(ctx context.Context, job *queue.Job) {
	jobStart := time.Now()
	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()

	var watcher sync.WaitGroup
	watcher.Add(1)
	go m.watchCancellation(jobCtx, &watcher, job.ID, cancelJob)
	defer watcher.Wait()

	logger := m.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobKey, job.JobKey),
	)

	for i, pipelineStage := range m.stages {
		if i > 0 {
			if done := m.advance(jobCtx, logger, job, pipelineStage.Processing); done {
				return
			}
		}

		err := m.executeStage(jobCtx, logger, pipelineStage, job)
		if err == nil {
			job.Status = pipelineStage.Done
			continue
		}

		cancelled := m.cancelRequested(ctx, job.ID)
		switch {
		case cancelled:
			m.finalizeCancelled(ctx, logger, job)
		case errors.Is(err, context.Canceled):
			// Daemon shutdown. The job stays in its processing status;
			// the startup stale sweep will fail it if nothing resumes.
			logger.Info("job interrupted by shutdown",
				logging.String(logging.FieldStage, pipelineStage.Name),
				logging.String(logging.FieldEventType, "job_interrupted"),
			)
		default:
			m.finalizeFailed(ctx, logger, job, pipelineStage.Name, err)
		}
		return
	}

	m.finalizeCompleted(ctx, logger, job, jobStart)
}

// advance moves the job into the next processing status, bailing out
// when a cancellation already landed.
func (m *Manager) advance(ctx context.Context, logger *slog.Logger, job *queue.Job, processing queue.Status) (done bool) {
	if err := ctx.Err(); err != nil {
		if m.cancelRequested(context.WithoutCancel(ctx), job.ID) {
			m.finalizeCancelled(context.WithoutCancel(ctx), logger, job)
		}
		return true
	}
	now := time.Now().UTC()
	job.Status = processing
	job.LastHeartbeat = &now
	if err := m.store.Update(ctx, job); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist processing transition", logging.Error(err))
		return true
	}
	return false
}

func (m *Manager) executeStage(ctx context.Context, logger *slog.Logger, pipelineStage PipelineStage, job *queue.Job) error {
	stageStart := time.Now()
	requestID := uuid.NewString()

	stageCtx := services.WithJobID(ctx, job.ID)
	stageCtx = services.WithStage(stageCtx, pipelineStage.Name)
	stageCtx = services.WithRequestID(stageCtx, requestID)

	stageLogger := logger.With(
		logging.String(logging.FieldStage, pipelineStage.Name),
		logging.String(logging.FieldRequestID, requestID),
	)
	if aware, ok := pipelineStage.Handler.(loggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("source_file", strings.TrimSpace(job.SourceFilename)),
	)

	if err := pipelineStage.Handler.Prepare(stageCtx, job); err != nil {
		return err
	}

	execErr := m.executeWithHeartbeat(stageCtx, pipelineStage.Handler, job)
	if execErr != nil {
		return execErr
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(pipelineStage.Done)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *queue.Job) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	execErr := handler.Execute(ctx, job)
	hbCancel()
	hbWG.Wait()
	return execErr
}

// watchCancellation polls the queue's cancellation flag and tears down
// the job context when it is set.
func (m *Manager) watchCancellation(ctx context.Context, wg *sync.WaitGroup, jobID int64, cancelJob context.CancelFunc) {
	defer wg.Done()
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			requested, err := m.store.CancelRequested(ctx, jobID)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					m.logger.Warn("cancellation check failed", logging.Error(err))
				}
				continue
			}
			if requested {
				cancelJob()
				return
			}
		}
	}
}

func (m *Manager) cancelRequested(ctx context.Context, jobID int64) bool {
	requested, err := m.store.CancelRequested(context.WithoutCancel(ctx), jobID)
	if err != nil {
		return false
	}
	return requested
}

func (m *Manager) finalizeCompleted(ctx context.Context, logger *slog.Logger, job *queue.Job, jobStart time.Time) {
	finalCtx := context.WithoutCancel(ctx)

	job.Status = queue.StatusCompleted
	job.LastHeartbeat = nil
	if job.ProgressPercent < 100 {
		job.ProgressPercent = 100
	}
	job.SetProgress(queue.StageLabel(queue.StatusCompleted), "Transcript ready", job.ProgressPercent)
	if err := m.store.Update(finalCtx, job); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist completion", logging.Error(err))
		return
	}

	m.cleanup(finalCtx, logger, job)

	logger.Info("job completed",
		logging.Duration("elapsed", time.Since(jobStart)),
		logging.String(logging.FieldEventType, "job_completed"),
	)
	if err := m.notifier.NotifyTranscriptionCompleted(finalCtx, job.SourceFilename, time.Since(job.CreatedAt)); err != nil {
		logger.Debug("completion notification failed", logging.Error(err))
	}
}

func (m *Manager) finalizeFailed(ctx context.Context, logger *slog.Logger, job *queue.Job, stageName string, stageErr error) {
	finalCtx := context.WithoutCancel(ctx)
	m.setLastError(stageErr)

	kind := services.Kind(stageErr)
	message := strings.TrimSpace(stageErr.Error())
	job.SetFailed(kind, message)
	if err := m.store.Update(finalCtx, job); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	m.cleanup(finalCtx, logger, job)

	logger.Error("job failed",
		logging.String(logging.FieldStage, stageName),
		logging.String(logging.FieldErrorKind, kind),
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "job_failed"),
	)
	if err := m.notifier.NotifyJobFailed(finalCtx, job.SourceFilename, kind, message); err != nil {
		logger.Debug("failure notification failed", logging.Error(err))
	}
}

func (m *Manager) finalizeCancelled(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	finalCtx := context.WithoutCancel(ctx)

	job.SetCancelled()
	if err := m.store.Update(finalCtx, job); err != nil {
		logger.Error("failed to persist cancellation", logging.Error(err))
	}

	m.cleanup(finalCtx, logger, job)

	logger.Info("job cancelled",
		logging.String(logging.FieldEventType, "job_cancelled"),
	)
	if err := m.notifier.NotifyJobCancelled(finalCtx, job.SourceFilename); err != nil {
		logger.Debug("cancellation notification failed", logging.Error(err))
	}
}

// cleanup releases the job's scratch region and prunes objects the
// terminal state no longer needs. Completed and failed jobs keep their
// source and transcript objects but lose intermediate chunks (uploads
// are idempotent, so an explicit retry still converges); cancelled jobs
// lose everything.
func (m *Manager) cleanup(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	if job.ScratchDir != "" {
		if err := m.scratch.ReleasePath(job.ScratchDir); err != nil {
			logger.Warn("scratch release failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		}
	}

	switch job.Status {
	case queue.StatusCompleted, queue.StatusFailed:
		if err := m.gateway.DeleteChunks(ctx, job.JobKey); err != nil {
			logger.Warn("chunk object cleanup failed", logging.Error(err))
		}
	case queue.StatusCancelled:
		if err := m.gateway.DeleteAll(ctx, job.JobKey); err != nil {
			logger.Warn("job object cleanup failed", logging.Error(err))
		}
	}
}
