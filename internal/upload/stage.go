// Package upload pushes a job's chunk files into object storage with a
// bounded fan-out.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"scribed/internal/chunking"
	"scribed/internal/config"
	"scribed/internal/logging"
	"scribed/internal/queue"
	"scribed/internal/services"
	"scribed/internal/stage"
	"scribed/internal/storage"
)

const progressStageUploading = "Uploading chunks"

// Stage uploads every planned chunk to object storage. Uploads for one
// job run concurrently up to the configured fan-out; keys are
// deterministic so re-running after a crash re-converges instead of
// duplicating objects.
type Stage struct {
	store   *queue.Store
	cfg     *config.Config
	gateway *storage.Gateway
	logger  *slog.Logger
}

// NewStage constructs the upload stage.
func NewStage(cfg *config.Config, store *queue.Store, gateway *storage.Gateway, logger *slog.Logger) *Stage {
	return &Stage{
		cfg:     cfg,
		store:   store,
		gateway: gateway,
		logger:  logging.NewComponentLogger(logger, "upload"),
	}
}

// SetLogger routes stage logs into the job-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "upload")
}

// Prepare primes progress fields before executing the stage.
func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	if s == nil || s.cfg == nil || s.gateway == nil {
		return services.Wrap(services.ErrConfiguration, "upload", "prepare", "upload stage is not configured", nil)
	}
	if s.store == nil {
		return services.Wrap(services.ErrConfiguration, "upload", "prepare", "queue store unavailable", nil)
	}
	job.SetProgress(progressStageUploading, "Preparing chunk uploads", 0)
	return s.store.Update(ctx, job)
}

// Execute uploads all chunk files recorded for the job.
func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	stageStart := time.Now()

	if job == nil {
		return services.Wrap(services.ErrValidation, "upload", "execute", "job is nil", nil)
	}
	chunks, err := s.store.ChunksForJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return services.Wrap(services.ErrValidation, "upload", "execute", "job has no planned chunks", nil)
	}

	logger := logging.WithContext(ctx, s.logger)

	if err := s.gateway.EnsureBucket(ctx); err != nil {
		return err
	}

	fanOut := s.cfg.Storage.UploadConcurrency
	if fanOut < 1 {
		fanOut = 1
	}

	uploadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		firstErr  error
		completed int
	)
	sem := make(chan struct{}, fanOut)

	for i := range chunks {
		chunk := &chunks[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if uploadCtx.Err() != nil {
				return
			}
			err := s.uploadChunk(uploadCtx, job, chunk)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			completed++
			job.SetProgress(progressStageUploading,
				fmt.Sprintf("Uploaded chunk %d/%d", completed, len(chunks)),
				float64(completed)/float64(len(chunks))*100)
			if updateErr := s.store.Update(ctx, job); updateErr != nil && firstErr == nil {
				firstErr = updateErr
				cancel()
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Info("chunk uploads complete",
		logging.Int("chunks", len(chunks)),
		logging.Duration("elapsed", time.Since(stageStart)),
		logging.String(logging.FieldEventType, "chunks_uploaded"),
	)
	return nil
}

func (s *Stage) uploadChunk(ctx context.Context, job *queue.Job, chunk *queue.Chunk) error {
	local := chunking.ChunkFilePath(job.ScratchDir, chunk.SeqIndex)
	if _, err := os.Stat(local); err != nil {
		return services.Wrap(services.ErrValidation, "upload", "execute",
			fmt.Sprintf("chunk file %d missing from scratch", chunk.SeqIndex), err)
	}
	return s.gateway.UploadFile(ctx, chunk.StorageKey, local, "audio/wav")
}

// HealthCheck verifies the object store responds.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s == nil || s.gateway == nil {
		return stage.Unhealthy("upload", "upload stage is not configured")
	}
	if err := s.gateway.EnsureBucket(ctx); err != nil {
		return stage.Unhealthy("upload", err.Error())
	}
	return stage.Healthy("upload")
}
