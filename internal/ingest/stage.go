// Package ingest stages accepted uploads into scratch and retains the
// raw source in object storage before any processing touches it.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribed/internal/config"
	"scribed/internal/fileutil"
	"scribed/internal/logging"
	"scribed/internal/queue"
	"scribed/internal/scratch"
	"scribed/internal/services"
	"scribed/internal/stage"
	"scribed/internal/storage"
)

const progressStageStaging = "Staging upload"

// supportedExtensions lists the container formats accepted for
// ingestion. Anything else is rejected before compute is spent.
var supportedExtensions = map[string]struct{}{
	".aac":  {},
	".avi":  {},
	".flac": {},
	".m4a":  {},
	".mkv":  {},
	".mov":  {},
	".mp3":  {},
	".mp4":  {},
	".ogg":  {},
	".wav":  {},
	".webm": {},
}

// SupportedExtension reports whether the filename's extension is an
// accepted upload format.
func SupportedExtension(filename string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Stage copies the upload into the job's scratch region and puts the
// raw source into object storage.
type Stage struct {
	store   *queue.Store
	cfg     *config.Config
	scratch *scratch.Manager
	gateway *storage.Gateway
	logger  *slog.Logger
}

// NewStage constructs the staging stage.
func NewStage(cfg *config.Config, store *queue.Store, scratchMgr *scratch.Manager, gateway *storage.Gateway, logger *slog.Logger) *Stage {
	return &Stage{
		cfg:     cfg,
		store:   store,
		scratch: scratchMgr,
		gateway: gateway,
		logger:  logging.NewComponentLogger(logger, "ingest"),
	}
}

// SetLogger routes stage logs into the job-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "ingest")
}

// Prepare primes progress fields before executing the stage.
func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	if s == nil || s.cfg == nil || s.scratch == nil || s.gateway == nil {
		return services.Wrap(services.ErrConfiguration, "ingest", "prepare", "staging stage is not configured", nil)
	}
	if s.store == nil {
		return services.Wrap(services.ErrConfiguration, "ingest", "prepare", "queue store unavailable", nil)
	}
	job.SetProgress(progressStageStaging, "Preparing scratch space", 0)
	return s.store.Update(ctx, job)
}

// Execute validates the upload, copies it into scratch, and retains the
// raw source object.
func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	stageStart := time.Now()

	if job == nil {
		return services.Wrap(services.ErrValidation, "ingest", "execute", "job is nil", nil)
	}
	if !SupportedExtension(job.SourceFilename) {
		return services.Wrap(services.ErrUnsupportedMedia, "ingest", "execute",
			fmt.Sprintf("file extension %q is not a supported upload format", filepath.Ext(job.SourceFilename)), nil)
	}
	info, err := os.Stat(job.SourcePath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "ingest", "execute", "upload no longer exists at source path", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrMediaEmpty, "ingest", "execute", "upload is zero bytes", nil)
	}

	logger := logging.WithContext(ctx, s.logger)

	// A retried job may carry a scratch path that terminal cleanup
	// already removed; treat a vanished directory as unassigned.
	if job.ScratchDir != "" {
		if _, err := os.Stat(job.ScratchDir); err != nil {
			job.ScratchDir = ""
		}
	}
	if job.ScratchDir == "" {
		region, err := s.scratch.Acquire(job.JobKey)
		if err != nil {
			return err
		}
		job.ScratchDir = region.Path()
		if err := s.store.Update(ctx, job); err != nil {
			return err
		}
	}

	staged := job.StagedSourcePath()
	job.SetProgress(progressStageStaging, "Copying upload into scratch", 25)
	if err := s.store.Update(ctx, job); err != nil {
		return err
	}
	if err := fileutil.CopyFileVerified(job.SourcePath, staged); err != nil {
		return services.Wrap(services.ErrResourceExhausted, "ingest", "execute", "copy into scratch failed", err)
	}

	job.SetProgress(progressStageStaging, "Retaining raw source object", 70)
	if err := s.store.Update(ctx, job); err != nil {
		return err
	}
	sourceKey := storage.SourceKey(job.JobKey, job.SourceFilename)
	if err := s.gateway.UploadFile(ctx, sourceKey, staged, job.ContentType); err != nil {
		return err
	}

	job.SetProgress(progressStageStaging, "Upload staged", 100)
	if err := s.store.Update(ctx, job); err != nil {
		return err
	}

	logger.Info("upload staged",
		logging.Int64("source_bytes", info.Size()),
		logging.String("source_key", sourceKey),
		logging.Duration("elapsed", time.Since(stageStart)),
		logging.String(logging.FieldEventType, "upload_staged"),
	)
	return nil
}

// HealthCheck verifies the scratch root is writable.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s == nil || s.cfg == nil {
		return stage.Unhealthy("ingest", "staging stage is not configured")
	}
	probe := filepath.Join(s.cfg.Paths.ScratchDir, ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return stage.Unhealthy("ingest", fmt.Sprintf("scratch dir not writable: %v", err))
	}
	_ = os.Remove(probe)
	return stage.Healthy("ingest")
}
