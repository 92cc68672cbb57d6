package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"scribed/internal/config"
	"scribed/internal/logging"
	"scribed/internal/queue"
	"scribed/internal/services"
	"scribed/internal/stage"
)

const (
	progressStageExtracting = "Extracting audio"
	audioFileName           = "audio.wav"
)

// Stage integrates audio extraction with the workflow manager. It
// probes the staged upload, enforces duration limits, and writes the
// normalized mono WAV into the job's scratch region.
type Stage struct {
	store     *queue.Store
	cfg       *config.Config
	extractor *Extractor
	logger    *slog.Logger
}

// NewStage constructs the extraction stage.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	var extractor *Extractor
	if cfg != nil {
		extractor = NewExtractor(cfg.FFmpegBinary(), cfg.FFprobeBinary(), cfg.Media.SampleRate, Limits{
			MaxDurationSeconds: cfg.Media.MaxDurationSeconds,
			MinDurationSeconds: cfg.Media.MinDurationSeconds,
		})
	}
	return &Stage{
		cfg:       cfg,
		store:     store,
		extractor: extractor,
		logger:    logging.NewComponentLogger(logger, "media"),
	}
}

// SetLogger routes stage logs into the job-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "media")
}

// SetExtractor overrides the extractor (for testing).
func (s *Stage) SetExtractor(extractor *Extractor) {
	s.extractor = extractor
}

// Prepare primes progress fields before executing the stage.
func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	if s == nil || s.cfg == nil || s.extractor == nil {
		return services.Wrap(services.ErrConfiguration, "media", "prepare", "extraction stage is not configured", nil)
	}
	if s.store == nil {
		return services.Wrap(services.ErrConfiguration, "media", "prepare", "queue store unavailable", nil)
	}
	job.SetProgress(progressStageExtracting, "Preparing audio extraction", 0)
	return s.store.Update(ctx, job)
}

// Execute probes and normalizes the staged upload.
func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	stageStart := time.Now()

	if job == nil {
		return services.Wrap(services.ErrValidation, "media", "execute", "job is nil", nil)
	}
	source := job.StagedSourcePath()
	if source == "" {
		return services.Wrap(services.ErrValidation, "media", "execute", "job has no staged source", nil)
	}
	if _, err := os.Stat(source); err != nil {
		return services.Wrap(services.ErrValidation, "media", "execute", "staged source missing from scratch", err)
	}

	logger := logging.WithContext(ctx, s.logger)

	duration, err := s.extractor.Probe(ctx, source)
	if err != nil {
		return err
	}
	job.DurationSeconds = duration
	job.SetProgress(progressStageExtracting, fmt.Sprintf("Normalizing %.1fs of audio", duration), 25)
	if err := s.store.Update(ctx, job); err != nil {
		return err
	}

	dest := filepath.Join(job.ScratchDir, audioFileName)
	if err := s.extractor.ExtractMonoWAV(ctx, source, dest); err != nil {
		return err
	}
	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrMediaEmpty, "media", "execute", "extraction produced no audio data", err)
	}

	job.AudioPath = dest
	job.SetProgress(progressStageExtracting, "Audio normalized", 100)
	if err := s.store.Update(ctx, job); err != nil {
		return err
	}

	logger.Info("audio extraction complete",
		logging.Float64("duration_seconds", duration),
		logging.Int64("audio_bytes", info.Size()),
		logging.Duration("elapsed", time.Since(stageStart)),
		logging.String(logging.FieldEventType, "audio_extracted"),
	)
	return nil
}

// HealthCheck verifies the ffmpeg and ffprobe binaries resolve.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s == nil || s.extractor == nil {
		return stage.Unhealthy("media", "extraction stage is not configured")
	}
	if err := s.extractor.HealthCheck(); err != nil {
		return stage.Unhealthy("media", err.Error())
	}
	return stage.Healthy("media")
}
