package chunking

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"scribed/internal/config"
	"scribed/internal/logging"
	"scribed/internal/media"
	"scribed/internal/queue"
	"scribed/internal/services"
	"scribed/internal/stage"
	"scribed/internal/storage"
)

const progressStageChunking = "Chunking audio"

// ChunkFilePath returns the scratch-local path of a chunk's WAV file.
func ChunkFilePath(scratchDir string, seqIndex int) string {
	return filepath.Join(scratchDir, "chunks", fmt.Sprintf("%05d.wav", seqIndex))
}

// Stage cuts the normalized audio into planned segments and records the
// plan in the queue. Cuts run sequentially; ffmpeg on PCM input is IO
// bound and parallel cuts just contend for the same disk.
type Stage struct {
	store     *queue.Store
	cfg       *config.Config
	extractor *media.Extractor
	logger    *slog.Logger
}

// NewStage constructs the chunking stage.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	var extractor *media.Extractor
	if cfg != nil {
		extractor = media.NewExtractor(cfg.FFmpegBinary(), cfg.FFprobeBinary(), cfg.Media.SampleRate, media.Limits{})
	}
	return &Stage{
		cfg:       cfg,
		store:     store,
		extractor: extractor,
		logger:    logging.NewComponentLogger(logger, "chunking"),
	}
}

// SetLogger routes stage logs into the job-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "chunking")
}

// SetExtractor overrides the segment cutter (for testing).
func (s *Stage) SetExtractor(extractor *media.Extractor) {
	s.extractor = extractor
}

// Prepare primes progress fields before executing the stage.
func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	if s == nil || s.cfg == nil || s.extractor == nil {
		return services.Wrap(services.ErrConfiguration, "chunking", "prepare", "chunking stage is not configured", nil)
	}
	if s.store == nil {
		return services.Wrap(services.ErrConfiguration, "chunking", "prepare", "queue store unavailable", nil)
	}
	job.SetProgress(progressStageChunking, "Planning audio segments", 0)
	return s.store.Update(ctx, job)
}

// Execute plans the segments, cuts them from the normalized WAV, and
// persists the plan.
func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	stageStart := time.Now()

	if job == nil {
		return services.Wrap(services.ErrValidation, "chunking", "execute", "job is nil", nil)
	}
	if job.AudioPath == "" {
		return services.Wrap(services.ErrValidation, "chunking", "execute", "job has no normalized audio", nil)
	}
	if _, err := os.Stat(job.AudioPath); err != nil {
		return services.Wrap(services.ErrValidation, "chunking", "execute", "normalized audio missing from scratch", err)
	}

	logger := logging.WithContext(ctx, s.logger)

	segments, err := Plan(job.DurationSeconds, s.cfg.Chunking.MaxChunkDurationSeconds)
	if err != nil {
		return services.Wrap(services.ErrValidation, "chunking", "execute", "could not plan segments", err)
	}

	chunkDir := filepath.Join(job.ScratchDir, "chunks")
	if err := os.MkdirAll(chunkDir, 0o755); err != nil {
		return services.Wrap(services.ErrResourceExhausted, "chunking", "execute", "could not create chunk directory", err)
	}

	chunks := make([]queue.Chunk, 0, len(segments))
	for _, segment := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest := ChunkFilePath(job.ScratchDir, segment.SeqIndex)
		if err := s.extractor.CutSegment(ctx, job.AudioPath, segment.StartSeconds, segment.DurationSeconds(), dest); err != nil {
			return services.Wrap(services.ErrResourceExhausted, "chunking", "execute",
				fmt.Sprintf("cut of segment %d failed", segment.SeqIndex), err)
		}
		chunks = append(chunks, queue.Chunk{
			SeqIndex:     segment.SeqIndex,
			StartSeconds: segment.StartSeconds,
			EndSeconds:   segment.EndSeconds,
			StorageKey:   storage.ChunkKey(job.JobKey, segment.SeqIndex),
			State:        queue.ChunkPending,
		})

		job.SetProgress(progressStageChunking,
			fmt.Sprintf("Cut segment %d/%d", segment.SeqIndex+1, len(segments)),
			float64(segment.SeqIndex+1)/float64(len(segments))*100)
		if err := s.store.Update(ctx, job); err != nil {
			return err
		}
	}

	if err := s.store.InsertChunks(ctx, job.ID, chunks); err != nil {
		return err
	}

	logger.Info("chunk plan materialized",
		logging.Int("chunks", len(chunks)),
		logging.Float64("duration_seconds", job.DurationSeconds),
		logging.Duration("elapsed", time.Since(stageStart)),
		logging.String(logging.FieldEventType, "chunks_cut"),
	)
	return nil
}

// HealthCheck verifies ffmpeg resolves.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s == nil || s.extractor == nil {
		return stage.Unhealthy("chunking", "chunking stage is not configured")
	}
	if err := s.extractor.HealthCheck(); err != nil {
		return stage.Unhealthy("chunking", err.Error())
	}
	return stage.Healthy("chunking")
}
