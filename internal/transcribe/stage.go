package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"scribed/internal/chunking"
	"scribed/internal/config"
	"scribed/internal/logging"
	"scribed/internal/queue"
	"scribed/internal/retry"
	"scribed/internal/services"
	"scribed/internal/stage"
	"scribed/internal/storage"
)

const progressStageTranscribing = "Transcribing"

// Stage runs chunk transcription for a job and publishes the merged
// transcript artifacts.
type Stage struct {
	store    *queue.Store
	cfg      *config.Config
	provider Provider
	gateway  *storage.Gateway
	logger   *slog.Logger
}

// NewStage constructs the transcription stage.
func NewStage(cfg *config.Config, store *queue.Store, provider Provider, gateway *storage.Gateway, logger *slog.Logger) *Stage {
	return &Stage{
		cfg:      cfg,
		store:    store,
		provider: provider,
		gateway:  gateway,
		logger:   logging.NewComponentLogger(logger, "transcribe"),
	}
}

// SetLogger routes stage logs into the job-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "transcribe")
}

// Prepare primes progress fields before executing the stage.
func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	if s == nil || s.cfg == nil || s.provider == nil || s.gateway == nil {
		return services.Wrap(services.ErrConfiguration, "transcribe", "prepare", "transcription stage is not configured", nil)
	}
	if s.store == nil {
		return services.Wrap(services.ErrConfiguration, "transcribe", "prepare", "queue store unavailable", nil)
	}
	job.SetProgress(progressStageTranscribing, "Submitting chunks for transcription", 0)
	return s.store.Update(ctx, job)
}

// Execute transcribes every chunk, merges the results in sequence
// order, and uploads the transcript artifacts.
func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	stageStart := time.Now()

	if job == nil {
		return services.Wrap(services.ErrValidation, "transcribe", "execute", "job is nil", nil)
	}
	chunks, err := s.store.ChunksForJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return services.Wrap(services.ErrValidation, "transcribe", "execute", "job has no planned chunks", nil)
	}

	logger := logging.WithContext(ctx, s.logger)

	keyBySeq := make(map[int]string, len(chunks))
	for _, chunk := range chunks {
		keyBySeq[chunk.SeqIndex] = chunk.StorageKey
	}

	orchestrator := NewOrchestrator(s.store, s.provider, s.retryPolicy(), s.cfg.Transcription.Concurrency, s.logger)
	segments, err := orchestrator.Run(ctx, job, chunks, func(seqIndex int) (string, error) {
		return s.resolveChunkAudio(ctx, job, seqIndex, keyBySeq[seqIndex])
	})
	if err != nil {
		return err
	}

	job.SetProgress(progressStageTranscribing, "Publishing transcript", 90)
	if err := s.store.Update(ctx, job); err != nil {
		return err
	}

	text := MergeText(segments)
	srtDoc := RenderSRT(segments)
	if err := s.gateway.UploadBytes(ctx, storage.TranscriptTextKey(job.JobKey), []byte(text), "text/plain; charset=utf-8"); err != nil {
		return err
	}
	if err := s.gateway.UploadBytes(ctx, storage.TranscriptSRTKey(job.JobKey), []byte(srtDoc), "application/x-subrip"); err != nil {
		return err
	}

	job.Transcript = text
	job.SetProgress(progressStageTranscribing, "Transcript ready", 100)
	if err := s.store.Update(ctx, job); err != nil {
		return err
	}

	logger.Info("transcription complete",
		logging.Int("chunks", len(chunks)),
		logging.Int("transcript_bytes", len(text)),
		logging.Duration("elapsed", time.Since(stageStart)),
		logging.String(logging.FieldEventType, "transcription_complete"),
	)
	return nil
}

// resolveChunkAudio prefers the chunk file still sitting in scratch and
// falls back to fetching the uploaded object.
func (s *Stage) resolveChunkAudio(ctx context.Context, job *queue.Job, seqIndex int, storageKey string) (string, error) {
	local := chunking.ChunkFilePath(job.ScratchDir, seqIndex)
	if info, err := os.Stat(local); err == nil && info.Size() > 0 {
		return local, nil
	}
	if storageKey == "" {
		return "", services.Wrap(services.ErrValidation, "transcribe", "resolve audio",
			fmt.Sprintf("chunk %d has no scratch file and no storage key", seqIndex), nil)
	}
	if err := s.gateway.DownloadFile(ctx, storageKey, local); err != nil {
		return "", err
	}
	return local, nil
}

func (s *Stage) retryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: s.cfg.Transcription.RetryLimit,
		BaseDelay:   time.Duration(s.cfg.Transcription.RetryDelayMS) * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}
}

// HealthCheck verifies the provider has usable credentials.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s == nil || s.provider == nil {
		return stage.Unhealthy("transcribe", "transcription stage is not configured")
	}
	if ready, ok := s.provider.(interface{ Ready() error }); ok {
		if err := ready.Ready(); err != nil {
			return stage.Unhealthy("transcribe", err.Error())
		}
	}
	return stage.Healthy("transcribe")
}
