package media

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"scribed/internal/queue"
	"scribed/internal/services"
	"scribed/internal/testsupport"
)

func newExtractionStage(t *testing.T, extractor *Extractor) (*Stage, *queue.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stage := NewStage(cfg, store, nil)
	stage.SetExtractor(extractor)
	return stage, store
}

func seedStagedJob(t *testing.T, store *queue.Store) *queue.Job {
	t.Helper()

	src := filepath.Join(t.TempDir(), "episode.mp3")
	testsupport.WriteFile(t, src, 128)
	job := testsupport.NewJob(t, store, "extract-1", src)
	job.ScratchDir = t.TempDir()
	job.Status = queue.StatusExtracting
	testsupport.WriteFile(t, job.StagedSourcePath(), 128)
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("update job: %v", err)
	}
	return job
}

func TestExtractionStageNormalizesAudio(t *testing.T) {
	extractor := NewExtractor("ffmpeg", "ffprobe", 16000, Limits{MaxDurationSeconds: 14400})
	extractor.WithProber(stubProbe(audioProbe("1250.5"), nil))
	extractor.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		testsupport.WriteFile(t, args[len(args)-1], 2048)
		return nil
	})

	stage, store := newExtractionStage(t, extractor)
	ctx := context.Background()
	job := seedStagedJob(t, store)

	if err := stage.Execute(ctx, job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if job.DurationSeconds != 1250.5 {
		t.Fatalf("duration = %f", job.DurationSeconds)
	}
	if want := filepath.Join(job.ScratchDir, "audio.wav"); job.AudioPath != want {
		t.Fatalf("audio path = %q, want %q", job.AudioPath, want)
	}

	persisted, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if persisted.AudioPath != job.AudioPath || persisted.DurationSeconds != 1250.5 {
		t.Fatalf("job not persisted: %+v", persisted)
	}
}

func TestExtractionStagePropagatesProbeRejections(t *testing.T) {
	extractor := NewExtractor("ffmpeg", "ffprobe", 16000, Limits{MaxDurationSeconds: 600})
	extractor.WithProber(stubProbe(audioProbe("7200"), nil))

	stage, store := newExtractionStage(t, extractor)
	job := seedStagedJob(t, store)

	err := stage.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrMediaTooLong) {
		t.Fatalf("expected media too long, got %v", err)
	}
}

func TestExtractionStageFailsOnEmptyOutput(t *testing.T) {
	extractor := NewExtractor("ffmpeg", "ffprobe", 16000, Limits{MaxDurationSeconds: 14400})
	extractor.WithProber(stubProbe(audioProbe("60"), nil))
	extractor.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		// ffmpeg "succeeds" without writing the destination.
		return nil
	})

	stage, store := newExtractionStage(t, extractor)
	job := seedStagedJob(t, store)

	err := stage.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrMediaEmpty) {
		t.Fatalf("expected media empty, got %v", err)
	}
}

func TestExtractionStageRequiresStagedSource(t *testing.T) {
	extractor := NewExtractor("ffmpeg", "ffprobe", 16000, Limits{})
	stage, store := newExtractionStage(t, extractor)

	src := filepath.Join(t.TempDir(), "episode.mp3")
	testsupport.WriteFile(t, src, 128)
	job := testsupport.NewJob(t, store, "unstaged", src)

	err := stage.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
