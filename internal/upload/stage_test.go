package upload

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"scribed/internal/chunking"
	"scribed/internal/logging"
	"scribed/internal/queue"
	"scribed/internal/retry"
	"scribed/internal/services"
	"scribed/internal/storage"
	"scribed/internal/testsupport"
)

func newTestStage(t *testing.T) (*Stage, *queue.Store, *testsupport.MemoryObjectStore) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	objects := testsupport.NewMemoryObjectStore()
	gateway := storage.NewGateway(objects, retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}, logging.NewNop())
	return NewStage(cfg, store, gateway, logging.NewNop()), store, objects
}

func seedJobWithChunks(t *testing.T, store *queue.Store, count int) *queue.Job {
	t.Helper()

	src := filepath.Join(t.TempDir(), "episode.mp3")
	testsupport.WriteFile(t, src, 128)
	job := testsupport.NewJob(t, store, "up-1", src)
	job.ScratchDir = t.TempDir()
	job.Status = queue.StatusUploading
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("update job: %v", err)
	}

	chunks := make([]queue.Chunk, 0, count)
	for i := 0; i < count; i++ {
		chunks = append(chunks, queue.Chunk{
			SeqIndex:     i,
			StartSeconds: float64(i) * 600,
			EndSeconds:   float64(i+1) * 600,
			StorageKey:   storage.ChunkKey(job.JobKey, i),
		})
	}
	if err := store.InsertChunks(context.Background(), job.ID, chunks); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}
	return job
}

func writeChunkFiles(t *testing.T, job *queue.Job, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		testsupport.WriteFile(t, chunking.ChunkFilePath(job.ScratchDir, i), int64(512+i))
	}
}

func TestExecuteUploadsEveryChunk(t *testing.T) {
	stage, store, objects := newTestStage(t)
	ctx := context.Background()

	job := seedJobWithChunks(t, store, 4)
	writeChunkFiles(t, job, 4)

	if err := stage.Execute(ctx, job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	for i := 0; i < 4; i++ {
		object, ok := objects.Object(storage.ChunkKey(job.JobKey, i))
		if !ok {
			t.Fatalf("chunk %d not uploaded", i)
		}
		if object.ContentType != "audio/wav" {
			t.Fatalf("chunk %d content type = %q", i, object.ContentType)
		}
		if int64(len(object.Data)) != int64(512+i) {
			t.Fatalf("chunk %d size = %d", i, len(object.Data))
		}
	}

	persisted, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if persisted.ProgressPercent != 100 {
		t.Fatalf("progress = %f", persisted.ProgressPercent)
	}
}

func TestExecuteFailsWithoutChunkPlan(t *testing.T) {
	stage, store, _ := newTestStage(t)

	src := filepath.Join(t.TempDir(), "episode.mp3")
	testsupport.WriteFile(t, src, 128)
	job := testsupport.NewJob(t, store, "no-plan", src)

	err := stage.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteFailsWhenChunkFileMissing(t *testing.T) {
	stage, store, objects := newTestStage(t)

	job := seedJobWithChunks(t, store, 3)
	// Only two of the three planned chunk files exist on disk.
	writeChunkFiles(t, job, 2)

	err := stage.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if objects.Len() > 2 {
		t.Fatalf("unexpected uploads after failure: %v", objects.Keys())
	}
}

func TestExecuteIsIdempotentAcrossRuns(t *testing.T) {
	stage, store, objects := newTestStage(t)
	ctx := context.Background()

	job := seedJobWithChunks(t, store, 2)
	writeChunkFiles(t, job, 2)

	if err := stage.Execute(ctx, job); err != nil {
		t.Fatalf("first run: %v", err)
	}
	puts := objects.PutCalls
	if err := stage.Execute(ctx, job); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if objects.PutCalls != puts {
		t.Fatalf("re-run re-uploaded chunks: %d -> %d puts", puts, objects.PutCalls)
	}
}
