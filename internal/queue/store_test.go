package queue_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scribed/internal/queue"
	"scribed/internal/testsupport"
)

func newSourceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "episode.mp3")
	testsupport.WriteFile(t, path, 128)
	return path
}

func TestNewJobGeneratesKeyWhenEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.NewJob(context.Background(), "", newSourceFile(t), "audio/mpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.JobKey == "" {
		t.Fatal("expected generated job key")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("status = %q", job.Status)
	}
	if job.SourceFilename != "episode.mp3" {
		t.Fatalf("source filename = %q", job.SourceFilename)
	}
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set")
	}
}

func TestNewJobRejectsDuplicateActiveKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	src := newSourceFile(t)

	if _, err := store.NewJob(ctx, "episode-7", src, "audio/mpeg"); err != nil {
		t.Fatalf("first job: %v", err)
	}
	_, err := store.NewJob(ctx, "episode-7", src, "audio/mpeg")
	if !errors.Is(err, queue.ErrJobAlreadyActive) {
		t.Fatalf("expected ErrJobAlreadyActive, got %v", err)
	}
}

func TestNewJobAllowsReuseOfTerminalKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	src := newSourceFile(t)

	job, err := store.NewJob(ctx, "episode-7", src, "audio/mpeg")
	if err != nil {
		t.Fatalf("first job: %v", err)
	}
	job.Status = queue.StatusCompleted
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := store.NewJob(ctx, "episode-7", src, "audio/mpeg"); err != nil {
		t.Fatalf("re-submitting a finished key should work: %v", err)
	}
}

func TestUpdateAndGetByKeyRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "roundtrip", newSourceFile(t))
	job.Status = queue.StatusExtracted
	job.ScratchDir = "/tmp/scratch/job-roundtrip"
	job.AudioPath = "/tmp/scratch/job-roundtrip/audio.wav"
	job.DurationSeconds = 1250.5
	job.SetProgress("Extracting", "Extracting audio", 25)
	heartbeat := time.Now().UTC().Truncate(time.Millisecond)
	job.LastHeartbeat = &heartbeat
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetByKey(ctx, "roundtrip")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if got == nil {
		t.Fatal("job not found")
	}
	if got.Status != queue.StatusExtracted {
		t.Fatalf("status = %q", got.Status)
	}
	if got.DurationSeconds != 1250.5 {
		t.Fatalf("duration = %f", got.DurationSeconds)
	}
	if got.AudioPath != job.AudioPath || got.ScratchDir != job.ScratchDir {
		t.Fatalf("paths lost: %+v", got)
	}
	if got.ProgressStage != "Extracting" || got.ProgressPercent != 25 {
		t.Fatalf("progress lost: %+v", got)
	}
	if got.LastHeartbeat == nil || !got.LastHeartbeat.Equal(heartbeat) {
		t.Fatalf("heartbeat = %v, want %v", got.LastHeartbeat, heartbeat)
	}
}

func TestNextPendingReturnsOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "first", newSourceFile(t))
	time.Sleep(2 * time.Millisecond)
	testsupport.NewJob(t, store, "second", newSourceFile(t))

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("next pending: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("next pending = %+v, want job %d", next, first.ID)
	}

	first.Status = queue.StatusStaging
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("update: %v", err)
	}
	next, err = store.NextPending(ctx)
	if err != nil {
		t.Fatalf("next pending: %v", err)
	}
	if next == nil || next.JobKey != "second" {
		t.Fatalf("next pending = %+v, want second", next)
	}
}

func TestRequestCancelOnlyTouchesNonTerminalJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "cancel-me", newSourceFile(t))
	applied, err := store.RequestCancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("request cancel: %v", err)
	}
	if !applied {
		t.Fatal("cancel flag not applied")
	}
	flagged, err := store.CancelRequested(ctx, job.ID)
	if err != nil {
		t.Fatalf("cancel requested: %v", err)
	}
	if !flagged {
		t.Fatal("cancel flag not readable")
	}

	done := testsupport.NewJob(t, store, "done", newSourceFile(t))
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("update: %v", err)
	}
	applied, err = store.RequestCancel(ctx, done.ID)
	if err != nil {
		t.Fatalf("request cancel: %v", err)
	}
	if applied {
		t.Fatal("terminal job must not be cancellable")
	}
}

func TestFailStaleProcessingFailsExpiredHeartbeats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stale := testsupport.NewJob(t, store, "stale", newSourceFile(t))
	stale.Status = queue.StatusTranscribing
	old := time.Now().UTC().Add(-time.Hour)
	stale.LastHeartbeat = &old
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("update stale: %v", err)
	}

	live := testsupport.NewJob(t, store, "live", newSourceFile(t))
	live.Status = queue.StatusTranscribing
	now := time.Now().UTC()
	live.LastHeartbeat = &now
	if err := store.Update(ctx, live); err != nil {
		t.Fatalf("update live: %v", err)
	}

	pending := testsupport.NewJob(t, store, "waiting", newSourceFile(t))

	count, err := store.FailStaleProcessing(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("fail stale: %v", err)
	}
	if count != 1 {
		t.Fatalf("failed %d jobs, want 1", count)
	}

	got, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("get stale: %v", err)
	}
	if got.Status != queue.StatusFailed {
		t.Fatalf("stale job status = %q", got.Status)
	}
	if got.ErrorMessage != queue.DaemonStopReason {
		t.Fatalf("error message = %q", got.ErrorMessage)
	}
	if got.LastHeartbeat != nil {
		t.Fatal("heartbeat should be cleared")
	}

	for _, job := range []*queue.Job{live, pending} {
		got, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("get %s: %v", job.JobKey, err)
		}
		if got.Status == queue.StatusFailed {
			t.Fatalf("%s should not be failed", job.JobKey)
		}
	}
}

func TestRetryFailedRequeuesJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	failed := testsupport.NewJob(t, store, "failed", newSourceFile(t))
	failed.SetFailed("transcription", "provider rejected the audio")
	failed.CancelRequested = true
	failed.ScratchDir = filepath.Join(t.TempDir(), "job-failed")
	failed.AudioPath = filepath.Join(failed.ScratchDir, "audio.wav")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("update: %v", err)
	}

	count, err := store.RetryFailed(ctx, failed.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("retried %d jobs, want 1", count)
	}

	got, err := store.GetByID(ctx, failed.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != queue.StatusPending {
		t.Fatalf("status = %q", got.Status)
	}
	if got.ErrorKind != "" || got.ErrorMessage != "" {
		t.Fatalf("error fields not cleared: %+v", got)
	}
	if got.CancelRequested {
		t.Fatal("cancel flag not cleared on retry")
	}
	if got.ScratchDir != "" || got.AudioPath != "" {
		t.Fatalf("scratch state not cleared on retry: scratch=%q audio=%q", got.ScratchDir, got.AudioPath)
	}
}

func TestRetryFailedIgnoresNonFailedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "running", newSourceFile(t))
	job.Status = queue.StatusUploading
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	count, err := store.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("retried %d jobs, want 0", count)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "a", newSourceFile(t))
	b := testsupport.NewJob(t, store, "b", newSourceFile(t))
	b.Status = queue.StatusCompleted
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("update: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("listed %d jobs, want 2", len(all))
	}

	completed, err := store.List(ctx, queue.StatusCompleted)
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(completed) != 1 || completed[0].JobKey != "b" {
		t.Fatalf("completed = %+v", completed)
	}
}

func TestClearCompletedLeavesOtherJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	done := testsupport.NewJob(t, store, "done", newSourceFile(t))
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("update: %v", err)
	}
	testsupport.NewJob(t, store, "pending", newSourceFile(t))

	count, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("clear completed: %v", err)
	}
	if count != 1 {
		t.Fatalf("cleared %d jobs, want 1", count)
	}
	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].JobKey != "pending" {
		t.Fatalf("remaining = %+v", remaining)
	}
}

func TestRemoveDeletesJobAndChunks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "with-chunks", newSourceFile(t))
	chunks := []queue.Chunk{
		{SeqIndex: 0, StartSeconds: 0, EndSeconds: 600, StorageKey: "jobs/with-chunks/chunks/00000.wav"},
		{SeqIndex: 1, StartSeconds: 600, EndSeconds: 900, StorageKey: "jobs/with-chunks/chunks/00001.wav"},
	}
	if err := store.InsertChunks(ctx, job.ID, chunks); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	removed, err := store.Remove(ctx, job.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Fatal("job not removed")
	}
	orphaned, err := store.ChunksForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("chunks for job: %v", err)
	}
	if len(orphaned) != 0 {
		t.Fatalf("chunks survived job removal: %+v", orphaned)
	}
}

func TestInsertChunksValidatesPlan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "plan", newSourceFile(t))

	cases := []struct {
		name   string
		chunks []queue.Chunk
	}{
		{"wrong index", []queue.Chunk{{SeqIndex: 1, StartSeconds: 0, EndSeconds: 10}}},
		{"zero duration", []queue.Chunk{{SeqIndex: 0, StartSeconds: 5, EndSeconds: 5}}},
		{"overlap", []queue.Chunk{
			{SeqIndex: 0, StartSeconds: 0, EndSeconds: 10},
			{SeqIndex: 1, StartSeconds: 5, EndSeconds: 15},
		}},
	}
	for _, tc := range cases {
		if err := store.InsertChunks(ctx, job.ID, tc.chunks); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestInsertChunksReplacesPreviousPlan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "replan", newSourceFile(t))

	first := []queue.Chunk{
		{SeqIndex: 0, StartSeconds: 0, EndSeconds: 600, StorageKey: "jobs/replan/chunks/00000.wav"},
		{SeqIndex: 1, StartSeconds: 600, EndSeconds: 1200, StorageKey: "jobs/replan/chunks/00001.wav"},
	}
	if err := store.InsertChunks(ctx, job.ID, first); err != nil {
		t.Fatalf("first plan: %v", err)
	}
	second := []queue.Chunk{
		{SeqIndex: 0, StartSeconds: 0, EndSeconds: 900, StorageKey: "jobs/replan/chunks/00000.wav"},
	}
	if err := store.InsertChunks(ctx, job.ID, second); err != nil {
		t.Fatalf("second plan: %v", err)
	}

	chunks, err := store.ChunksForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("chunks for job: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected replacement plan, got %d chunks", len(chunks))
	}
	if chunks[0].State != queue.ChunkPending {
		t.Fatalf("chunk state = %q", chunks[0].State)
	}
}

func TestChunksForJobOrdersBySequence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.NewJob(t, store, "ordered", newSourceFile(t))

	chunks := []queue.Chunk{
		{SeqIndex: 0, StartSeconds: 0, EndSeconds: 600},
		{SeqIndex: 1, StartSeconds: 600, EndSeconds: 1200},
		{SeqIndex: 2, StartSeconds: 1200, EndSeconds: 1250},
	}
	if err := store.InsertChunks(ctx, job.ID, chunks); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	stored, err := store.ChunksForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("chunks for job: %v", err)
	}
	for i, chunk := range stored {
		if chunk.SeqIndex != i {
			t.Fatalf("chunk at position %d has index %d", i, chunk.SeqIndex)
		}
		if chunk.JobID != job.ID {
			t.Fatalf("chunk job id = %d", chunk.JobID)
		}
	}
}

func TestParseStatus(t *testing.T) {
	status, ok := queue.ParseStatus(" Transcribing ")
	if !ok || status != queue.StatusTranscribing {
		t.Fatalf("ParseStatus = %q, %v", status, ok)
	}
	if _, ok := queue.ParseStatus("bogus"); ok {
		t.Fatal("bogus status should not parse")
	}
}

func TestHealthAggregatesCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "p1", newSourceFile(t))
	running := testsupport.NewJob(t, store, "r1", newSourceFile(t))
	running.Status = queue.StatusChunking
	if err := store.Update(ctx, running); err != nil {
		t.Fatalf("update: %v", err)
	}
	failed := testsupport.NewJob(t, store, "f1", newSourceFile(t))
	failed.SetFailed("internal", "boom")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("update: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 3 || health.Pending != 1 || health.Processing != 1 || health.Failed != 1 {
		t.Fatalf("health = %+v", health)
	}
}

func TestUpdateChunkToleratesConcurrentWriters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "parallel", newSourceFile(t))
	plan := make([]queue.Chunk, 8)
	for i := range plan {
		plan[i] = queue.Chunk{
			SeqIndex:     i,
			StartSeconds: float64(i) * 10,
			EndSeconds:   float64(i+1) * 10,
		}
	}
	if err := store.InsertChunks(ctx, job.ID, plan); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}
	chunks, err := store.ChunksForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("load chunks: %v", err)
	}

	// One writer per chunk, the shape of the transcription fan-out.
	const updatesPerChunk = 25
	var wg sync.WaitGroup
	errs := make(chan error, len(chunks))
	for i := range chunks {
		chunk := chunks[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < updatesPerChunk; n++ {
				chunk.RetryCount++
				chunk.State = queue.ChunkSubmitted
				if err := store.UpdateChunk(ctx, &chunk); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent chunk update: %v", err)
	}

	stored, err := store.ChunksForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload chunks: %v", err)
	}
	for _, chunk := range stored {
		if chunk.RetryCount != updatesPerChunk {
			t.Fatalf("chunk %d retry count = %d, want %d", chunk.SeqIndex, chunk.RetryCount, updatesPerChunk)
		}
		if chunk.State != queue.ChunkSubmitted {
			t.Fatalf("chunk %d state = %q", chunk.SeqIndex, chunk.State)
		}
	}
}
