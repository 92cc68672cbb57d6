package testsupport

import (
	"context"
	"testing"

	"scribed/internal/config"
	"scribed/internal/queue"
)

// MustOpenStore opens the queue database described by cfg and closes it
// when the test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open queue store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// NewJob creates a pending job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, jobKey, sourcePath string) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), jobKey, sourcePath, "audio/wav")
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
