package scratch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scribed/internal/logging"
	"scribed/internal/services"
)

func TestAcquireCreatesRegionDirectory(t *testing.T) {
	root := t.TempDir()
	manager := NewManager(root, 0)

	region, err := manager.Acquire("abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(root, "job-abc123")
	if region.Path() != want {
		t.Fatalf("region path = %q, want %q", region.Path(), want)
	}
	info, err := os.Stat(region.Path())
	if err != nil {
		t.Fatalf("stat region: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("region is not a directory")
	}
	if got := region.Join("audio.wav"); got != filepath.Join(want, "audio.wav") {
		t.Fatalf("Join = %q", got)
	}
}

func TestAcquireRequiresJobKey(t *testing.T) {
	manager := NewManager(t.TempDir(), 0)
	if _, err := manager.Acquire("  "); err == nil {
		t.Fatal("expected error for blank job key")
	}
}

func TestAcquireFailsBelowDiskFloor(t *testing.T) {
	manager := NewManager(t.TempDir(), 1024).WithStatfs(func(path string) (uint64, error) {
		return 512, nil
	})

	_, err := manager.Acquire("abc123")
	if !errors.Is(err, services.ErrResourceExhausted) {
		t.Fatalf("expected resource exhausted, got %v", err)
	}
}

func TestAcquireSucceedsAtDiskFloor(t *testing.T) {
	manager := NewManager(t.TempDir(), 1024).WithStatfs(func(path string) (uint64, error) {
		return 1024, nil
	})

	if _, err := manager.Acquire("abc123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	manager := NewManager(t.TempDir(), 0)
	region, err := manager.Acquire("abc123")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := manager.Release(region); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if _, err := os.Stat(region.Path()); !os.IsNotExist(err) {
		t.Fatal("region directory still present after release")
	}
	if err := manager.Release(region); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if err := manager.Release(nil); err != nil {
		t.Fatalf("nil release: %v", err)
	}
}

func TestReleasePathRefusesPathsOutsideRoot(t *testing.T) {
	root := t.TempDir()
	manager := NewManager(root, 0)

	outside := t.TempDir()
	victim := filepath.Join(outside, "keep")
	if err := os.MkdirAll(victim, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := manager.ReleasePath(victim); err == nil {
		t.Fatal("expected refusal for path outside root")
	}
	if _, err := os.Stat(victim); err != nil {
		t.Fatalf("directory outside root was touched: %v", err)
	}

	if err := manager.ReleasePath(""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
}

func TestReleasePathRemovesRegionByPath(t *testing.T) {
	root := t.TempDir()
	manager := NewManager(root, 0)
	region, err := manager.Acquire("abc123")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := manager.ReleasePath(region.Path()); err != nil {
		t.Fatalf("release path: %v", err)
	}
	if _, err := os.Stat(region.Path()); !os.IsNotExist(err) {
		t.Fatal("region directory still present")
	}
}

func TestCleanStaleRemovesOnlyOldJobDirectories(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "job-old")
	fresh := filepath.Join(root, "job-fresh")
	unrelated := filepath.Join(root, "not-a-region")
	for _, dir := range []string{old, fresh, unrelated} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(unrelated, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := CleanStale(context.Background(), root, 24*time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected cleanup errors: %+v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("removed = %v, want [%s]", result.Removed, old)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("stale region not removed")
	}
	for _, dir := range []string{fresh, unrelated} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("%s should survive the sweep: %v", dir, err)
		}
	}
}

func TestCleanStaleHandlesMissingRoot(t *testing.T) {
	result := CleanStale(context.Background(), filepath.Join(t.TempDir(), "absent"), time.Hour, logging.NewNop())
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("missing root should be a no-op: %+v", result)
	}
}

func TestCleanStaleZeroMaxAgeIsNoOp(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "job-old")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(dir, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := CleanStale(context.Background(), root, 0, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("zero max age must not remove anything: %v", result.Removed)
	}
}
