package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"scribed/internal/services"
)

// Region is an exclusive filesystem working area for one job execution.
type Region struct {
	path string

	mu       sync.Mutex
	released bool
}

// Path returns the region's directory.
func (r *Region) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Join resolves a file name inside the region.
func (r *Region) Join(name string) string {
	return filepath.Join(r.path, name)
}

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (free uint64, err error)

// Manager creates and tears down scratch regions under a common root.
type Manager struct {
	root       string
	floorBytes int64
	statfs     statfsFunc
}

// NewManager builds a manager rooted at root. floorBytes is the minimum
// free space that must remain for a new acquisition to succeed.
func NewManager(root string, floorBytes int64) *Manager {
	return &Manager{
		root:       root,
		floorBytes: floorBytes,
		statfs:     realStatfs,
	}
}

// WithStatfs overrides the filesystem probe (used in tests).
func (m *Manager) WithStatfs(fn func(path string) (uint64, error)) *Manager {
	m.statfs = fn
	return m
}

// Acquire creates an isolated directory for the job's execution. Fails
// with ResourceExhausted when free disk space is below the floor.
func (m *Manager) Acquire(jobKey string) (*Region, error) {
	jobKey = strings.TrimSpace(jobKey)
	if jobKey == "" {
		return nil, fmt.Errorf("scratch: job key required")
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("scratch: ensure root: %w", err)
	}

	if m.floorBytes > 0 {
		free, err := m.statfs(m.root)
		if err != nil {
			return nil, fmt.Errorf("scratch: statfs: %w", err)
		}
		if free < uint64(m.floorBytes) {
			return nil, services.Wrap(services.ErrResourceExhausted, "scratch", "acquire",
				fmt.Sprintf("free disk %d bytes below floor %d", free, m.floorBytes), nil)
		}
	}

	path := filepath.Join(m.root, "job-"+jobKey)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("scratch: create region: %w", err)
	}
	return &Region{path: path}, nil
}

// Release removes the region from disk. It is idempotent and safe to
// call on every exit path of the owning pipeline.
func (m *Manager) Release(region *Region) error {
	if region == nil {
		return nil
	}
	region.mu.Lock()
	defer region.mu.Unlock()
	if region.released {
		return nil
	}
	if err := os.RemoveAll(region.path); err != nil {
		return fmt.Errorf("scratch: release %s: %w", region.path, err)
	}
	region.released = true
	return nil
}

// ReleasePath removes a region directory known only by path, for
// cleanup of executions that did not survive to hold a Region handle.
func (m *Manager) ReleasePath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	// Refuse to remove anything outside the scratch root.
	if rel, err := filepath.Rel(m.root, path); err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("scratch: path %q outside root %q", path, m.root)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("scratch: release %s: %w", path, err)
	}
	return nil
}

func realStatfs(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
