package testsupport

import (
	"context"
	"os"
	"strings"
	"sync"

	"scribed/internal/storage"
)

// MemoryObject is one object held by a MemoryObjectStore.
type MemoryObject struct {
	Data        []byte
	ContentType string
}

// MemoryObjectStore is an in-memory storage.ObjectStore for tests. Error
// slices inject one failure per queued element before the real operation
// runs, which is how retry behavior gets exercised without a backend.
type MemoryObjectStore struct {
	mu      sync.Mutex
	objects map[string]MemoryObject

	PutCalls  int
	StatCalls int
	GetCalls  int

	PutErrs  []error
	StatErrs []error
	GetErrs  []error
}

// NewMemoryObjectStore returns an empty store.
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string]MemoryObject)}
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

// EnsureBucket always succeeds.
func (m *MemoryObjectStore) EnsureBucket(ctx context.Context) error { return nil }

// PutFile reads the local file and stores its contents at key.
func (m *MemoryObjectStore) PutFile(ctx context.Context, key, path, contentType string) (storage.ObjectInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	return m.put(key, data, contentType)
}

// PutBytes stores the payload at key.
func (m *MemoryObjectStore) PutBytes(ctx context.Context, key string, data []byte, contentType string) (storage.ObjectInfo, error) {
	return m.put(key, append([]byte(nil), data...), contentType)
}

func (m *MemoryObjectStore) put(key string, data []byte, contentType string) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if err := popErr(&m.PutErrs); err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = MemoryObject{Data: data, ContentType: contentType}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

// GetFile writes the object at key to path.
func (m *MemoryObjectStore) GetFile(ctx context.Context, key, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if err := popErr(&m.GetErrs); err != nil {
		return err
	}
	object, ok := m.objects[key]
	if !ok {
		return storage.ErrObjectNotFound
	}
	return os.WriteFile(path, object.Data, 0o644)
}

// Stat reports metadata for the object at key.
func (m *MemoryObjectStore) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatCalls++
	if err := popErr(&m.StatErrs); err != nil {
		return storage.ObjectInfo{}, err
	}
	object, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(object.Data))}, nil
}

// Delete removes the object at key. Missing keys are not an error.
func (m *MemoryObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// DeletePrefix removes every object whose key starts with prefix.
func (m *MemoryObjectStore) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	return nil
}

// Object returns the stored object at key.
func (m *MemoryObjectStore) Object(key string) (MemoryObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	object, ok := m.objects[key]
	return object, ok
}

// Keys returns the stored object keys in no particular order.
func (m *MemoryObjectStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of stored objects.
func (m *MemoryObjectStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
