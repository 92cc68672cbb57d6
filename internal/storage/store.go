package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound reports that a key has no object behind it.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

// ObjectStore is the minimal object-storage surface the pipeline needs.
// Implementations classify failures with the storage sentinel errors so
// the gateway can decide between retry and abort.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	PutFile(ctx context.Context, key, path, contentType string) (ObjectInfo, error)
	PutBytes(ctx context.Context, key string, data []byte, contentType string) (ObjectInfo, error)
	GetFile(ctx context.Context, key, path string) error
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}
