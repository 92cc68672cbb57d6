package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"scribed/internal/logging"
	"scribed/internal/retry"
	"scribed/internal/services"
)

// Gateway wraps an ObjectStore with the pipeline's retry and
// idempotency rules: transient failures are retried with backoff, fatal
// failures abort immediately, and re-uploading an object that already
// exists with the expected size is a no-op.
type Gateway struct {
	store  ObjectStore
	policy retry.Policy
	logger *slog.Logger
}

// NewGateway builds a gateway around store.
func NewGateway(store ObjectStore, policy retry.Policy, logger *slog.Logger) *Gateway {
	return &Gateway{
		store:  store,
		policy: policy,
		logger: logging.NewComponentLogger(logger, "storage"),
	}
}

// EnsureBucket makes sure the target bucket exists, retrying transient
// failures.
func (g *Gateway) EnsureBucket(ctx context.Context) error {
	return g.policy.Do(ctx, services.IsTransient, g.onRetry("ensure bucket"), func(ctx context.Context) error {
		return g.store.EnsureBucket(ctx)
	})
}

// UploadFile puts a local file at key. When an object of the same size
// already sits at the key, the upload is skipped; an interrupted run
// re-putting its chunks converges on the same objects.
func (g *Gateway) UploadFile(ctx context.Context, key, path, contentType string) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrStorageFatal, "storage", "upload "+key, "local file missing", err)
	}
	return g.policy.Do(ctx, services.IsTransient, g.onRetry("upload "+key), func(ctx context.Context) error {
		existing, err := g.store.Stat(ctx, key)
		if err == nil && existing.Size == info.Size() {
			return nil
		}
		if err != nil && !errors.Is(err, ErrObjectNotFound) && !services.IsTransient(err) {
			return err
		}
		_, err = g.store.PutFile(ctx, key, path, contentType)
		return err
	})
}

// UploadBytes puts an in-memory payload at key with the same retry and
// idempotency rules as UploadFile.
func (g *Gateway) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	return g.policy.Do(ctx, services.IsTransient, g.onRetry("upload "+key), func(ctx context.Context) error {
		existing, err := g.store.Stat(ctx, key)
		if err == nil && existing.Size == int64(len(data)) {
			return nil
		}
		if err != nil && !errors.Is(err, ErrObjectNotFound) && !services.IsTransient(err) {
			return err
		}
		_, err = g.store.PutBytes(ctx, key, data, contentType)
		return err
	})
}

// DownloadFile fetches the object at key into path, retrying transient
// failures. A missing object is fatal; nothing recreates it.
func (g *Gateway) DownloadFile(ctx context.Context, key, path string) error {
	return g.policy.Do(ctx, services.IsTransient, g.onRetry("download "+key), func(ctx context.Context) error {
		err := g.store.GetFile(ctx, key, path)
		if errors.Is(err, ErrObjectNotFound) {
			return services.Wrap(services.ErrStorageFatal, "storage", "download "+key, "object missing", err)
		}
		return err
	})
}

// Stat reports metadata for key, retrying transient failures.
func (g *Gateway) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	var info ObjectInfo
	err := g.policy.Do(ctx, services.IsTransient, g.onRetry("stat "+key), func(ctx context.Context) error {
		var err error
		info, err = g.store.Stat(ctx, key)
		return err
	})
	return info, err
}

// DeleteChunks removes a job's chunk objects. Cleanup is best-effort:
// a single attempt per object, no backoff, because orphaned chunks are
// reclaimed by bucket lifecycle rules eventually.
func (g *Gateway) DeleteChunks(ctx context.Context, jobKey string) error {
	return g.store.DeletePrefix(ctx, ChunkPrefix(jobKey))
}

// DeleteAll removes everything stored for a job, including transcripts.
func (g *Gateway) DeleteAll(ctx context.Context, jobKey string) error {
	return g.store.DeletePrefix(ctx, JobPrefix(jobKey))
}

func (g *Gateway) onRetry(operation string) func(attempt int, err error) {
	return func(attempt int, err error) {
		g.logger.Warn("storage operation retrying",
			logging.String("operation", operation),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Error(err),
			logging.String(logging.FieldEventType, "storage_retry"),
		)
	}
}
