package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"scribed/internal/logging"
	"scribed/internal/queue"
	"scribed/internal/retry"
	"scribed/internal/services"
)

// Orchestrator drives chunk transcription for one job. At most
// concurrency chunks are in flight at a time, each chunk has at most
// one in-flight request, transient failures are retried per the
// policy, and the first fatal failure aborts the remaining work.
type Orchestrator struct {
	store       *queue.Store
	provider    Provider
	policy      retry.Policy
	concurrency int
	logger      *slog.Logger
}

// NewOrchestrator builds an orchestrator around the provider.
func NewOrchestrator(store *queue.Store, provider Provider, policy retry.Policy, concurrency int, logger *slog.Logger) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		store:       store,
		provider:    provider,
		policy:      policy,
		concurrency: concurrency,
		logger:      logging.NewComponentLogger(logger, "transcribe"),
	}
}

// SetLogger routes orchestrator logs into the job-scoped logger.
func (o *Orchestrator) SetLogger(logger *slog.Logger) {
	if o == nil {
		return
	}
	o.logger = logging.NewComponentLogger(logger, "transcribe")
}

// Run transcribes every chunk and returns timeline segments ordered by
// sequence index. localPath resolves a chunk's audio file on disk.
// Chunks already marked succeeded keep their stored transcript and are
// not resubmitted. Results arriving after ctx is cancelled are
// discarded, not persisted.
func (o *Orchestrator) Run(ctx context.Context, job *queue.Job, chunks []queue.Chunk, localPath func(seqIndex int) (string, error)) ([]TimedSegment, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	segments := make([]TimedSegment, len(chunks))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, o.concurrency)

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i := range chunks {
		position := i
		chunk := &chunks[i]

		segments[position] = TimedSegment{
			StartSeconds: chunk.StartSeconds,
			EndSeconds:   chunk.EndSeconds,
		}
		if chunk.State == queue.ChunkSucceeded {
			segments[position].Text = chunk.Transcript
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if runCtx.Err() != nil {
				return
			}
			result, err := o.transcribeChunk(runCtx, job, chunk, localPath)
			if err != nil {
				fail(err)
				return
			}
			if runCtx.Err() != nil {
				// Cancelled while the request was in flight; the job is
				// on its way out, so the result must not be persisted.
				return
			}
			mu.Lock()
			segments[position].Text = result.Text
			segments[position].Words = result.Words
			mu.Unlock()
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return segments, nil
}

func (o *Orchestrator) transcribeChunk(ctx context.Context, job *queue.Job, chunk *queue.Chunk, localPath func(seqIndex int) (string, error)) (Result, error) {
	logger := logging.WithContext(ctx, o.logger)

	chunk.State = queue.ChunkSubmitted
	if err := o.store.UpdateChunk(ctx, chunk); err != nil {
		return Result{}, err
	}

	path, err := localPath(chunk.SeqIndex)
	if err != nil {
		return Result{}, err
	}

	var result Result
	onRetry := func(attempt int, attemptErr error) {
		chunk.RetryCount++
		if updateErr := o.store.UpdateChunk(context.WithoutCancel(ctx), chunk); updateErr != nil {
			logger.Warn("chunk retry bookkeeping failed", logging.Error(updateErr))
		}
		logger.Warn("chunk transcription retrying",
			logging.Int(logging.FieldChunk, chunk.SeqIndex),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Error(attemptErr),
			logging.String(logging.FieldEventType, "transcription_retry"),
		)
	}
	err = o.policy.Do(ctx, services.IsTransient, onRetry, func(ctx context.Context) error {
		var attemptErr error
		result, attemptErr = o.provider.Transcribe(ctx, path)
		return attemptErr
	})
	if err != nil {
		chunk.State = queue.ChunkFailed
		chunk.ErrorMessage = err.Error()
		if updateErr := o.store.UpdateChunk(context.WithoutCancel(ctx), chunk); updateErr != nil {
			logger.Warn("chunk failure bookkeeping failed", logging.Error(updateErr))
		}
		return Result{}, fmt.Errorf("chunk %d: %w", chunk.SeqIndex, err)
	}

	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	chunk.State = queue.ChunkSucceeded
	chunk.Transcript = result.Text
	chunk.ErrorMessage = ""
	if err := o.store.UpdateChunk(ctx, chunk); err != nil {
		return Result{}, err
	}
	return result, nil
}
