package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
)

// offsetEpsilon tolerates floating-point drift when validating that
// chunk offsets are contiguous.
const offsetEpsilon = 1e-6

// InsertChunks records the planned chunks for a job, replacing any
// previous plan. Sequence indices must be contiguous from 0 and offsets
// monotonically non-decreasing and non-overlapping; a violation is a
// bug in the planner, not a recoverable condition.
func (s *Store) InsertChunks(ctx context.Context, jobID int64, chunks []Chunk) error {
	if err := validateChunkPlan(chunks); err != nil {
		return err
	}
	return retryOnBusy(ctx, func() error {
		return s.insertChunks(ctx, jobID, chunks)
	})
}

func (s *Store) insertChunks(ctx context.Context, jobID int64, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("clear previous chunks: %w", err)
	}

	for i := range chunks {
		chunk := &chunks[i]
		chunk.JobID = jobID
		if chunk.State == "" {
			chunk.State = ChunkPending
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (job_id, seq_index, start_seconds, end_seconds, storage_key, state, retry_count)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			jobID,
			chunk.SeqIndex,
			chunk.StartSeconds,
			chunk.EndSeconds,
			nullableString(chunk.StorageKey),
			chunk.State,
			chunk.RetryCount,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.SeqIndex, err)
		}
		if chunk.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("chunk insert id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

// ChunksForJob returns a job's chunks in sequence order.
func (s *Store) ChunksForJob(ctx context.Context, jobID int64) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, seq_index, start_seconds, end_seconds, storage_key, state, transcript, retry_count, error_message
         FROM chunks WHERE job_id = ? ORDER BY seq_index`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// UpdateChunk persists changes to a single chunk.
func (s *Store) UpdateChunk(ctx context.Context, chunk *Chunk) error {
	if chunk == nil {
		return errors.New("chunk is nil")
	}
	_, err := s.execWithRetry(ctx,
		`UPDATE chunks
         SET storage_key = ?, state = ?, transcript = ?, retry_count = ?, error_message = ?
         WHERE id = ?`,
		nullableString(chunk.StorageKey),
		chunk.State,
		nullableString(chunk.Transcript),
		chunk.RetryCount,
		nullableString(chunk.ErrorMessage),
		chunk.ID,
	)
	if err != nil {
		return fmt.Errorf("update chunk %d: %w", chunk.SeqIndex, err)
	}
	return nil
}

func validateChunkPlan(chunks []Chunk) error {
	prevEnd := 0.0
	for i, chunk := range chunks {
		if chunk.SeqIndex != i {
			return fmt.Errorf("chunk plan invariant violated: index %d at position %d", chunk.SeqIndex, i)
		}
		if chunk.EndSeconds-chunk.StartSeconds <= 0 {
			return fmt.Errorf("chunk plan invariant violated: zero-duration chunk %d", i)
		}
		if chunk.StartSeconds+offsetEpsilon < prevEnd {
			return fmt.Errorf("chunk plan invariant violated: chunk %d overlaps previous", i)
		}
		if i == 0 && math.Abs(chunk.StartSeconds) > offsetEpsilon {
			return fmt.Errorf("chunk plan invariant violated: first chunk starts at %f", chunk.StartSeconds)
		}
		prevEnd = chunk.EndSeconds
	}
	return nil
}

func scanChunk(rows *sql.Rows) (Chunk, error) {
	var (
		chunk        Chunk
		storageKey   sql.NullString
		stateStr     string
		transcript   sql.NullString
		errorMessage sql.NullString
	)
	if err := rows.Scan(
		&chunk.ID,
		&chunk.JobID,
		&chunk.SeqIndex,
		&chunk.StartSeconds,
		&chunk.EndSeconds,
		&storageKey,
		&stateStr,
		&transcript,
		&chunk.RetryCount,
		&errorMessage,
	); err != nil {
		return Chunk{}, fmt.Errorf("scan chunk: %w", err)
	}
	chunk.StorageKey = storageKey.String
	chunk.State = ChunkState(stateStr)
	chunk.Transcript = transcript.String
	chunk.ErrorMessage = errorMessage.String
	return chunk, nil
}
