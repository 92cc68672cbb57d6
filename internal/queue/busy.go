package queue

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// SQLite reports SQLITE_BUSY when a write collides with another
// connection's transaction. WAL plus the busy_timeout pragma absorbs
// most collisions; the short retry loop below covers the rest so
// concurrent chunk updates from the transcription fan-out never surface
// a spurious failure.
const (
	sqliteBusyCode     = 5
	busyRetryAttempts  = 5
	busyRetryBaseDelay = 10 * time.Millisecond
	busyRetryMaxDelay  = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryBaseDelay
	var err error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		err = op()
		if err == nil || !isSQLiteBusy(err) || attempt == busyRetryAttempts-1 {
			return err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxDelay {
			delay = next
		}
	}
	return err
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}
