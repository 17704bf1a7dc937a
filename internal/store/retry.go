package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"
)

const (
	// Two retries after the initial attempt, linear backoff of
	// attempt × retryBackoffUnit between attempts.
	maxRetries       = 2
	retryBackoffUnit = 500 * time.Millisecond
)

// withRetry runs fn up to maxRetries+1 times, backing off linearly between
// attempts. Only transient failures are retried; permanent errors (constraint
// violations, permission problems, missing rows) surface immediately. The
// final error is returned as a value, never panicked.
func withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt > maxRetries {
			slog.Error("store operation failed after retries", "op", op, "attempts", attempt, "error", err)
			return err
		}
		slog.Warn("store operation failed, retrying", "op", op, "attempt", attempt, "error", err)

		select {
		case <-time.After(time.Duration(attempt) * retryBackoffUnit):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// isRetryable classifies store errors. Network-level trouble and Postgres
// transient classes (connection, serialization, deadlock, resource pressure)
// are worth another attempt; anything else is treated as permanent.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		switch {
		case strings.HasPrefix(code, "08"): // connection exceptions
			return true
		case code == "40001" || code == "40P01": // serialization failure, deadlock
			return true
		case strings.HasPrefix(code, "53"): // insufficient resources
			return true
		case code == "57P03": // cannot connect now
			return true
		}
		return false
	}

	// Driver-agnostic fallback for closed/refused connections that arrive
	// as plain errors.
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe")
}
