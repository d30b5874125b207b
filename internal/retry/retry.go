// Package retry provides a tiny fixed-backoff retry helper, used by the
// simulator adapter to retry a failed engine load per spec §4.C. The
// teacher has no standalone retry package, but reaches for the same
// attempt-count-plus-sleep idiom inside its background reconciliation
// loops (internal/pool, internal/runtime); this factors that idiom out.
package retry

import (
	"context"
	"time"
)

// Do calls fn up to attempts times, sleeping backoff between attempts,
// returning the last error if every attempt fails. It returns early if ctx
// is cancelled between attempts.
func Do(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
