package pipeline

import (
	"errors"
	"math/rand"
	"time"

	"github.com/rkotari/qbank/internal/interp"
)

// IsRetryable checks if an error is worth retrying. Every typed
// interpretation failure is transient, including malformed output,
// which a rerun of the model frequently fixes.
func IsRetryable(err error) bool {
	var f *interp.Failure
	return errors.As(err, &f)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3
