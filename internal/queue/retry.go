package queue

import (
	"context"
	"errors"
	"time"

	"github.com/phrazzld/drift/internal/domain"
)

// Classification is the retry scheduler's verdict on a failed attempt.
type Classification int

const (
	// Retryable failures are rescheduled with backoff while retry budget
	// remains.
	Retryable Classification = iota

	// Terminal failures remove the item immediately regardless of
	// remaining budget; retrying cannot succeed.
	Terminal
)

// String returns the classification name for logs.
func (c Classification) String() string {
	if c == Terminal {
		return "terminal"
	}
	return "retryable"
}

// Profile tunes the capped exponential backoff curve.
type Profile struct {
	BaseDelay time.Duration
	Cap       time.Duration
}

// RequestProfile suits request-style synchronization items: short waits,
// capped at 10s.
func RequestProfile() Profile {
	return Profile{BaseDelay: 500 * time.Millisecond, Cap: 10 * time.Second}
}

// BackgroundProfile suits long-running background tasks: longer waits,
// capped at 30s.
func BackgroundProfile() Profile {
	return Profile{BaseDelay: time.Second, Cap: 30 * time.Second}
}

// Delay computes the wait before the attempt-th retry:
// min(BaseDelay * 2^attempt, Cap). attempt is the retry count immediately
// after incrementing, so the first retry waits BaseDelay*2.
func (p Profile) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Cap || d <= 0 { // overflow guard
			return p.Cap
		}
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// Classify maps a failed attempt's error onto the retry taxonomy.
// Timeouts and connectivity failures are transient; malformed input,
// authorization failures, and unknown task types are terminal. An error
// that matches nothing defaults to retryable, since failing closed would
// silently discard legitimate transient failures.
func Classify(err error) Classification {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrPermission),
		errors.Is(err, domain.ErrUnknownType):
		return Terminal
	case errors.Is(err, domain.ErrTransientNetwork),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return Retryable
	default:
		return Retryable
	}
}
