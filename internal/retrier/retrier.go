package retrier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

const (
	minMaxAttempts = 1
	minBaseDelay   = time.Millisecond
	minFactor      = 1.0
	maxJitter      = 1.0
)

// ExponentialBackoff grows intervals exponentially; LinearBackoff grows
// them linearly.
const (
	ExponentialBackoff BackoffStrategy = iota
	LinearBackoff
)

var (
	// ErrInvalidMaxAttempts is returned when the max attempts parameter is invalid.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrInvalidBaseDelay is returned when the base delay parameter is invalid.
	ErrInvalidBaseDelay = errors.New("base delay must be at least 1ms")
	// ErrInvalidFactor is returned when the factor parameter is invalid.
	ErrInvalidFactor = errors.New("factor must be at least 1.0")
	// ErrInvalidJitter is returned when the jitter parameter is invalid.
	ErrInvalidJitter = errors.New("jitter must be between 0 and 1")
)

// BackoffStrategy selects how retry delays grow between attempts.
type BackoffStrategy int

// Retrier executes a function with retry logic for transient failures.
// It is used around persistence I/O only; the knowledge-service path never
// retries inside a single call.
type Retrier struct {
	maxAttempts   int
	baseDelay     time.Duration
	maxDelay      time.Duration
	factor        float64
	jitter        float64
	strategy      BackoffStrategy
	TempErrorFunc func(error) bool
}

// NewRetrier creates a Retrier. tempErrorFunc decides whether an error is
// worth retrying; nil falls back to the Temporary interface check.
func NewRetrier(maxAttempts int, baseDelay, maxDelay time.Duration, factor, jitter float64, strategy BackoffStrategy, tempErrorFunc func(error) bool) (*Retrier, error) {
	if maxAttempts < minMaxAttempts {
		return nil, ErrInvalidMaxAttempts
	}
	if baseDelay < minBaseDelay {
		return nil, ErrInvalidBaseDelay
	}
	if factor < minFactor {
		return nil, ErrInvalidFactor
	}
	if jitter < 0 || jitter > maxJitter {
		return nil, ErrInvalidJitter
	}

	return &Retrier{
		maxAttempts:   maxAttempts,
		baseDelay:     baseDelay,
		maxDelay:      maxDelay,
		factor:        factor,
		jitter:        jitter,
		strategy:      strategy,
		TempErrorFunc: tempErrorFunc,
	}, nil
}

// Run executes fn with retries according to the Retrier's configuration.
func (r *Retrier) Run(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		var isTemp bool
		if r.TempErrorFunc != nil {
			isTemp = r.TempErrorFunc(err)
		} else {
			isTemp = IsTemporary(err)
		}

		if !isTemp {
			return err
		}

		if attempt == r.maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.calculateDelay(attempt)):
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}

// calculateDelay computes the delay duration for a retry attempt.
func (r *Retrier) calculateDelay(attempt int) time.Duration {
	var delay float64

	switch r.strategy {
	case LinearBackoff:
		delay = float64(r.baseDelay) * float64(attempt+1)
	default:
		delay = float64(r.baseDelay) * math.Pow(r.factor, float64(attempt))
	}

	if delay > float64(r.maxDelay) {
		delay = float64(r.maxDelay)
	}

	delay += rand.Float64() * r.jitter * delay
	if delay > float64(time.Hour) {
		delay = float64(time.Hour)
	}
	return time.Duration(delay)
}
