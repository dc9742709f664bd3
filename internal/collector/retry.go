package collector

import (
	"context"
	"errors"
	"log"
	"time"
)

// RetryPolicy controls upstream retries. Rate limits and transport failures back off
// exponentially (BaseDelay, 2x, 4x ...). Any other non-2xx status is retried once after
// BaseDelay. Malformed responses are never retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy is three attempts with a one second base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
}

func (p RetryPolicy) do(ctx context.Context, label string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	statusRetried := false
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrUnmappedSymbol) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		var wait time.Duration
		var se *StatusError
		switch {
		case errors.As(err, &se) && se.RateLimited():
			wait = p.BaseDelay << uint(attempt)
			log.Printf("[WARN] %s rate limited, waiting %v before retry %d/%d", label, wait, attempt+1, attempts)
		case errors.As(err, &se):
			if statusRetried {
				return err
			}
			statusRetried = true
			wait = p.BaseDelay
			log.Printf("[WARN] %s: %v, retrying once in %v", label, err, wait)
		default:
			wait = p.BaseDelay << uint(attempt)
			log.Printf("[WARN] %s failed (attempt %d/%d): %v, retrying in %v", label, attempt+1, attempts, err, wait)
		}

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
