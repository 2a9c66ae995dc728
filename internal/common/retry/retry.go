// internal/common/retry/retry.go
package retry

import (
	"context"
	"fmt"
	"time"

	"paystub-verify/internal/common/logger"
)

// Policy is a bounded retry policy with exponential backoff. The backoff
// doubles after every failed attempt, starting at InitialBackoff and capped
// at MaxBackoff when set.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy matches the extraction retry budget: 3 attempts, 1s initial
// backoff doubling per attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
	}
}

// Do executes operation until it succeeds, the attempt budget is exhausted,
// or ctx is cancelled. Backoff sleeps are interruptible by ctx.
func (p Policy) Do(ctx context.Context, log logger.Logger, operationName string, operation func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var err error
	delay := p.InitialBackoff

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = operation(ctx)
		if err == nil {
			return nil
		}

		if attempt < p.MaxAttempts {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     attempt,
				"maxAttempts": p.MaxAttempts,
				"nextRetryIn": delay.String(),
			})

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}

			delay *= 2
			if p.MaxBackoff > 0 && delay > p.MaxBackoff {
				delay = p.MaxBackoff
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, p.MaxAttempts, err)
}
