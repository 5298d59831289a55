package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrying wraps an Operator with bounded exponential backoff. Reverts are
// retried up to MaxAttempts; the last error is surfaced once the budget is
// exhausted so the caller can fail the specific action.
type Retrying struct {
	Next        Operator
	MaxAttempts uint64
	// InitialInterval overrides the first backoff delay when non-zero.
	InitialInterval time.Duration
}

// NewRetrying builds a Retrying operator with the given attempt budget.
func NewRetrying(next Operator, maxAttempts uint64) *Retrying {
	return &Retrying{Next: next, MaxAttempts: maxAttempts}
}

func (r *Retrying) Execute(ctx context.Context, op Operation) (Receipt, error) {
	eb := backoff.NewExponentialBackOff()
	if r.InitialInterval > 0 {
		eb.InitialInterval = r.InitialInterval
	}

	attempts := r.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	var receipt Receipt
	attempt := 0
	operation := func() error {
		attempt++
		rec, err := r.Next.Execute(ctx, op)
		if err != nil {
			if !errors.Is(err, ErrReverted) {
				// Caller input or context errors are not retryable.
				return backoff.Permanent(err)
			}
			slog.Warn("ledger operation reverted",
				"kind", op.Kind,
				"vault_ref", op.VaultRef,
				"attempt", attempt,
			)
			return err
		}
		receipt = rec
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, attempts-1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return Receipt{}, fmt.Errorf("ledger: %s after %d attempt(s): %w", op.Kind, attempt, err)
	}
	return receipt, nil
}
