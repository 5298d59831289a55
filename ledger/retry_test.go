package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type scriptedOperator struct {
	failures int
	calls    int
}

func (s *scriptedOperator) Execute(ctx context.Context, op Operation) (Receipt, error) {
	s.calls++
	if s.calls <= s.failures {
		return Receipt{}, fmt.Errorf("ledger: simulated revert: %w", ErrReverted)
	}
	return Receipt{Ref: Ref(fmt.Sprintf("0xreceipt%d", s.calls))}, nil
}

func TestRetrying_SucceedsAfterTransientReverts(t *testing.T) {
	inner := &scriptedOperator{failures: 2}
	op := &Retrying{Next: inner, MaxAttempts: 5, InitialInterval: time.Millisecond}

	receipt, err := op.Execute(context.Background(), Operation{Kind: KindStake})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Ref == "" {
		t.Fatalf("expected a receipt ref")
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetrying_ExhaustsBudget(t *testing.T) {
	inner := &scriptedOperator{failures: 10}
	op := &Retrying{Next: inner, MaxAttempts: 3, InitialInterval: time.Millisecond}

	_, err := op.Execute(context.Background(), Operation{Kind: KindRelease})
	if err == nil {
		t.Fatalf("expected terminal failure")
	}
	if !errors.Is(err, ErrReverted) {
		t.Fatalf("expected ErrReverted in chain, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", inner.calls)
	}
}

type permanentOperator struct {
	calls int
}

func (p *permanentOperator) Execute(ctx context.Context, op Operation) (Receipt, error) {
	p.calls++
	return Receipt{}, errors.New("ledger: malformed operation")
}

func TestRetrying_DoesNotRetryPermanentErrors(t *testing.T) {
	inner := &permanentOperator{}
	op := &Retrying{Next: inner, MaxAttempts: 5, InitialInterval: time.Millisecond}

	if _, err := op.Execute(context.Background(), Operation{Kind: KindLock}); err == nil {
		t.Fatalf("expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", inner.calls)
	}
}
