package escrow

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"bountyflow/ledger"
)

// Vault abstracts the repository for the service. Transition must flip the
// status only when the current status is in the allowed set and report
// whether it did, so a lost race is distinguishable from success.
type Vault interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, vaultRef string) (Record, error)
	GetByBounty(ctx context.Context, bountyID string) (Record, error)
	Transition(ctx context.Context, vaultRef string, from []Status, to Status) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]Record, error)
}

// Service owns the reward-fund lifecycle per bounty.
type Service struct {
	vault Vault
	op    ledger.Operator
}

func NewService(vault Vault, op ledger.Operator) *Service {
	return &Service{vault: vault, op: op}
}

// Create locks the reward amount against a fresh vault. The ledger lock runs
// first; no partial-lock state is retained when it fails.
func (s *Service) Create(ctx context.Context, bountyID, creator string, amount *big.Int, deadline time.Time) (Record, error) {
	receipt, err := s.op.Execute(ctx, ledger.Operation{
		Kind:   ledger.KindLock,
		From:   creator,
		Amount: amount,
		Memo:   fmt.Sprintf("LOCK bounty=%s", bountyID),
	})
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		BountyID: bountyID,
		Creator:  creator,
		Amount:   new(big.Int).Set(amount),
		Deadline: deadline,
		VaultRef: string(receipt.Ref),
		Status:   StatusActive,
	}
	stored, err := s.vault.Insert(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	return stored, nil
}

// ReleaseToSolver pays the escrowed amount out to the solver and resolves
// the escrow. Valid only from active or in_review.
func (s *Service) ReleaseToSolver(ctx context.Context, vaultRef, solver, submissionID string) (ledger.Ref, error) {
	rec, err := s.vault.Get(ctx, vaultRef)
	if err != nil {
		return "", err
	}
	if !releasableFrom[rec.Status] {
		return "", fmt.Errorf("%w: release from %s", ErrInvalidTransition, rec.Status)
	}

	receipt, err := s.op.Execute(ctx, ledger.Operation{
		Kind:     ledger.KindRelease,
		VaultRef: vaultRef,
		To:       solver,
		Amount:   rec.Amount,
		Memo:     fmt.Sprintf("RELEASE submission=%s", submissionID),
	})
	if err != nil {
		return "", err
	}

	ok, err := s.vault.Transition(ctx, vaultRef, []Status{StatusActive, StatusInReview, StatusDisputed}, StatusResolved)
	if err != nil {
		return "", err
	}
	if !ok {
		// The status row moved between the guard and the flip. The ledger
		// release is idempotent per vault so the funds are not doubled, but
		// the caller's state machine is broken.
		return "", fmt.Errorf("%w: concurrent terminal transition on %s", ErrInvalidTransition, vaultRef)
	}
	return receipt.Ref, nil
}

// RefundToCreator returns the escrowed amount to the creator. Valid from
// active, in_review, or expired.
func (s *Service) RefundToCreator(ctx context.Context, vaultRef, creator string) (ledger.Ref, error) {
	rec, err := s.vault.Get(ctx, vaultRef)
	if err != nil {
		return "", err
	}
	if !refundableFrom[rec.Status] {
		return "", fmt.Errorf("%w: refund from %s", ErrInvalidTransition, rec.Status)
	}

	receipt, err := s.op.Execute(ctx, ledger.Operation{
		Kind:     ledger.KindRefund,
		VaultRef: vaultRef,
		To:       creator,
		Amount:   rec.Amount,
		Memo:     fmt.Sprintf("REFUND bounty=%s", rec.BountyID),
	})
	if err != nil {
		return "", err
	}

	ok, err := s.vault.Transition(ctx, vaultRef, []Status{StatusActive, StatusInReview, StatusDisputed, StatusExpired}, StatusRefunded)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: concurrent terminal transition on %s", ErrInvalidTransition, vaultRef)
	}
	return receipt.Ref, nil
}

// MarkDisputed flags the escrow pending arbitration. Pure status move, no
// fund movement.
func (s *Service) MarkDisputed(ctx context.Context, vaultRef string) error {
	ok, err := s.vault.Transition(ctx, vaultRef, []Status{StatusActive, StatusInReview}, StatusDisputed)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: dispute on %s", ErrInvalidTransition, vaultRef)
	}
	return nil
}

// MarkExpired flags the escrow past deadline. Pure status move.
func (s *Service) MarkExpired(ctx context.Context, vaultRef string) error {
	ok, err := s.vault.Transition(ctx, vaultRef, []Status{StatusActive, StatusInReview}, StatusExpired)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: expire on %s", ErrInvalidTransition, vaultRef)
	}
	return nil
}

// Get returns the escrow record behind a vault reference.
func (s *Service) Get(ctx context.Context, vaultRef string) (Record, error) {
	return s.vault.Get(ctx, vaultRef)
}

// GetByBounty returns the escrow locked for a bounty, if any.
func (s *Service) GetByBounty(ctx context.Context, bountyID string) (Record, error) {
	return s.vault.GetByBounty(ctx, bountyID)
}

// ListExpired returns active escrows whose deadline passed before now.
func (s *Service) ListExpired(ctx context.Context, now time.Time) ([]Record, error) {
	return s.vault.ListExpired(ctx, now)
}
