package arbitration

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"bountyflow/bounty"
	"bountyflow/escrow"
	"bountyflow/ledger"
)

// ArbitratorFeePercent is carved off the released amount when a decision
// pays out.
const ArbitratorFeePercent = 5

// CaseStore abstracts the repository for the service. Decide must only
// succeed while the case is still pending and report whether it did.
type CaseStore interface {
	FindOpen(ctx context.Context, submissionID string) (Case, error)
	Insert(ctx context.Context, c Case) (Case, error)
	Get(ctx context.Context, caseID string) (Case, error)
	Decide(ctx context.Context, caseID string, decision Decision, reasoning string) (Case, bool, error)
}

// Settlement drives the escrow side of a decided case.
type Settlement interface {
	ReleaseToSolver(ctx context.Context, vaultRef, solver, submissionID string) (ledger.Ref, error)
	RefundToCreator(ctx context.Context, vaultRef, creator string) (ledger.Ref, error)
	GetByBounty(ctx context.Context, bountyID string) (escrow.Record, error)
}

// SubmissionStore flips submission status once a verdict lands.
type SubmissionStore interface {
	GetSubmission(ctx context.Context, id string) (bounty.Submission, error)
	TransitionStatus(ctx context.Context, id string, from []bounty.SubmissionStatus, to bounty.SubmissionStatus) (bool, error)
}

// Service creates and settles human-adjudicated dispute cases.
type Service struct {
	cases       CaseStore
	settlement  Settlement
	submissions SubmissionStore
	op          ledger.Operator
}

func NewService(cases CaseStore, settlement Settlement, submissions SubmissionStore, op ledger.Operator) *Service {
	return &Service{
		cases:       cases,
		settlement:  settlement,
		submissions: submissions,
		op:          op,
	}
}

// OpenCase creates a pending case for a disputed submission. Idempotent: an
// already-open case for the same submission is returned, never duplicated.
func (s *Service) OpenCase(ctx context.Context, bountyID, submissionID, arbitrator string) (Case, error) {
	existing, err := s.cases.FindOpen(ctx, submissionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrCaseNotFound) {
		return Case{}, err
	}

	c, err := s.cases.Insert(ctx, Case{
		BountyID:     bountyID,
		SubmissionID: submissionID,
		Arbitrator:   arbitrator,
		Decision:     DecisionPending,
	})
	if err != nil {
		return Case{}, err
	}
	return c, nil
}

// SubmitDecision records the arbitrator's verdict and settles the escrow:
// approve releases to the solver, reject refunds the creator. The decision
// is recorded on the ledger before any local state flips.
func (s *Service) SubmitDecision(ctx context.Context, caseID string, decision Decision, reasoning string) (ledger.Ref, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return "", ErrInvalidDecision
	}
	if len(strings.TrimSpace(reasoning)) < MinReasoningLength {
		return "", ErrReasoningTooShort
	}

	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return "", err
	}
	if c.Decision != DecisionPending {
		return "", ErrAlreadyDecided
	}

	sub, err := s.submissions.GetSubmission(ctx, c.SubmissionID)
	if err != nil {
		return "", err
	}
	vault, err := s.settlement.GetByBounty(ctx, c.BountyID)
	if err != nil {
		return "", err
	}

	// Record the verdict (and the arbitrator fee on an approval payout) on
	// the ledger first; local rows only move after the receipt confirms.
	receipt, err := s.op.Execute(ctx, ledger.Operation{
		Kind:     ledger.KindDecision,
		VaultRef: vault.VaultRef,
		To:       c.Arbitrator,
		Amount:   arbitratorFee(vault.Amount, decision),
		Memo:     fmt.Sprintf("DECISION case=%s verdict=%s", caseID, decision),
	})
	if err != nil {
		return "", err
	}

	decided, ok, err := s.cases.Decide(ctx, caseID, decision, reasoning)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrAlreadyDecided
	}
	c = decided

	switch decision {
	case DecisionApprove:
		if _, err := s.settlement.ReleaseToSolver(ctx, vault.VaultRef, sub.Submitter, sub.ID); err != nil {
			return "", err
		}
		if _, err := s.submissions.TransitionStatus(ctx, sub.ID,
			[]bounty.SubmissionStatus{bounty.StatusDisputed, bounty.StatusStakingPeriod},
			bounty.StatusApproved); err != nil {
			return "", err
		}
	case DecisionReject:
		if _, err := s.settlement.RefundToCreator(ctx, vault.VaultRef, vault.Creator); err != nil {
			return "", err
		}
		if _, err := s.submissions.TransitionStatus(ctx, sub.ID,
			[]bounty.SubmissionStatus{bounty.StatusDisputed, bounty.StatusStakingPeriod},
			bounty.StatusRejected); err != nil {
			return "", err
		}
	}

	return receipt.Ref, nil
}

// GetCase returns a case by id.
func (s *Service) GetCase(ctx context.Context, caseID string) (Case, error) {
	return s.cases.Get(ctx, caseID)
}

// arbitratorFee is the compensation drawn from the vault on an approval
// payout; rejections carry no fee.
func arbitratorFee(amount *big.Int, decision Decision) *big.Int {
	if decision != DecisionApprove || amount == nil {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, big.NewInt(ArbitratorFeePercent))
	return fee.Quo(fee, big.NewInt(100))
}
