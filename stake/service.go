package stake

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"bountyflow/ledger"
	"bountyflow/locator"
)

// PositionStore abstracts the repository for the service. AppendPosition
// must insert the position and bump the submission's directional total in a
// single transaction.
type PositionStore interface {
	AppendPosition(ctx context.Context, pos Position) (Position, error)
	ListForSubmission(ctx context.Context, submissionID string) ([]Position, error)
	MarkRedeemed(ctx context.Context, positionID string, ref ledger.Ref) error
}

// Service records stakes against submissions and computes consensus.
type Service struct {
	store  PositionStore
	op     ledger.Operator
	cfg    Config
	engine *Engine
	now    func() time.Time
}

// NewService wires the store, the ledger operator, and the consensus engine.
// A nil engine falls back to the default thresholds; callers with configured
// thresholds must pass the same engine the scheduler classifies with.
func NewService(store PositionStore, op ledger.Operator, cfg Config, engine *Engine) *Service {
	if cfg.MinStake == nil || cfg.MaxStake == nil {
		cfg = DefaultConfig()
	}
	if cfg.ProtocolFee == nil {
		cfg.ProtocolFee = big.NewInt(0)
	}
	if engine == nil {
		engine = NewEngine()
	}
	return &Service{
		store:  store,
		op:     op,
		cfg:    cfg,
		engine: engine,
		now:    time.Now,
	}
}

// Engine exposes the consensus engine for collaborators that only need
// ratio math.
func (s *Service) Engine() *Engine {
	return s.engine
}

// PlaceStake validates and records a directional stake. The ledger transfer
// (amount plus protocol fee) runs first; the local position is durably
// recorded only after the receipt confirms, so local state never runs ahead
// of the external source of truth.
func (s *Service) PlaceStake(ctx context.Context, params PlaceStakeParams) (Position, error) {
	if params.Direction != DirectionFor && params.Direction != DirectionAgainst {
		return Position{}, ErrInvalidDirection
	}
	if params.Amount == nil || params.Amount.Cmp(s.cfg.MinStake) < 0 {
		return Position{}, ErrBelowMinimum
	}
	if params.Amount.Cmp(s.cfg.MaxStake) > 0 {
		return Position{}, ErrAboveMaximum
	}

	target, err := locator.ResolveTarget(params.Locator)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}

	charged := new(big.Int).Add(params.Amount, s.cfg.ProtocolFee)
	receipt, err := s.op.Execute(ctx, ledger.Operation{
		Kind:   ledger.KindStake,
		Target: target,
		From:   params.Staker,
		Amount: charged,
		Memo: fmt.Sprintf("STAKE %s submission=%s amount=%s",
			params.Direction, params.SubmissionID, params.Amount),
	})
	if err != nil {
		return Position{}, err
	}

	pos := Position{
		Staker:       params.Staker,
		SubmissionID: params.SubmissionID,
		Target:       target,
		Amount:       new(big.Int).Set(params.Amount),
		Direction:    params.Direction,
		PlacedAt:     s.now(),
		LedgerRef:    receipt.Ref,
	}

	stored, err := s.store.AppendPosition(ctx, pos)
	if err != nil {
		return Position{}, err
	}
	return stored, nil
}

// RedeemStake withdraws a previously placed stake. Consensus totals are not
// rewound; evaluation reflects stakes at the time it runs and redemption is
// settled by a later accounting pass. Known simplification, kept on purpose.
func (s *Service) RedeemStake(ctx context.Context, pos Position) (ledger.Ref, error) {
	receipt, err := s.op.Execute(ctx, ledger.Operation{
		Kind:   ledger.KindRedeem,
		Target: pos.Target,
		To:     pos.Staker,
		Amount: pos.Amount,
		Memo:   fmt.Sprintf("REDEEM position=%s", pos.ID),
	})
	if err != nil {
		return "", err
	}

	if err := s.store.MarkRedeemed(ctx, pos.ID, receipt.Ref); err != nil {
		return "", err
	}
	return receipt.Ref, nil
}

// Consensus computes the current recommendation for the given totals.
func (s *Service) Consensus(forStake, againstStake *big.Int) Consensus {
	return s.engine.Calculate(forStake, againstStake)
}

// ListForSubmission returns all positions recorded against a submission.
func (s *Service) ListForSubmission(ctx context.Context, submissionID string) ([]Position, error) {
	return s.store.ListForSubmission(ctx, submissionID)
}
