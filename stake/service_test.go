package stake

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"bountyflow/ledger"
)

type fakePositionStore struct {
	appended []Position
	redeemed map[string]ledger.Ref
}

func newFakePositionStore() *fakePositionStore {
	return &fakePositionStore{redeemed: make(map[string]ledger.Ref)}
}

func (f *fakePositionStore) AppendPosition(ctx context.Context, pos Position) (Position, error) {
	pos.ID = fmt.Sprintf("pos-%d", len(f.appended)+1)
	f.appended = append(f.appended, pos)
	return pos, nil
}

func (f *fakePositionStore) ListForSubmission(ctx context.Context, submissionID string) ([]Position, error) {
	return f.appended, nil
}

func (f *fakePositionStore) MarkRedeemed(ctx context.Context, positionID string, ref ledger.Ref) error {
	f.redeemed[positionID] = ref
	return nil
}

type fakeOperator struct {
	fail    bool
	lastOp  ledger.Operation
	execs   int
	nextRef ledger.Ref
}

func (f *fakeOperator) Execute(ctx context.Context, op ledger.Operation) (ledger.Receipt, error) {
	f.execs++
	f.lastOp = op
	if f.fail {
		return ledger.Receipt{}, fmt.Errorf("ledger: transfer rejected: %w", ledger.ErrReverted)
	}
	ref := f.nextRef
	if ref == "" {
		ref = "0xfeedbeef"
	}
	return ledger.Receipt{Ref: ref}, nil
}

func validParams() PlaceStakeParams {
	return PlaceStakeParams{
		Staker:       "0x1111111111111111111111111111111111111111",
		SubmissionID: "sub-1",
		Locator:      "https://portal.example.com/explore/list/0xAAAA-0xBBBB",
		Amount:       big.NewInt(50),
		Direction:    DirectionFor,
	}
}

func TestPlaceStake_Success(t *testing.T) {
	store := newFakePositionStore()
	op := &fakeOperator{}
	svc := NewService(store, op, DefaultConfig(), nil)

	pos, err := svc.PlaceStake(context.Background(), validParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pos.LedgerRef == "" {
		t.Fatalf("expected ledger ref on position")
	}
	if len(store.appended) != 1 {
		t.Fatalf("expected one stored position, got %d", len(store.appended))
	}
	if pos.Target[:6] != "0xbbbb" {
		t.Fatalf("expected second address target, got %s", pos.Target)
	}
}

func TestPlaceStake_AmountBounds(t *testing.T) {
	svc := NewService(newFakePositionStore(), &fakeOperator{}, DefaultConfig(), nil)
	ctx := context.Background()

	low := validParams()
	low.Amount = big.NewInt(0)
	if _, err := svc.PlaceStake(ctx, low); !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}

	high := validParams()
	high.Amount = big.NewInt(1001)
	if _, err := svc.PlaceStake(ctx, high); !errors.Is(err, ErrAboveMaximum) {
		t.Fatalf("expected ErrAboveMaximum, got %v", err)
	}

	edge := validParams()
	edge.Amount = big.NewInt(1000)
	if _, err := svc.PlaceStake(ctx, edge); err != nil {
		t.Fatalf("maximum is inclusive, got %v", err)
	}
}

func TestPlaceStake_InvalidLocator(t *testing.T) {
	store := newFakePositionStore()
	op := &fakeOperator{}
	svc := NewService(store, op, DefaultConfig(), nil)

	params := validParams()
	params.Locator = "https://example.com/nothing"
	if _, err := svc.PlaceStake(context.Background(), params); !errors.Is(err, ErrInvalidLocator) {
		t.Fatalf("expected ErrInvalidLocator, got %v", err)
	}
	if op.execs != 0 {
		t.Fatalf("expected no ledger call for invalid locator")
	}
	if len(store.appended) != 0 {
		t.Fatalf("expected no local mutation")
	}
}

func TestPlaceStake_LedgerFailureLeavesNoLocalState(t *testing.T) {
	store := newFakePositionStore()
	op := &fakeOperator{fail: true}
	svc := NewService(store, op, DefaultConfig(), nil)

	_, err := svc.PlaceStake(context.Background(), validParams())
	if !errors.Is(err, ledger.ErrReverted) {
		t.Fatalf("expected ledger revert, got %v", err)
	}
	if len(store.appended) != 0 {
		t.Fatalf("local position must not be recorded when the ledger call fails")
	}
}

func TestPlaceStake_FeeChargedOnTopButNotCounted(t *testing.T) {
	store := newFakePositionStore()
	op := &fakeOperator{}
	cfg := DefaultConfig()
	cfg.ProtocolFee = big.NewInt(3)
	svc := NewService(store, op, cfg, nil)

	pos, err := svc.PlaceStake(context.Background(), validParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := big.NewInt(53); op.lastOp.Amount.Cmp(want) != 0 {
		t.Fatalf("expected ledger charge of %s, got %s", want, op.lastOp.Amount)
	}
	if want := big.NewInt(50); pos.Amount.Cmp(want) != 0 {
		t.Fatalf("expected recorded amount %s, got %s", want, pos.Amount)
	}
}

func TestRedeemStake(t *testing.T) {
	store := newFakePositionStore()
	op := &fakeOperator{nextRef: "0xredeem"}
	svc := NewService(store, op, DefaultConfig(), nil)

	pos, err := svc.PlaceStake(context.Background(), validParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ref, err := svc.RedeemStake(context.Background(), pos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "0xredeem" {
		t.Fatalf("expected redemption ref, got %s", ref)
	}
	if store.redeemed[pos.ID] != ref {
		t.Fatalf("expected redemption recorded for %s", pos.ID)
	}
}

func TestNewService_UsesProvidedEngine(t *testing.T) {
	engine := &Engine{ApprovalThreshold: 90, RejectionThreshold: 90}
	svc := NewService(newFakePositionStore(), &fakeOperator{}, DefaultConfig(), engine)

	if svc.Engine() != engine {
		t.Fatal("expected the configured engine to be installed")
	}

	// 80% FOR clears the default threshold but not a 90% one.
	c := svc.Consensus(big.NewInt(80), big.NewInt(20))
	if c.Recommendation != RecommendDisputed {
		t.Fatalf("recommendation = %s, want disputed under 90%% thresholds", c.Recommendation)
	}

	if svc := NewService(newFakePositionStore(), &fakeOperator{}, DefaultConfig(), nil); svc.Engine() == nil {
		t.Fatal("nil engine must fall back to defaults")
	}
}
