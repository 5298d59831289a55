package arbitration

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"bountyflow/bounty"
	"bountyflow/escrow"
	"bountyflow/ledger"
)

type fakeCaseStore struct {
	cases  map[string]Case
	nextID int
}

func newFakeCaseStore() *fakeCaseStore {
	return &fakeCaseStore{cases: make(map[string]Case)}
}

func (f *fakeCaseStore) FindOpen(ctx context.Context, submissionID string) (Case, error) {
	for _, c := range f.cases {
		if c.SubmissionID == submissionID && c.Decision == DecisionPending {
			return c, nil
		}
	}
	return Case{}, ErrCaseNotFound
}

func (f *fakeCaseStore) Insert(ctx context.Context, c Case) (Case, error) {
	f.nextID++
	c.ID = fmt.Sprintf("case-%d", f.nextID)
	c.CreatedAt = time.Now()
	f.cases[c.ID] = c
	return c, nil
}

func (f *fakeCaseStore) Get(ctx context.Context, caseID string) (Case, error) {
	c, ok := f.cases[caseID]
	if !ok {
		return Case{}, ErrCaseNotFound
	}
	return c, nil
}

func (f *fakeCaseStore) Decide(ctx context.Context, caseID string, decision Decision, reasoning string) (Case, bool, error) {
	c, ok := f.cases[caseID]
	if !ok || c.Decision != DecisionPending {
		return Case{}, false, nil
	}
	now := time.Now()
	c.Decision = decision
	c.Reasoning = reasoning
	c.DecidedAt = &now
	f.cases[caseID] = c
	return c, true, nil
}

type fakeSettlement struct {
	released bool
	refunded bool
	vault    escrow.Record
}

func (f *fakeSettlement) ReleaseToSolver(ctx context.Context, vaultRef, solver, submissionID string) (ledger.Ref, error) {
	f.released = true
	return "0xrelease", nil
}

func (f *fakeSettlement) RefundToCreator(ctx context.Context, vaultRef, creator string) (ledger.Ref, error) {
	f.refunded = true
	return "0xrefund", nil
}

func (f *fakeSettlement) GetByBounty(ctx context.Context, bountyID string) (escrow.Record, error) {
	return f.vault, nil
}

type fakeSubmissions struct {
	status bounty.SubmissionStatus
}

func (f *fakeSubmissions) GetSubmission(ctx context.Context, id string) (bounty.Submission, error) {
	return bounty.Submission{ID: id, BountyID: "b-1", Submitter: "0xsolver", Status: f.status}, nil
}

func (f *fakeSubmissions) TransitionStatus(ctx context.Context, id string, from []bounty.SubmissionStatus, to bounty.SubmissionStatus) (bool, error) {
	f.status = to
	return true, nil
}

type recordingOperator struct {
	ops []ledger.Operation
}

func (r *recordingOperator) Execute(ctx context.Context, op ledger.Operation) (ledger.Receipt, error) {
	r.ops = append(r.ops, op)
	return ledger.Receipt{Ref: "0xdecision"}, nil
}

func newService() (*Service, *fakeCaseStore, *fakeSettlement, *fakeSubmissions, *recordingOperator) {
	cases := newFakeCaseStore()
	settlement := &fakeSettlement{vault: escrow.Record{
		BountyID: "b-1",
		Creator:  "0xcreator",
		Amount:   big.NewInt(100),
		VaultRef: "vault-1",
		Status:   escrow.StatusDisputed,
	}}
	subs := &fakeSubmissions{status: bounty.StatusDisputed}
	op := &recordingOperator{}
	return NewService(cases, settlement, subs, op), cases, settlement, subs, op
}

func longReasoning() string {
	return strings.Repeat("the dataset is complete and matches the bounty brief ", 3)
}

func TestOpenCase_IdempotentPerSubmission(t *testing.T) {
	svc, _, _, _, _ := newService()
	ctx := context.Background()

	first, err := svc.OpenCase(ctx, "b-1", "s-1", "0xarb")
	if err != nil {
		t.Fatalf("open case: %v", err)
	}
	second, err := svc.OpenCase(ctx, "b-1", "s-1", "0xother")
	if err != nil {
		t.Fatalf("re-open case: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same case, got %s and %s", first.ID, second.ID)
	}
}

func TestSubmitDecision_ApproveReleasesAndPaysFee(t *testing.T) {
	svc, _, settlement, subs, op := newService()
	ctx := context.Background()

	c, err := svc.OpenCase(ctx, "b-1", "s-1", "0xarb")
	if err != nil {
		t.Fatalf("open case: %v", err)
	}

	ref, err := svc.SubmitDecision(ctx, c.ID, DecisionApprove, longReasoning())
	if err != nil {
		t.Fatalf("submit decision: %v", err)
	}
	if ref == "" {
		t.Fatalf("expected ledger ref")
	}
	if !settlement.released || settlement.refunded {
		t.Fatalf("expected release only, got released=%v refunded=%v", settlement.released, settlement.refunded)
	}
	if subs.status != bounty.StatusApproved {
		t.Fatalf("expected approved submission, got %s", subs.status)
	}

	if len(op.ops) != 1 || op.ops[0].Kind != ledger.KindDecision {
		t.Fatalf("expected one decision operation, got %+v", op.ops)
	}
	if want := big.NewInt(5); op.ops[0].Amount.Cmp(want) != 0 {
		t.Fatalf("expected 5%% fee of 100 = %s, got %s", want, op.ops[0].Amount)
	}
}

func TestSubmitDecision_RejectRefunds(t *testing.T) {
	svc, _, settlement, subs, _ := newService()
	ctx := context.Background()

	c, err := svc.OpenCase(ctx, "b-1", "s-1", "0xarb")
	if err != nil {
		t.Fatalf("open case: %v", err)
	}

	if _, err := svc.SubmitDecision(ctx, c.ID, DecisionReject, longReasoning()); err != nil {
		t.Fatalf("submit decision: %v", err)
	}
	if !settlement.refunded || settlement.released {
		t.Fatalf("expected refund only")
	}
	if subs.status != bounty.StatusRejected {
		t.Fatalf("expected rejected submission, got %s", subs.status)
	}
}

func TestSubmitDecision_AlreadyDecided(t *testing.T) {
	svc, _, _, _, _ := newService()
	ctx := context.Background()

	c, err := svc.OpenCase(ctx, "b-1", "s-1", "0xarb")
	if err != nil {
		t.Fatalf("open case: %v", err)
	}
	if _, err := svc.SubmitDecision(ctx, c.ID, DecisionApprove, longReasoning()); err != nil {
		t.Fatalf("first decision: %v", err)
	}
	if _, err := svc.SubmitDecision(ctx, c.ID, DecisionReject, longReasoning()); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
}

func TestSubmitDecision_ReasoningFloor(t *testing.T) {
	svc, _, _, _, _ := newService()
	ctx := context.Background()

	c, err := svc.OpenCase(ctx, "b-1", "s-1", "0xarb")
	if err != nil {
		t.Fatalf("open case: %v", err)
	}
	if _, err := svc.SubmitDecision(ctx, c.ID, DecisionApprove, "too short"); !errors.Is(err, ErrReasoningTooShort) {
		t.Fatalf("expected ErrReasoningTooShort, got %v", err)
	}
	if _, err := svc.SubmitDecision(ctx, c.ID, "maybe", longReasoning()); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("expected ErrInvalidDecision, got %v", err)
	}
}
