package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"bountyflow/ledger"
)

type fakeVault struct {
	records map[string]Record
	inserts int
}

func newFakeVault() *fakeVault {
	return &fakeVault{records: make(map[string]Record)}
}

func (f *fakeVault) Insert(ctx context.Context, rec Record) (Record, error) {
	rec.CreatedAt = time.Now()
	f.records[rec.VaultRef] = rec
	f.inserts++
	return rec, nil
}

func (f *fakeVault) Get(ctx context.Context, vaultRef string) (Record, error) {
	rec, ok := f.records[vaultRef]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeVault) GetByBounty(ctx context.Context, bountyID string) (Record, error) {
	for _, rec := range f.records {
		if rec.BountyID == bountyID {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (f *fakeVault) Transition(ctx context.Context, vaultRef string, from []Status, to Status) (bool, error) {
	rec, ok := f.records[vaultRef]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if rec.Status == s {
			rec.Status = to
			f.records[vaultRef] = rec
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeVault) ListExpired(ctx context.Context, now time.Time) ([]Record, error) {
	var out []Record
	for _, rec := range f.records {
		if rec.Status == StatusActive && rec.Deadline.Before(now) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeOperator struct {
	fail  bool
	calls []ledger.Kind
}

func (f *fakeOperator) Execute(ctx context.Context, op ledger.Operation) (ledger.Receipt, error) {
	f.calls = append(f.calls, op.Kind)
	if f.fail {
		return ledger.Receipt{}, fmt.Errorf("ledger: lock rejected: %w", ledger.ErrReverted)
	}
	return ledger.Receipt{Ref: ledger.Ref(fmt.Sprintf("0xop%d", len(f.calls)))}, nil
}

func createActive(t *testing.T, svc *Service) Record {
	t.Helper()
	rec, err := svc.Create(context.Background(), "bounty-1", "0xcreator", big.NewInt(100), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("create escrow: %v", err)
	}
	if rec.Status != StatusActive {
		t.Fatalf("expected active escrow, got %s", rec.Status)
	}
	return rec
}

func TestRelease_OnceThenInvalidTransition(t *testing.T) {
	vault := newFakeVault()
	svc := NewService(vault, &fakeOperator{})
	rec := createActive(t, svc)

	ref, err := svc.ReleaseToSolver(context.Background(), rec.VaultRef, "0xsolver", "sub-1")
	if err != nil {
		t.Fatalf("first release: %v", err)
	}
	if ref == "" {
		t.Fatalf("expected a ledger ref")
	}
	if got := vault.records[rec.VaultRef].Status; got != StatusResolved {
		t.Fatalf("expected resolved, got %s", got)
	}

	if _, err := svc.ReleaseToSolver(context.Background(), rec.VaultRef, "0xsolver", "sub-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second release must be ErrInvalidTransition, got %v", err)
	}
}

func TestRefund_AfterReleaseIsInvalid(t *testing.T) {
	vault := newFakeVault()
	svc := NewService(vault, &fakeOperator{})
	rec := createActive(t, svc)

	if _, err := svc.ReleaseToSolver(context.Background(), rec.VaultRef, "0xsolver", "sub-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := svc.RefundToCreator(context.Background(), rec.VaultRef, "0xcreator"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("refund after release must fail, got %v", err)
	}
}

func TestRefund_FromExpired(t *testing.T) {
	vault := newFakeVault()
	svc := NewService(vault, &fakeOperator{})
	rec := createActive(t, svc)

	if err := svc.MarkExpired(context.Background(), rec.VaultRef); err != nil {
		t.Fatalf("mark expired: %v", err)
	}
	if _, err := svc.RefundToCreator(context.Background(), rec.VaultRef, "0xcreator"); err != nil {
		t.Fatalf("refund from expired: %v", err)
	}
	if got := vault.records[rec.VaultRef].Status; got != StatusRefunded {
		t.Fatalf("expected refunded, got %s", got)
	}
}

func TestRelease_FromDisputedAllowed(t *testing.T) {
	vault := newFakeVault()
	svc := NewService(vault, &fakeOperator{})
	rec := createActive(t, svc)

	if err := svc.MarkDisputed(context.Background(), rec.VaultRef); err != nil {
		t.Fatalf("mark disputed: %v", err)
	}
	if _, err := svc.ReleaseToSolver(context.Background(), rec.VaultRef, "0xsolver", "sub-1"); err != nil {
		t.Fatalf("release from disputed: %v", err)
	}
}

func TestCreate_LedgerFailureLeavesNoRecord(t *testing.T) {
	vault := newFakeVault()
	op := &fakeOperator{fail: true}
	svc := NewService(vault, op)

	_, err := svc.Create(context.Background(), "bounty-1", "0xcreator", big.NewInt(100), time.Now().Add(time.Hour))
	if !errors.Is(err, ledger.ErrReverted) {
		t.Fatalf("expected ledger revert, got %v", err)
	}
	if vault.inserts != 0 {
		t.Fatalf("no partial-lock state may be retained")
	}
}

func TestMarkExpired_TerminalIsInvalid(t *testing.T) {
	vault := newFakeVault()
	svc := NewService(vault, &fakeOperator{})
	rec := createActive(t, svc)

	if _, err := svc.RefundToCreator(context.Background(), rec.VaultRef, "0xcreator"); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if err := svc.MarkExpired(context.Background(), rec.VaultRef); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expire on refunded must fail, got %v", err)
	}
}
