// Package ledger defines the opaque external ledger/vault operation contract.
// The core treats fund movement as an asynchronous call that either yields a
// receipt or reverts; the actual on-chain encoding lives behind Operator.
package ledger

import (
	"context"
	"errors"
	"math/big"

	"bountyflow/locator"
)

// Kind enumerates the ledger operations the core performs.
type Kind string

const (
	KindLock     Kind = "lock"
	KindRelease  Kind = "release"
	KindRefund   Kind = "refund"
	KindStake    Kind = "stake"
	KindRedeem   Kind = "redeem"
	KindDecision Kind = "decision"
)

// ErrReverted signals the external ledger rejected or reverted the operation.
// It may be transient; callers decide whether to retry.
var ErrReverted = errors.New("ledger: operation reverted")

// Ref identifies a confirmed ledger operation (transaction hash or similar).
type Ref string

// Operation describes a single transfer-and-record call against the vault.
type Operation struct {
	Kind     Kind
	VaultRef string
	Target   locator.TargetID
	From     string
	To       string
	// Amount is in the smallest unit. Nil for pure record operations.
	Amount *big.Int
	// Memo carries an audit string recorded alongside the transfer.
	Memo string
}

// Receipt confirms a successful operation.
type Receipt struct {
	Ref Ref
}

// Operator executes ledger operations. A non-success outcome must be
// returned as an error wrapping ErrReverted; implementations never fabricate
// success data on failure.
type Operator interface {
	Execute(ctx context.Context, op Operation) (Receipt, error)
}
