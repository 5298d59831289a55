package resolution

import (
	"errors"
	"time"

	"bountyflow/ledger"
)

// ActionKind classifies what the scheduler decided to do.
type ActionKind string

const (
	KindAutoApprove       ActionKind = "auto_approve"
	KindAutoReject        ActionKind = "auto_reject"
	KindSendToArbitration ActionKind = "send_to_arbitration"
	KindRefundExpired     ActionKind = "refund_expired"
)

var (
	// ErrStaleAction signals the submission transitioned concurrently
	// between emission and execution. Benign race: logged and dropped.
	ErrStaleAction = errors.New("resolution: action superseded by a concurrent transition")
	// ErrActionNotFound signals an unknown action id.
	ErrActionNotFound = errors.New("resolution: action not found")
)

// Action is a resolution decision awaiting (or past) execution. Executed at
// most once; the executed flag guards idempotency.
type Action struct {
	ID           string
	Kind         ActionKind
	SubmissionID string
	BountyID     string
	Reason       string
	CreatedAt    time.Time
	Executed     bool
	ExecutedAt   *time.Time
	LedgerRef    ledger.Ref
}
