package escrow

import (
	"errors"
	"math/big"
	"time"
)

// Status is the escrow lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusInReview Status = "in_review"
	StatusDisputed Status = "disputed"
	StatusResolved Status = "resolved"
	StatusRefunded Status = "refunded"
	StatusExpired  Status = "expired"
)

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRefunded || s == StatusExpired
}

var (
	// ErrInvalidTransition signals a transition the state machine forbids.
	// It is a logic bug in the caller, not an environmental failure, and
	// must never be silently swallowed.
	ErrInvalidTransition = errors.New("escrow: invalid state transition")
	// ErrNotFound signals the vault reference resolves to no escrow.
	ErrNotFound = errors.New("escrow: not found")
)

// Record mirrors the escrows table.
type Record struct {
	BountyID  string
	Creator   string
	Amount    *big.Int
	Deadline  time.Time
	VaultRef  string
	Status    Status
	CreatedAt time.Time
}

// releasableFrom and refundableFrom gate the fund-moving transitions.
// Disputed escrows stay releasable/refundable so an arbitration decision can
// settle them. Exactly one of resolved/refunded may ever be reached per
// escrow; any attempt from a terminal state is a caller logic bug.
var (
	releasableFrom = map[Status]bool{StatusActive: true, StatusInReview: true, StatusDisputed: true}
	refundableFrom = map[Status]bool{StatusActive: true, StatusInReview: true, StatusDisputed: true, StatusExpired: true}
)
