package arbitration

import (
	"errors"
	"time"
)

// Decision is the arbitrator's verdict on a disputed submission.
type Decision string

const (
	DecisionPending Decision = "pending"
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// MinReasoningLength is the audit floor for decision reasoning. Enforced
// here, not by the ledger.
const MinReasoningLength = 50

var (
	// ErrAlreadyDecided signals the case has left the pending state.
	ErrAlreadyDecided = errors.New("arbitration: case already decided")
	// ErrReasoningTooShort signals the reasoning fails the audit floor.
	ErrReasoningTooShort = errors.New("arbitration: reasoning must be at least 50 characters")
	// ErrInvalidDecision signals a verdict other than approve or reject.
	ErrInvalidDecision = errors.New("arbitration: decision must be approve or reject")
	// ErrCaseNotFound signals an unknown case id.
	ErrCaseNotFound = errors.New("arbitration: case not found")
)

// Case mirrors the arbitration_cases table. Mutated exactly once, by the
// assigned arbitrator's decision; immutable thereafter.
type Case struct {
	ID           string
	BountyID     string
	SubmissionID string
	Arbitrator   string
	Decision     Decision
	Reasoning    string
	DecidedAt    *time.Time
	CreatedAt    time.Time
}
