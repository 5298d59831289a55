package bounty

import (
	"math/big"
	"time"

	"bountyflow/locator"
)

// Kind distinguishes the two bounty categories the platform runs.
type Kind string

const (
	KindData       Kind = "data"
	KindReputation Kind = "reputation"
)

// SubmissionStatus is the lifecycle of a candidate solution.
type SubmissionStatus string

const (
	StatusPendingReview SubmissionStatus = "pending_review"
	StatusStakingPeriod SubmissionStatus = "staking_period"
	StatusApproved      SubmissionStatus = "approved"
	StatusRejected      SubmissionStatus = "rejected"
	StatusDisputed      SubmissionStatus = "disputed"
)

// Bounty mirrors the bounties table. Immutable after creation except for
// fields maintained by collaborating services.
type Bounty struct {
	ID        string
	Title     string
	Creator   string
	Reward    *big.Int
	Deadline  time.Time
	Kind      Kind
	CreatedAt time.Time
}

// Submission mirrors the submissions table. Stake totals are mutated only by
// the stake ledger; status only by the resolution scheduler or arbitration.
type Submission struct {
	ID            string
	BountyID      string
	Submitter     string
	Locator       string
	Target        locator.TargetID
	SubmittedAt   time.Time
	StakingEndsAt time.Time
	ForStake      *big.Int
	AgainstStake  *big.Int
	Status        SubmissionStatus
}

// CreateBountyParams enumerates the fields required to register a bounty.
type CreateBountyParams struct {
	Title    string
	Creator  string
	Reward   *big.Int
	Deadline time.Time
	Kind     Kind
}

// CreateSubmissionParams enumerates the fields required to submit a solution.
type CreateSubmissionParams struct {
	BountyID  string
	Submitter string
	Locator   string
}
