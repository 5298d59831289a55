package stake

import (
	"errors"
	"math/big"
	"time"

	"bountyflow/ledger"
	"bountyflow/locator"
)

// Direction is the side a stake backs.
type Direction string

const (
	DirectionFor     Direction = "for"
	DirectionAgainst Direction = "against"
)

// Recommendation is the consensus-derived outcome for a submission.
type Recommendation string

const (
	RecommendApprove  Recommendation = "approve"
	RecommendReject   Recommendation = "reject"
	RecommendDisputed Recommendation = "disputed"
)

var (
	// ErrInvalidLocator signals the stake's locator resolves to no target.
	ErrInvalidLocator = errors.New("stake: locator does not resolve to a target")
	// ErrBelowMinimum signals the amount is under the configured floor.
	ErrBelowMinimum = errors.New("stake: amount below minimum")
	// ErrAboveMaximum signals the amount is over the configured ceiling.
	ErrAboveMaximum = errors.New("stake: amount above maximum")
	// ErrInvalidDirection signals an unknown stake direction.
	ErrInvalidDirection = errors.New("stake: direction must be for or against")
)

// Position is an immutable record of a placed stake. It is created exactly
// once; redemption is a separate event, never a mutation.
type Position struct {
	ID           string
	Staker       string
	SubmissionID string
	Target       locator.TargetID
	Amount       *big.Int
	Direction    Direction
	PlacedAt     time.Time
	LedgerRef    ledger.Ref
}

// Consensus is the ratio breakdown for a submission at evaluation time.
// Ratios are integer percentages computed multiply-before-divide so raw
// amounts never pass through floating point.
type Consensus struct {
	ForRatio       int64
	AgainstRatio   int64
	Total          *big.Int
	Recommendation Recommendation
}

// PlaceStakeParams enumerates the inputs for recording a stake.
type PlaceStakeParams struct {
	Staker       string
	SubmissionID string
	Locator      string
	Amount       *big.Int
	Direction    Direction
}

// Config bounds stake amounts and carries the protocol fee charged on top of
// every placement.
type Config struct {
	MinStake    *big.Int
	MaxStake    *big.Int
	ProtocolFee *big.Int
}

// DefaultConfig returns the platform defaults: 1 to 1000 units inclusive,
// no protocol fee.
func DefaultConfig() Config {
	return Config{
		MinStake:    big.NewInt(1),
		MaxStake:    big.NewInt(1000),
		ProtocolFee: big.NewInt(0),
	}
}
