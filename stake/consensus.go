package stake

import "math/big"

// Default thresholds: a 70% supermajority on either side is binding.
const (
	DefaultApprovalThreshold  = 70
	DefaultRejectionThreshold = 70
)

var oneHundred = big.NewInt(100)

// Engine derives a recommendation from accumulated stake. Thresholds are
// independently configurable; a submission can fail both (plurality without
// supermajority), which is the disputed path.
type Engine struct {
	ApprovalThreshold  int64
	RejectionThreshold int64
}

func NewEngine() *Engine {
	return &Engine{
		ApprovalThreshold:  DefaultApprovalThreshold,
		RejectionThreshold: DefaultRejectionThreshold,
	}
}

// Calculate computes integer percentage ratios and the recommendation.
// Nil inputs count as zero. With no stake at all the outcome is disputed.
func (e *Engine) Calculate(forStake, againstStake *big.Int) Consensus {
	if forStake == nil {
		forStake = new(big.Int)
	}
	if againstStake == nil {
		againstStake = new(big.Int)
	}

	total := new(big.Int).Add(forStake, againstStake)
	if total.Sign() == 0 {
		return Consensus{Total: total, Recommendation: RecommendDisputed}
	}

	// Multiply before divide: ratios are floored integer percentages of the
	// raw amounts, immune to floating point drift.
	forRatio := new(big.Int).Mul(forStake, oneHundred)
	forRatio.Quo(forRatio, total)
	againstRatio := new(big.Int).Mul(againstStake, oneHundred)
	againstRatio.Quo(againstRatio, total)

	c := Consensus{
		ForRatio:     forRatio.Int64(),
		AgainstRatio: againstRatio.Int64(),
		Total:        total,
	}

	switch {
	case c.ForRatio >= e.ApprovalThreshold:
		c.Recommendation = RecommendApprove
	case c.AgainstRatio >= e.RejectionThreshold:
		c.Recommendation = RecommendReject
	default:
		c.Recommendation = RecommendDisputed
	}
	return c
}
