package stake

import (
	"math/big"
	"math/rand"
	"testing"
)

func TestCalculate_ZeroTotalIsDisputed(t *testing.T) {
	c := NewEngine().Calculate(big.NewInt(0), big.NewInt(0))
	if c.Recommendation != RecommendDisputed {
		t.Fatalf("expected disputed, got %s", c.Recommendation)
	}
	if c.ForRatio != 0 || c.AgainstRatio != 0 {
		t.Fatalf("expected 0/0 ratios, got %d/%d", c.ForRatio, c.AgainstRatio)
	}
}

func TestCalculate_Scenarios(t *testing.T) {
	engine := NewEngine()

	cases := []struct {
		name             string
		forStake         int64
		againstStake     int64
		want             Recommendation
		wantFor, wantAgt int64
	}{
		{"strong approval", 80, 20, RecommendApprove, 80, 20},
		{"strong rejection", 20, 80, RecommendReject, 20, 80},
		{"plurality without supermajority", 52, 48, RecommendDisputed, 52, 48},
		{"exact approval threshold", 70, 30, RecommendApprove, 70, 30},
		{"one short of threshold", 69, 31, RecommendDisputed, 69, 31},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := engine.Calculate(big.NewInt(tc.forStake), big.NewInt(tc.againstStake))
			if c.Recommendation != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, c.Recommendation)
			}
			if c.ForRatio != tc.wantFor || c.AgainstRatio != tc.wantAgt {
				t.Fatalf("expected ratios %d/%d, got %d/%d", tc.wantFor, tc.wantAgt, c.ForRatio, c.AgainstRatio)
			}
		})
	}
}

func TestCalculate_WeiScaleAmounts(t *testing.T) {
	// 80 and 20 units at 18 decimals; ratios must be exact despite the
	// amounts exceeding the uint64 range.
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	forStake := new(big.Int).Mul(big.NewInt(80), unit)
	againstStake := new(big.Int).Mul(big.NewInt(20), unit)

	c := NewEngine().Calculate(forStake, againstStake)
	if c.ForRatio != 80 || c.AgainstRatio != 20 {
		t.Fatalf("expected 80/20, got %d/%d", c.ForRatio, c.AgainstRatio)
	}
	if c.Recommendation != RecommendApprove {
		t.Fatalf("expected approve, got %s", c.Recommendation)
	}
}

func TestCalculate_RatiosSumToHundredWithinRounding(t *testing.T) {
	engine := NewEngine()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		forStake := big.NewInt(rng.Int63n(1_000_000))
		againstStake := big.NewInt(rng.Int63n(1_000_000))
		if forStake.Sign() == 0 && againstStake.Sign() == 0 {
			continue
		}

		c := engine.Calculate(forStake, againstStake)
		sum := c.ForRatio + c.AgainstRatio
		if sum < 99 || sum > 100 {
			t.Fatalf("for=%s against=%s: ratios %d+%d out of tolerance",
				forStake, againstStake, c.ForRatio, c.AgainstRatio)
		}
	}
}

func TestCalculate_NilAmounts(t *testing.T) {
	c := NewEngine().Calculate(nil, nil)
	if c.Recommendation != RecommendDisputed {
		t.Fatalf("expected disputed for nil inputs, got %s", c.Recommendation)
	}
}

func TestCalculate_AsymmetricThresholds(t *testing.T) {
	engine := &Engine{ApprovalThreshold: 60, RejectionThreshold: 80}

	if c := engine.Calculate(big.NewInt(65), big.NewInt(35)); c.Recommendation != RecommendApprove {
		t.Fatalf("expected approve at 65%% with threshold 60, got %s", c.Recommendation)
	}
	if c := engine.Calculate(big.NewInt(25), big.NewInt(75)); c.Recommendation != RecommendDisputed {
		t.Fatalf("expected disputed at 75%% against with threshold 80, got %s", c.Recommendation)
	}
}
