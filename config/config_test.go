package config

import (
	"math/big"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/bountyflow")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ResolutionInterval != 30*time.Second {
		t.Errorf("ResolutionInterval = %v, want 30s", cfg.ResolutionInterval)
	}
	if cfg.StakingPeriod != 7*24*time.Hour {
		t.Errorf("StakingPeriod = %v, want 168h", cfg.StakingPeriod)
	}
	if cfg.ApprovalThreshold != 70 || cfg.RejectionThreshold != 70 {
		t.Errorf("thresholds = %d/%d, want 70/70", cfg.ApprovalThreshold, cfg.RejectionThreshold)
	}

	sc, err := cfg.StakeConfig()
	if err != nil {
		t.Fatalf("StakeConfig: %v", err)
	}
	if sc.MinStake.Cmp(big.NewInt(1)) != 0 || sc.MaxStake.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("stake bounds = %s..%s, want 1..1000", sc.MinStake, sc.MaxStake)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoad_WeiScaleBounds(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/bountyflow")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MIN_STAKE", "1000000000000000000")
	t.Setenv("MAX_STAKE", "1000000000000000000000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sc, err := cfg.StakeConfig()
	if err != nil {
		t.Fatalf("StakeConfig: %v", err)
	}

	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	if sc.MinStake.Cmp(want) != 0 {
		t.Errorf("MinStake = %s", sc.MinStake)
	}
}

func TestLoad_RejectsInvalidBounds(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/bountyflow")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MIN_STAKE", "100")
	t.Setenv("MAX_STAKE", "10")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when MAX_STAKE < MIN_STAKE")
	}
}

func TestLoad_RejectsThresholdOutOfRange(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/bountyflow")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APPROVAL_THRESHOLD", "101")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for threshold above 100")
	}
}
