package config

import (
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"bountyflow/stake"
)

// Config is the full process configuration, loaded from the environment at
// startup. Amount bounds are strings so wei-scale values survive parsing.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        string `env:"PORT" envDefault:"8080"`
	JWTSecret   string `env:"JWT_SECRET,required"`

	ResolutionInterval time.Duration `env:"RESOLUTION_INTERVAL" envDefault:"30s"`
	ResolutionWorkers  int           `env:"RESOLUTION_WORKERS" envDefault:"4"`
	StakingPeriod      time.Duration `env:"STAKING_PERIOD" envDefault:"168h"`

	ApprovalThreshold  int64 `env:"APPROVAL_THRESHOLD" envDefault:"70"`
	RejectionThreshold int64 `env:"REJECTION_THRESHOLD" envDefault:"70"`

	MinStake    string `env:"MIN_STAKE" envDefault:"1"`
	MaxStake    string `env:"MAX_STAKE" envDefault:"1000"`
	ProtocolFee string `env:"PROTOCOL_FEE" envDefault:"0"`

	// ArbitratorAddress is assigned to cases the scheduler opens.
	ArbitratorAddress string `env:"ARBITRATOR_ADDRESS" envDefault:"0xplatform-arbitrator"`

	LedgerURL         string `env:"LEDGER_URL" envDefault:"http://localhost:9090"`
	LedgerToken       string `env:"LEDGER_TOKEN"`
	LedgerMaxAttempts uint64 `env:"LEDGER_MAX_ATTEMPTS" envDefault:"3"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads and validates the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if _, err := cfg.StakeConfig(); err != nil {
		return Config{}, err
	}
	if cfg.ApprovalThreshold < 1 || cfg.ApprovalThreshold > 100 {
		return Config{}, fmt.Errorf("config: approval threshold %d out of range", cfg.ApprovalThreshold)
	}
	if cfg.RejectionThreshold < 1 || cfg.RejectionThreshold > 100 {
		return Config{}, fmt.Errorf("config: rejection threshold %d out of range", cfg.RejectionThreshold)
	}
	return cfg, nil
}

// StakeConfig materializes the amount bounds as big integers.
func (c Config) StakeConfig() (stake.Config, error) {
	min, ok := new(big.Int).SetString(c.MinStake, 10)
	if !ok || min.Sign() <= 0 {
		return stake.Config{}, fmt.Errorf("config: invalid MIN_STAKE %q", c.MinStake)
	}
	max, ok := new(big.Int).SetString(c.MaxStake, 10)
	if !ok || max.Cmp(min) < 0 {
		return stake.Config{}, fmt.Errorf("config: invalid MAX_STAKE %q", c.MaxStake)
	}
	fee, ok := new(big.Int).SetString(c.ProtocolFee, 10)
	if !ok || fee.Sign() < 0 {
		return stake.Config{}, fmt.Errorf("config: invalid PROTOCOL_FEE %q", c.ProtocolFee)
	}
	return stake.Config{MinStake: min, MaxStake: max, ProtocolFee: fee}, nil
}

// Engine builds the consensus engine with the configured thresholds.
func (c Config) Engine() *stake.Engine {
	return &stake.Engine{
		ApprovalThreshold:  c.ApprovalThreshold,
		RejectionThreshold: c.RejectionThreshold,
	}
}

// Logger builds the process-wide structured logger.
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
