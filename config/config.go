// Package config loads and validates the YAML runtime configuration.
// A .env file, when present, overrides the secrets that should never
// live in a checked-in YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/stakemill/stakemill/engine"
	"github.com/stakemill/stakemill/risk"
	"github.com/stakemill/stakemill/sink"
	"github.com/stakemill/stakemill/staking"
)

// Execution modes.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// Config is the complete runtime configuration.
type Config struct {
	Bankroll  BankrollConfig  `yaml:"bankroll"`
	Staking   StakingConfig   `yaml:"staking"`
	Risk      RiskConfig      `yaml:"risk"`
	Execution ExecutionConfig `yaml:"execution"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// BankrollConfig sets the starting bankroll.
type BankrollConfig struct {
	Initial  string `yaml:"initial"`
	Currency string `yaml:"currency"`
}

// StakingConfig parameterizes the Kelly sizer.
type StakingConfig struct {
	Fraction         float64 `yaml:"fraction"`           // kelly multiplier, e.g. 0.5 for half-kelly
	MaxStakeFraction float64 `yaml:"max_stake_fraction"` // hard cap as a bankroll fraction
	Ceiling          string  `yaml:"ceiling"`            // absolute stake cap, empty = none
	CVaRConfidence   float64 `yaml:"cvar_confidence"`    // 0 disables the tail discount
	RiskAversion     float64 `yaml:"risk_aversion"`
}

// RiskConfig mirrors risk.Policy with YAML-friendly types.
type RiskConfig struct {
	MinOdds              float64 `yaml:"min_odds"`
	MaxOdds              float64 `yaml:"max_odds"`
	MinEdge              float64 `yaml:"min_edge"`
	MaxStakeFraction     float64 `yaml:"max_stake_fraction"`
	MaxStake             string  `yaml:"max_stake"`
	MaxOpenBets          int     `yaml:"max_open_bets"`
	DailyLossLimit       string  `yaml:"daily_loss_limit"`
	ConsecutiveLossLimit int     `yaml:"consecutive_loss_limit"`
	MaxDrawdownFraction  float64 `yaml:"max_drawdown_fraction"`
	TrailingWindow       string  `yaml:"trailing_window"`  // duration, e.g. "168h"
	CircuitCooldown      string  `yaml:"circuit_cooldown"` // empty = latch until manual reset
}

// ExecutionConfig selects the sink and its protection layers.
type ExecutionConfig struct {
	Mode                string `yaml:"mode"` // paper | live
	SinkURL             string `yaml:"sink_url"`
	SinkToken           string `yaml:"sink_token"` // overridden by STAKEMILL_SINK_TOKEN
	SinkTimeout         string `yaml:"sink_timeout"`
	RetryMaxAttempts    int    `yaml:"retry_max_attempts"`
	RetryBaseWait       string `yaml:"retry_base_wait"`
	RetryMaxWait        string `yaml:"retry_max_wait"`
	BreakerThreshold    int    `yaml:"breaker_threshold"`
	BreakerOpenFor      string `yaml:"breaker_open_for"`
	PlacementsPerMinute int    `yaml:"placements_per_minute"`
}

// LedgerConfig locates the audit trail.
type LedgerConfig struct {
	DBPath string `yaml:"db_path"`
}

// LogConfig controls log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads the YAML file at path, applies .env overrides and
// validates the result. A missing .env is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if token := os.Getenv("STAKEMILL_SINK_TOKEN"); token != "" {
		cfg.Execution.SinkToken = token
	}
	if db := os.Getenv("STAKEMILL_DB_PATH"); db != "" {
		cfg.Ledger.DBPath = db
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns a conservative paper-mode configuration.
func Default() *Config {
	return &Config{
		Bankroll: BankrollConfig{Initial: "10000", Currency: "USD"},
		Staking: StakingConfig{
			Fraction:         0.25,
			MaxStakeFraction: 0.05,
		},
		Risk: RiskConfig{
			MinOdds:              1.01,
			MaxOdds:              1000,
			MinEdge:              0.02,
			MaxStakeFraction:     0.05,
			MaxOpenBets:          20,
			DailyLossLimit:       "500",
			ConsecutiveLossLimit: 5,
			MaxDrawdownFraction:  0.2,
			TrailingWindow:       "168h",
		},
		Execution: ExecutionConfig{
			Mode:                ModePaper,
			SinkTimeout:         "10s",
			RetryMaxAttempts:    3,
			RetryBaseWait:       "500ms",
			RetryMaxWait:        "5s",
			BreakerThreshold:    5,
			BreakerOpenFor:      "30s",
			PlacementsPerMinute: 30,
		},
		Ledger:  LedgerConfig{DBPath: "./stakemill.sqlite"},
		Log:     LogConfig{Level: "info", Format: "console"},
		Metrics: MetricsConfig{Port: 9090},
	}
}

// Validate checks every section and reports the first problem found.
func (c *Config) Validate() error {
	if _, err := c.InitialBankroll(); err != nil {
		return err
	}

	if c.Staking.Fraction <= 0 || c.Staking.Fraction > 1 {
		return fmt.Errorf("staking.fraction must be in (0, 1]")
	}
	if c.Staking.MaxStakeFraction < 0 || c.Staking.MaxStakeFraction > 1 {
		return fmt.Errorf("staking.max_stake_fraction must be in [0, 1]")
	}
	if c.Staking.CVaRConfidence != 0 && (c.Staking.CVaRConfidence <= 0.5 || c.Staking.CVaRConfidence >= 1) {
		return fmt.Errorf("staking.cvar_confidence must be in (0.5, 1) or 0 to disable")
	}
	if _, err := parseDecimal("staking.ceiling", c.Staking.Ceiling); err != nil {
		return err
	}

	if c.Risk.MinOdds < 1 {
		return fmt.Errorf("risk.min_odds must be at least 1")
	}
	if c.Risk.MaxOdds > 0 && c.Risk.MaxOdds < c.Risk.MinOdds {
		return fmt.Errorf("risk.max_odds must be at least min_odds")
	}
	if c.Risk.MaxDrawdownFraction < 0 || c.Risk.MaxDrawdownFraction >= 1 {
		return fmt.Errorf("risk.max_drawdown_fraction must be in [0, 1)")
	}
	for _, d := range []struct{ name, val string }{
		{"risk.max_stake", c.Risk.MaxStake},
		{"risk.daily_loss_limit", c.Risk.DailyLossLimit},
	} {
		if _, err := parseDecimal(d.name, d.val); err != nil {
			return err
		}
	}
	for _, d := range []struct{ name, val string }{
		{"risk.trailing_window", c.Risk.TrailingWindow},
		{"risk.circuit_cooldown", c.Risk.CircuitCooldown},
		{"execution.sink_timeout", c.Execution.SinkTimeout},
		{"execution.retry_base_wait", c.Execution.RetryBaseWait},
		{"execution.retry_max_wait", c.Execution.RetryMaxWait},
		{"execution.breaker_open_for", c.Execution.BreakerOpenFor},
	} {
		if _, err := parseDuration(d.name, d.val); err != nil {
			return err
		}
	}

	switch c.Execution.Mode {
	case ModePaper:
	case ModeLive:
		if c.Execution.SinkURL == "" {
			return fmt.Errorf("execution.sink_url is required in live mode")
		}
		if c.Execution.SinkToken == "" {
			return fmt.Errorf("execution.sink_token (or STAKEMILL_SINK_TOKEN) is required in live mode")
		}
	default:
		return fmt.Errorf("execution.mode must be %q or %q", ModePaper, ModeLive)
	}
	if c.Execution.RetryMaxAttempts < 1 {
		return fmt.Errorf("execution.retry_max_attempts must be at least 1")
	}

	if c.Ledger.DBPath == "" {
		return fmt.Errorf("ledger.db_path is required")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be a valid port")
	}
	return nil
}

// InitialBankroll parses the configured starting bankroll.
func (c *Config) InitialBankroll() (decimal.Decimal, error) {
	d, err := parseDecimal("bankroll.initial", c.Bankroll.Initial)
	if err != nil {
		return decimal.Zero, err
	}
	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("bankroll.initial must be positive")
	}
	return d, nil
}

// StakingParams converts the staking section. Validate first.
func (c *Config) StakingParams() staking.Params {
	ceiling, _ := parseDecimal("", c.Staking.Ceiling)
	return staking.Params{
		Fraction:         c.Staking.Fraction,
		MaxStakeFraction: c.Staking.MaxStakeFraction,
		Ceiling:          ceiling,
		CVaRConfidence:   c.Staking.CVaRConfidence,
		RiskAversion:     c.Staking.RiskAversion,
	}
}

// RiskPolicy converts the risk section. Validate first.
func (c *Config) RiskPolicy() risk.Policy {
	maxStake, _ := parseDecimal("", c.Risk.MaxStake)
	dailyLoss, _ := parseDecimal("", c.Risk.DailyLossLimit)
	window, _ := parseDuration("", c.Risk.TrailingWindow)
	cooldown, _ := parseDuration("", c.Risk.CircuitCooldown)
	return risk.Policy{
		MinOdds:              c.Risk.MinOdds,
		MaxOdds:              c.Risk.MaxOdds,
		MinEdge:              c.Risk.MinEdge,
		MaxStakeFraction:     c.Risk.MaxStakeFraction,
		MaxStake:             maxStake,
		MaxOpenBets:          c.Risk.MaxOpenBets,
		DailyLossLimit:       dailyLoss,
		ConsecutiveLossLimit: c.Risk.ConsecutiveLossLimit,
		MaxDrawdownFraction:  c.Risk.MaxDrawdownFraction,
		TrailingWindow:       window,
		CircuitCooldown:      cooldown,
	}
}

// EngineConfig converts the execution section for the coordinator.
// Paper mode always runs dry.
func (c *Config) EngineConfig() engine.Config {
	timeout, _ := parseDuration("", c.Execution.SinkTimeout)
	baseWait, _ := parseDuration("", c.Execution.RetryBaseWait)
	maxWait, _ := parseDuration("", c.Execution.RetryMaxWait)
	return engine.Config{
		Staking: c.StakingParams(),
		Retry: sink.RetryPolicy{
			MaxAttempts: c.Execution.RetryMaxAttempts,
			BaseWait:    baseWait,
			MaxWait:     maxWait,
		},
		SinkTimeout:         timeout,
		PlacementsPerMinute: c.Execution.PlacementsPerMinute,
		DryRun:              c.Execution.Mode == ModePaper,
	}
}

// BuildSink constructs the configured sink behind its breaker.
func (c *Config) BuildSink() sink.Sink {
	var inner sink.Sink
	if c.Execution.Mode == ModeLive {
		timeout, _ := parseDuration("", c.Execution.SinkTimeout)
		inner = sink.NewExternal(c.Execution.SinkURL, c.Execution.SinkToken, timeout)
	} else {
		inner = sink.NewPaper()
	}
	openFor, _ := parseDuration("", c.Execution.BreakerOpenFor)
	return sink.NewBreaker(inner, c.Execution.BreakerThreshold, openFor)
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: bad amount %q", name, s)
	}
	return d, nil
}

func parseDuration(name, s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%s: bad duration %q", name, s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must not be negative", name)
	}
	return d, nil
}
