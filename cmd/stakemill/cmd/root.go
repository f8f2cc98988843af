package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stakemill/stakemill/config"
	"github.com/stakemill/stakemill/logging"
)

var rootCmd = &cobra.Command{
	Use:   "stakemill",
	Short: "Risk-managed wager execution and backtesting engine",
	Long: `Stakemill sizes, risk-checks and places wagers exactly once, and
replays historical odds streams through the same decision path.

It provides tools for:
  - Kelly-based stake sizing with CVaR tail discounting
  - Multi-layer risk gating with a latched circuit breaker
  - Idempotent paper and live placement over a durable SQLite ledger
  - Deterministic backtests over historical odds data`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

var cfgPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config (defaults apply when omitted)")
}

// loadConfig returns the configured or default runtime configuration.
func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.Load(cfgPath)
	}
	if _, err := os.Stat("./stakemill.yaml"); err == nil {
		return config.Load("./stakemill.yaml")
	}
	return config.Default(), nil
}

// buildLogger constructs the process logger from the config.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}
