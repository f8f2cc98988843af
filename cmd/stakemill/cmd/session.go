package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/stakemill/stakemill/config"
	"github.com/stakemill/stakemill/engine"
	"github.com/stakemill/stakemill/ledger"
	"github.com/stakemill/stakemill/metrics"
	"github.com/stakemill/stakemill/risk"
)

// session is one CLI invocation's view of the persistent environment:
// the SQLite ledger plus the risk state saved by the previous
// invocation. Close saves the state back.
type session struct {
	cfg   *config.Config
	log   *zap.Logger
	store *ledger.SQLite
	coord *engine.Coordinator
}

// openSession loads config, logger, ledger and saved risk state, and
// wires the coordinator over them.
func openSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}

	store, err := ledger.NewSQLite(cfg.Ledger.DBPath)
	if err != nil {
		return nil, err
	}

	state, err := restoreState(cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	met := metrics.NewSet()
	if cfg.Metrics.Enabled {
		met.Serve(strconv.Itoa(cfg.Metrics.Port), func(ctx context.Context) error {
			_, err := store.Get(ctx, "healthcheck-probe")
			if errors.Is(err, ledger.ErrNotFound) {
				return nil
			}
			return err
		})
	}

	gate := risk.NewGate(cfg.RiskPolicy(), state, log)
	coord := engine.New(cfg.EngineConfig(), gate, store, cfg.BuildSink(), met, log)

	return &session{cfg: cfg, log: log, store: store, coord: coord}, nil
}

func restoreState(cfg *config.Config, store *ledger.SQLite) (*risk.State, error) {
	snap, savedAt, err := store.LoadRiskState(context.Background())
	if errors.Is(err, ledger.ErrNotFound) {
		bankroll, err := cfg.InitialBankroll()
		if err != nil {
			return nil, err
		}
		return risk.NewState(bankroll, time.Now()), nil
	}
	if err != nil {
		return nil, err
	}
	return risk.Restore(snap, savedAt), nil
}

// Close persists the risk state and releases the ledger.
func (s *session) Close() error {
	err := s.store.SaveRiskState(context.Background(), s.coord.Snapshot(), time.Now())
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	s.log.Sync()
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}
