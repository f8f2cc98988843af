package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stakemill/stakemill/risk"
)

// SaveRiskState persists the session's risk snapshot in the same
// database as the audit trail, so the next CLI invocation resumes
// bankroll, streak and circuit latch instead of starting fresh.
func (s *SQLite) SaveRiskState(ctx context.Context, snap risk.Snapshot, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_state
		  (id, bankroll, day_realized, consecutive_losses, open_bets,
		   peak_bankroll, circuit_open, tripped_at, trip_reason, saved_at)
		VALUES (1,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
		  bankroll=excluded.bankroll,
		  day_realized=excluded.day_realized,
		  consecutive_losses=excluded.consecutive_losses,
		  open_bets=excluded.open_bets,
		  peak_bankroll=excluded.peak_bankroll,
		  circuit_open=excluded.circuit_open,
		  tripped_at=excluded.tripped_at,
		  trip_reason=excluded.trip_reason,
		  saved_at=excluded.saved_at`,
		snap.Bankroll.String(), snap.DayRealized.String(),
		snap.ConsecutiveLosses, snap.OpenBets, snap.PeakBankroll.String(),
		boolToInt(snap.CircuitOpen), zeroNullTime(snap.TrippedAt),
		string(snap.TripReason), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("ledger: save risk state: %w", err)
	}
	return nil
}

// LoadRiskState returns the saved snapshot and when it was saved, or
// ErrNotFound when no session has run against this database yet.
func (s *SQLite) LoadRiskState(ctx context.Context) (risk.Snapshot, time.Time, error) {
	var (
		snap       risk.Snapshot
		bankroll   string
		dayPL      string
		peak       string
		open       int
		trippedAt  sql.NullTime
		tripReason string
		savedAt    time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT bankroll, day_realized, consecutive_losses, open_bets,
		       peak_bankroll, circuit_open, tripped_at, trip_reason, saved_at
		FROM risk_state WHERE id = 1`).Scan(
		&bankroll, &dayPL, &snap.ConsecutiveLosses, &snap.OpenBets,
		&peak, &open, &trippedAt, &tripReason, &savedAt,
	)
	if err == sql.ErrNoRows {
		return risk.Snapshot{}, time.Time{}, ErrNotFound
	}
	if err != nil {
		return risk.Snapshot{}, time.Time{}, fmt.Errorf("ledger: load risk state: %w", err)
	}

	if snap.Bankroll, err = decimal.NewFromString(bankroll); err != nil {
		return risk.Snapshot{}, time.Time{}, fmt.Errorf("ledger: bad bankroll %q: %w", bankroll, err)
	}
	if snap.DayRealized, err = decimal.NewFromString(dayPL); err != nil {
		return risk.Snapshot{}, time.Time{}, fmt.Errorf("ledger: bad day_realized %q: %w", dayPL, err)
	}
	if snap.PeakBankroll, err = decimal.NewFromString(peak); err != nil {
		return risk.Snapshot{}, time.Time{}, fmt.Errorf("ledger: bad peak_bankroll %q: %w", peak, err)
	}
	snap.CircuitOpen = open != 0
	if trippedAt.Valid {
		snap.TrippedAt = trippedAt.Time
	}
	snap.TripReason = risk.Reason(tripReason)
	return snap, savedAt, nil
}

func zeroNullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
