package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// State is the single consistent view every risk decision reads from:
// bankroll, today's realized P/L, loss streak, trailing peak, open-bet
// count and the circuit latch. One State per live environment or per
// backtest run, never shared between them. All access goes through
// methods under the mutex; callers inject it explicitly rather than
// reaching for a package global so paper, live and parallel backtests
// stay isolated inside one process.
type State struct {
	mu sync.Mutex

	bankroll    decimal.Decimal
	dayRealized decimal.Decimal // realized P/L for the current day (losses negative)
	day         time.Time       // UTC date the dayRealized bucket belongs to

	consecutiveLosses int
	openBets          int

	peaks []peakPoint // bankroll highs inside the trailing window

	circuitOpen bool
	trippedAt   time.Time
	tripReason  Reason
}

type peakPoint struct {
	at       time.Time
	bankroll decimal.Decimal
}

// Snapshot is a point-in-time copy of State for callers outside the
// lock (status queries, the dashboard layer, logging).
type Snapshot struct {
	Bankroll          decimal.Decimal
	DayRealized       decimal.Decimal
	ConsecutiveLosses int
	OpenBets          int
	PeakBankroll      decimal.Decimal
	CircuitOpen       bool
	TrippedAt         time.Time
	TripReason        Reason
}

// NewState starts a risk state at the given bankroll with a closed circuit.
func NewState(bankroll decimal.Decimal, at time.Time) *State {
	if at.IsZero() {
		at = time.Now()
	}
	return &State{
		bankroll: bankroll,
		day:      dateOf(at),
		peaks:    []peakPoint{{at: at, bankroll: bankroll}},
	}
}

// Restore rebuilds a state from a saved snapshot so one session can
// continue where the previous one stopped. savedAt dates the daily
// P/L bucket; the next evaluation rolls it forward if the day has
// moved on. The trailing peak window restarts from the restored peak.
func Restore(snap Snapshot, savedAt time.Time) *State {
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	s := &State{
		bankroll:          snap.Bankroll,
		dayRealized:       snap.DayRealized,
		day:               dateOf(savedAt),
		consecutiveLosses: snap.ConsecutiveLosses,
		openBets:          snap.OpenBets,
		circuitOpen:       snap.CircuitOpen,
		trippedAt:         snap.TrippedAt,
		tripReason:        snap.TripReason,
		peaks:             []peakPoint{{at: savedAt, bankroll: snap.Bankroll}},
	}
	if snap.PeakBankroll.GreaterThan(snap.Bankroll) {
		s.peaks = append(s.peaks, peakPoint{at: savedAt, bankroll: snap.PeakBankroll})
	}
	return s
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Snapshot returns a consistent copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Bankroll:          s.bankroll,
		DayRealized:       s.dayRealized,
		ConsecutiveLosses: s.consecutiveLosses,
		OpenBets:          s.openBets,
		PeakBankroll:      s.peakLocked(),
		CircuitOpen:       s.circuitOpen,
		TrippedAt:         s.trippedAt,
		TripReason:        s.tripReason,
	}
}

// peakLocked returns the highest bankroll inside the retained window.
func (s *State) peakLocked() decimal.Decimal {
	peak := s.bankroll
	for _, p := range s.peaks {
		if p.bankroll.GreaterThan(peak) {
			peak = p.bankroll
		}
	}
	return peak
}

// rollDayLocked resets the daily P/L bucket when the settlement date moves on.
func (s *State) rollDayLocked(at time.Time) {
	d := dateOf(at)
	if d.After(s.day) {
		s.day = d
		s.dayRealized = decimal.Zero
	}
}

// pruneLocked drops peak points older than the trailing window.
func (s *State) pruneLocked(now time.Time, window time.Duration) {
	if window <= 0 {
		return
	}
	cutoff := now.Add(-window)
	kept := s.peaks[:0]
	for _, p := range s.peaks {
		if !p.at.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	s.peaks = kept
}

// tripLocked latches the circuit. A latched circuit stays latched; the
// first trip reason wins.
func (s *State) tripLocked(at time.Time, reason Reason) {
	if s.circuitOpen {
		return
	}
	s.circuitOpen = true
	s.trippedAt = at
	s.tripReason = reason
}

// ResetCircuit explicitly closes the circuit and clears the loss streak.
// This is the only way the latch clears unless a cooldown is configured.
func (s *State) ResetCircuit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.circuitOpen = false
	s.trippedAt = time.Time{}
	s.tripReason = ReasonNone
	s.consecutiveLosses = 0
}

// ReserveOpenBet counts a confirmed placement against the exposure budget.
// Unconfirmed bets keep their reservation until reconciled.
func (s *State) ReserveOpenBet() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openBets++
}

// ReleaseOpenBet frees an exposure slot without touching the bankroll,
// used when a placement turns out void or failed after reservation.
func (s *State) ReleaseOpenBet() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openBets > 0 {
		s.openBets--
	}
}
