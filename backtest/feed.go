package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Outcome is the historical result of a wager row.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeVoid Outcome = "void"
)

// Row is one historical observation: the forecast and odds available
// at At, plus what actually happened once the fixture settled.
type Row struct {
	At          time.Time
	MarketID    string
	Selection   string
	Probability float64
	Odds        float64
	Outcome     Outcome
	SettleAt    time.Time
}

// ErrBadRow wraps per-row parse failures. The runner logs and skips
// these; any other feed error aborts the run.
var ErrBadRow = errors.New("backtest: malformed row")

// Feed yields rows one at a time in non-decreasing time order.
// Implementations must be deterministic and return ok=false at EOF.
type Feed interface {
	Next() (r Row, ok bool, err error)
	Close() error
}

// CSVFeed reads rows from CSV with the columns
//
//	time,market_id,selection,probability,odds,outcome,settle_offset
//
// where settle_offset is a Go duration ("2h30m") from the row time to
// settlement. A header line is detected and skipped.
type CSVFeed struct {
	r      *csv.Reader
	closer io.Closer
	first  bool
}

// NewCSVFeed wraps a reader. The caller keeps ownership of rc's
// underlying resources; Close closes it.
func NewCSVFeed(rc io.ReadCloser) *CSVFeed {
	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1
	return &CSVFeed{r: r, closer: rc, first: true}
}

func (f *CSVFeed) Next() (Row, bool, error) {
	for {
		rec, err := f.r.Read()
		if err == io.EOF {
			return Row{}, false, nil
		}
		if err != nil {
			// csv-level damage is per-row: report it as skippable.
			return Row{}, true, fmt.Errorf("%w: %v", ErrBadRow, err)
		}

		if f.first {
			f.first = false
			if len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "time") {
				continue
			}
		}
		if len(rec) == 0 {
			continue
		}

		row, err := parseRow(rec)
		if err != nil {
			return Row{}, true, err
		}
		return row, true, nil
	}
}

func (f *CSVFeed) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

func parseRow(rec []string) (Row, error) {
	if len(rec) < 7 {
		return Row{}, fmt.Errorf("%w: need 7 columns, got %d", ErrBadRow, len(rec))
	}

	at, err := parseTime(rec[0])
	if err != nil {
		return Row{}, fmt.Errorf("%w: bad time %q: %v", ErrBadRow, rec[0], err)
	}

	p, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
	if err != nil {
		return Row{}, fmt.Errorf("%w: bad probability %q: %v", ErrBadRow, rec[3], err)
	}

	odds, err := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
	if err != nil {
		return Row{}, fmt.Errorf("%w: bad odds %q: %v", ErrBadRow, rec[4], err)
	}

	outcome := Outcome(strings.ToLower(strings.TrimSpace(rec[5])))
	switch outcome {
	case OutcomeWin, OutcomeLoss, OutcomeVoid:
	default:
		return Row{}, fmt.Errorf("%w: bad outcome %q", ErrBadRow, rec[5])
	}

	offset, err := time.ParseDuration(strings.TrimSpace(rec[6]))
	if err != nil || offset < 0 {
		return Row{}, fmt.Errorf("%w: bad settle_offset %q", ErrBadRow, rec[6])
	}

	return Row{
		At:          at,
		MarketID:    strings.TrimSpace(rec[1]),
		Selection:   strings.TrimSpace(rec[2]),
		Probability: p,
		Odds:        odds,
		Outcome:     outcome,
		SettleAt:    at.Add(offset),
	}, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// SliceFeed replays an in-memory slice of rows, mostly for synthetic
// streams and tests.
type SliceFeed struct {
	rows []Row
	i    int
}

// NewSliceFeed wraps rows; they must already be in time order.
func NewSliceFeed(rows []Row) *SliceFeed {
	return &SliceFeed{rows: rows}
}

func (f *SliceFeed) Next() (Row, bool, error) {
	if f.i >= len(f.rows) {
		return Row{}, false, nil
	}
	r := f.rows[f.i]
	f.i++
	return r, true, nil
}

func (f *SliceFeed) Close() error { return nil }
