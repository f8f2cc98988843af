package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLite persists ledger entries in a single SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the ledger database at path and applies
// the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %q: %w", path, err)
	}
	// Single connection: evaluation is single-writer anyway and this
	// keeps concurrent Reserve calls serialized instead of hitting
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Reserve inserts the entry iff the key is new. ON CONFLICT DO NOTHING
// plus RowsAffected makes the check-and-insert one atomic statement.
func (s *SQLite) Reserve(ctx context.Context, e Entry) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entries
		  (idempotency_key, audit_id, market_id, selection, stake, odds,
		   probability, edge, result, reason, confirmation_id, pl, dry_run,
		   placed_at, settled_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(idempotency_key) DO NOTHING`,
		e.Key, e.AuditID, e.MarketID, e.Selection, e.Stake.String(), e.Odds,
		e.Probability, e.Edge, string(e.Result), e.Reason, e.ConfirmationID,
		e.PL.String(), boolToInt(e.DryRun), e.PlacedAt.UTC(), nullTime(e.SettledAt),
	)
	if err != nil {
		return false, fmt.Errorf("ledger: reserve %q: %w", e.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ledger: reserve %q: %w", e.Key, err)
	}
	return n == 1, nil
}

// Get returns the entry for a key or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, key string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, selectCols+` WHERE idempotency_key = ?`, key)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: get %q: %w", key, err)
	}
	return e, nil
}

// Update rewrites the mutable outcome fields of an existing entry.
func (s *SQLite) Update(ctx context.Context, e Entry) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entries
		SET result=?, reason=?, confirmation_id=?, pl=?, settled_at=?
		WHERE idempotency_key=?`,
		string(e.Result), e.Reason, e.ConfirmationID, e.PL.String(),
		nullTime(e.SettledAt), e.Key,
	)
	if err != nil {
		return fmt.Errorf("ledger: update %q: %w", e.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: update %q: %w", e.Key, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRange returns entries placed within [start, end) in placement order.
func (s *SQLite) ListRange(ctx context.Context, start, end time.Time) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		selectCols+` WHERE placed_at >= ? AND placed_at < ? ORDER BY placed_at ASC`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("ledger: list range: %w", err)
	}
	return collect(rows)
}

// ListByResult returns entries currently in the given state.
func (s *SQLite) ListByResult(ctx context.Context, r Result) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		selectCols+` WHERE result = ? ORDER BY placed_at ASC`, string(r))
	if err != nil {
		return nil, fmt.Errorf("ledger: list by result: %w", err)
	}
	return collect(rows)
}

func (s *SQLite) Close() error { return s.db.Close() }

const selectCols = `
	SELECT idempotency_key, audit_id, market_id, selection, stake, odds,
	       probability, edge, result, reason, confirmation_id, pl, dry_run,
	       placed_at, settled_at
	FROM entries`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e         Entry
		stake     string
		pl        string
		result    string
		dryRun    int
		settledAt sql.NullTime
	)
	err := row.Scan(
		&e.Key, &e.AuditID, &e.MarketID, &e.Selection, &stake, &e.Odds,
		&e.Probability, &e.Edge, &result, &e.Reason, &e.ConfirmationID,
		&pl, &dryRun, &e.PlacedAt, &settledAt,
	)
	if err != nil {
		return Entry{}, err
	}

	e.Stake, err = decimal.NewFromString(stake)
	if err != nil {
		return Entry{}, fmt.Errorf("bad stake %q: %w", stake, err)
	}
	e.PL, err = decimal.NewFromString(pl)
	if err != nil {
		return Entry{}, fmt.Errorf("bad pl %q: %w", pl, err)
	}
	e.Result = Result(result)
	e.DryRun = dryRun != 0
	if settledAt.Valid {
		t := settledAt.Time
		e.SettledAt = &t
	}
	return e, nil
}

func collect(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
