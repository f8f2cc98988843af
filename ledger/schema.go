package ledger

// Monetary columns are stored as canonical decimal strings, not REAL:
// the audit trail must round-trip exactly what risk accounting used.
const schema = `
CREATE TABLE IF NOT EXISTS entries (
	idempotency_key TEXT PRIMARY KEY,
	audit_id        TEXT NOT NULL,
	market_id       TEXT NOT NULL,
	selection       TEXT NOT NULL,
	stake           TEXT NOT NULL,
	odds            REAL NOT NULL,
	probability     REAL NOT NULL,
	edge            REAL NOT NULL,
	result          TEXT NOT NULL,
	reason          TEXT NOT NULL DEFAULT '',
	confirmation_id TEXT NOT NULL DEFAULT '',
	pl              TEXT NOT NULL DEFAULT '0',
	dry_run         INTEGER NOT NULL DEFAULT 0,
	placed_at       DATETIME NOT NULL,
	settled_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_entries_placed ON entries(placed_at);
CREATE INDEX IF NOT EXISTS idx_entries_result ON entries(result);

CREATE TABLE IF NOT EXISTS risk_state (
	id                 INTEGER PRIMARY KEY CHECK (id = 1),
	bankroll           TEXT NOT NULL,
	day_realized       TEXT NOT NULL DEFAULT '0',
	consecutive_losses INTEGER NOT NULL DEFAULT 0,
	open_bets          INTEGER NOT NULL DEFAULT 0,
	peak_bankroll      TEXT NOT NULL,
	circuit_open       INTEGER NOT NULL DEFAULT 0,
	tripped_at         DATETIME,
	trip_reason        TEXT NOT NULL DEFAULT '',
	saved_at           DATETIME NOT NULL
);
`
