// Package sqlite provides a store.Driver backed by an embedded SQLite file,
// accessed through database/sql with OTEL instrumentation via otelsql.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/jensholdgaard/claim-market/internal/clock"
	"github.com/jensholdgaard/claim-market/internal/config"
	"github.com/jensholdgaard/claim-market/internal/store"
)

// timeLayout is how timestamps are stored in TEXT columns.
const timeLayout = time.RFC3339Nano

func init() {
	store.Register("sqlite", openSQLite)
}

// openSQLite is the store.Driver for the "sqlite" backend.
func openSQLite(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	db, err := Open(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	return &store.Repositories{
		Listings: NewListingRepo(db),
		Ledger:   NewLedgerRepo(db),
		Events:   NewEventStore(db, clk),
		Names:    NewNameRepo(db),
		Closer:   db,
		Ping:     db.PingContext,
	}, nil
}

// Open opens (creating if needed) the database at path and applies the
// schema. SQLite allows one writer, so the pool holds a single connection.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := otelsql.Open("sqlite", path,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range append(pragmas, schema...) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialising sqlite database: %w", err)
		}
	}
	return db, nil
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=FULL;",
	"PRAGMA busy_timeout=5000;",
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL CHECK (kind IN ('sale', 'auction')),
		seller_id  TEXT NOT NULL,
		created_at TEXT NOT NULL,
		data       TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_listings_kind ON listings (kind, created_at, id);`,
	`CREATE TABLE IF NOT EXISTS ledger_counter (
		id    INTEGER PRIMARY KEY CHECK (id = 1),
		value INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS transactions (
		seq              INTEGER PRIMARY KEY,
		id               TEXT NOT NULL UNIQUE,
		type             TEXT NOT NULL,
		recorded_at      TEXT NOT NULL,
		seller_id        TEXT NOT NULL,
		seller_name      TEXT NOT NULL,
		buyer_id         TEXT NOT NULL,
		buyer_name       TEXT NOT NULL,
		price            INTEGER NOT NULL,
		winning_bid      INTEGER NOT NULL DEFAULT 0,
		bid_count        INTEGER NOT NULL DEFAULT 0,
		claim_area       INTEGER NOT NULL,
		claim_dimensions TEXT NOT NULL,
		claim_location   TEXT NOT NULL,
		claim_name       TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS events (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		aggregate_id TEXT NOT NULL,
		type         TEXT NOT NULL,
		data         TEXT NOT NULL,
		created_at   TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_events_aggregate ON events (aggregate_id, id);`,
	`CREATE INDEX IF NOT EXISTS idx_events_type ON events (type, id);`,
	`CREATE TABLE IF NOT EXISTS claim_names (
		claim_id TEXT PRIMARY KEY,
		name     TEXT NOT NULL
	);`,
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
