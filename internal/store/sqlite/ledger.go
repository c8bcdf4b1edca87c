package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jensholdgaard/claim-market/internal/ledger"
)

// LedgerRepo implements ledger.Repository using database/sql.
type LedgerRepo struct {
	db *sql.DB
}

// NewLedgerRepo returns a new LedgerRepo.
func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func (r *LedgerRepo) Load(ctx context.Context) (int64, []ledger.Record, error) {
	var counter int64
	err := r.db.QueryRowContext(ctx, `SELECT value FROM ledger_counter WHERE id = 1`).Scan(&counter)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("loading ledger counter: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, id, type, recorded_at, seller_id, seller_name, buyer_id, buyer_name,
		        price, winning_bid, bid_count, claim_area, claim_dimensions, claim_location, claim_name
		 FROM transactions ORDER BY seq ASC`)
	if err != nil {
		return 0, nil, fmt.Errorf("loading transactions: %w", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var (
			rec        ledger.Record
			typ, stamp string
		)
		if err := rows.Scan(&rec.Seq, &rec.ID, &typ, &stamp,
			&rec.Seller.ID, &rec.Seller.Name, &rec.Buyer.ID, &rec.Buyer.Name,
			&rec.Price, &rec.WinningBid, &rec.BidCount,
			&rec.ClaimArea, &rec.ClaimDimensions, &rec.ClaimLocation, &rec.ClaimName,
		); err != nil {
			return 0, nil, fmt.Errorf("scanning transaction row: %w", err)
		}
		rec.Type = ledger.Type(typ)
		if rec.Timestamp, err = parseTime(stamp); err != nil {
			return 0, nil, fmt.Errorf("transaction %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return counter, records, rows.Err()
}

// Append inserts rec and moves the counter in one transaction.
func (r *LedgerRepo) Append(ctx context.Context, counter int64, rec ledger.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (seq, id, type, recorded_at, seller_id, seller_name, buyer_id, buyer_name,
		     price, winning_bid, bid_count, claim_area, claim_dimensions, claim_location, claim_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Seq, rec.ID, string(rec.Type), formatTime(rec.Timestamp),
		rec.Seller.ID, rec.Seller.Name, rec.Buyer.ID, rec.Buyer.Name,
		rec.Price, rec.WinningBid, rec.BidCount,
		rec.ClaimArea, rec.ClaimDimensions, rec.ClaimLocation, rec.ClaimName,
	)
	if err != nil {
		return fmt.Errorf("inserting transaction %s: %w", rec.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_counter (id, value) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET value = excluded.value`, counter)
	if err != nil {
		return fmt.Errorf("advancing ledger counter: %w", err)
	}
	return tx.Commit()
}
