package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/claim-market/internal/ledger"
)

// LedgerRepo implements ledger.Repository with sqlx.
type LedgerRepo struct {
	db *sqlx.DB
}

// NewLedgerRepo returns a new LedgerRepo.
func NewLedgerRepo(db *sqlx.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

type transactionRow struct {
	Seq             int64     `db:"seq"`
	ID              string    `db:"id"`
	Type            string    `db:"type"`
	RecordedAt      time.Time `db:"recorded_at"`
	SellerID        string    `db:"seller_id"`
	SellerName      string    `db:"seller_name"`
	BuyerID         string    `db:"buyer_id"`
	BuyerName       string    `db:"buyer_name"`
	Price           int64     `db:"price"`
	WinningBid      int64     `db:"winning_bid"`
	BidCount        int       `db:"bid_count"`
	ClaimArea       int       `db:"claim_area"`
	ClaimDimensions string    `db:"claim_dimensions"`
	ClaimLocation   string    `db:"claim_location"`
	ClaimName       string    `db:"claim_name"`
}

func toRow(r ledger.Record) transactionRow {
	return transactionRow{
		Seq:             r.Seq,
		ID:              r.ID,
		Type:            string(r.Type),
		RecordedAt:      r.Timestamp.UTC(),
		SellerID:        r.Seller.ID,
		SellerName:      r.Seller.Name,
		BuyerID:         r.Buyer.ID,
		BuyerName:       r.Buyer.Name,
		Price:           r.Price,
		WinningBid:      r.WinningBid,
		BidCount:        r.BidCount,
		ClaimArea:       r.ClaimArea,
		ClaimDimensions: r.ClaimDimensions,
		ClaimLocation:   r.ClaimLocation,
		ClaimName:       r.ClaimName,
	}
}

func (t transactionRow) record() ledger.Record {
	return ledger.Record{
		Seq:             t.Seq,
		ID:              t.ID,
		Type:            ledger.Type(t.Type),
		Timestamp:       t.RecordedAt.UTC(),
		Seller:          ledger.Party{ID: t.SellerID, Name: t.SellerName},
		Buyer:           ledger.Party{ID: t.BuyerID, Name: t.BuyerName},
		Price:           t.Price,
		WinningBid:      t.WinningBid,
		BidCount:        t.BidCount,
		ClaimArea:       t.ClaimArea,
		ClaimDimensions: t.ClaimDimensions,
		ClaimLocation:   t.ClaimLocation,
		ClaimName:       t.ClaimName,
	}
}

func (r *LedgerRepo) Load(ctx context.Context) (int64, []ledger.Record, error) {
	var counter int64
	err := r.db.GetContext(ctx, &counter, `SELECT value FROM ledger_counter WHERE id`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("loading ledger counter: %w", err)
	}

	var rows []transactionRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM transactions ORDER BY seq ASC`); err != nil {
		return 0, nil, fmt.Errorf("loading transactions: %w", err)
	}
	records := make([]ledger.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return counter, records, nil
}

// Append inserts rec and moves the counter in one transaction.
func (r *LedgerRepo) Append(ctx context.Context, counter int64, rec ledger.Record) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.NamedExecContext(ctx,
		`INSERT INTO transactions (seq, id, type, recorded_at, seller_id, seller_name, buyer_id, buyer_name,
		     price, winning_bid, bid_count, claim_area, claim_dimensions, claim_location, claim_name)
		 VALUES (:seq, :id, :type, :recorded_at, :seller_id, :seller_name, :buyer_id, :buyer_name,
		     :price, :winning_bid, :bid_count, :claim_area, :claim_dimensions, :claim_location, :claim_name)`,
		toRow(rec))
	if err != nil {
		return fmt.Errorf("inserting transaction %s: %w", rec.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_counter (id, value) VALUES (TRUE, $1)
		 ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value`, counter)
	if err != nil {
		return fmt.Errorf("advancing ledger counter: %w", err)
	}
	return tx.Commit()
}
