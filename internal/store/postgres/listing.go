package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/claim-market/internal/listing"
)

// ListingRepo implements listing.Repository with sqlx. Each listing is one
// row holding its full JSON document, bids included.
type ListingRepo struct {
	db *sqlx.DB
}

// NewListingRepo returns a new ListingRepo.
func NewListingRepo(db *sqlx.DB) *ListingRepo {
	return &ListingRepo{db: db}
}

type listingRow struct {
	ID        string    `db:"id"`
	Kind      string    `db:"kind"`
	SellerID  string    `db:"seller_id"`
	CreatedAt time.Time `db:"created_at"`
	Data      []byte    `db:"data"`
}

func (r *ListingRepo) LoadSales(ctx context.Context) ([]listing.Sale, error) {
	rows, err := r.load(ctx, listing.KindSale)
	if err != nil {
		return nil, err
	}
	out := make([]listing.Sale, 0, len(rows))
	for _, row := range rows {
		var s listing.Sale
		if err := json.Unmarshal(row.Data, &s); err != nil {
			return nil, fmt.Errorf("decoding sale %s: %w", row.ID, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *ListingRepo) LoadAuctions(ctx context.Context) ([]listing.Auction, error) {
	rows, err := r.load(ctx, listing.KindAuction)
	if err != nil {
		return nil, err
	}
	out := make([]listing.Auction, 0, len(rows))
	for _, row := range rows {
		var a listing.Auction
		if err := json.Unmarshal(row.Data, &a); err != nil {
			return nil, fmt.Errorf("decoding auction %s: %w", row.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *ListingRepo) SaveSales(ctx context.Context, sales []listing.Sale) error {
	rows := make([]listingRow, 0, len(sales))
	for _, s := range sales {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encoding sale %s: %w", s.ID, err)
		}
		rows = append(rows, listingRow{ID: s.ID, SellerID: s.SellerID, CreatedAt: s.CreatedAt, Data: data})
	}
	return r.replace(ctx, listing.KindSale, rows)
}

func (r *ListingRepo) SaveAuctions(ctx context.Context, auctions []listing.Auction) error {
	rows := make([]listingRow, 0, len(auctions))
	for _, a := range auctions {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encoding auction %s: %w", a.ID, err)
		}
		rows = append(rows, listingRow{ID: a.ID, SellerID: a.SellerID, CreatedAt: a.CreatedAt, Data: data})
	}
	return r.replace(ctx, listing.KindAuction, rows)
}

func (r *ListingRepo) load(ctx context.Context, kind listing.Kind) ([]listingRow, error) {
	var rows []listingRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, kind, seller_id, created_at, data
		 FROM listings WHERE kind = $1 ORDER BY created_at ASC, id ASC`, kind.String())
	if err != nil {
		return nil, fmt.Errorf("loading %s listings: %w", kind, err)
	}
	return rows, nil
}

// replace swaps the full snapshot of one kind in a single transaction.
func (r *ListingRepo) replace(ctx context.Context, kind listing.Kind, rows []listingRow) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE kind = $1`, kind.String()); err != nil {
		return fmt.Errorf("clearing %s listings: %w", kind, err)
	}

	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO listings (id, kind, seller_id, created_at, data) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.ID, kind.String(), row.SellerID, row.CreatedAt, row.Data); err != nil {
			return fmt.Errorf("inserting listing %s: %w", row.ID, err)
		}
	}
	return tx.Commit()
}
