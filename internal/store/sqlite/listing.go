package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jensholdgaard/claim-market/internal/listing"
)

// ListingRepo implements listing.Repository using database/sql.
type ListingRepo struct {
	db *sql.DB
}

// NewListingRepo returns a new ListingRepo.
func NewListingRepo(db *sql.DB) *ListingRepo {
	return &ListingRepo{db: db}
}

func (r *ListingRepo) LoadSales(ctx context.Context) ([]listing.Sale, error) {
	var out []listing.Sale
	err := r.load(ctx, listing.KindSale, func(id string, data []byte) error {
		var s listing.Sale
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding sale %s: %w", id, err)
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func (r *ListingRepo) LoadAuctions(ctx context.Context) ([]listing.Auction, error) {
	var out []listing.Auction
	err := r.load(ctx, listing.KindAuction, func(id string, data []byte) error {
		var a listing.Auction
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("decoding auction %s: %w", id, err)
		}
		out = append(out, a)
		return nil
	})
	return out, err
}

func (r *ListingRepo) SaveSales(ctx context.Context, sales []listing.Sale) error {
	return r.replace(ctx, listing.KindSale, len(sales), func(i int) (listing.Common, any) {
		return sales[i].Common, sales[i]
	})
}

func (r *ListingRepo) SaveAuctions(ctx context.Context, auctions []listing.Auction) error {
	return r.replace(ctx, listing.KindAuction, len(auctions), func(i int) (listing.Common, any) {
		return auctions[i].Common, auctions[i]
	})
}

func (r *ListingRepo) load(ctx context.Context, kind listing.Kind, decode func(id string, data []byte) error) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, data FROM listings WHERE kind = ? ORDER BY created_at ASC, id ASC`, kind.String())
	if err != nil {
		return fmt.Errorf("loading %s listings: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return fmt.Errorf("scanning listing row: %w", err)
		}
		if err := decode(id, []byte(data)); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *ListingRepo) replace(ctx context.Context, kind listing.Kind, n int, item func(int) (listing.Common, any)) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE kind = ?`, kind.String()); err != nil {
		return fmt.Errorf("clearing %s listings: %w", kind, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO listings (id, kind, seller_id, created_at, data) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range n {
		c, v := item(i)
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding listing %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, kind.String(), c.SellerID, formatTime(c.CreatedAt), string(data)); err != nil {
			return fmt.Errorf("inserting listing %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}
