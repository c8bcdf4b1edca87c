package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// NameRepo implements naming.Repository using database/sql.
type NameRepo struct {
	db *sql.DB
}

// NewNameRepo returns a new NameRepo.
func NewNameRepo(db *sql.DB) *NameRepo {
	return &NameRepo{db: db}
}

func (r *NameRepo) Name(ctx context.Context, claimID string) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, `SELECT name FROM claim_names WHERE claim_id = ?`, claimID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting claim name: %w", err)
	}
	return name, nil
}

func (r *NameRepo) SetName(ctx context.Context, claimID, name string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO claim_names (claim_id, name) VALUES (?, ?)
		 ON CONFLICT (claim_id) DO UPDATE SET name = excluded.name`, claimID, name)
	if err != nil {
		return fmt.Errorf("setting claim name: %w", err)
	}
	return nil
}

func (r *NameRepo) DeleteName(ctx context.Context, claimID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM claim_names WHERE claim_id = ?`, claimID); err != nil {
		return fmt.Errorf("deleting claim name: %w", err)
	}
	return nil
}
