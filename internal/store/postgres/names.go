package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// NameRepo implements naming.Repository with sqlx.
type NameRepo struct {
	db *sqlx.DB
}

// NewNameRepo returns a new NameRepo.
func NewNameRepo(db *sqlx.DB) *NameRepo {
	return &NameRepo{db: db}
}

func (r *NameRepo) Name(ctx context.Context, claimID string) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name, `SELECT name FROM claim_names WHERE claim_id = $1`, claimID)
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
		`INSERT INTO claim_names (claim_id, name, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (claim_id) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at`,
		claimID, name)
	if err != nil {
		return fmt.Errorf("setting claim name: %w", err)
	}
	return nil
}

func (r *NameRepo) DeleteName(ctx context.Context, claimID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM claim_names WHERE claim_id = $1`, claimID); err != nil {
		return fmt.Errorf("deleting claim name: %w", err)
	}
	return nil
}
