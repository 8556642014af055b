package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ykarpov/ListKeeper/internal/apperr"
	"github.com/ykarpov/ListKeeper/internal/models"
)

// PostgresShareRepository implements share link persistence against a
// PostgreSQL database.
type PostgresShareRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresShareRepository creates a new PostgresShareRepository using
// the provided *sql.DB.
func NewPostgresShareRepository(db *sql.DB) *PostgresShareRepository {
	return &PostgresShareRepository{DB: db}
}

// CreateShareLink revokes any active link for the checklist and inserts
// the new one in a single transaction, so exactly one token resolves for
// a checklist at any time.
func (s *PostgresShareRepository) CreateShareLink(ctx context.Context, link *models.ShareLink) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE share_links SET revoked = true, revoked_at = now()
		 WHERE checklist_id = $1 AND revoked = false
	`, link.ChecklistID); err != nil {
		return fmt.Errorf("revoke previous link: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO share_links (token, checklist_id, created_by) VALUES ($1, $2, $3)
	`, link.Token, link.ChecklistID, link.CreatedBy); err != nil {
		return fmt.Errorf("insert link: %w", pqError(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ResolveShareLink looks up an active link by token. Unknown, malformed,
// and revoked tokens are all reported as the same apperr.ErrNotFound.
func (s *PostgresShareRepository) ResolveShareLink(ctx context.Context, token string) (*models.ShareLink, error) {
	var link models.ShareLink
	err := s.DB.QueryRowContext(ctx, `
		SELECT token, checklist_id, created_by, revoked, created_at
		  FROM share_links
		 WHERE token = $1 AND revoked = false
	`, token).Scan(&link.Token, &link.ChecklistID, &link.CreatedBy, &link.Revoked, &link.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("share link: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ResolveShareLink: %w", err)
	}
	return &link, nil
}
