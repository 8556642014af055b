package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ykarpov/ListKeeper/internal/apperr"
	"github.com/ykarpov/ListKeeper/internal/models"
)

// PostgresFileRepository implements file attachment metadata persistence
// against a PostgreSQL database. Raw bytes live in the blob store; only
// the locator is recorded here.
type PostgresFileRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresFileRepository creates a new PostgresFileRepository using
// the provided *sql.DB.
func NewPostgresFileRepository(db *sql.DB) *PostgresFileRepository {
	return &PostgresFileRepository{DB: db}
}

// InsertFile records an attachment under its category or item parent.
// A vanished parent surfaces as apperr.ErrNotFound via the FK check.
func (s *PostgresFileRepository) InsertFile(ctx context.Context, f *models.FileAttachment) error {
	var categoryID, itemID sql.NullString
	switch f.ParentKind {
	case models.ParentCategory:
		categoryID = sql.NullString{String: f.ParentID, Valid: true}
	case models.ParentItem:
		itemID = sql.NullString{String: f.ParentID, Valid: true}
	default:
		return fmt.Errorf("parent kind %q: %w", f.ParentKind, apperr.ErrValidation)
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO files (id, category_id, item_id, name, url) VALUES ($1, $2, $3, $4, $5)
	`, f.ID, categoryID, itemID, f.Name, f.URL)
	if err != nil {
		return fmt.Errorf("InsertFile: %w", pqError(err))
	}
	return nil
}

// GetFile fetches an attachment record by id.
func (s *PostgresFileRepository) GetFile(ctx context.Context, id string) (*models.FileAttachment, error) {
	var (
		f                  models.FileAttachment
		categoryID, itemID sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, category_id, item_id, name, url, created_at FROM files WHERE id = $1
	`, id).Scan(&f.ID, &categoryID, &itemID, &f.Name, &f.URL, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetFile: %w", err)
	}
	if categoryID.Valid {
		f.ParentKind, f.ParentID = models.ParentCategory, categoryID.String
	} else {
		f.ParentKind, f.ParentID = models.ParentItem, itemID.String
	}
	return &f, nil
}

// DeleteFile removes an attachment record.
// Returns apperr.ErrNotFound if no such record exists.
func (s *PostgresFileRepository) DeleteFile(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteFile: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// CountURLRefs reports how many attachment records point at the locator.
// Clones share locators, so a blob is only released at refcount zero.
func (s *PostgresFileRepository) CountURLRefs(ctx context.Context, url string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE url = $1`, url).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountURLRefs: %w", err)
	}
	return n, nil
}

// ChecklistIDForFile resolves the checklist an attachment belongs to,
// through either its category or its item parent.
func (s *PostgresFileRepository) ChecklistIDForFile(ctx context.Context, id string) (string, error) {
	var checklistID string
	err := s.DB.QueryRowContext(ctx, `
		SELECT COALESCE(c.checklist_id, ic.checklist_id)
		  FROM files f
		  LEFT JOIN categories c ON f.category_id = c.id
		  LEFT JOIN items i ON f.item_id = i.id
		  LEFT JOIN categories ic ON i.category_id = ic.id
		 WHERE f.id = $1
	`, id).Scan(&checklistID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("file %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("ChecklistIDForFile: %w", err)
	}
	return checklistID, nil
}
