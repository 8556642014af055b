// Package repository provides persistence implementations for the
// checklist tree, share links, and file attachment metadata using a
// PostgreSQL database.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ykarpov/ListKeeper/internal/apperr"
	"github.com/ykarpov/ListKeeper/internal/models"
)

// PostgresChecklistRepository implements checklist tree operations against
// a PostgreSQL database. Every cascading delete is an explicit tree walk
// inside one transaction, so no operation can leave an orphaned category,
// item, or file row behind.
type PostgresChecklistRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresChecklistRepository creates a new PostgresChecklistRepository
// using the provided *sql.DB. db must be a valid connection to a
// PostgreSQL instance.
func NewPostgresChecklistRepository(db *sql.DB) *PostgresChecklistRepository {
	return &PostgresChecklistRepository{DB: db}
}

// CreateChecklist inserts a new checklist row.
func (s *PostgresChecklistRepository) CreateChecklist(ctx context.Context, c *models.Checklist) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO checklists (id, owner_id, title, description) VALUES ($1, $2, $3, $4)
	`, c.ID, c.OwnerID, c.Title, c.Description)
	if err != nil {
		return fmt.Errorf("CreateChecklist: %w", pqError(err))
	}
	return nil
}

// GetChecklistMeta fetches a checklist header (no tree) by id.
// Returns apperr.ErrNotFound if no such checklist exists.
func (s *PostgresChecklistRepository) GetChecklistMeta(ctx context.Context, id string) (*models.Checklist, error) {
	var c models.Checklist
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, owner_id, title, description, created_at FROM checklists WHERE id = $1
	`, id).Scan(&c.ID, &c.OwnerID, &c.Title, &c.Description, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("checklist %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetChecklistMeta: %w", err)
	}
	return &c, nil
}

// GetChecklistTree fetches a checklist with all of its categories, items,
// and file attachments. Children are ordered by creation time.
func (s *PostgresChecklistRepository) GetChecklistTree(ctx context.Context, id string) (*models.Checklist, error) {
	c, err := s.GetChecklistMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Categories = make([]models.Category, 0)

	catIdx := make(map[string]int)
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, checklist_id, name FROM categories WHERE checklist_id = $1 ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("GetChecklistTree categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat models.Category
		if err := rows.Scan(&cat.ID, &cat.ChecklistID, &cat.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cat.Items = make([]models.Item, 0)
		cat.Files = make([]models.FileAttachment, 0)
		catIdx[cat.ID] = len(c.Categories)
		c.Categories = append(c.Categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetChecklistTree categories: %w", err)
	}

	itemIdx := make(map[string][2]int) // item id -> (category index, item index)
	itemRows, err := s.DB.QueryContext(ctx, `
		SELECT i.id, i.category_id, i.name, i.is_completed
		  FROM items i
		  JOIN categories c ON i.category_id = c.id
		 WHERE c.checklist_id = $1
		 ORDER BY i.created_at, i.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("GetChecklistTree items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var it models.Item
		if err := itemRows.Scan(&it.ID, &it.CategoryID, &it.Name, &it.IsCompleted); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Files = make([]models.FileAttachment, 0)
		ci, ok := catIdx[it.CategoryID]
		if !ok {
			continue
		}
		itemIdx[it.ID] = [2]int{ci, len(c.Categories[ci].Items)}
		c.Categories[ci].Items = append(c.Categories[ci].Items, it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("GetChecklistTree items: %w", err)
	}

	fileRows, err := s.DB.QueryContext(ctx, `
		SELECT f.id, f.category_id, f.item_id, f.name, f.url, f.created_at
		  FROM files f
		  LEFT JOIN categories c ON f.category_id = c.id
		  LEFT JOIN items i ON f.item_id = i.id
		  LEFT JOIN categories ic ON i.category_id = ic.id
		 WHERE c.checklist_id = $1 OR ic.checklist_id = $1
		 ORDER BY f.created_at, f.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("GetChecklistTree files: %w", err)
	}
	defer fileRows.Close()
	for fileRows.Next() {
		var (
			f                  models.FileAttachment
			categoryID, itemID sql.NullString
		)
		if err := fileRows.Scan(&f.ID, &categoryID, &itemID, &f.Name, &f.URL, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		switch {
		case categoryID.Valid:
			f.ParentKind, f.ParentID = models.ParentCategory, categoryID.String
			if ci, ok := catIdx[f.ParentID]; ok {
				c.Categories[ci].Files = append(c.Categories[ci].Files, f)
			}
		case itemID.Valid:
			f.ParentKind, f.ParentID = models.ParentItem, itemID.String
			if pos, ok := itemIdx[f.ParentID]; ok {
				it := &c.Categories[pos[0]].Items[pos[1]]
				it.Files = append(it.Files, f)
			}
		}
	}
	if err := fileRows.Err(); err != nil {
		return nil, fmt.Errorf("GetChecklistTree files: %w", err)
	}

	return c, nil
}

// ListChecklists returns summaries of all checklists owned by ownerID.
func (s *PostgresChecklistRepository) ListChecklists(ctx context.Context, ownerID string) ([]models.ChecklistSummary, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT cl.id, cl.title, cl.description,
		       COUNT(DISTINCT c.id), COUNT(DISTINCT i.id)
		  FROM checklists cl
		  LEFT JOIN categories c ON c.checklist_id = cl.id
		  LEFT JOIN items i ON i.category_id = c.id
		 WHERE cl.owner_id = $1
		 GROUP BY cl.id, cl.title, cl.description, cl.created_at
		 ORDER BY cl.created_at, cl.id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ListChecklists: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.ChecklistSummary, 0)
	for rows.Next() {
		var sum models.ChecklistSummary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Description, &sum.CategoryCount, &sum.ItemCount); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// DeleteChecklist removes a checklist and everything reachable from it
// (categories, items, files, share links) in one transaction. It returns
// the blob locators that no longer have any metadata row referencing them
// so the caller can release the blobs.
func (s *PostgresChecklistRepository) DeleteChecklist(ctx context.Context, id string) ([]string, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	urls, err := collectURLs(ctx, tx, `
		SELECT DISTINCT f.url
		  FROM files f
		  LEFT JOIN categories c ON f.category_id = c.id
		  LEFT JOIN items i ON f.item_id = i.id
		  LEFT JOIN categories ic ON i.category_id = ic.id
		 WHERE c.checklist_id = $1 OR ic.checklist_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("DeleteChecklist files: %w", err)
	}

	steps := []string{
		`DELETE FROM files WHERE category_id IN (SELECT id FROM categories WHERE checklist_id = $1)`,
		`DELETE FROM files WHERE item_id IN (
		     SELECT i.id FROM items i JOIN categories c ON i.category_id = c.id WHERE c.checklist_id = $1)`,
		`DELETE FROM items WHERE category_id IN (SELECT id FROM categories WHERE checklist_id = $1)`,
		`DELETE FROM categories WHERE checklist_id = $1`,
		`DELETE FROM share_links WHERE checklist_id = $1`,
	}
	for _, q := range steps {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return nil, fmt.Errorf("DeleteChecklist cascade: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM checklists WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("DeleteChecklist: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, fmt.Errorf("checklist %s: %w", id, apperr.ErrNotFound)
	}

	orphans, err := orphanedURLs(ctx, tx, urls)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return orphans, nil
}

// InsertChecklistTree inserts a complete checklist tree in one
// transaction. Used by the clone engine; a failure partway leaves no
// partial clone behind.
func (s *PostgresChecklistRepository) InsertChecklistTree(ctx context.Context, c *models.Checklist) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO checklists (id, owner_id, title, description) VALUES ($1, $2, $3, $4)
	`, c.ID, c.OwnerID, c.Title, c.Description); err != nil {
		return fmt.Errorf("insert checklist: %w", pqError(err))
	}

	for _, cat := range c.Categories {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, checklist_id, name) VALUES ($1, $2, $3)
		`, cat.ID, c.ID, cat.Name); err != nil {
			return fmt.Errorf("insert category: %w", pqError(err))
		}
		for _, f := range cat.Files {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO files (id, category_id, name, url) VALUES ($1, $2, $3, $4)
			`, f.ID, cat.ID, f.Name, f.URL); err != nil {
				return fmt.Errorf("insert category file: %w", pqError(err))
			}
		}
		for _, it := range cat.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO items (id, category_id, name, is_completed) VALUES ($1, $2, $3, $4)
			`, it.ID, cat.ID, it.Name, it.IsCompleted); err != nil {
				return fmt.Errorf("insert item: %w", pqError(err))
			}
			for _, f := range it.Files {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO files (id, item_id, name, url) VALUES ($1, $2, $3, $4)
				`, f.ID, it.ID, f.Name, f.URL); err != nil {
					return fmt.Errorf("insert item file: %w", pqError(err))
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CreateCategory inserts a category under its checklist.
func (s *PostgresChecklistRepository) CreateCategory(ctx context.Context, cat *models.Category) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO categories (id, checklist_id, name) VALUES ($1, $2, $3)
	`, cat.ID, cat.ChecklistID, cat.Name)
	if err != nil {
		return fmt.Errorf("CreateCategory: %w", pqError(err))
	}
	return nil
}

// RenameCategory updates a category name.
// Returns apperr.ErrNotFound if the category does not exist.
func (s *PostgresChecklistRepository) RenameCategory(ctx context.Context, id, name string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE categories SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("RenameCategory: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("category %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// DeleteCategory removes a category, its items, and all their files in
// one transaction, returning the now-unreferenced blob locators.
func (s *PostgresChecklistRepository) DeleteCategory(ctx context.Context, id string) ([]string, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	urls, err := collectURLs(ctx, tx, `
		SELECT DISTINCT f.url
		  FROM files f
		  LEFT JOIN items i ON f.item_id = i.id
		 WHERE f.category_id = $1 OR i.category_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("DeleteCategory files: %w", err)
	}

	steps := []string{
		`DELETE FROM files WHERE item_id IN (SELECT id FROM items WHERE category_id = $1)`,
		`DELETE FROM files WHERE category_id = $1`,
		`DELETE FROM items WHERE category_id = $1`,
	}
	for _, q := range steps {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return nil, fmt.Errorf("DeleteCategory cascade: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("DeleteCategory: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, fmt.Errorf("category %s: %w", id, apperr.ErrNotFound)
	}

	orphans, err := orphanedURLs(ctx, tx, urls)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return orphans, nil
}

// CreateItem inserts an item under its category.
func (s *PostgresChecklistRepository) CreateItem(ctx context.Context, it *models.Item) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO items (id, category_id, name) VALUES ($1, $2, $3)
	`, it.ID, it.CategoryID, it.Name)
	if err != nil {
		return fmt.Errorf("CreateItem: %w", pqError(err))
	}
	return nil
}

// RenameItem updates an item name.
// Returns apperr.ErrNotFound if the item does not exist.
func (s *PostgresChecklistRepository) RenameItem(ctx context.Context, id, name string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE items SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("RenameItem: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("item %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// ToggleItem flips an item's completion flag and returns the new value.
func (s *PostgresChecklistRepository) ToggleItem(ctx context.Context, id string) (bool, error) {
	var completed bool
	err := s.DB.QueryRowContext(ctx, `
		UPDATE items SET is_completed = NOT is_completed WHERE id = $1 RETURNING is_completed
	`, id).Scan(&completed)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("item %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("ToggleItem: %w", err)
	}
	return completed, nil
}

// DeleteItem removes an item and its files in one transaction, returning
// the now-unreferenced blob locators.
func (s *PostgresChecklistRepository) DeleteItem(ctx context.Context, id string) ([]string, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	urls, err := collectURLs(ctx, tx, `SELECT DISTINCT url FROM files WHERE item_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("DeleteItem files: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE item_id = $1`, id); err != nil {
		return nil, fmt.Errorf("DeleteItem cascade: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("DeleteItem: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, fmt.Errorf("item %s: %w", id, apperr.ErrNotFound)
	}

	orphans, err := orphanedURLs(ctx, tx, urls)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return orphans, nil
}

// ChecklistIDForCategory resolves the checklist a category belongs to.
func (s *PostgresChecklistRepository) ChecklistIDForCategory(ctx context.Context, categoryID string) (string, error) {
	var checklistID string
	err := s.DB.QueryRowContext(ctx, `
		SELECT checklist_id FROM categories WHERE id = $1
	`, categoryID).Scan(&checklistID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("category %s: %w", categoryID, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("ChecklistIDForCategory: %w", err)
	}
	return checklistID, nil
}

// ChecklistIDForItem resolves the checklist an item belongs to.
func (s *PostgresChecklistRepository) ChecklistIDForItem(ctx context.Context, itemID string) (string, error) {
	var checklistID string
	err := s.DB.QueryRowContext(ctx, `
		SELECT c.checklist_id FROM items i JOIN categories c ON i.category_id = c.id WHERE i.id = $1
	`, itemID).Scan(&checklistID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("item %s: %w", itemID, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("ChecklistIDForItem: %w", err)
	}
	return checklistID, nil
}

// collectURLs runs a single-column url query inside the transaction.
func collectURLs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// orphanedURLs filters urls down to those that, after the deletes already
// executed in the transaction, have no files row referencing them.
// Attachments cloned by reference share a url, so a blob is only released
// when its last reference is gone.
func orphanedURLs(ctx context.Context, tx *sql.Tx, urls []string) ([]string, error) {
	var orphans []string
	for _, u := range urls {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM files WHERE url = $1)
		`, u).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check url refs: %w", err)
		}
		if !exists {
			orphans = append(orphans, u)
		}
	}
	return orphans, nil
}
