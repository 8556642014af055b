package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ykarpov/ListKeeper/internal/apperr"
	"github.com/ykarpov/ListKeeper/internal/models"
)

func setupChecklistMock(t *testing.T) (*PostgresChecklistRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresChecklistRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

func TestCreateChecklist_Success(t *testing.T) {
	repo, mock, cleanup := setupChecklistMock(t)
	defer cleanup()

	c := &models.Checklist{ID: "cl-1", OwnerID: "alice", Title: "Groceries", Description: "weekly"}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO checklists (id, owner_id, title, description) VALUES ($1, $2, $3, $4)`)).
		WithArgs(c.ID, c.OwnerID, c.Title, c.Description).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.CreateChecklist(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetChecklistMeta_NotFound(t *testing.T) {
	repo, mock, cleanup := setupChecklistMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, owner_id, title, description, created_at FROM checklists WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "title", "description", "created_at"}))

	_, err := repo.GetChecklistMeta(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRenameCategory_NotFound(t *testing.T) {
	repo, mock, cleanup := setupChecklistMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE categories SET name = $2 WHERE id = $1`)).
		WithArgs("missing", "Produce").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RenameCategory(context.Background(), "missing", "Produce")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestToggleItem_Success(t *testing.T) {
	repo, mock, cleanup := setupChecklistMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE items SET is_completed = NOT is_completed WHERE id = $1 RETURNING is_completed`)).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"is_completed"}).AddRow(true))

	completed, err := repo.ToggleItem(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Errorf("expected item to be completed after toggle")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDeleteCategory_CascadeReturnsOrphans(t *testing.T) {
	repo, mock, cleanup := setupChecklistMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT f.url`)).
		WithArgs("cat-1").
		WillReturnRows(sqlmock.NewRows([]string{"url"}).AddRow("/media/a.jpg").AddRow("/media/b.jpg"))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM files WHERE item_id IN (SELECT id FROM items WHERE category_id = $1)`)).
		WithArgs("cat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM files WHERE category_id = $1`)).
		WithArgs("cat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM items WHERE category_id = $1`)).
		WithArgs("cat-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM categories WHERE id = $1`)).
		WithArgs("cat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// a.jpg is still referenced elsewhere (a by-reference clone), b.jpg is not.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM files WHERE url = $1)`)).
		WithArgs("/media/a.jpg").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM files WHERE url = $1)`)).
		WithArgs("/media/b.jpg").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectCommit()

	orphans, err := repo.DeleteCategory(context.Background(), "cat-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orphans) != 1 || orphans[0] != "/media/b.jpg" {
		t.Errorf("expected orphans [/media/b.jpg], got %v", orphans)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDeleteChecklist_NotFound(t *testing.T) {
	repo, mock, cleanup := setupChecklistMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT f.url`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"url"}))
	for i := 0; i < 5; i++ {
		mock.ExpectExec(`DELETE FROM`).
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM checklists WHERE id = $1`)).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.DeleteChecklist(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestInsertChecklistTree_Success(t *testing.T) {
	repo, mock, cleanup := setupChecklistMock(t)
	defer cleanup()

	c := &models.Checklist{
		ID: "cl-2", OwnerID: "alice", Title: "Camping", Description: "",
		Categories: []models.Category{{
			ID: "cat-2", Name: "Gear",
			Items: []models.Item{{
				ID: "item-2", Name: "Tent", IsCompleted: true,
				Files: []models.FileAttachment{{ID: "f-2", Name: "manual.pdf", URL: "/media/manual.pdf"}},
			}},
		}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO checklists`)).
		WithArgs("cl-2", "alice", "Camping", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO categories`)).
		WithArgs("cat-2", "cl-2", "Gear").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO items`)).
		WithArgs("item-2", "cat-2", "Tent", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO files (id, item_id, name, url)`)).
		WithArgs("f-2", "item-2", "manual.pdf", "/media/manual.pdf").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.InsertChecklistTree(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestChecklistIDForItem_Success(t *testing.T) {
	repo, mock, cleanup := setupChecklistMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT c.checklist_id FROM items i JOIN categories c ON i.category_id = c.id WHERE i.id = $1`)).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"checklist_id"}).AddRow("cl-1"))

	got, err := repo.ChecklistIDForItem(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "cl-1" {
		t.Errorf("expected cl-1, got %s", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
