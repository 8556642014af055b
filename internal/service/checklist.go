package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ykarpov/ListKeeper/internal/apperr"
	"github.com/ykarpov/ListKeeper/internal/blob"
	"github.com/ykarpov/ListKeeper/internal/models"
)

// maxNameLen bounds checklist, category, and item names.
const maxNameLen = 255

// ChecklistRepository defines the persistence operations needed by the
// checklist service.
type ChecklistRepository interface {
	CreateChecklist(ctx context.Context, c *models.Checklist) error
	GetChecklistMeta(ctx context.Context, id string) (*models.Checklist, error)
	GetChecklistTree(ctx context.Context, id string) (*models.Checklist, error)
	ListChecklists(ctx context.Context, ownerID string) ([]models.ChecklistSummary, error)
	// DeleteChecklist removes the checklist and everything under it,
	// returning blob locators left without any referencing metadata row.
	DeleteChecklist(ctx context.Context, id string) ([]string, error)
	// InsertChecklistTree inserts a complete tree atomically.
	InsertChecklistTree(ctx context.Context, c *models.Checklist) error
	CreateCategory(ctx context.Context, cat *models.Category) error
	RenameCategory(ctx context.Context, id, name string) error
	DeleteCategory(ctx context.Context, id string) ([]string, error)
	CreateItem(ctx context.Context, it *models.Item) error
	RenameItem(ctx context.Context, id, name string) error
	ToggleItem(ctx context.Context, id string) (bool, error)
	DeleteItem(ctx context.Context, id string) ([]string, error)
	ChecklistIDForCategory(ctx context.Context, categoryID string) (string, error)
	ChecklistIDForItem(ctx context.Context, itemID string) (string, error)
}

// ChecklistService implements the mutation API over the entity tree.
// Every mutation checks access first, runs under the per-checklist lock,
// and returns the updated tree.
type ChecklistService struct {
	repo   ChecklistRepository
	access *AccessService
	blobs  blob.Store
	locks  *Locks
	log    *zap.Logger
}

// NewChecklistService constructs a ChecklistService.
func NewChecklistService(repo ChecklistRepository, access *AccessService, blobs blob.Store, locks *Locks, log *zap.Logger) *ChecklistService {
	return &ChecklistService{repo: repo, access: access, blobs: blobs, locks: locks, log: log}
}

// List returns summaries of the principal's checklists.
func (s *ChecklistService) List(ctx context.Context, userID string) ([]models.ChecklistSummary, error) {
	return s.repo.ListChecklists(ctx, userID)
}

// Create makes a new empty checklist owned by the principal.
func (s *ChecklistService) Create(ctx context.Context, userID, title, description string) (*models.Checklist, error) {
	if err := validateName(title); err != nil {
		return nil, fmt.Errorf("title: %w", err)
	}
	c := &models.Checklist{
		ID:          uuid.New().String(),
		OwnerID:     userID,
		Title:       title,
		Description: description,
	}
	if err := s.repo.CreateChecklist(ctx, c); err != nil {
		return nil, err
	}
	return s.repo.GetChecklistTree(ctx, c.ID)
}

// Get returns the full tree of an owned checklist.
func (s *ChecklistService) Get(ctx context.Context, userID, checklistID string) (*models.Checklist, error) {
	if err := s.access.RequireOwner(ctx, userID, checklistID); err != nil {
		return nil, err
	}
	return s.repo.GetChecklistTree(ctx, checklistID)
}

// Delete removes an owned checklist and all of its descendants. Blobs
// whose last metadata reference went away are released afterwards.
func (s *ChecklistService) Delete(ctx context.Context, userID, checklistID string) error {
	if err := s.access.RequireOwner(ctx, userID, checklistID); err != nil {
		return err
	}

	s.locks.Lock(checklistID)
	orphans, err := s.repo.DeleteChecklist(ctx, checklistID)
	s.locks.Unlock(checklistID)
	if err != nil {
		return err
	}

	s.releaseBlobs(ctx, orphans)
	return nil
}

// CreateCategory adds a category to an owned checklist and returns the
// updated tree.
func (s *ChecklistService) CreateCategory(ctx context.Context, userID, checklistID, name string) (*models.Checklist, error) {
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("category name: %w", err)
	}
	if err := s.access.RequireOwner(ctx, userID, checklistID); err != nil {
		return nil, err
	}

	s.locks.Lock(checklistID)
	defer s.locks.Unlock(checklistID)

	cat := &models.Category{ID: uuid.New().String(), ChecklistID: checklistID, Name: name}
	if err := s.repo.CreateCategory(ctx, cat); err != nil {
		return nil, err
	}
	return s.repo.GetChecklistTree(ctx, checklistID)
}

// RenameCategory renames a category of an owned checklist and returns the
// updated tree. Empty names are rejected before any write.
func (s *ChecklistService) RenameCategory(ctx context.Context, userID, checklistID, categoryID, name string) (*models.Checklist, error) {
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("category name: %w", err)
	}
	if err := s.requireCategory(ctx, userID, checklistID, categoryID); err != nil {
		return nil, err
	}

	s.locks.Lock(checklistID)
	defer s.locks.Unlock(checklistID)

	if err := s.repo.RenameCategory(ctx, categoryID, name); err != nil {
		return nil, err
	}
	return s.repo.GetChecklistTree(ctx, checklistID)
}

// DeleteCategory removes a category with its items and files and returns
// the updated tree.
func (s *ChecklistService) DeleteCategory(ctx context.Context, userID, checklistID, categoryID string) (*models.Checklist, error) {
	if err := s.requireCategory(ctx, userID, checklistID, categoryID); err != nil {
		return nil, err
	}

	s.locks.Lock(checklistID)
	orphans, err := s.repo.DeleteCategory(ctx, categoryID)
	if err != nil {
		s.locks.Unlock(checklistID)
		return nil, err
	}
	tree, err := s.repo.GetChecklistTree(ctx, checklistID)
	s.locks.Unlock(checklistID)
	if err != nil {
		return nil, err
	}

	s.releaseBlobs(ctx, orphans)
	return tree, nil
}

// CreateItem adds an item to a category of an owned checklist and returns
// the updated tree.
func (s *ChecklistService) CreateItem(ctx context.Context, userID, checklistID, categoryID, name string) (*models.Checklist, error) {
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("item name: %w", err)
	}
	if err := s.requireCategory(ctx, userID, checklistID, categoryID); err != nil {
		return nil, err
	}

	s.locks.Lock(checklistID)
	defer s.locks.Unlock(checklistID)

	it := &models.Item{ID: uuid.New().String(), CategoryID: categoryID, Name: name}
	if err := s.repo.CreateItem(ctx, it); err != nil {
		return nil, err
	}
	return s.repo.GetChecklistTree(ctx, checklistID)
}

// RenameItem renames an item and returns the updated tree.
func (s *ChecklistService) RenameItem(ctx context.Context, userID, checklistID, itemID, name string) (*models.Checklist, error) {
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("item name: %w", err)
	}
	if err := s.requireItem(ctx, userID, checklistID, itemID); err != nil {
		return nil, err
	}

	s.locks.Lock(checklistID)
	defer s.locks.Unlock(checklistID)

	if err := s.repo.RenameItem(ctx, itemID, name); err != nil {
		return nil, err
	}
	return s.repo.GetChecklistTree(ctx, checklistID)
}

// ToggleItem flips an item's completion flag and returns the updated tree.
func (s *ChecklistService) ToggleItem(ctx context.Context, userID, checklistID, itemID string) (*models.Checklist, error) {
	if err := s.requireItem(ctx, userID, checklistID, itemID); err != nil {
		return nil, err
	}

	s.locks.Lock(checklistID)
	defer s.locks.Unlock(checklistID)

	if _, err := s.repo.ToggleItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.GetChecklistTree(ctx, checklistID)
}

// DeleteItem removes an item with its files and returns the updated tree.
func (s *ChecklistService) DeleteItem(ctx context.Context, userID, checklistID, itemID string) (*models.Checklist, error) {
	if err := s.requireItem(ctx, userID, checklistID, itemID); err != nil {
		return nil, err
	}

	s.locks.Lock(checklistID)
	orphans, err := s.repo.DeleteItem(ctx, itemID)
	if err != nil {
		s.locks.Unlock(checklistID)
		return nil, err
	}
	tree, err := s.repo.GetChecklistTree(ctx, checklistID)
	s.locks.Unlock(checklistID)
	if err != nil {
		return nil, err
	}

	s.releaseBlobs(ctx, orphans)
	return tree, nil
}

// requireCategory checks ownership and that the category actually lives
// under the addressed checklist. A category reached through a different
// checklist id is NotFound, not Forbidden, so ids cannot be probed.
func (s *ChecklistService) requireCategory(ctx context.Context, userID, checklistID, categoryID string) error {
	if err := s.access.RequireOwner(ctx, userID, checklistID); err != nil {
		return err
	}
	owner, err := s.repo.ChecklistIDForCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if owner != checklistID {
		return fmt.Errorf("category %s: %w", categoryID, apperr.ErrNotFound)
	}
	return nil
}

func (s *ChecklistService) requireItem(ctx context.Context, userID, checklistID, itemID string) error {
	if err := s.access.RequireOwner(ctx, userID, checklistID); err != nil {
		return err
	}
	owner, err := s.repo.ChecklistIDForItem(ctx, itemID)
	if err != nil {
		return err
	}
	if owner != checklistID {
		return fmt.Errorf("item %s: %w", itemID, apperr.ErrNotFound)
	}
	return nil
}

// releaseBlobs deletes blobs whose last metadata reference is gone. The
// metadata transaction has already committed, so failures here only leak
// storage; they are logged, not surfaced.
func (s *ChecklistService) releaseBlobs(ctx context.Context, locators []string) {
	for _, locator := range locators {
		if err := s.blobs.Delete(ctx, locator); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			s.log.Warn("failed to release blob", zap.String("locator", locator), zap.Error(err))
		}
	}
}

// validateName rejects empty and oversized names.
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty name: %w", apperr.ErrValidation)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("name longer than %d bytes: %w", maxNameLen, apperr.ErrValidation)
	}
	return nil
}
