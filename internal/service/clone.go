package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ykarpov/ListKeeper/internal/models"
)

// Clone deep-copies a checklist into a new tree owned by the requester.
// Cloning is owner-restricted; share-token bearers cannot clone. The
// source is only read, the copy is inserted in one transaction so a
// failure partway leaves nothing behind, and the clone starts with no
// share link. File attachments are copied by reference: the new metadata
// rows point at the same blob locators.
func (s *ChecklistService) Clone(ctx context.Context, userID, checklistID string) (*models.Checklist, error) {
	if err := s.access.RequireOwner(ctx, userID, checklistID); err != nil {
		return nil, err
	}

	// Snapshot under the source lock so a concurrent mutation cannot be
	// half-copied.
	s.locks.Lock(checklistID)
	src, err := s.repo.GetChecklistTree(ctx, checklistID)
	s.locks.Unlock(checklistID)
	if err != nil {
		return nil, err
	}

	clone := copyTree(src, userID)
	if err := s.repo.InsertChecklistTree(ctx, clone); err != nil {
		return nil, err
	}
	return s.repo.GetChecklistTree(ctx, clone.ID)
}

// copyTree rebuilds the tree with fresh ids for every node, the given
// owner at the root, and attachment rows pointing at the source blobs.
func copyTree(src *models.Checklist, owner string) *models.Checklist {
	clone := &models.Checklist{
		ID:          uuid.New().String(),
		OwnerID:     owner,
		Title:       src.Title,
		Description: src.Description,
	}
	for _, cat := range src.Categories {
		newCat := models.Category{
			ID:          uuid.New().String(),
			ChecklistID: clone.ID,
			Name:        cat.Name,
		}
		for _, f := range cat.Files {
			newCat.Files = append(newCat.Files, models.FileAttachment{
				ID:         uuid.New().String(),
				ParentKind: models.ParentCategory,
				ParentID:   newCat.ID,
				Name:       f.Name,
				URL:        f.URL,
			})
		}
		for _, it := range cat.Items {
			newItem := models.Item{
				ID:          uuid.New().String(),
				CategoryID:  newCat.ID,
				Name:        it.Name,
				IsCompleted: it.IsCompleted,
			}
			for _, f := range it.Files {
				newItem.Files = append(newItem.Files, models.FileAttachment{
					ID:         uuid.New().String(),
					ParentKind: models.ParentItem,
					ParentID:   newItem.ID,
					Name:       f.Name,
					URL:        f.URL,
				})
			}
			newCat.Items = append(newCat.Items, newItem)
		}
		clone.Categories = append(clone.Categories, newCat)
	}
	return clone
}
