package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ykarpov/ListKeeper/internal/apperr"
	"github.com/ykarpov/ListKeeper/internal/blob"
	"github.com/ykarpov/ListKeeper/internal/models"
)

// FileRepository defines the persistence operations needed by the file
// service.
type FileRepository interface {
	InsertFile(ctx context.Context, f *models.FileAttachment) error
	GetFile(ctx context.Context, id string) (*models.FileAttachment, error)
	DeleteFile(ctx context.Context, id string) error
	CountURLRefs(ctx context.Context, url string) (int, error)
	ChecklistIDForFile(ctx context.Context, id string) (string, error)
}

// FileParent addresses the tree node an upload attaches to.
type FileParent struct {
	Kind models.ParentKind
	ID   string
}

// FileService attaches and detaches files on tree nodes for both owner
// and share-token principals. The blob store is called before the
// per-checklist lock is taken; the metadata row is written only after the
// blob store confirms storage, so an aborted upload leaves no record.
type FileService struct {
	files  FileRepository
	tree   ChecklistRepository
	access *AccessService
	blobs  blob.Store
	locks  *Locks
	log    *zap.Logger
}

// NewFileService constructs a FileService.
func NewFileService(files FileRepository, tree ChecklistRepository, access *AccessService, blobs blob.Store, locks *Locks, log *zap.Logger) *FileService {
	return &FileService{files: files, tree: tree, access: access, blobs: blobs, locks: locks, log: log}
}

// UploadForOwner stores a file under a node of an owned checklist.
func (s *FileService) UploadForOwner(ctx context.Context, userID, checklistID string, parent FileParent, name string, r io.Reader) (*models.FileAttachment, error) {
	if err := s.access.RequireOwner(ctx, userID, checklistID); err != nil {
		return nil, err
	}
	return s.upload(ctx, checklistID, parent, name, r)
}

// UploadWithToken stores a file under a node of the checklist the share
// token resolves to. The token can never reach a different checklist.
func (s *FileService) UploadWithToken(ctx context.Context, token string, parent FileParent, name string, r io.Reader) (*models.FileAttachment, error) {
	link, err := s.access.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.upload(ctx, link.ChecklistID, parent, name, r)
}

// DeleteForOwner removes an attachment from an owned checklist.
func (s *FileService) DeleteForOwner(ctx context.Context, userID, fileID string) error {
	checklistID, err := s.files.ChecklistIDForFile(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.access.RequireOwner(ctx, userID, checklistID); err != nil {
		return err
	}
	return s.delete(ctx, checklistID, fileID)
}

// DeleteWithToken removes an attachment from the checklist the token
// resolves to. Files on any other checklist are NotFound for the bearer.
func (s *FileService) DeleteWithToken(ctx context.Context, token, fileID string) error {
	link, err := s.access.ResolveToken(ctx, token)
	if err != nil {
		return err
	}
	checklistID, err := s.files.ChecklistIDForFile(ctx, fileID)
	if err != nil {
		return err
	}
	if checklistID != link.ChecklistID {
		return fmt.Errorf("file %s: %w", fileID, apperr.ErrNotFound)
	}
	return s.delete(ctx, link.ChecklistID, fileID)
}

func (s *FileService) upload(ctx context.Context, checklistID string, parent FileParent, name string, r io.Reader) (*models.FileAttachment, error) {
	if name == "" || r == nil {
		return nil, fmt.Errorf("missing file payload: %w", apperr.ErrValidation)
	}

	parentChecklist, err := s.parentChecklist(ctx, parent)
	if err != nil {
		return nil, err
	}
	if parentChecklist != checklistID {
		return nil, fmt.Errorf("%s %s: %w", parent.Kind, parent.ID, apperr.ErrNotFound)
	}

	// The blob store call happens outside the checklist lock; only the
	// metadata write below is serialized.
	locator, err := s.blobs.Save(ctx, name, r)
	if err != nil {
		return nil, fmt.Errorf("store blob: %v: %w", err, apperr.ErrUpstream)
	}

	f := &models.FileAttachment{
		ID:         uuid.New().String(),
		ParentKind: parent.Kind,
		ParentID:   parent.ID,
		Name:       name,
		URL:        locator,
	}

	s.locks.Lock(checklistID)
	defer s.locks.Unlock(checklistID)

	if err := s.files.InsertFile(ctx, f); err != nil {
		// The parent may have been deleted while the bytes were being
		// stored; take the blob back out so nothing is orphaned.
		if derr := s.blobs.Delete(ctx, locator); derr != nil && !errors.Is(derr, apperr.ErrNotFound) {
			s.log.Warn("failed to release blob after metadata failure",
				zap.String("locator", locator), zap.Error(derr))
		}
		return nil, err
	}
	return f, nil
}

func (s *FileService) delete(ctx context.Context, checklistID, fileID string) error {
	s.locks.Lock(checklistID)
	defer s.locks.Unlock(checklistID)

	f, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return err
	}

	refs, err := s.files.CountURLRefs(ctx, f.URL)
	if err != nil {
		return err
	}

	// Blob deletion goes first; a blob the store no longer has does not
	// block removing the metadata. Clones share locators, so the blob is
	// kept while other references remain.
	if refs <= 1 {
		if err := s.blobs.Delete(ctx, f.URL); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("delete blob: %v: %w", err, apperr.ErrUpstream)
		}
	}
	return s.files.DeleteFile(ctx, fileID)
}

func (s *FileService) parentChecklist(ctx context.Context, parent FileParent) (string, error) {
	switch parent.Kind {
	case models.ParentCategory:
		return s.tree.ChecklistIDForCategory(ctx, parent.ID)
	case models.ParentItem:
		return s.tree.ChecklistIDForItem(ctx, parent.ID)
	default:
		return "", fmt.Errorf("parent kind %q: %w", parent.Kind, apperr.ErrValidation)
	}
}
