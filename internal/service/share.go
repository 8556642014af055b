package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/ykarpov/ListKeeper/internal/models"
)

// tokenBytes is the entropy of a share token before encoding. 32 bytes of
// crypto/rand makes guessing infeasible.
const tokenBytes = 32

// ShareRepository defines the persistence operations needed by the share
// service.
type ShareRepository interface {
	// CreateShareLink revokes any active link for the checklist and
	// inserts the new one atomically.
	CreateShareLink(ctx context.Context, link *models.ShareLink) error
	// ResolveShareLink looks up an active link by token.
	ResolveShareLink(ctx context.Context, token string) (*models.ShareLink, error)
}

// ShareService mints and resolves opaque share tokens. Policy on
// re-share: reissue-and-invalidate, so at most one token per checklist
// resolves at any time.
type ShareService struct {
	repo       ShareRepository
	checklists ChecklistRepository
	access     *AccessService
}

// NewShareService constructs a ShareService.
func NewShareService(repo ShareRepository, checklists ChecklistRepository, access *AccessService) *ShareService {
	return &ShareService{repo: repo, checklists: checklists, access: access}
}

// Create mints a fresh token for an owned checklist, invalidating any
// previously issued one.
func (s *ShareService) Create(ctx context.Context, userID, checklistID string) (string, error) {
	if err := s.access.RequireOwner(ctx, userID, checklistID); err != nil {
		return "", err
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}

	link := &models.ShareLink{
		Token:       token,
		ChecklistID: checklistID,
		CreatedBy:   userID,
	}
	if err := s.repo.CreateShareLink(ctx, link); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the full tree behind a share token. viewerID is the
// authenticated principal accompanying the request, if any; the second
// return value reports whether that principal owns the checklist, which
// the shared view surfaces as is_owner.
func (s *ShareService) Resolve(ctx context.Context, token, viewerID string) (*models.Checklist, bool, error) {
	link, err := s.access.ResolveToken(ctx, token)
	if err != nil {
		return nil, false, err
	}

	tree, err := s.checklists.GetChecklistTree(ctx, link.ChecklistID)
	if err != nil {
		return nil, false, err
	}
	isOwner := viewerID != "" && tree.OwnerID == viewerID
	return tree, isOwner, nil
}

// newToken draws a fresh opaque capability string from crypto/rand.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
