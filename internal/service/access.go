// Package service provides business-logic services for the checklist
// tree, access control, share links, and file attachments, delegating
// persistence to repository interfaces.
package service

import (
	"context"
	"fmt"

	"github.com/ykarpov/ListKeeper/internal/apperr"
	"github.com/ykarpov/ListKeeper/internal/models"
)

// OwnerLookup resolves checklist ownership for access decisions.
type OwnerLookup interface {
	// GetChecklistMeta fetches a checklist header (no tree) by id.
	GetChecklistMeta(ctx context.Context, id string) (*models.Checklist, error)
}

// LinkResolver resolves share tokens for access decisions.
type LinkResolver interface {
	// ResolveShareLink looks up an active link by token. Unknown,
	// malformed, and revoked tokens all yield apperr.ErrNotFound.
	ResolveShareLink(ctx context.Context, token string) (*models.ShareLink, error)
}

// AccessService maps an inbound principal plus a target checklist to an
// access level. The owner gets ReadWrite on their own checklists; every
// other authenticated identity gets NoAccess. Share-token bearers are
// resolved separately via ResolveToken and are limited to file operations
// by the services that consume the link.
type AccessService struct {
	checklists OwnerLookup
	links      LinkResolver
}

// NewAccessService constructs an AccessService over the given lookups.
func NewAccessService(checklists OwnerLookup, links LinkResolver) *AccessService {
	return &AccessService{checklists: checklists, links: links}
}

// LevelFor returns the access level of the authenticated principal on the
// checklist. A missing checklist propagates apperr.ErrNotFound.
func (s *AccessService) LevelFor(ctx context.Context, userID, checklistID string) (models.AccessLevel, error) {
	meta, err := s.checklists.GetChecklistMeta(ctx, checklistID)
	if err != nil {
		return models.NoAccess, err
	}
	if userID != "" && meta.OwnerID == userID {
		return models.ReadWrite, nil
	}
	return models.NoAccess, nil
}

// RequireOwner fails with apperr.ErrForbidden unless the principal owns
// the checklist. A missing checklist fails with apperr.ErrNotFound, never
// an empty result.
func (s *AccessService) RequireOwner(ctx context.Context, userID, checklistID string) error {
	level, err := s.LevelFor(ctx, userID, checklistID)
	if err != nil {
		return err
	}
	if level != models.ReadWrite {
		return fmt.Errorf("checklist %s: %w", checklistID, apperr.ErrForbidden)
	}
	return nil
}

// ResolveToken resolves a bearer share token to its link. The bearer gets
// read of the full tree plus file-attachment writes on that checklist
// only; callers enforce that scope.
func (s *AccessService) ResolveToken(ctx context.Context, token string) (*models.ShareLink, error) {
	if token == "" {
		return nil, fmt.Errorf("share link: %w", apperr.ErrNotFound)
	}
	return s.links.ResolveShareLink(ctx, token)
}
