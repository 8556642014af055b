package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ykarpov/ListKeeper/internal/middleware"
	"github.com/ykarpov/ListKeeper/internal/models"
	"github.com/ykarpov/ListKeeper/internal/service"
)

// ShareService defines the interface for share link operations required
// by the HTTP handlers.
type ShareService interface {
	// Create mints a fresh token for an owned checklist, invalidating
	// any previously issued one.
	Create(ctx context.Context, userID, checklistID string) (string, error)
	// Resolve returns the tree behind a token plus whether the optional
	// authenticated viewer owns it.
	Resolve(ctx context.Context, token, viewerID string) (*models.Checklist, bool, error)
}

// ShareHandler handles share link minting and the anonymous share-token
// routes. Token bearers read the full tree and manage file attachments;
// nothing else.
type ShareHandler struct {
	// Shares performs token minting and resolution.
	Shares ShareService
	// Files performs the attachment operations reachable with a token.
	Files FileService
}

// sharedChecklist is the shared-view response: the tree plus the
// is_owner marker for an owner viewing their own link.
type sharedChecklist struct {
	*models.Checklist
	IsOwner bool `json:"is_owner"`
}

// Create handles POST /api/checklists/{checklistID}/share.
func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	token, err := h.Shares.Create(r.Context(), userID, chi.URLParam(r, "checklistID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

// Resolve handles GET /api/share/{token}.
func (h *ShareHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserIDFromContext(r.Context())

	checklist, isOwner, err := h.Shares.Resolve(r.Context(), chi.URLParam(r, "token"), viewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sharedChecklist{Checklist: checklist, IsOwner: isOwner})
}

// UploadCategoryFile handles POST /api/share/{token}/categories/{categoryID}/files.
func (h *ShareHandler) UploadCategoryFile(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, service.FileParent{
		Kind: models.ParentCategory,
		ID:   chi.URLParam(r, "categoryID"),
	})
}

// UploadItemFile handles POST /api/share/{token}/categories/{categoryID}/items/{itemID}/files.
func (h *ShareHandler) UploadItemFile(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, service.FileParent{
		Kind: models.ParentItem,
		ID:   chi.URLParam(r, "itemID"),
	})
}

func (h *ShareHandler) upload(w http.ResponseWriter, r *http.Request, parent service.FileParent) {
	file, name, err := fileFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	attachment, err := h.Files.UploadWithToken(r.Context(), chi.URLParam(r, "token"), parent, name, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

// DeleteFile handles DELETE /api/share/{token}/files/{fileID}.
func (h *ShareHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	err := h.Files.DeleteWithToken(r.Context(), chi.URLParam(r, "token"), chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
