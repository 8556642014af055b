package http

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ykarpov/ListKeeper/internal/apperr"
	"github.com/ykarpov/ListKeeper/internal/middleware"
	"github.com/ykarpov/ListKeeper/internal/models"
	"github.com/ykarpov/ListKeeper/internal/service"
)

// maxUploadBytes caps the in-memory portion of multipart parsing.
const maxUploadBytes = 32 << 20

// FileService defines the interface for file attachment operations
// required by the HTTP handlers.
type FileService interface {
	UploadForOwner(ctx context.Context, userID, checklistID string, parent service.FileParent, name string, r io.Reader) (*models.FileAttachment, error)
	UploadWithToken(ctx context.Context, token string, parent service.FileParent, name string, r io.Reader) (*models.FileAttachment, error)
	DeleteForOwner(ctx context.Context, userID, fileID string) error
	DeleteWithToken(ctx context.Context, token, fileID string) error
}

// FileHandler handles owner-path file uploads and deletes.
type FileHandler struct {
	// Files performs the underlying attachment operations.
	Files FileService
}

// UploadCategoryFile handles POST .../categories/{categoryID}/files.
func (h *FileHandler) UploadCategoryFile(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, service.FileParent{
		Kind: models.ParentCategory,
		ID:   chi.URLParam(r, "categoryID"),
	})
}

// UploadItemFile handles POST .../items/{itemID}/files.
func (h *FileHandler) UploadItemFile(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, service.FileParent{
		Kind: models.ParentItem,
		ID:   chi.URLParam(r, "itemID"),
	})
}

func (h *FileHandler) upload(w http.ResponseWriter, r *http.Request, parent service.FileParent) {
	userID := middleware.GetUserIDFromContext(r.Context())

	file, name, err := fileFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	attachment, err := h.Files.UploadForOwner(r.Context(), userID,
		chi.URLParam(r, "checklistID"), parent, name, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

// DeleteFile handles DELETE /api/files/{fileID}.
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	if err := h.Files.DeleteForOwner(r.Context(), userID, chi.URLParam(r, "fileID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fileFromRequest pulls the uploaded "file" part out of a multipart body.
func fileFromRequest(r *http.Request) (multipart.File, string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", fmt.Errorf("invalid multipart body: %w", apperr.ErrValidation)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("missing file payload: %w", apperr.ErrValidation)
	}
	return file, header.Filename, nil
}
