package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ykarpov/ListKeeper/internal/apperr"
	"github.com/ykarpov/ListKeeper/internal/middleware"
	"github.com/ykarpov/ListKeeper/internal/models"
)

// ChecklistService defines the interface for checklist tree operations
// required by the HTTP handlers.
type ChecklistService interface {
	List(ctx context.Context, userID string) ([]models.ChecklistSummary, error)
	Create(ctx context.Context, userID, title, description string) (*models.Checklist, error)
	Get(ctx context.Context, userID, checklistID string) (*models.Checklist, error)
	Delete(ctx context.Context, userID, checklistID string) error
	Clone(ctx context.Context, userID, checklistID string) (*models.Checklist, error)
	CreateCategory(ctx context.Context, userID, checklistID, name string) (*models.Checklist, error)
	RenameCategory(ctx context.Context, userID, checklistID, categoryID, name string) (*models.Checklist, error)
	DeleteCategory(ctx context.Context, userID, checklistID, categoryID string) (*models.Checklist, error)
	CreateItem(ctx context.Context, userID, checklistID, categoryID, name string) (*models.Checklist, error)
	RenameItem(ctx context.Context, userID, checklistID, itemID, name string) (*models.Checklist, error)
	ToggleItem(ctx context.Context, userID, checklistID, itemID string) (*models.Checklist, error)
	DeleteItem(ctx context.Context, userID, checklistID, itemID string) (*models.Checklist, error)
}

// ChecklistHandler handles HTTP requests for checklists, categories,
// and items.
type ChecklistHandler struct {
	// Service performs the underlying tree operations.
	Service ChecklistService
}

// namePayload is the JSON body of create/rename requests for categories
// and items.
type namePayload struct {
	Name string `json:"name"`
}

// checklistPayload is the JSON body of checklist creation requests.
type checklistPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// List handles GET /api/checklists.
func (h *ChecklistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	summaries, err := h.Service.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// Create handles POST /api/checklists.
func (h *ChecklistHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	var req checklistPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid body: %w", apperr.ErrValidation))
		return
	}

	checklist, err := h.Service.Create(r.Context(), userID, req.Title, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checklist)
}

// Get handles GET /api/checklists/{checklistID}.
func (h *ChecklistHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	checklist, err := h.Service.Get(r.Context(), userID, chi.URLParam(r, "checklistID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checklist)
}

// Delete handles DELETE /api/checklists/{checklistID}.
func (h *ChecklistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	if err := h.Service.Delete(r.Context(), userID, chi.URLParam(r, "checklistID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clone handles POST /api/checklists/{checklistID}/clone.
func (h *ChecklistHandler) Clone(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	clone, err := h.Service.Clone(r.Context(), userID, chi.URLParam(r, "checklistID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, clone)
}

// CreateCategory handles POST /api/checklists/{checklistID}/categories.
func (h *ChecklistHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	name, ok := decodeName(w, r)
	if !ok {
		return
	}

	checklist, err := h.Service.CreateCategory(r.Context(), userID, chi.URLParam(r, "checklistID"), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checklist)
}

// RenameCategory handles PUT /api/checklists/{checklistID}/categories/{categoryID}.
func (h *ChecklistHandler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	name, ok := decodeName(w, r)
	if !ok {
		return
	}

	checklist, err := h.Service.RenameCategory(r.Context(), userID,
		chi.URLParam(r, "checklistID"), chi.URLParam(r, "categoryID"), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checklist)
}

// DeleteCategory handles DELETE /api/checklists/{checklistID}/categories/{categoryID}.
func (h *ChecklistHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	checklist, err := h.Service.DeleteCategory(r.Context(), userID,
		chi.URLParam(r, "checklistID"), chi.URLParam(r, "categoryID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checklist)
}

// CreateItem handles POST .../categories/{categoryID}/items.
func (h *ChecklistHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	name, ok := decodeName(w, r)
	if !ok {
		return
	}

	checklist, err := h.Service.CreateItem(r.Context(), userID,
		chi.URLParam(r, "checklistID"), chi.URLParam(r, "categoryID"), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checklist)
}

// RenameItem handles PUT .../items/{itemID}.
func (h *ChecklistHandler) RenameItem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	name, ok := decodeName(w, r)
	if !ok {
		return
	}

	checklist, err := h.Service.RenameItem(r.Context(), userID,
		chi.URLParam(r, "checklistID"), chi.URLParam(r, "itemID"), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checklist)
}

// ToggleItem handles PATCH .../items/{itemID}/toggle.
func (h *ChecklistHandler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	checklist, err := h.Service.ToggleItem(r.Context(), userID,
		chi.URLParam(r, "checklistID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checklist)
}

// DeleteItem handles DELETE .../items/{itemID}.
func (h *ChecklistHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	checklist, err := h.Service.DeleteItem(r.Context(), userID,
		chi.URLParam(r, "checklistID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checklist)
}

// decodeName reads a {"name": ...} body, writing the error response
// itself when the body is not valid JSON.
func decodeName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req namePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid body: %w", apperr.ErrValidation))
		return "", false
	}
	return req.Name, true
}
