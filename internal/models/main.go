// Package models defines the core data structures for checklists,
// their nested categories and items, file attachments, and share links.
package models

import "time"

// AccessLevel describes what a resolved principal may do with a checklist.
type AccessLevel int

const (
	// NoAccess means the principal may neither read nor mutate the checklist.
	NoAccess AccessLevel = iota
	// ReadOnly grants read of the full tree but no mutation.
	ReadOnly
	// ReadWrite grants read and mutation. For share-token bearers the
	// mutation surface is limited to file attachments.
	ReadWrite
)

// ParentKind identifies which tree node a file attachment hangs off.
type ParentKind string

const (
	// ParentCategory marks an attachment bound to a category.
	ParentCategory ParentKind = "category"
	// ParentItem marks an attachment bound to an item.
	ParentItem ParentKind = "item"
)

// Checklist is the root of an entity tree, owned by exactly one principal.
type Checklist struct {
	// ID is the unique identifier of the checklist.
	ID string `json:"id"`
	// OwnerID is the principal that owns the checklist. Never serialized.
	OwnerID string `json:"-"`
	// Title is the user-visible name of the checklist.
	Title string `json:"title"`
	// Description is an optional free-form description.
	Description string `json:"description"`
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
	// Categories holds the ordered child categories.
	Categories []Category `json:"categories"`
}

// ChecklistSummary is the list-view projection of a checklist.
type ChecklistSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	CategoryCount int    `json:"category_count"`
	ItemCount     int    `json:"item_count"`
}

// Category groups items under a checklist. Its ChecklistID never changes
// after creation.
type Category struct {
	ID          string           `json:"id"`
	ChecklistID string           `json:"-"`
	Name        string           `json:"name"`
	Items       []Item           `json:"items"`
	Files       []FileAttachment `json:"files"`
}

// Item is a single checkable entry in a category. Its CategoryID never
// changes after creation.
type Item struct {
	ID          string           `json:"id"`
	CategoryID  string           `json:"-"`
	Name        string           `json:"name"`
	IsCompleted bool             `json:"is_completed"`
	Files       []FileAttachment `json:"files"`
}

// FileAttachment is the metadata record of an externally stored blob,
// bound to exactly one category or one item.
type FileAttachment struct {
	// ID is the unique identifier of the attachment record.
	ID string `json:"id"`
	// ParentKind tells whether ParentID refers to a category or an item.
	ParentKind ParentKind `json:"-"`
	// ParentID is the owning tree node. Never changes after creation.
	ParentID string `json:"-"`
	// Name is the original file name as uploaded.
	Name string `json:"name"`
	// URL is the opaque blob store locator the file is served from.
	URL string `json:"file"`
	// CreatedAt is the upload timestamp.
	CreatedAt time.Time `json:"-"`
}

// ShareLink is an opaque bearer capability resolving to one checklist.
// At most one non-revoked link exists per checklist.
type ShareLink struct {
	// Token is the unguessable capability string.
	Token string
	// ChecklistID is the checklist the token resolves to.
	ChecklistID string
	// CreatedBy is the owner that minted the link.
	CreatedBy string
	// Revoked marks a link invalidated by a later reissue.
	Revoked bool
	// CreatedAt is the mint timestamp.
	CreatedAt time.Time
}
