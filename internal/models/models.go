// Package models defines the core data structures used throughout the application.
package models

import "encoding/json"

// ItemType classifies what an item stores.
type ItemType string

const (
	// ItemTypeLink is a bookmarked URL; the URL lives in Content.
	ItemTypeLink ItemType = "link"
	// ItemTypeNote is a free-form text note; the body lives in Content.
	ItemTypeNote ItemType = "note"
	// ItemTypeDocument is an uploaded file tracked in the storage tree.
	ItemTypeDocument ItemType = "document"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeLink, ItemTypeNote, ItemTypeDocument:
		return true
	}
	return false
}

// Space identifies an isolated collection of categories, items and files.
// Each space is backed by its own database file and storage subtree.
type Space struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Category is a node in a space's category tree. ParentID is nil for
// root-level categories. Slug is derived from Name and doubles as the
// storage directory name for the category's document files.
type Category struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Color         string `json:"color"`
	SortOrder     int    `json:"sort_order"`
	ParentID      *int64 `json:"parent_id"`
	ChildrenCount int    `json:"children_count"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// Item is a single entry within a category.
// Content holds the URL for links and the body for notes; the file_*
// fields are populated only for documents. FilePath is always relative
// to the space's storage root ("<category-slug>/<generated-name>").
type Item struct {
	ID          int64    `json:"id"`
	CategoryID  int64    `json:"category_id"`
	Type        ItemType `json:"type"`
	Title       string   `json:"title"`
	Content     *string  `json:"content"`
	FilePath    *string  `json:"file_path"`
	FileName    *string  `json:"file_name"`
	FileSize    *int64   `json:"file_size"`
	MimeType    *string  `json:"mime_type"`
	Description *string  `json:"description"`
	FaviconURL  *string  `json:"favicon_url"`
	SortOrder   int      `json:"sort_order"`
	IsPinned    bool     `json:"is_pinned"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	Tags        []Tag    `json:"tags"`
}

// Tag is a global label shared by every space.
type Tag struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// BreadcrumbSegment is one hop in a category's ancestor chain.
type BreadcrumbSegment struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ItemMove is one entry of a batch item reorder: place item ID at
// SortOrder within CategoryID.
type ItemMove struct {
	ID         int64 `json:"id"`
	CategoryID int64 `json:"category_id"`
	SortOrder  int   `json:"sort_order"`
}

// Optional is a JSON field that tracks its own presence, so handlers can
// distinguish "absent" (leave unchanged) from "explicitly null" (clear).
type Optional[T any] struct {
	Set   bool // field appeared in the payload
	Valid bool // field was non-null
	Value T
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
