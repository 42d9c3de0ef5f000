package model

import (
	"encoding/json"
	"time"
)

type Page struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ParentID  *string   `json:"parent_id"`
	Position  int       `json:"position"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageVersion is an immutable snapshot of a page's title and content,
// taken just before an overwrite. Content is omitted from list responses.
type PageVersion struct {
	ID        int64     `json:"id"`
	PageID    string    `json:"page_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreatePageRequest struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	ParentID *string `json:"parent_id"`
	Icon     string  `json:"icon"`
}

// NullableString distinguishes a field that was absent from the request
// body from one explicitly set to null.
type NullableString struct {
	Set   bool
	Valid bool
	Value string
}

func (n *NullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Valid = false
		return nil
	}
	if err := json.Unmarshal(b, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// Ptr returns the value as a nullable pointer, nil when the field was
// explicitly null.
func (n NullableString) Ptr() *string {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// PagePatch is a sparse update: nil pointers (and an unset ParentID) mean
// "leave the stored value alone".
type PagePatch struct {
	Title    *string        `json:"title"`
	Content  *string        `json:"content"`
	ParentID NullableString `json:"parent_id"`
	Position *int           `json:"position"`
	Icon     *string        `json:"icon"`
}

func (p PagePatch) IsZero() bool {
	return p.Title == nil && p.Content == nil && !p.ParentID.Set && p.Position == nil && p.Icon == nil
}

type ReorderItem struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id"`
	Position int     `json:"position"`
}

type ReorderRequest struct {
	Pages []ReorderItem `json:"pages"`
}

type SearchResult struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ParentID  *string   `json:"parent_id"`
	Icon      string    `json:"icon"`
	UpdatedAt time.Time `json:"updated_at"`
	Snippet   string    `json:"snippet"`
}

type Breadcrumb struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Icon  string `json:"icon"`
}
