package types

import (
	"errors"
	"time"
)

// Page is a node of the content tree. Path both identifies the page and
// encodes its ancestry: it is ParentPath + "/" + local name, or the local
// name alone for a root page.
type Page struct {
	ID         int64     `json:"id"`          // Stable identity, never reused.
	Path       string    `json:"path"`        // Unique slash-separated slug.
	Title      string    `json:"title"`       // Display title, independent of Path.
	ParentPath string    `json:"parent_path"` // Empty for root pages.
	ParentID   int64     `json:"parent_id"`   // Zero for root pages.
	Position   int       `json:"position"`    // Order among pages sharing ParentPath.
	CreatedAt  time.Time `json:"created_at"`
}

// IsRoot reports whether the page has no parent.
func (p Page) IsRoot() bool {
	return p.ParentID == 0 && p.ParentPath == ""
}

// SameGroup reports whether p and other share a sibling group.
func (p Page) SameGroup(other Page) bool {
	return p.ParentPath == other.ParentPath
}

// Tree mutation errors. The first four are detected before any write and are
// always safe to retry with a different target.
var (
	ErrCycle            = errors.New("move would nest a page under itself or a descendant")
	ErrDepthExceeded    = errors.New("resulting path exceeds the depth limit")
	ErrDuplicateSegment = errors.New("resulting path repeats a segment")
	ErrPathCollision    = errors.New("resulting path is already used by another page")
	ErrStoreWrite       = errors.New("store write failed")
	ErrHasChildren      = errors.New("page still has children")
	ErrPageNotFound     = errors.New("page not found")
	ErrInvalidSegment   = errors.New("invalid path segment")
)
