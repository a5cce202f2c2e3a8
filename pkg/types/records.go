package types

import "time"

// DependentRecord is any record addressed by a page's path instead of its id.
// OwnerPath must always equal the Path of the owning Page.
type DependentRecord interface {
	OwnerPath() string
}

// ContentBlock is one block of page body content.
type ContentBlock struct {
	BlockID   string    `json:"block_id"`
	PagePath  string    `json:"page_path"`
	Kind      string    `json:"kind"` // text, heading, image, ...
	Body      string    `json:"body"`
	Ordinal   int       `json:"ordinal"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnerPath implements DependentRecord.
func (b *ContentBlock) OwnerPath() string { return b.PagePath }

// LayoutSegment places a component into a region of a page's layout.
type LayoutSegment struct {
	SegmentID string    `json:"segment_id"`
	PagePath  string    `json:"page_path"`
	Region    string    `json:"region"`
	Component string    `json:"component"`
	Ordinal   int       `json:"ordinal"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnerPath implements DependentRecord.
func (s *LayoutSegment) OwnerPath() string { return s.PagePath }

// NavEntry is a navigation menu reference to a page.
type NavEntry struct {
	EntryID   string    `json:"entry_id"`
	PagePath  string    `json:"page_path"`
	Menu      string    `json:"menu"`
	Label     string    `json:"label"`
	Ordinal   int       `json:"ordinal"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnerPath implements DependentRecord.
func (n *NavEntry) OwnerPath() string { return n.PagePath }

var (
	_ DependentRecord = (*ContentBlock)(nil)
	_ DependentRecord = (*LayoutSegment)(nil)
	_ DependentRecord = (*NavEntry)(nil)
)
