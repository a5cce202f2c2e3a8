package tree

import (
	"sort"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/mesh-intelligence/pagetree/pkg/slug"
	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// Index is the read access the validator needs beyond the two pages being
// moved. *Tree satisfies it.
type Index interface {
	// Lookup returns the page owning path.
	Lookup(path string) (types.Page, bool)
	// Children returns the pages whose parent path is parentPath, in
	// sibling order.
	Children(parentPath string) []types.Page
	// Height returns the number of levels in the subtree rooted at path,
	// 1 for a leaf and 0 for an unknown path.
	Height(path string) int
}

// RecordCounts tallies the dependent records pointing at one path.
type RecordCounts struct {
	ContentBlocks  int `json:"content_blocks"`
	LayoutSegments int `json:"layout_segments"`
	NavEntries     int `json:"nav_entries"`
}

// Total returns the number of dependent records across all collections.
func (c RecordCounts) Total() int {
	return c.ContentBlocks + c.LayoutSegments + c.NavEntries
}

// Tree is an immutable snapshot of the page tree as last read from the
// store. The engine never edits a Tree; every change produces a new one.
type Tree struct {
	pages    []types.Page
	byPath   map[string]int
	byID     map[int64]int
	children map[string][]int
	records  map[string]RecordCounts
	issues   []Issue
	loadedAt time.Time
}

// NewTree builds a snapshot from pages and per-path record counts. When
// two pages share a path the one with the lower ID wins the path lookup;
// the audit reports the duplicate.
func NewTree(pages []types.Page, records map[string]RecordCounts) *Tree {
	sorted := make([]types.Page, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ParentPath != b.ParentPath {
			return a.ParentPath < b.ParentPath
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})

	t := &Tree{
		pages:    sorted,
		byPath:   make(map[string]int, len(sorted)),
		byID:     make(map[int64]int, len(sorted)),
		children: make(map[string][]int),
		records:  make(map[string]RecordCounts, len(records)),
		loadedAt: time.Now(),
	}
	for i, p := range sorted {
		if prev, ok := t.byPath[p.Path]; !ok || p.ID < sorted[prev].ID {
			t.byPath[p.Path] = i
		}
		t.byID[p.ID] = i
		t.children[p.ParentPath] = append(t.children[p.ParentPath], i)
	}
	for path, c := range records {
		t.records[path] = c
	}
	t.issues = Audit(sorted, t.records)
	return t
}

// Len returns the number of pages.
func (t *Tree) Len() int { return len(t.pages) }

// LoadedAt returns when the snapshot was built.
func (t *Tree) LoadedAt() time.Time { return t.loadedAt }

// Pages returns every page ordered by parent path, then position.
func (t *Tree) Pages() []types.Page {
	out := make([]types.Page, len(t.pages))
	copy(out, t.pages)
	return out
}

func (t *Tree) Lookup(path string) (types.Page, bool) {
	i, ok := t.byPath[path]
	if !ok {
		return types.Page{}, false
	}
	return t.pages[i], true
}

func (t *Tree) ByID(id int64) (types.Page, bool) {
	i, ok := t.byID[id]
	if !ok {
		return types.Page{}, false
	}
	return t.pages[i], true
}

func (t *Tree) Children(parentPath string) []types.Page {
	idx := t.children[parentPath]
	out := make([]types.Page, len(idx))
	for i, j := range idx {
		out[i] = t.pages[j]
	}
	return out
}

// Roots returns the top-level pages in order.
func (t *Tree) Roots() []types.Page {
	return t.Children("")
}

func (t *Tree) Height(path string) int {
	if _, ok := t.byPath[path]; !ok {
		return 0
	}
	base := slug.Depth(path)
	height := 1
	for _, p := range t.pages {
		if slug.IsAncestorOf(path, p.Path) {
			if h := slug.Depth(p.Path) - base + 1; h > height {
				height = h
			}
		}
	}
	return height
}

// Subtree returns path's page and every page below it, parents first.
func (t *Tree) Subtree(path string) []types.Page {
	root, ok := t.Lookup(path)
	if !ok {
		return nil
	}
	var out []types.Page
	t.walkFrom([]types.Page{root}, func(p types.Page, _ int) bool {
		out = append(out, p)
		return true
	})
	return out
}

// Records returns the dependent record counts for path.
func (t *Tree) Records(path string) RecordCounts {
	return t.records[path]
}

// Issues returns the integrity problems found when the snapshot was built.
func (t *Tree) Issues() []Issue {
	out := make([]Issue, len(t.issues))
	copy(out, t.issues)
	return out
}

// Walk visits every page reachable from the roots depth-first, parents
// before children and siblings in order. depth is 0 for roots. Returning
// false from fn skips the page's children.
func (t *Tree) Walk(fn func(p types.Page, depth int) bool) {
	t.walkFrom(t.Roots(), fn)
}

func (t *Tree) walkFrom(start []types.Page, fn func(p types.Page, depth int) bool) {
	type frame struct {
		page  types.Page
		depth int
	}
	seen := make(map[int64]bool)
	stack := make([]frame, 0, len(start))
	for i := len(start) - 1; i >= 0; i-- {
		stack = append(stack, frame{start[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[f.page.ID] {
			continue
		}
		seen[f.page.ID] = true
		if !fn(f.page, f.depth) {
			continue
		}
		kids := t.Children(f.page.Path)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{kids[i], f.depth + 1})
		}
	}
}

// SearchResult is one fuzzy match against a page's path and title.
type SearchResult struct {
	Page           types.Page
	Score          int
	MatchedIndexes []int // byte offsets into Haystack
	Haystack       string
}

// searchSource adapts the snapshot to fuzzy.Source.
type searchSource []types.Page

func (s searchSource) String(i int) string { return haystack(s[i]) }
func (s searchSource) Len() int            { return len(s) }

func haystack(p types.Page) string {
	return p.Path + " " + p.Title
}

// Search ranks pages by how well query fuzzily matches their path and
// title. limit <= 0 returns every match.
func (t *Tree) Search(query string, limit int) []SearchResult {
	matches := fuzzy.FindFrom(query, searchSource(t.pages))
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]SearchResult, len(matches))
	for i, m := range matches {
		out[i] = SearchResult{
			Page:           t.pages[m.Index],
			Score:          m.Score,
			MatchedIndexes: m.MatchedIndexes,
			Haystack:       m.Str,
		}
	}
	return out
}

var _ Index = (*Tree)(nil)
