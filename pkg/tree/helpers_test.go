package tree

import (
	"github.com/mesh-intelligence/pagetree/pkg/slug"
	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// pg builds a page whose parent path is derived from path.
func pg(id int64, path string, parentID int64, pos int) types.Page {
	return types.Page{
		ID:         id,
		Path:       path,
		Title:      slug.LastSegment(path),
		ParentPath: slug.Parent(path),
		ParentID:   parentID,
		Position:   pos,
	}
}

// chain builds a single line of pages a/b/c/... with ids 1..n.
func chain(segments ...string) []types.Page {
	var out []types.Page
	path := ""
	for i, s := range segments {
		path = slug.ChildPath(path, s)
		out = append(out, pg(int64(i+1), path, int64(i), 1))
	}
	return out
}
