package tree

import (
	"sort"

	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// sortSiblings orders pages by position, then ID.
func sortSiblings(pages []types.Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].Position != pages[j].Position {
			return pages[i].Position < pages[j].Position
		}
		return pages[i].ID < pages[j].ID
	})
}

// reorderSequence returns siblings in their order after moving sourceID
// next to targetID. siblings must already be in sibling order. When the
// target is not among them (the group's parent, say) the source goes first
// if before is set and last otherwise.
func reorderSequence(siblings []types.Page, sourceID, targetID int64, before bool) []types.Page {
	var source types.Page
	found := false
	rest := make([]types.Page, 0, len(siblings))
	for _, p := range siblings {
		if p.ID == sourceID {
			source = p
			found = true
			continue
		}
		rest = append(rest, p)
	}
	if !found {
		return siblings
	}

	at := len(rest)
	if before {
		at = 0
	}
	for i, p := range rest {
		if p.ID == targetID {
			at = i
			if !before {
				at = i + 1
			}
			break
		}
	}

	out := make([]types.Page, 0, len(siblings))
	out = append(out, rest[:at]...)
	out = append(out, source)
	out = append(out, rest[at:]...)
	return out
}

func sameOrder(a, b []types.Page) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// positionUpdate is one position write of a dense renumbering.
type positionUpdate struct {
	ID       int64
	Path     string
	Position int
}

// densePositions numbers ordered 1..n and returns only the pages whose
// position changes.
func densePositions(ordered []types.Page) []positionUpdate {
	var out []positionUpdate
	for i, p := range ordered {
		if p.Position != i+1 {
			out = append(out, positionUpdate{ID: p.ID, Path: p.Path, Position: i + 1})
		}
	}
	return out
}
