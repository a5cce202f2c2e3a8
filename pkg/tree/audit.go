package tree

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/mesh-intelligence/pagetree/pkg/slug"
	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// IssueKind names a class of integrity problem.
type IssueKind string

const (
	IssueDuplicatePath     IssueKind = "duplicate_path"
	IssuePathMismatch      IssueKind = "path_mismatch"
	IssueMissingParent     IssueKind = "missing_parent"
	IssueStaleParent       IssueKind = "stale_parent"
	IssueDepth             IssueKind = "depth"
	IssueDuplicateSegment  IssueKind = "duplicate_segment"
	IssueCycle             IssueKind = "cycle"
	IssuePositionCollision IssueKind = "position_collision"
	IssueOrphanRecords     IssueKind = "orphan_records"
)

// Issue is one integrity problem. Issues are reported, never fixed here.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	Path   string    `json:"path"`
	PageID int64     `json:"page_id,omitempty"`
	Detail string    `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Kind, i.Path, i.Detail)
}

// Audit checks pages and the per-path record counts against the tree
// invariants. A page whose parent was renamed but which still carries the
// old parent path is reported as IssueStaleParent; Engine.Repair fixes
// those.
func Audit(pages []types.Page, records map[string]RecordCounts) []Issue {
	var issues []Issue

	byID := make(map[int64]types.Page, len(pages))
	pathCount := make(map[string]int, len(pages))
	for _, p := range pages {
		byID[p.ID] = p
		pathCount[p.Path]++
	}

	reported := make(map[string]bool)
	for _, p := range pages {
		if pathCount[p.Path] > 1 && !reported[p.Path] {
			reported[p.Path] = true
			issues = append(issues, Issue{
				Kind:   IssueDuplicatePath,
				Path:   p.Path,
				Detail: fmt.Sprintf("%d pages share this path", pathCount[p.Path]),
			})
		}

		if slug.Parent(p.Path) != p.ParentPath {
			issues = append(issues, Issue{
				Kind:   IssuePathMismatch,
				Path:   p.Path,
				PageID: p.ID,
				Detail: fmt.Sprintf("parent path is %q", p.ParentPath),
			})
		}

		switch {
		case (p.ParentID == 0) != (p.ParentPath == ""):
			issues = append(issues, Issue{
				Kind:   IssueMissingParent,
				Path:   p.Path,
				PageID: p.ID,
				Detail: fmt.Sprintf("parent id %d disagrees with parent path %q", p.ParentID, p.ParentPath),
			})
		case p.ParentID != 0:
			parent, ok := byID[p.ParentID]
			if !ok {
				issues = append(issues, Issue{
					Kind:   IssueMissingParent,
					Path:   p.Path,
					PageID: p.ID,
					Detail: fmt.Sprintf("parent id %d does not exist", p.ParentID),
				})
			} else if parent.Path != p.ParentPath {
				issues = append(issues, Issue{
					Kind:   IssueStaleParent,
					Path:   p.Path,
					PageID: p.ID,
					Detail: fmt.Sprintf("parent is now %q", parent.Path),
				})
			}
		}

		if d := slug.Depth(p.Path); d > slug.MaxDepth {
			issues = append(issues, Issue{
				Kind:   IssueDepth,
				Path:   p.Path,
				PageID: p.ID,
				Detail: fmt.Sprintf("depth %d exceeds %d", d, slug.MaxDepth),
			})
		}
		if slug.HasAdjacentDuplicateSegment(p.Path) {
			issues = append(issues, Issue{
				Kind:   IssueDuplicateSegment,
				Path:   p.Path,
				PageID: p.ID,
				Detail: "adjacent segments repeat",
			})
		}
	}

	issues = append(issues, auditCycles(pages, byID)...)
	issues = append(issues, auditPositions(pages)...)

	var orphans []string
	for path, c := range records {
		if pathCount[path] == 0 && c.Total() > 0 {
			orphans = append(orphans, path)
		}
	}
	sort.Strings(orphans)
	for _, path := range orphans {
		issues = append(issues, Issue{
			Kind:   IssueOrphanRecords,
			Path:   path,
			Detail: fmt.Sprintf("%d dependent records point at no page", records[path].Total()),
		})
	}

	return issues
}

// auditCycles finds parent-id cycles. Paths alone cannot form a cycle, but
// parent ids written by a failed or concurrent cascade can.
func auditCycles(pages []types.Page, byID map[int64]types.Page) []Issue {
	var issues []Issue
	g := simple.NewDirectedGraph()
	for _, p := range pages {
		if g.Node(p.ID) == nil {
			g.AddNode(simple.Node(p.ID))
		}
	}
	for _, p := range pages {
		if p.ParentID == 0 {
			continue
		}
		if _, ok := byID[p.ParentID]; !ok {
			continue
		}
		if p.ParentID == p.ID {
			// simple graphs reject self loops.
			issues = append(issues, Issue{
				Kind:   IssueCycle,
				Path:   p.Path,
				PageID: p.ID,
				Detail: "page is its own parent",
			})
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(p.ParentID), simple.Node(p.ID)))
	}

	_, err := topo.Sort(g)
	var cycles topo.Unorderable
	if !errors.As(err, &cycles) {
		return issues
	}
	for _, component := range cycles {
		ids := make([]int64, 0, len(component))
		for _, n := range component {
			ids = append(ids, n.ID())
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		first := byID[ids[0]]
		issues = append(issues, Issue{
			Kind:   IssueCycle,
			Path:   first.Path,
			PageID: first.ID,
			Detail: fmt.Sprintf("parent ids form a cycle through pages %v", ids),
		})
	}
	return issues
}

// auditPositions reports siblings sharing a position value.
func auditPositions(pages []types.Page) []Issue {
	type slot struct {
		parent   string
		position int
	}
	seen := make(map[slot][]string)
	var order []slot
	for _, p := range pages {
		s := slot{p.ParentPath, p.Position}
		if _, ok := seen[s]; !ok {
			order = append(order, s)
		}
		seen[s] = append(seen[s], p.Path)
	}

	var issues []Issue
	for _, s := range order {
		paths := seen[s]
		if len(paths) < 2 {
			continue
		}
		sort.Strings(paths)
		issues = append(issues, Issue{
			Kind:   IssuePositionCollision,
			Path:   paths[0],
			Detail: fmt.Sprintf("position %d shared by %v", s.position, paths),
		})
	}
	return issues
}
