package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/pagetree/pkg/types"
)

func kinds(issues []Issue) []IssueKind {
	var out []IssueKind
	for _, i := range issues {
		out = append(out, i.Kind)
	}
	return out
}

func TestAudit(t *testing.T) {
	tests := []struct {
		name    string
		pages   []types.Page
		records map[string]RecordCounts
		want    []IssueKind
	}{
		{
			name:  "healthy tree",
			pages: []types.Page{pg(1, "a", 0, 1), pg(2, "a/b", 1, 1), pg(3, "c", 0, 2)},
			want:  nil,
		},
		{
			name:  "duplicate path",
			pages: []types.Page{pg(1, "a", 0, 1), pg(2, "a", 0, 2)},
			want:  []IssueKind{IssueDuplicatePath},
		},
		{
			name: "stale parent after interrupted cascade",
			pages: []types.Page{
				pg(1, "new", 0, 1),
				pg(2, "old/child", 1, 1),
			},
			want: []IssueKind{IssueStaleParent},
		},
		{
			name: "path disagrees with parent path",
			pages: []types.Page{
				pg(1, "a", 0, 1),
				{ID: 2, Path: "x/b", ParentPath: "a", ParentID: 1, Position: 1},
			},
			want: []IssueKind{IssuePathMismatch},
		},
		{
			name:  "missing parent",
			pages: []types.Page{pg(2, "gone/b", 1, 1)},
			want:  []IssueKind{IssueMissingParent},
		},
		{
			name:  "parent id without parent path",
			pages: []types.Page{pg(1, "a", 0, 1), {ID: 2, Path: "b", ParentID: 1, Position: 1}},
			want:  []IssueKind{IssueMissingParent, IssuePositionCollision},
		},
		{
			name: "too deep and repeated segment",
			pages: []types.Page{
				{ID: 1, Path: "a/b/c/d/e/f/g", ParentPath: "a/b/c/d/e/f", Position: 1},
				{ID: 2, Path: "x/x", ParentPath: "x", Position: 1},
			},
			// ParentPath without ParentID is itself reported.
			want: []IssueKind{IssueMissingParent, IssueDepth, IssueMissingParent, IssueDuplicateSegment},
		},
		{
			name: "parent id cycle",
			pages: []types.Page{
				{ID: 1, Path: "a", ParentPath: "", ParentID: 0, Position: 1},
				{ID: 2, Path: "a/b", ParentPath: "a", ParentID: 3, Position: 1},
				{ID: 3, Path: "a/c", ParentPath: "a", ParentID: 2, Position: 2},
			},
			want: []IssueKind{IssueStaleParent, IssueStaleParent, IssueCycle},
		},
		{
			name:  "self parent",
			pages: []types.Page{{ID: 1, Path: "a/b", ParentPath: "a/b", ParentID: 1, Position: 1}},
			want:  []IssueKind{IssuePathMismatch, IssueCycle},
		},
		{
			name:  "position collision",
			pages: []types.Page{pg(1, "a", 0, 1), pg(2, "b", 0, 1)},
			want:  []IssueKind{IssuePositionCollision},
		},
		{
			name:    "orphan records",
			pages:   []types.Page{pg(1, "a", 0, 1)},
			records: map[string]RecordCounts{"a": {ContentBlocks: 1}, "old": {NavEntries: 2}},
			want:    []IssueKind{IssueOrphanRecords},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kinds(Audit(tt.pages, tt.records)))
		})
	}
}

func TestAudit_CycleDetail(t *testing.T) {
	issues := Audit([]types.Page{
		{ID: 5, Path: "a", ParentID: 6, ParentPath: "b", Position: 1},
		{ID: 6, Path: "b", ParentID: 5, ParentPath: "a", Position: 1},
	}, nil)

	var cycle *Issue
	for i := range issues {
		if issues[i].Kind == IssueCycle {
			cycle = &issues[i]
		}
	}
	if assert.NotNil(t, cycle) {
		assert.Equal(t, int64(5), cycle.PageID)
		assert.Contains(t, cycle.Detail, "[5 6]")
	}
}
