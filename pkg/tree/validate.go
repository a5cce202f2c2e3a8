package tree

import (
	"fmt"

	"github.com/mesh-intelligence/pagetree/pkg/gesture"
	"github.com/mesh-intelligence/pagetree/pkg/slug"
	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// Validate decides what dropping source on target in the given mode means.
// It never touches the store. idx may be nil, in which case path
// collisions, subtree depth and unchanged reorders are not detected.
//
// In Child mode source becomes target's child. In Sibling mode source
// joins target's sibling group right after target; when it is already in
// that group the plan is a reorder and no path changes. A sibling drop on
// the source's own parent moves it to the top of its group.
func Validate(source, target types.Page, mode gesture.Mode, idx Index) Plan {
	plan := Plan{Mode: mode, Source: source, Target: target}
	if mode == gesture.Idle {
		return noop(plan)
	}

	switch mode {
	case gesture.Child:
		if target.Path == source.Path || slug.IsAncestorOf(source.Path, target.Path) {
			return reject(plan, types.ErrCycle, "target is inside the moved subtree")
		}
		plan.NewParentPath = target.Path
		plan.NewParentID = target.ID
		plan.NewPosition = target.Position + 1

	case gesture.Sibling:
		if source.ID == target.ID {
			return noop(plan)
		}
		if gesture.ForcedSibling(source, target) {
			return planReorder(plan, true, idx)
		}
		if slug.IsAncestorOf(source.Path, target.ParentPath) {
			return reject(plan, types.ErrCycle, "target is inside the moved subtree")
		}
		if source.SameGroup(target) {
			return planReorder(plan, false, idx)
		}
		plan.NewParentPath = target.ParentPath
		plan.NewParentID = target.ParentID
		plan.NewPosition = target.Position + 1
	}

	plan.NewPath = slug.ChildPath(plan.NewParentPath, slug.LastSegment(source.Path))
	return checkReparent(plan, idx)
}

// ValidateBefore plans placing source immediately before target, in
// target's sibling group.
func ValidateBefore(source, target types.Page, idx Index) Plan {
	plan := Plan{Mode: gesture.Sibling, Source: source, Target: target, Before: true}
	if source.ID == target.ID {
		return noop(plan)
	}
	if slug.IsAncestorOf(source.Path, target.ParentPath) {
		return reject(plan, types.ErrCycle, "target is inside the moved subtree")
	}
	if source.SameGroup(target) {
		return planReorder(plan, true, idx)
	}

	plan.NewParentPath = target.ParentPath
	plan.NewParentID = target.ParentID
	plan.NewPosition = target.Position
	plan.NewPath = slug.ChildPath(plan.NewParentPath, slug.LastSegment(source.Path))
	return checkReparent(plan, idx)
}

// ValidateRename plans giving source a new local name under its current
// parent.
func ValidateRename(source types.Page, newName string, idx Index) Plan {
	plan := Plan{Source: source, Target: source}
	if err := slug.ValidSegment(newName); err != nil {
		return reject(plan, types.ErrInvalidSegment, err.Error())
	}
	plan.NewParentPath = source.ParentPath
	plan.NewParentID = source.ParentID
	plan.NewPosition = source.Position
	plan.NewPath = slug.ChildPath(source.ParentPath, newName)

	plan = checkReparent(plan, idx)
	if plan.Kind == PlanReparent {
		plan.Kind = PlanRename
	}
	return plan
}

// checkReparent applies the path rules to a plan whose NewPath and new
// parent are filled in.
func checkReparent(plan Plan, idx Index) Plan {
	if plan.NewPath == plan.Source.Path && !plan.ParentChanged() {
		return noop(plan)
	}

	if d := slug.Depth(plan.NewPath); d > slug.MaxDepth {
		return reject(plan, types.ErrDepthExceeded,
			fmt.Sprintf("%s would be at depth %d, limit is %d", plan.NewPath, d, slug.MaxDepth))
	}
	if slug.HasAdjacentDuplicateSegment(plan.NewPath) {
		return reject(plan, types.ErrDuplicateSegment,
			fmt.Sprintf("%s repeats a segment", plan.NewPath))
	}

	if idx != nil {
		if other, ok := idx.Lookup(plan.NewPath); ok && other.ID != plan.Source.ID {
			return reject(plan, types.ErrPathCollision,
				fmt.Sprintf("%s already belongs to page %d", plan.NewPath, other.ID))
		}
		if h := idx.Height(plan.Source.Path); h > 1 {
			if d := slug.Depth(plan.NewPath) + h - 1; d > slug.MaxDepth {
				return reject(plan, types.ErrDepthExceeded,
					fmt.Sprintf("deepest page under %s would be at depth %d, limit is %d", plan.NewPath, d, slug.MaxDepth))
			}
		}
	}

	plan.Kind = PlanReparent
	return plan
}

// planReorder fills in a same-group move. With an index it turns a reorder
// after or before a sibling that would not change the order into a no-op.
func planReorder(plan Plan, before bool, idx Index) Plan {
	plan.Kind = PlanReorder
	plan.Before = before
	plan.NewPath = plan.Source.Path
	plan.NewParentPath = plan.Source.ParentPath
	plan.NewParentID = plan.Source.ParentID
	plan.NewPosition = plan.Target.Position + 1
	if before {
		plan.NewPosition = plan.Target.Position
	}
	// A drop over the parent row stays a reorder even when the page is
	// already first; the executor then writes nothing.
	if plan.Target.ID == plan.Source.ParentID {
		plan.NewPosition = 1
		return plan
	}

	if idx != nil {
		siblings := idx.Children(plan.Source.ParentPath)
		if sameOrder(siblings, reorderSequence(siblings, plan.Source.ID, plan.Target.ID, before)) {
			return noop(plan)
		}
	}
	return plan
}

func noop(plan Plan) Plan {
	plan.Kind = PlanNoOp
	plan.NewPath = plan.Source.Path
	plan.NewParentPath = plan.Source.ParentPath
	plan.NewParentID = plan.Source.ParentID
	plan.NewPosition = plan.Source.Position
	return plan
}
