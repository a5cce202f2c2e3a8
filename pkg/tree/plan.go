package tree

import (
	"fmt"

	"github.com/mesh-intelligence/pagetree/pkg/gesture"
	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// PlanKind says what an accepted or rejected drop will do to the store.
type PlanKind int

const (
	PlanNoOp PlanKind = iota
	PlanReorder
	PlanReparent
	PlanRename
	PlanRejected
)

func (k PlanKind) String() string {
	switch k {
	case PlanReorder:
		return "reorder"
	case PlanReparent:
		return "reparent"
	case PlanRename:
		return "rename"
	case PlanRejected:
		return "rejected"
	default:
		return "noop"
	}
}

// Plan is the validated outcome of a move request. Reorder plans keep the
// source path; reparent and rename plans carry the new path the cascade
// will propagate.
type Plan struct {
	Kind   PlanKind
	Mode   gesture.Mode
	Source types.Page
	Target types.Page

	NewPath       string
	NewParentPath string
	NewParentID   int64
	NewPosition   int

	// Before places the source ahead of the target instead of after it.
	Before bool

	// Err is a *MoveError when Kind is PlanRejected.
	Err error
}

// PathChanged reports whether applying the plan renames the source.
func (p Plan) PathChanged() bool {
	return p.NewPath != p.Source.Path
}

// ParentChanged reports whether the source gets a different parent page.
// A rename or a repair keeps the parent even though its path changes.
func (p Plan) ParentChanged() bool {
	return p.NewParentID != p.Source.ParentID
}

func (p Plan) String() string {
	switch p.Kind {
	case PlanRejected:
		return fmt.Sprintf("rejected: %v", p.Err)
	case PlanNoOp:
		return fmt.Sprintf("noop: %s unchanged", p.Source.Path)
	case PlanReorder:
		if p.Target.ID == p.Source.ParentID {
			return fmt.Sprintf("reorder: %s first under %s", p.Source.Path, p.Target.Path)
		}
		rel := "after"
		if p.Before {
			rel = "before"
		}
		return fmt.Sprintf("reorder: %s %s %s", p.Source.Path, rel, p.Target.Path)
	default:
		return fmt.Sprintf("%s: %s -> %s (position %d)", p.Kind, p.Source.Path, p.NewPath, p.NewPosition)
	}
}

// MoveError reports a move the validator refused. Err is one of the
// sentinels in pkg/types (ErrCycle, ErrDepthExceeded, ErrDuplicateSegment,
// ErrPathCollision).
type MoveError struct {
	Source string
	Target string
	Reason string
	Err    error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("cannot move %s to %s: %s", e.Source, e.Target, e.Reason)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

func (e *MoveError) Is(target error) bool {
	return target == e.Err
}

func reject(p Plan, err error, reason string) Plan {
	p.Kind = PlanRejected
	p.Err = &MoveError{
		Source: p.Source.Path,
		Target: p.Target.Path,
		Reason: reason,
		Err:    err,
	}
	return p
}
