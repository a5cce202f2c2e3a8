// Package gesture turns a stream of pointer positions over tree rows into the
// operation the operator intends to perform on drop: reorder the dragged page
// as a sibling of the row, or reparent it as the row's child.
//
// The classifier holds no hidden state. Callers keep a State value, feed it
// one Tick per pointer move and keep the State returned.
package gesture

import "github.com/mesh-intelligence/pagetree/pkg/types"

// Mode is the classified intent for the current target row.
type Mode int

const (
	Idle Mode = iota
	Sibling
	Child
)

func (m Mode) String() string {
	switch m {
	case Sibling:
		return "sibling"
	case Child:
		return "child"
	default:
		return "idle"
	}
}

// ParseMode converts "sibling" or "child" into a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "sibling":
		return Sibling, true
	case "child":
		return Child, true
	}
	return Idle, false
}

// Hysteresis thresholds on the relative pointer height within a row. From
// Idle the midline decides; once a mode is chosen the pointer has to cross
// the far edge of a dead zone to flip it.
const (
	Midline        = 0.5
	EnterChildAt   = 0.6
	EnterSiblingAt = 0.4
)

// Tick is one pointer-move sample.
type Tick struct {
	TargetID      int64   // row under the pointer
	RelativeY     float64 // 0.0 at the top of the row, 1.0 at the bottom
	ForcedSibling bool    // dragged page is already a direct child of the target
}

// State is the classifier state carried between ticks.
type State struct {
	Mode         Mode
	LastTargetID int64
	HasTarget    bool
}

// Next returns the state after observing t.
func (s State) Next(t Tick) State {
	if !s.HasTarget || s.LastTargetID != t.TargetID {
		s.Mode = Idle
	}
	s.LastTargetID = t.TargetID
	s.HasTarget = true

	if t.ForcedSibling {
		s.Mode = Sibling
		return s
	}

	switch s.Mode {
	case Idle:
		if t.RelativeY < Midline {
			s.Mode = Sibling
		} else {
			s.Mode = Child
		}
	case Sibling:
		if t.RelativeY > EnterChildAt {
			s.Mode = Child
		}
	case Child:
		if t.RelativeY < EnterSiblingAt {
			s.Mode = Sibling
		}
	}
	return s
}

// Drop returns the mode to act on when the pointer is released. ok is false
// when no tick classified a target, in which case there is nothing to do.
func (s State) Drop() (Mode, bool) {
	if !s.HasTarget || s.Mode == Idle {
		return Idle, false
	}
	return s.Mode, true
}

// Reset returns the zero state, used when a drag ends or is abandoned.
func (s State) Reset() State {
	return State{}
}

// ForcedSibling reports whether source is a direct child of target. There is
// no useful "reparent under its own parent" operation, so such hovers always
// classify as Sibling.
func ForcedSibling(source, target types.Page) bool {
	return source.ParentID != 0 && source.ParentID == target.ID
}

// Replay feeds a sequence of relative heights over a single target through
// the classifier, starting from the zero state.
func Replay(targetID int64, forced bool, ys ...float64) State {
	var s State
	for _, y := range ys {
		s = s.Next(Tick{TargetID: targetID, RelativeY: y, ForcedSibling: forced})
	}
	return s
}
