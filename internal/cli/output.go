package cli

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pagetree/pkg/gesture"
	"github.com/mesh-intelligence/pagetree/pkg/tree"
)

// Styles for human-readable output.
var (
	mutedColor = lipgloss.Color("#6B7280")
	warnColor  = lipgloss.Color("#F59E0B")

	styleRoot    = lipgloss.NewStyle().Bold(true)
	styleSegment = lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))
	styleMuted   = lipgloss.NewStyle().Foreground(mutedColor)
	styleWarn    = lipgloss.NewStyle().Foreground(warnColor).Bold(true)
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
)

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal JSON: %w", err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// planView is the JSON form of a plan.
type planView struct {
	Kind        string `json:"kind"`
	Mode        string `json:"mode,omitempty"`
	Source      string `json:"source"`
	Target      string `json:"target,omitempty"`
	NewPath     string `json:"new_path"`
	NewParent   string `json:"new_parent_path"`
	NewPosition int    `json:"new_position"`
	Before      bool   `json:"before,omitempty"`
	Error       string `json:"error,omitempty"`
}

func viewPlan(p tree.Plan) planView {
	v := planView{
		Kind:        p.Kind.String(),
		Source:      p.Source.Path,
		Target:      p.Target.Path,
		NewPath:     p.NewPath,
		NewParent:   p.NewParentPath,
		NewPosition: p.NewPosition,
		Before:      p.Before,
	}
	if p.Mode != gesture.Idle {
		v.Mode = p.Mode.String()
	}
	if p.Err != nil {
		v.Error = p.Err.Error()
	}
	return v
}

func printPlan(cmd *cobra.Command, p tree.Plan) error {
	if flags.jsonMode {
		return printJSON(cmd, viewPlan(p))
	}
	fmt.Fprintln(cmd.OutOrStdout(), p.String())
	return nil
}
