package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pagetree/pkg/slug"
	"github.com/mesh-intelligence/pagetree/pkg/tree"
	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// treeRow is one page of the JSON tree listing.
type treeRow struct {
	types.Page
	Depth   int `json:"depth"`
	Records int `json:"records"`
}

func newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [page]",
		Short: "Display the page tree",
		Long: `Display the page tree, or the subtree under a page given by path or id.

Example:
  pagetree tree
  pagetree tree docs`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				t, err := s.engine.Tree(cmd.Context())
				if err != nil {
					return sysError(err)
				}
				var root *types.Page
				if len(args) == 1 {
					p, err := resolvePage(t, args[0])
					if err != nil {
						return err
					}
					root = &p
				}

				rows := treeRows(t, root)
				if flags.jsonMode {
					return printJSON(cmd, rows)
				}
				renderTree(cmd, t, rows)
				return nil
			})
		},
	}
}

// treeRows lists the pages to show in walk order. With a root only the
// root and its descendants are listed, at depths relative to the root.
func treeRows(t *tree.Tree, root *types.Page) []treeRow {
	rows := []treeRow{}
	base := -1
	t.Walk(func(p types.Page, depth int) bool {
		if root != nil {
			if !slug.IsAncestorOf(root.Path, p.Path) {
				// Keep descending only towards the root.
				return slug.IsAncestorOf(p.Path, root.Path)
			}
			if base < 0 {
				base = depth
			}
			depth -= base
		}
		rows = append(rows, treeRow{Page: p, Depth: depth, Records: t.Records(p.Path).Total()})
		return true
	})
	return rows
}

func renderTree(cmd *cobra.Command, t *tree.Tree, rows []treeRow) {
	w := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(w, styleMuted.Render("(empty)"))
		return
	}
	for _, r := range rows {
		name := styleSegment.Render(slug.LastSegment(r.Path))
		if r.Depth == 0 {
			name = styleRoot.Render(r.Path)
		}
		line := strings.Repeat("  ", r.Depth) + name
		if r.Title != "" && r.Title != slug.LastSegment(r.Path) {
			line += "  " + r.Title
		}
		meta := fmt.Sprintf("#%d", r.ID)
		if r.Records > 0 {
			meta += fmt.Sprintf(" · %d records", r.Records)
		}
		fmt.Fprintln(w, line+"  "+styleMuted.Render(meta))
	}
	if n := len(t.Issues()); n > 0 {
		fmt.Fprintln(w, styleWarn.Render(fmt.Sprintf("%d integrity issues; run pagetree audit", n)))
	}
}
