package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pagetree/pkg/gesture"
	"github.com/mesh-intelligence/pagetree/pkg/tree"
)

func newAddCmd() *cobra.Command {
	var parent, title string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a page",
		Long: `Add a page as the last child of --parent, or as the last root page.

Example:
  pagetree add docs --title Documentation
  pagetree add setup --parent docs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				ctx := cmd.Context()
				var parentID int64
				if parent != "" {
					t, err := s.engine.Tree(ctx)
					if err != nil {
						return sysError(err)
					}
					p, err := resolvePage(t, parent)
					if err != nil {
						return err
					}
					parentID = p.ID
				}
				page, err := s.engine.Create(ctx, parentID, args[0], title)
				if err != nil {
					return mutationError(err)
				}
				if flags.jsonMode {
					return printJSON(cmd, page)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (#%d)\n", page.Path, page.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent page path or id")
	cmd.Flags().StringVar(&title, "title", "", "display title (default: the name)")
	return cmd
}

func newMoveCmd() *cobra.Command {
	var (
		as      string
		before  bool
		pointer string
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "move <page> <target>",
		Short: "Move a page under or beside another page",
		Long: `Move a page relative to a target page.

  --as child     the page becomes the target's child (default)
  --as sibling   the page is placed right after the target
  --before       the page is placed right before the target
  --pointer      replay pointer heights over the target row (0 top, 1 bottom)
                 through the drag classifier, as a drag-and-drop would

Pages and targets are given by path or id.

Example:
  pagetree move shop/camera blog
  pagetree move blog/news blog/events --before
  pagetree move shop/camera shop --pointer 0.7,0.8`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if before && pointer != "" {
				return userError(fmt.Errorf("--before and --pointer are exclusive"))
			}
			mode, ok := gesture.ParseMode(as)
			if !ok || mode == gesture.Idle {
				return userError(fmt.Errorf("invalid --as %q (valid: child, sibling)", as))
			}
			var ys []float64
			if pointer != "" {
				var err error
				if ys, err = parsePointer(pointer); err != nil {
					return userError(err)
				}
			}

			return withSession(cmd, func(s *session) error {
				ctx := cmd.Context()
				t, err := s.engine.Tree(ctx)
				if err != nil {
					return sysError(err)
				}
				source, err := resolvePage(t, args[0])
				if err != nil {
					return err
				}
				target, err := resolvePage(t, args[1])
				if err != nil {
					return err
				}

				if ys != nil {
					state := gesture.Replay(target.ID, gesture.ForcedSibling(source, target), ys...)
					dropped, ok := state.Drop()
					if !ok {
						return userError(fmt.Errorf("pointer trace classified no drop"))
					}
					s.log.Debug().Str("mode", dropped.String()).Msg("pointer classified")
					mode = dropped
				}

				var plan tree.Plan
				switch {
				case dryRun && before:
					plan = tree.ValidateBefore(source, target, t)
				case dryRun:
					plan = tree.Validate(source, target, mode, t)
				case before:
					plan, err = s.engine.MoveBefore(ctx, source.ID, target.ID)
				default:
					plan, err = s.engine.Move(ctx, source.ID, target.ID, mode)
				}
				if err != nil {
					return mutationError(err)
				}
				if dryRun && plan.Err != nil {
					if perr := printPlan(cmd, plan); perr != nil {
						return perr
					}
					return userError(plan.Err)
				}
				return printPlan(cmd, plan)
			})
		},
	}
	cmd.Flags().StringVar(&as, "as", gesture.Child.String(), "placement: child or sibling")
	cmd.Flags().BoolVar(&before, "before", false, "place the page before the target")
	cmd.Flags().StringVar(&pointer, "pointer", "", "comma-separated pointer heights over the target")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without applying it")
	return cmd
}

// parsePointer parses "0.2,0.7" into relative heights.
func parsePointer(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	ys := make([]float64, 0, len(parts))
	for _, part := range parts {
		y, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid pointer height %q", part)
		}
		if y < 0 || y > 1 {
			return nil, fmt.Errorf("pointer height %v outside 0..1", y)
		}
		ys = append(ys, y)
	}
	return ys, nil
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <page> <new-name>",
		Short: "Give a page a new local name",
		Long: `Rename the last path segment of a page. The new path is carried to every
descendant and every record that refers to the old paths.

Example:
  pagetree rename docs/intro welcome`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				ctx := cmd.Context()
				t, err := s.engine.Tree(ctx)
				if err != nil {
					return sysError(err)
				}
				page, err := resolvePage(t, args[0])
				if err != nil {
					return err
				}
				plan, err := s.engine.Rename(ctx, page.ID, args[1])
				if err != nil {
					return mutationError(err)
				}
				return printPlan(cmd, plan)
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <page>",
		Short: "Delete a leaf page and its records",
		Long: `Delete a page that has no children, together with the records that refer
to it. Legacy navigation files in the nav directory are rewritten to drop it.

Example:
  pagetree delete blog/old-post`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				ctx := cmd.Context()
				t, err := s.engine.Tree(ctx)
				if err != nil {
					return sysError(err)
				}
				page, err := resolvePage(t, args[0])
				if err != nil {
					return err
				}
				if err := s.engine.Delete(ctx, page.ID); err != nil {
					return mutationError(err)
				}
				if flags.jsonMode {
					return printJSON(cmd, map[string]any{"deleted": page.Path, "id": page.ID})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (#%d)\n", page.Path, page.ID)
				return nil
			})
		},
	}
}
