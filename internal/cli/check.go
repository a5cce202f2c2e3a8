package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check the tree for integrity problems",
		Long: `Reload the tree and list integrity problems: duplicate or mismatched paths,
missing or stale parents, depth violations, repeated segments, cycles,
position collisions and records that refer to no page.

Exits with code 1 when problems are found. Stale parents left by an
interrupted move are fixed by "pagetree repair".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				t, err := s.engine.Reload(cmd.Context())
				if err != nil {
					return sysError(err)
				}
				issues := t.Issues()
				if flags.jsonMode {
					if err := printJSON(cmd, issues); err != nil {
						return err
					}
				} else {
					w := cmd.OutOrStdout()
					for _, issue := range issues {
						fmt.Fprintf(w, "%s %s  %s\n", styleWarn.Render(string(issue.Kind)), issue.Path, styleMuted.Render(issue.Detail))
					}
					if len(issues) == 0 {
						fmt.Fprintf(w, "%s %d pages\n", styleOK.Render("ok"), t.Len())
					}
				}
				if len(issues) > 0 {
					return userError(fmt.Errorf("%d integrity issues", len(issues)))
				}
				return nil
			})
		},
	}
}

func newRepairCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Finish interrupted moves",
		Long: `Move every page still filed under its parent's old path to the parent's
current path, with its subtree and records. Safe to run repeatedly.

Records left at a moved page's old path (reported by audit as
orphan_records) are moved with --records-from and --records-to.

Example:
  pagetree repair
  pagetree repair --records-from shop/camera --records-to blog/camera`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (from == "") != (to == "") {
				return userError(fmt.Errorf("--records-from and --records-to go together"))
			}
			return withSession(cmd, func(s *session) error {
				if from != "" {
					if err := s.engine.RetargetRecords(cmd.Context(), from, to); err != nil {
						return mutationError(err)
					}
					if flags.jsonMode {
						return printJSON(cmd, map[string]string{"from": from, "to": to})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "records moved from %s to %s\n", from, to)
					return nil
				}

				n, err := s.engine.Repair(cmd.Context())
				if err != nil {
					return mutationError(err)
				}
				if flags.jsonMode {
					return printJSON(cmd, map[string]int{"repaired": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "repaired %d subtrees\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "records-from", "", "old page path the orphan records point at")
	cmd.Flags().StringVar(&to, "records-to", "", "page path to move them to")
	return cmd
}
