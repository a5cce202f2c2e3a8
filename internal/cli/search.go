package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// searchHit is the JSON form of a search result.
type searchHit struct {
	ID    int64  `json:"id"`
	Path  string `json:"path"`
	Title string `json:"title"`
	Score int    `json:"score"`
}

func newSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Fuzzy-search pages by path and title",
		Long: `Search pages by path and title. Results are ranked by fuzzy match.

Example:
  pagetree search cam
  pagetree search "getting started" --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				t, err := s.engine.Tree(cmd.Context())
				if err != nil {
					return sysError(err)
				}
				results := t.Search(args[0], limit)

				if flags.jsonMode {
					hits := make([]searchHit, len(results))
					for i, r := range results {
						hits[i] = searchHit{ID: r.Page.ID, Path: r.Page.Path, Title: r.Page.Title, Score: r.Score}
					}
					return printJSON(cmd, hits)
				}

				w := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintln(w, "No results found")
					return nil
				}
				for _, r := range results {
					fmt.Fprintf(w, "%s  %s\n", highlight(r.Haystack, r.MatchedIndexes), styleMuted.Render(fmt.Sprintf("#%d", r.Page.ID)))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results (0 for all)")
	return cmd
}

// highlight renders the matched bytes of s in the segment style.
func highlight(s string, matched []int) string {
	hit := make(map[int]bool, len(matched))
	for _, i := range matched {
		hit[i] = true
	}
	var b strings.Builder
	for i, r := range s {
		if hit[i] {
			b.WriteString(styleSegment.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
