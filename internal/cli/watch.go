package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pagetree/internal/watch"
	"github.com/mesh-intelligence/pagetree/pkg/tree"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the tree whenever the data files change",
		Long: `Watch the data directory. When its JSONL files change, for example after a
git pull, the store is rebuilt from them and the tree is reloaded and
audited. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withSession(cmd, func(s *session) error {
				t, err := s.engine.Reload(ctx)
				if err != nil {
					return sysError(err)
				}
				w := cmd.OutOrStdout()
				printSummary(w, t)

				var mu sync.Mutex
				reload := func() {
					mu.Lock()
					defer mu.Unlock()
					if err := reattach(ctx, s); err != nil {
						s.log.Error().Err(err).Msg("reload after change")
						return
					}
					t, err := s.engine.Reload(ctx)
					if err != nil {
						s.log.Error().Err(err).Msg("reload after change")
						return
					}
					printSummary(w, t)
				}

				if err := watch.New(s.cfg.DataDir, debounce, s.log).Run(ctx, reload); err != nil {
					return sysError(err)
				}
				// Wait for a reload already in flight.
				mu.Lock()
				defer mu.Unlock()
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before reloading")
	return cmd
}

// reattach rebuilds the store's cache from the JSONL files.
func reattach(ctx context.Context, s *session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.Detach(); err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	if err := s.store.Attach(s.cfg); err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, t *tree.Tree) {
	line := fmt.Sprintf("%s  %d pages", t.LoadedAt().Format(time.TimeOnly), t.Len())
	if n := len(t.Issues()); n > 0 {
		line += "  " + styleWarn.Render(fmt.Sprintf("%d issues", n))
	}
	fmt.Fprintln(w, line)
}
