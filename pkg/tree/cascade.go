package tree

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/pagetree/pkg/slug"
	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// Executor applies validated plans to the store. It does not validate:
// callers pass plans produced by Validate, ValidateBefore or
// ValidateRename.
//
// A cascade is a sequence of independent writes with no transaction around
// it. On failure the remaining steps are skipped, the tree is reloaded so
// the operator sees the true state, and an error wrapping ErrStoreWrite is
// returned. Every path and record write is keyed by the old value, so
// re-running a cascade (see Engine.Repair) finishes the job.
type Executor struct {
	store     types.Store
	log       zerolog.Logger
	reconcile func(ctx context.Context) error
}

// NewExecutor creates an executor. reconcile is called after every applied
// plan and after every failure; it may be nil.
func NewExecutor(store types.Store, log zerolog.Logger, reconcile func(ctx context.Context) error) *Executor {
	if reconcile == nil {
		reconcile = func(context.Context) error { return nil }
	}
	return &Executor{store: store, log: log, reconcile: reconcile}
}

// Apply runs plan. No-op plans write nothing and skip the reload; rejected
// plans return their *MoveError.
func (x *Executor) Apply(ctx context.Context, plan Plan) error {
	switch plan.Kind {
	case PlanNoOp:
		x.log.Debug().Str("source", plan.Source.Path).Msg("move is a no-op")
		return nil
	case PlanRejected:
		return plan.Err
	case PlanReorder:
		return x.Reorder(ctx, plan)
	case PlanReparent, PlanRename:
		return x.Reparent(ctx, plan)
	}
	return fmt.Errorf("unknown plan kind %d", plan.Kind)
}

// Reparent writes the moved page, retargets its dependent records, rewrites
// the subtree below it, and opens a slot in the new sibling group.
func (x *Executor) Reparent(ctx context.Context, plan Plan) error {
	// Once the first write lands the cascade must run to the end.
	ctx = context.WithoutCancel(ctx)

	src := plan.Source
	oldPath := src.Path
	log := x.log.With().
		Int64("page_id", src.ID).
		Str("old_path", oldPath).
		Str("new_path", plan.NewPath).
		Str("kind", plan.Kind.String()).
		Logger()

	pages, err := x.store.GetTable(types.TablePages)
	if err != nil {
		return x.fail(ctx, log, "open pages", err)
	}

	n, err := pages.Update(
		types.Filter{"id": src.ID},
		types.Patch{
			"path":        plan.NewPath,
			"parent_path": plan.NewParentPath,
			"parent_id":   plan.NewParentID,
			"position":    plan.NewPosition,
		},
	)
	if err != nil {
		return x.fail(ctx, log, "write page", err)
	}
	if n == 0 {
		return x.fail(ctx, log, "write page", fmt.Errorf("%w: id %d", types.ErrPageNotFound, src.ID))
	}
	log.Debug().Msg("page written")

	if err := x.retarget(ctx, oldPath, plan.NewPath); err != nil {
		return x.fail(ctx, log, "retarget records", err)
	}

	if plan.PathChanged() {
		count, err := x.rewriteSubtree(ctx, pages, oldPath, plan.NewPath)
		if err != nil {
			return x.fail(ctx, log, "rewrite subtree", err)
		}
		log.Debug().Int("descendants", count).Msg("subtree rewritten")
	}

	if plan.ParentChanged() {
		if err := x.shiftPositions(pages, plan.NewParentPath, plan.NewPosition, src.ID); err != nil {
			return x.fail(ctx, log, "shift positions", err)
		}
	}

	log.Info().Msg("cascade complete")
	return x.reload(ctx, log)
}

// Reorder renumbers the source's sibling group 1..n in the planned order.
// Only positions that change are written.
func (x *Executor) Reorder(ctx context.Context, plan Plan) error {
	ctx = context.WithoutCancel(ctx)
	log := x.log.With().
		Int64("page_id", plan.Source.ID).
		Str("path", plan.Source.Path).
		Str("target", plan.Target.Path).
		Bool("before", plan.Before).
		Logger()

	pages, err := x.store.GetTable(types.TablePages)
	if err != nil {
		return x.fail(ctx, log, "open pages", err)
	}
	siblings, err := fetchPages(pages, types.Filter{"parent_path": plan.Source.ParentPath})
	if err != nil {
		return x.fail(ctx, log, "read siblings", err)
	}
	sortSiblings(siblings)

	updates := densePositions(reorderSequence(siblings, plan.Source.ID, plan.Target.ID, plan.Before))
	for _, u := range updates {
		if _, err := pages.Update(types.Filter{"id": u.ID}, types.Patch{"position": u.Position}); err != nil {
			return x.fail(ctx, log, "write position", err)
		}
	}

	log.Info().Int("writes", len(updates)).Msg("reorder complete")
	return x.reload(ctx, log)
}

// retarget points every dependent record at oldPath to newPath. The three
// collections are written concurrently and awaited together.
func (x *Executor) retarget(ctx context.Context, oldPath, newPath string) error {
	if oldPath == newPath {
		return nil
	}
	g, _ := errgroup.WithContext(ctx)
	for _, name := range types.DependentTableNames {
		g.Go(func() error {
			tbl, err := x.store.GetTable(name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			n, err := tbl.Update(types.Filter{"page_path": oldPath}, types.Patch{"page_path": newPath})
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			x.log.Debug().Str("table", name).Str("from", oldPath).Str("to", newPath).Int("records", n).Msg("records retargeted")
			return nil
		})
	}
	return g.Wait()
}

// rename is one pending subtree rewrite: children still filed under
// oldPath belong under newPath.
type rename struct {
	oldPath string
	newPath string
}

// rewriteSubtree moves every descendant of a renamed page to the new
// prefix, parents before children. The walk uses an explicit stack and
// refuses to go deeper than the depth limit, so corrupt data cannot make
// it loop. It returns the number of descendants rewritten.
func (x *Executor) rewriteSubtree(ctx context.Context, pages types.Table, oldPath, newPath string) (int, error) {
	stack := []rename{{oldPath, newPath}}
	visited := make(map[string]bool)
	count := 0

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[cur.oldPath] {
			continue
		}
		visited[cur.oldPath] = true
		if slug.Depth(cur.newPath) > slug.MaxDepth {
			return count, fmt.Errorf("%w: subtree walk reached %s", types.ErrDepthExceeded, cur.newPath)
		}

		children, err := fetchPages(pages, types.Filter{"parent_path": cur.oldPath})
		if err != nil {
			return count, err
		}
		for _, child := range children {
			childNew := slug.ChildPath(cur.newPath, slug.LastSegment(child.Path))
			if slug.Depth(childNew) > slug.MaxDepth {
				return count, fmt.Errorf("%w: %s", types.ErrDepthExceeded, childNew)
			}
			if _, err := pages.Update(
				types.Filter{"id": child.ID},
				types.Patch{"path": childNew, "parent_path": cur.newPath},
			); err != nil {
				return count, fmt.Errorf("rewrite %s: %w", child.Path, err)
			}
			if err := x.retarget(ctx, child.Path, childNew); err != nil {
				return count, fmt.Errorf("retarget %s: %w", child.Path, err)
			}
			count++
			stack = append(stack, rename{child.Path, childNew})
		}
	}
	return count, nil
}

// shiftPositions moves every page in the parentPath group at or after
// position up by one, highest first, leaving the moved page alone.
func (x *Executor) shiftPositions(pages types.Table, parentPath string, position int, movedID int64) error {
	group, err := fetchPages(pages, types.Filter{"parent_path": parentPath})
	if err != nil {
		return err
	}
	sortSiblings(group)
	for i := len(group) - 1; i >= 0; i-- {
		p := group[i]
		if p.ID == movedID || p.Position < position {
			continue
		}
		if _, err := pages.Update(types.Filter{"id": p.ID}, types.Patch{"position": p.Position + 1}); err != nil {
			return fmt.Errorf("shift %s: %w", p.Path, err)
		}
	}
	return nil
}

func (x *Executor) fail(ctx context.Context, log zerolog.Logger, step string, err error) error {
	log.Error().Err(err).Str("step", step).Msg("cascade aborted")
	if rerr := x.reconcile(ctx); rerr != nil {
		log.Error().Err(rerr).Msg("reload after failure")
	}
	return fmt.Errorf("%s: %w: %w", step, types.ErrStoreWrite, err)
}

func (x *Executor) reload(ctx context.Context, log zerolog.Logger) error {
	if err := x.reconcile(ctx); err != nil {
		log.Error().Err(err).Msg("reload after cascade")
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// fetchPages runs a filtered page fetch and unwraps the results.
func fetchPages(pages types.Table, filter types.Filter) ([]types.Page, error) {
	rows, err := pages.Fetch(filter)
	if err != nil {
		return nil, err
	}
	out := make([]types.Page, 0, len(rows))
	for _, r := range rows {
		p, ok := r.(*types.Page)
		if !ok {
			return nil, fmt.Errorf("%w: pages returned %T", types.ErrInvalidData, r)
		}
		out = append(out, *p)
	}
	return out, nil
}
