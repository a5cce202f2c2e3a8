package tree

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/pagetree/pkg/gesture"
	"github.com/mesh-intelligence/pagetree/pkg/slug"
	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// StaticRewriter removes a page from one legacy definition file and returns
// the new file content. It returns nil content when the file does not
// mention the page.
type StaticRewriter interface {
	Rewrite(legacyFilePath, pathToRemove string) ([]byte, error)
}

// LegacyNav is a directory of legacy navigation files kept in step with
// page deletions.
type LegacyNav interface {
	StaticRewriter
	Files() ([]string, error)
	Save(path string, data []byte) error
}

// Options configures an Engine. The zero value is usable.
type Options struct {
	Logger *zerolog.Logger
	Legacy LegacyNav
}

// Engine is the operator-facing entry point: it resolves page IDs against
// the current snapshot, validates moves, runs cascades, and keeps the
// snapshot fresh. It assumes a single writer.
type Engine struct {
	store  types.Store
	log    zerolog.Logger
	legacy LegacyNav
	rec    *Reconciler
	exec   *Executor
}

// New creates an engine over an attached store. Call Reload before the
// first operation or let the first operation do it.
func New(store types.Store, opts Options) *Engine {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	e := &Engine{
		store:  store,
		log:    log,
		legacy: opts.Legacy,
		rec:    NewReconciler(store, log),
	}
	e.exec = NewExecutor(store, log, func(ctx context.Context) error {
		_, err := e.rec.Reload(ctx)
		return err
	})
	return e
}

// Reload re-reads the tree from the store.
func (e *Engine) Reload(ctx context.Context) (*Tree, error) {
	return e.rec.Reload(ctx)
}

// Tree returns the current snapshot, loading it on first use.
func (e *Engine) Tree(ctx context.Context) (*Tree, error) {
	if t := e.rec.Current(); t != nil {
		return t, nil
	}
	return e.rec.Reload(ctx)
}

// Subscribe registers fn to receive every reloaded snapshot.
func (e *Engine) Subscribe(fn func(*Tree)) (cancel func()) {
	return e.rec.Subscribe(fn)
}

func (e *Engine) pair(ctx context.Context, sourceID, targetID int64) (*Tree, types.Page, types.Page, error) {
	t, err := e.Tree(ctx)
	if err != nil {
		return nil, types.Page{}, types.Page{}, err
	}
	source, ok := t.ByID(sourceID)
	if !ok {
		return nil, types.Page{}, types.Page{}, fmt.Errorf("%w: id %d", types.ErrPageNotFound, sourceID)
	}
	target, ok := t.ByID(targetID)
	if !ok {
		return nil, types.Page{}, types.Page{}, fmt.Errorf("%w: id %d", types.ErrPageNotFound, targetID)
	}
	return t, source, target, nil
}

// Plan validates a move without applying it.
func (e *Engine) Plan(ctx context.Context, sourceID, targetID int64, mode gesture.Mode) (Plan, error) {
	t, source, target, err := e.pair(ctx, sourceID, targetID)
	if err != nil {
		return Plan{}, err
	}
	return Validate(source, target, mode, t), nil
}

// Drop applies the move a finished drag gesture describes. An idle gesture
// does nothing.
func (e *Engine) Drop(ctx context.Context, sourceID, targetID int64, state gesture.State) (Plan, error) {
	mode, ok := state.Drop()
	if !ok {
		return Plan{Kind: PlanNoOp, Mode: gesture.Idle}, nil
	}
	return e.Move(ctx, sourceID, targetID, mode)
}

// Move validates and applies moving source relative to target. A rejected
// move returns the plan and its *MoveError without touching the store.
func (e *Engine) Move(ctx context.Context, sourceID, targetID int64, mode gesture.Mode) (Plan, error) {
	plan, err := e.Plan(ctx, sourceID, targetID, mode)
	if err != nil {
		return plan, err
	}
	return plan, e.exec.Apply(ctx, plan)
}

// MoveBefore places source immediately before target.
func (e *Engine) MoveBefore(ctx context.Context, sourceID, targetID int64) (Plan, error) {
	t, source, target, err := e.pair(ctx, sourceID, targetID)
	if err != nil {
		return Plan{}, err
	}
	plan := ValidateBefore(source, target, t)
	return plan, e.exec.Apply(ctx, plan)
}

// Rename gives a page a new local name and cascades the new path.
func (e *Engine) Rename(ctx context.Context, pageID int64, newName string) (Plan, error) {
	t, err := e.Tree(ctx)
	if err != nil {
		return Plan{}, err
	}
	page, ok := t.ByID(pageID)
	if !ok {
		return Plan{}, fmt.Errorf("%w: id %d", types.ErrPageNotFound, pageID)
	}
	plan := ValidateRename(page, newName, t)
	return plan, e.exec.Apply(ctx, plan)
}

// Create adds a page named name as the last child of parentID, or as the
// last root page when parentID is 0.
func (e *Engine) Create(ctx context.Context, parentID int64, name, title string) (types.Page, error) {
	if err := slug.ValidSegment(name); err != nil {
		return types.Page{}, err
	}
	t, err := e.Tree(ctx)
	if err != nil {
		return types.Page{}, err
	}

	page := types.Page{Title: title}
	if parentID != 0 {
		parent, ok := t.ByID(parentID)
		if !ok {
			return types.Page{}, fmt.Errorf("%w: id %d", types.ErrPageNotFound, parentID)
		}
		page.ParentPath = parent.Path
		page.ParentID = parent.ID
	}
	page.Path = slug.ChildPath(page.ParentPath, name)
	if page.Title == "" {
		page.Title = name
	}

	if d := slug.Depth(page.Path); d > slug.MaxDepth {
		return types.Page{}, fmt.Errorf("%w: %s is at depth %d", types.ErrDepthExceeded, page.Path, d)
	}
	if slug.HasAdjacentDuplicateSegment(page.Path) {
		return types.Page{}, fmt.Errorf("%w: %s", types.ErrDuplicateSegment, page.Path)
	}
	if _, taken := t.Lookup(page.Path); taken {
		return types.Page{}, fmt.Errorf("%w: %s", types.ErrPathCollision, page.Path)
	}

	page.Position = 1
	if kids := t.Children(page.ParentPath); len(kids) > 0 {
		page.Position = kids[len(kids)-1].Position + 1
	}

	pages, err := e.store.GetTable(types.TablePages)
	if err != nil {
		return types.Page{}, err
	}
	if _, err := pages.Set("", &page); err != nil {
		if errors.Is(err, types.ErrDuplicatePath) {
			return types.Page{}, fmt.Errorf("%w: %s", types.ErrPathCollision, page.Path)
		}
		return types.Page{}, fmt.Errorf("%w: %w", types.ErrStoreWrite, err)
	}
	e.log.Info().Int64("page_id", page.ID).Str("path", page.Path).Msg("page created")

	if _, err := e.rec.Reload(ctx); err != nil {
		return page, err
	}
	return page, nil
}

// Delete removes a leaf page and its dependent records, then strips the
// page from every legacy navigation file. Pages with children are refused
// with ErrHasChildren.
func (e *Engine) Delete(ctx context.Context, pageID int64) error {
	t, err := e.Tree(ctx)
	if err != nil {
		return err
	}
	page, ok := t.ByID(pageID)
	if !ok {
		return fmt.Errorf("%w: id %d", types.ErrPageNotFound, pageID)
	}
	if kids := t.Children(page.Path); len(kids) > 0 {
		return fmt.Errorf("%w: %s has %d", types.ErrHasChildren, page.Path, len(kids))
	}

	ctx = context.WithoutCancel(ctx)
	log := e.log.With().Int64("page_id", page.ID).Str("path", page.Path).Logger()

	g, _ := errgroup.WithContext(ctx)
	for _, name := range types.DependentTableNames {
		g.Go(func() error {
			tbl, err := e.store.GetTable(name)
			if err != nil {
				return err
			}
			n, err := tbl.Purge(types.Filter{"page_path": page.Path})
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			log.Debug().Str("table", name).Int("records", n).Msg("records purged")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return e.exec.fail(ctx, log, "purge records", err)
	}

	pages, err := e.store.GetTable(types.TablePages)
	if err != nil {
		return e.exec.fail(ctx, log, "open pages", err)
	}
	if err := pages.Delete(idString(page.ID)); err != nil {
		return e.exec.fail(ctx, log, "delete page", err)
	}

	if err := e.rewriteLegacy(log, page.Path); err != nil {
		return e.exec.fail(ctx, log, "rewrite legacy navigation", err)
	}

	log.Info().Msg("page deleted")
	_, err = e.rec.Reload(ctx)
	return err
}

// rewriteLegacy runs the static rewriter once per legacy file.
func (e *Engine) rewriteLegacy(log zerolog.Logger, path string) error {
	if e.legacy == nil {
		return nil
	}
	files, err := e.legacy.Files()
	if err != nil {
		return err
	}
	for _, f := range files {
		data, err := e.legacy.Rewrite(f, path)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		if data == nil {
			continue
		}
		if err := e.legacy.Save(f, data); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		log.Debug().Str("file", f).Msg("legacy navigation rewritten")
	}
	return nil
}

// Repair finishes cascades that stopped part way. Each page still filed
// under its parent's old path is renamed under the parent's current path,
// shallowest first, with the same idempotent writes a cascade uses. It
// returns the number of subtrees repaired.
//
// Repair finds stale pages through their parent, so it cannot see records
// left behind when a cascade failed while retargeting the moved page
// itself: the page is already at its new path and nothing records the old
// one. Audit reports those as orphan records; RetargetRecords moves them
// once the operator names the old and new path.
func (e *Engine) Repair(ctx context.Context) (int, error) {
	t, err := e.rec.Reload(ctx)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for limit := t.Len(); limit > 0; limit-- {
		plan, ok := nextRepair(t)
		if !ok {
			break
		}
		e.log.Info().Str("from", plan.Source.Path).Str("to", plan.NewPath).Msg("repairing stale subtree")
		if err := e.exec.Reparent(ctx, plan); err != nil {
			return repaired, err
		}
		repaired++
		if t = e.rec.Current(); t == nil {
			break
		}
	}
	return repaired, nil
}

// RetargetRecords points every dependent record at oldPath to newPath,
// which must belong to a page. It is the manual counterpart of Repair for
// orphan records.
func (e *Engine) RetargetRecords(ctx context.Context, oldPath, newPath string) error {
	oldPath, newPath = strings.Trim(oldPath, "/"), strings.Trim(newPath, "/")
	t, err := e.rec.Reload(ctx)
	if err != nil {
		return err
	}
	if _, ok := t.Lookup(newPath); !ok {
		return fmt.Errorf("%w: %s", types.ErrPageNotFound, newPath)
	}
	if p, ok := t.Lookup(oldPath); ok {
		return fmt.Errorf("%w: %s still belongs to page %d", types.ErrPathCollision, oldPath, p.ID)
	}

	log := e.log.With().Str("from", oldPath).Str("to", newPath).Logger()
	if err := e.exec.retarget(ctx, oldPath, newPath); err != nil {
		return e.exec.fail(ctx, log, "retarget records", err)
	}
	log.Info().Msg("orphan records retargeted")
	return e.exec.reload(ctx, log)
}

// nextRepair finds the shallowest page whose parent path is stale and
// plans moving it under the parent's current path.
func nextRepair(t *Tree) (Plan, bool) {
	var found *Plan
	best := -1
	for _, p := range t.pages {
		if p.ParentID == 0 {
			continue
		}
		parent, ok := t.ByID(p.ParentID)
		if !ok || parent.Path == p.ParentPath {
			continue
		}
		if d := slug.Depth(p.Path); best == -1 || d < best {
			best = d
			found = &Plan{
				Kind:          PlanReparent,
				Source:        p,
				Target:        parent,
				NewPath:       slug.ChildPath(parent.Path, slug.LastSegment(p.Path)),
				NewParentPath: parent.Path,
				NewParentID:   parent.ID,
				NewPosition:   p.Position,
			}
		}
	}
	if found == nil {
		return Plan{}, false
	}
	return *found, true
}

func idString(id int64) string {
	return fmt.Sprintf("%d", id)
}
