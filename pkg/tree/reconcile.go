package tree

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// Reconciler re-reads the whole tree from the store and publishes the
// result. A reload is the only way the engine learns about store state; it
// never patches a snapshot in memory.
type Reconciler struct {
	store types.Store
	log   zerolog.Logger

	mu      sync.RWMutex
	current *Tree
	nextSub int
	subs    map[int]func(*Tree)
}

func NewReconciler(store types.Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		store: store,
		log:   log,
		subs:  make(map[int]func(*Tree)),
	}
}

// Reload fetches every page and dependent record, builds a new snapshot,
// audits it, and hands it to the subscribers.
func (r *Reconciler) Reload(ctx context.Context) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pagesTbl, err := r.store.GetTable(types.TablePages)
	if err != nil {
		return nil, err
	}
	pages, err := fetchPages(pagesTbl, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch pages: %w", err)
	}

	records, err := r.countRecords()
	if err != nil {
		return nil, err
	}

	t := NewTree(pages, records)
	for _, issue := range t.Issues() {
		r.log.Warn().
			Str("kind", string(issue.Kind)).
			Str("path", issue.Path).
			Int64("page_id", issue.PageID).
			Msg(issue.Detail)
	}
	r.log.Debug().Int("pages", t.Len()).Int("issues", len(t.issues)).Msg("tree reloaded")

	r.mu.Lock()
	r.current = t
	subs := make([]func(*Tree), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
	return t, nil
}

// Current returns the last published snapshot, or nil before the first
// Reload.
func (r *Reconciler) Current() *Tree {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Subscribe registers fn to receive every new snapshot. The returned
// function unregisters it.
func (r *Reconciler) Subscribe(fn func(*Tree)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

func (r *Reconciler) countRecords() (map[string]RecordCounts, error) {
	counts := make(map[string]RecordCounts)
	for _, name := range types.DependentTableNames {
		tbl, err := r.store.GetTable(name)
		if err != nil {
			return nil, err
		}
		rows, err := tbl.Fetch(nil)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", name, err)
		}
		for _, row := range rows {
			rec, ok := row.(types.DependentRecord)
			if !ok {
				continue
			}
			c := counts[rec.OwnerPath()]
			switch name {
			case types.TableContentBlocks:
				c.ContentBlocks++
			case types.TableLayoutSegments:
				c.LayoutSegments++
			case types.TableNavEntries:
				c.NavEntries++
			}
			counts[rec.OwnerPath()] = c
		}
	}
	return counts, nil
}
