package tree

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pagetree/pkg/gesture"
	"github.com/mesh-intelligence/pagetree/pkg/sqlite"
	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// faultyStore wraps a store and fails the nth Update on a chosen table.
type faultyStore struct {
	types.Store
	mu      sync.Mutex
	table   string
	failAt  int
	updates int
}

var errInjected = errors.New("injected write failure")

func (s *faultyStore) GetTable(name string) (types.Table, error) {
	tbl, err := s.Store.GetTable(name)
	if err != nil || name != s.table {
		return tbl, err
	}
	return &faultyTable{Table: tbl, store: s}, nil
}

// disarm stops injecting failures.
func (s *faultyStore) disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt = 0
}

type faultyTable struct {
	types.Table
	store *faultyStore
}

func (t *faultyTable) Update(filter types.Filter, patch types.Patch) (int, error) {
	s := t.store
	s.mu.Lock()
	s.updates++
	fail := s.failAt > 0 && s.updates == s.failAt
	s.mu.Unlock()
	if fail {
		return 0, errInjected
	}
	return t.Table.Update(filter, patch)
}

func newStore(t *testing.T) types.Store {
	t.Helper()
	store := sqlite.NewBackend()
	require.NoError(t, store.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { store.Detach() })
	return store
}

// seed creates pages by path (parents first) and returns their ids.
func seed(t *testing.T, e *Engine, paths ...string) map[string]int64 {
	t.Helper()
	ctx := context.Background()
	ids := map[string]int64{}
	for _, path := range paths {
		parent := int64(0)
		name := path
		if i := lastSlash(path); i >= 0 {
			parent = ids[path[:i]]
			name = path[i+1:]
		}
		p, err := e.Create(ctx, parent, name, "")
		require.NoError(t, err, path)
		ids[path] = p.ID
	}
	return ids
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// attachRecords adds one record of each dependent kind to path.
func attachRecords(t *testing.T, store types.Store, path string) {
	t.Helper()
	records := map[string]any{
		types.TableContentBlocks:  &types.ContentBlock{PagePath: path, Kind: "text", Body: "body of " + path},
		types.TableLayoutSegments: &types.LayoutSegment{PagePath: path, Region: "main", Component: "article"},
		types.TableNavEntries:     &types.NavEntry{PagePath: path, Menu: "header", Label: path},
	}
	for name, rec := range records {
		tbl, err := store.GetTable(name)
		require.NoError(t, err)
		_, err = tbl.Set("", rec)
		require.NoError(t, err)
	}
}

func recordPaths(t *testing.T, store types.Store) map[string]int {
	t.Helper()
	out := map[string]int{}
	for _, name := range types.DependentTableNames {
		tbl, err := store.GetTable(name)
		require.NoError(t, err)
		rows, err := tbl.Fetch(nil)
		require.NoError(t, err)
		for _, r := range rows {
			out[r.(types.DependentRecord).OwnerPath()]++
		}
	}
	return out
}

func TestEngine_ReparentCascade(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	e := New(store, Options{})
	ids := seed(t, e, "shop", "shop/camera", "shop/camera/lenses", "shop/camera/lenses/wide", "shop/camera/bodies", "blog", "blog/news")
	for _, p := range []string{"shop/camera", "shop/camera/lenses", "shop/camera/lenses/wide", "shop/camera/bodies", "blog/news"} {
		attachRecords(t, store, p)
	}
	_, err := e.Reload(ctx)
	require.NoError(t, err)

	plan, err := e.Move(ctx, ids["shop/camera"], ids["blog"], gesture.Child)
	require.NoError(t, err)
	require.Equal(t, PlanReparent, plan.Kind)

	tr, err := e.Tree(ctx)
	require.NoError(t, err)
	assert.Empty(t, tr.Issues())

	want := map[string]string{
		"shop/camera":             "blog/camera",
		"shop/camera/lenses":      "blog/camera/lenses",
		"shop/camera/lenses/wide": "blog/camera/lenses/wide",
		"shop/camera/bodies":      "blog/camera/bodies",
	}
	for old, newPath := range want {
		p, ok := tr.ByID(ids[old])
		require.True(t, ok)
		assert.Equal(t, newPath, p.Path)
		assert.Equal(t, newPath[:lastSlash(newPath)], p.ParentPath)
		_, stale := tr.Lookup(old)
		assert.False(t, stale, old)
	}

	paths := recordPaths(t, store)
	for old, newPath := range want {
		assert.Zero(t, paths[old], "stale records at %s", old)
		assert.Equal(t, 3, paths[newPath], newPath)
	}
	assert.Equal(t, 3, paths["blog/news"])

	// blog/camera is inserted after blog/news's position, so news is untouched.
	news, _ := tr.ByID(ids["blog/news"])
	camera, _ := tr.ByID(ids["shop/camera"])
	assert.Equal(t, 1, news.Position)
	assert.Equal(t, 3, camera.Position)

	// No page is its own ancestor.
	for _, p := range tr.Pages() {
		seen := map[int64]bool{}
		for cur := p; cur.ParentID != 0; {
			require.False(t, seen[cur.ID], "cycle at %s", p.Path)
			seen[cur.ID] = true
			cur, _ = tr.ByID(cur.ParentID)
		}
	}
}

func TestEngine_ShiftsNewSiblingGroup(t *testing.T) {
	ctx := context.Background()
	e := New(newStore(t), Options{})
	ids := seed(t, e, "a", "a/one", "a/two", "a/three", "b", "b/x")

	_, err := e.Move(ctx, ids["b/x"], ids["a/one"], gesture.Sibling)
	require.NoError(t, err)

	tr, err := e.Tree(ctx)
	require.NoError(t, err)
	var order []string
	var positions []int
	for _, p := range tr.Children("a") {
		order = append(order, p.Path)
		positions = append(positions, p.Position)
	}
	assert.Equal(t, []string{"a/one", "a/x", "a/two", "a/three"}, order)
	assert.Equal(t, []int{1, 2, 3, 4}, positions)
	assert.Empty(t, tr.Issues())
}

func TestEngine_MoveBeforeReordersWithoutPathWrites(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	e := New(store, Options{})
	ids := seed(t, e, "p", "p/x", "p/y")
	attachRecords(t, store, "p/y")

	plan, err := e.MoveBefore(ctx, ids["p/y"], ids["p/x"])
	require.NoError(t, err)
	assert.Equal(t, PlanReorder, plan.Kind)

	tr, err := e.Tree(ctx)
	require.NoError(t, err)
	x, _ := tr.ByID(ids["p/x"])
	y, _ := tr.ByID(ids["p/y"])
	assert.Equal(t, 1, y.Position)
	assert.Equal(t, 2, x.Position)
	assert.Equal(t, "p/y", y.Path)
	assert.Equal(t, 3, recordPaths(t, store)["p/y"])
}

func TestEngine_SiblingDropWithinParentIsReorder(t *testing.T) {
	ctx := context.Background()
	e := New(newStore(t), Options{})
	ids := seed(t, e, "a", "a/b", "a/b/c", "a/d")

	state := gesture.Replay(ids["a/d"], false, 0.1, 0.3)
	plan, err := e.Drop(ctx, ids["a/b"], ids["a/d"], state)
	require.NoError(t, err)
	assert.Equal(t, PlanReorder, plan.Kind)

	tr, err := e.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/d", "a/b"}, []string{tr.Children("a")[0].Path, tr.Children("a")[1].Path})
	_, ok := tr.Lookup("a/b/c")
	assert.True(t, ok, "reorder never rewrites paths")
}

func TestEngine_SiblingDropOnOwnParentIsReorder(t *testing.T) {
	ctx := context.Background()

	t.Run("only child", func(t *testing.T) {
		store := newStore(t)
		e := New(store, Options{})
		ids := seed(t, e, "a", "a/b", "a/b/c")
		attachRecords(t, store, "a/b")
		attachRecords(t, store, "a/b/c")

		plan, err := e.Move(ctx, ids["a/b"], ids["a"], gesture.Sibling)
		require.NoError(t, err)
		assert.Equal(t, PlanReorder, plan.Kind, plan.String())

		tr, err := e.Tree(ctx)
		require.NoError(t, err)
		for _, path := range []string{"a", "a/b", "a/b/c"} {
			p, ok := tr.Lookup(path)
			require.True(t, ok, path)
			assert.Equal(t, ids[path], p.ID)
		}
		_, ok := tr.Lookup("b")
		assert.False(t, ok)
		counts := recordPaths(t, store)
		assert.Equal(t, 3, counts["a/b"])
		assert.Equal(t, 3, counts["a/b/c"])
		assert.Empty(t, tr.Issues())
	})

	t.Run("forced sibling moves to the top", func(t *testing.T) {
		e := New(newStore(t), Options{})
		ids := seed(t, e, "a", "a/d", "a/b", "a/b/c")

		tr, err := e.Tree(ctx)
		require.NoError(t, err)
		b, _ := tr.ByID(ids["a/b"])
		a, _ := tr.ByID(ids["a"])
		forced := gesture.ForcedSibling(b, a)
		require.True(t, forced)

		state := gesture.Replay(ids["a"], forced, 0.9, 0.95)
		plan, err := e.Drop(ctx, ids["a/b"], ids["a"], state)
		require.NoError(t, err)
		assert.Equal(t, PlanReorder, plan.Kind, plan.String())

		tr, err = e.Tree(ctx)
		require.NoError(t, err)
		var order []string
		for _, p := range tr.Children("a") {
			order = append(order, p.Path)
		}
		assert.Equal(t, []string{"a/b", "a/d"}, order)
		_, ok := tr.Lookup("a/b/c")
		assert.True(t, ok)
	})
}

func TestEngine_RejectedAndNoOpSkipReload(t *testing.T) {
	ctx := context.Background()
	e := New(newStore(t), Options{})
	ids := seed(t, e, "a", "a/b", "a/b/c")

	var reloads atomic.Int32
	cancel := e.Subscribe(func(*Tree) { reloads.Add(1) })
	defer cancel()

	for _, mode := range []gesture.Mode{gesture.Child, gesture.Sibling} {
		plan, err := e.Move(ctx, ids["a"], ids["a/b/c"], mode)
		assert.ErrorIs(t, err, types.ErrCycle)
		assert.Equal(t, PlanRejected, plan.Kind)
	}

	plan, err := e.Move(ctx, ids["a/b"], ids["a"], gesture.Child)
	require.NoError(t, err)
	assert.Equal(t, PlanNoOp, plan.Kind)

	plan, err = e.Drop(ctx, ids["a/b"], ids["a"], gesture.State{})
	require.NoError(t, err)
	assert.Equal(t, PlanNoOp, plan.Kind)

	assert.Zero(t, reloads.Load())

	_, err = e.Move(ctx, 999, ids["a"], gesture.Child)
	assert.ErrorIs(t, err, types.ErrPageNotFound)
}

func TestEngine_DepthLimit(t *testing.T) {
	ctx := context.Background()
	e := New(newStore(t), Options{})
	ids := seed(t, e, "l1", "l1/l2", "l1/l2/l3", "l1/l2/l3/l4", "l1/l2/l3/l4/l5", "l1/l2/l3/l4/l5/l6", "x")

	_, err := e.Move(ctx, ids["x"], ids["l1/l2/l3/l4/l5/l6"], gesture.Child)
	assert.ErrorIs(t, err, types.ErrDepthExceeded)

	plan, err := e.Move(ctx, ids["x"], ids["l1/l2/l3/l4/l5"], gesture.Child)
	require.NoError(t, err)
	assert.Equal(t, "l1/l2/l3/l4/l5/x", plan.NewPath)

	_, err = e.Create(ctx, ids["l1/l2/l3/l4/l5/l6"], "l7", "")
	assert.ErrorIs(t, err, types.ErrDepthExceeded)
}

func TestEngine_RetargetRecordsAfterFailedRetarget(t *testing.T) {
	ctx := context.Background()
	base := newStore(t)
	store := &faultyStore{Store: base, table: types.TableNavEntries}
	e := New(store, Options{})
	ids := seed(t, e, "solo", "dest")
	attachRecords(t, base, "solo")

	store.mu.Lock()
	store.failAt = 1
	store.mu.Unlock()

	_, err := e.Move(ctx, ids["solo"], ids["dest"], gesture.Child)
	require.ErrorIs(t, err, types.ErrStoreWrite)
	store.disarm()

	tr, err := e.Tree(ctx)
	require.NoError(t, err)
	var kinds []IssueKind
	for _, is := range tr.Issues() {
		kinds = append(kinds, is.Kind)
	}
	assert.Contains(t, kinds, IssueOrphanRecords)

	// Nothing is filed under a stale parent, so Repair has no work.
	n, err := e.Repair(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, recordPaths(t, base)["solo"])

	assert.ErrorIs(t, e.RetargetRecords(ctx, "solo", "nowhere"), types.ErrPageNotFound)
	assert.ErrorIs(t, e.RetargetRecords(ctx, "dest", "dest/solo"), types.ErrPathCollision)

	require.NoError(t, e.RetargetRecords(ctx, "/solo", "dest/solo/"))
	tr, err = e.Tree(ctx)
	require.NoError(t, err)
	assert.Empty(t, tr.Issues())
	counts := recordPaths(t, base)
	assert.Zero(t, counts["solo"])
	assert.Equal(t, 3, counts["dest/solo"])
}

func TestEngine_StoreFailureThenRepair(t *testing.T) {
	ctx := context.Background()
	base := newStore(t)
	store := &faultyStore{Store: base, table: types.TablePages}
	e := New(store, Options{})
	ids := seed(t, e, "old", "old/a", "old/a/deep", "old/b", "dest")
	for _, p := range []string{"old", "old/a", "old/a/deep", "old/b"} {
		attachRecords(t, base, p)
	}
	_, err := e.Reload(ctx)
	require.NoError(t, err)

	var reloads atomic.Int32
	cancel := e.Subscribe(func(*Tree) { reloads.Add(1) })
	defer cancel()

	// Update 1 writes the moved page, update 2 is the first child rewrite.
	store.mu.Lock()
	store.failAt = 2
	store.updates = 0
	store.mu.Unlock()

	_, err = e.Move(ctx, ids["old"], ids["dest"], gesture.Child)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStoreWrite)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, int32(1), reloads.Load(), "failure triggers a reload")

	tr, err := e.Tree(ctx)
	require.NoError(t, err)
	moved, _ := tr.ByID(ids["old"])
	assert.Equal(t, "dest/old", moved.Path)
	assert.NotEmpty(t, tr.Issues(), "half-done cascade is visible")

	store.disarm()
	n, err := e.Repair(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	tr, err = e.Tree(ctx)
	require.NoError(t, err)
	assert.Empty(t, tr.Issues())
	for _, p := range []string{"dest/old/a", "dest/old/a/deep", "dest/old/b"} {
		_, ok := tr.Lookup(p)
		assert.True(t, ok, p)
	}
	paths := recordPaths(t, base)
	for _, p := range []string{"old", "old/a", "old/a/deep", "old/b"} {
		assert.Zero(t, paths[p], p)
		assert.Equal(t, 3, paths["dest/"+p], p)
	}
}

func TestEngine_Rename(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	e := New(store, Options{})
	ids := seed(t, e, "docs", "docs/intro", "docs/intro/faq", "docs/setup")
	attachRecords(t, store, "docs/intro/faq")

	plan, err := e.Rename(ctx, ids["docs/intro"], "welcome")
	require.NoError(t, err)
	assert.Equal(t, PlanRename, plan.Kind)

	tr, err := e.Tree(ctx)
	require.NoError(t, err)
	p, _ := tr.ByID(ids["docs/intro"])
	assert.Equal(t, "docs/welcome", p.Path)
	assert.Equal(t, 1, p.Position)
	setup, _ := tr.ByID(ids["docs/setup"])
	assert.Equal(t, 2, setup.Position, "rename does not shift siblings")
	faq, _ := tr.ByID(ids["docs/intro/faq"])
	assert.Equal(t, "docs/welcome/faq", faq.Path)
	assert.Equal(t, 3, recordPaths(t, store)["docs/welcome/faq"])

	_, err = e.Rename(ctx, ids["docs/setup"], "welcome")
	assert.ErrorIs(t, err, types.ErrPathCollision)
}

// fakeLegacy records rewrite calls and rewrites files that mention the
// removed path.
type fakeLegacy struct {
	files   map[string]string
	calls   []string
	saved   map[string]string
	failing bool
}

func (f *fakeLegacy) Files() ([]string, error) {
	var out []string
	for name := range f.files {
		out = append(out, name)
	}
	return out, nil
}

func (f *fakeLegacy) Rewrite(file, path string) ([]byte, error) {
	f.calls = append(f.calls, file+":"+path)
	if f.failing {
		return nil, errInjected
	}
	if f.files[file] != path {
		return nil, nil
	}
	return []byte("removed " + path), nil
}

func (f *fakeLegacy) Save(file string, data []byte) error {
	f.saved[file] = string(data)
	return nil
}

func TestEngine_Delete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	legacy := &fakeLegacy{
		files: map[string]string{"main.yaml": "docs/old", "footer.yaml": "blog"},
		saved: map[string]string{},
	}
	e := New(store, Options{Legacy: legacy})
	ids := seed(t, e, "docs", "docs/old", "blog")
	attachRecords(t, store, "docs/old")
	attachRecords(t, store, "docs")

	err := e.Delete(ctx, ids["docs"])
	assert.ErrorIs(t, err, types.ErrHasChildren)
	assert.Empty(t, legacy.calls)

	require.NoError(t, e.Delete(ctx, ids["docs/old"]))

	tr, err := e.Tree(ctx)
	require.NoError(t, err)
	_, ok := tr.ByID(ids["docs/old"])
	assert.False(t, ok)
	assert.Zero(t, recordPaths(t, store)["docs/old"])
	assert.Equal(t, 3, recordPaths(t, store)["docs"])

	assert.ElementsMatch(t, []string{"main.yaml:docs/old", "footer.yaml:docs/old"}, legacy.calls)
	assert.Equal(t, map[string]string{"main.yaml": "removed docs/old"}, legacy.saved)

	err = e.Delete(ctx, ids["docs/old"])
	assert.ErrorIs(t, err, types.ErrPageNotFound)
}

func TestEngine_DeleteLegacyFailure(t *testing.T) {
	ctx := context.Background()
	legacy := &fakeLegacy{files: map[string]string{"main.yaml": "x"}, saved: map[string]string{}, failing: true}
	e := New(newStore(t), Options{Legacy: legacy})
	ids := seed(t, e, "x")

	err := e.Delete(ctx, ids["x"])
	assert.ErrorIs(t, err, types.ErrStoreWrite)
	assert.ErrorIs(t, err, errInjected)
}

func TestEngine_Create(t *testing.T) {
	ctx := context.Background()
	e := New(newStore(t), Options{})
	ids := seed(t, e, "docs", "docs/a", "docs/b")

	tr, err := e.Tree(ctx)
	require.NoError(t, err)
	b, _ := tr.ByID(ids["docs/b"])
	assert.Equal(t, 2, b.Position)
	assert.Equal(t, ids["docs"], b.ParentID)

	tests := []struct {
		name    string
		parent  int64
		segment string
		wantErr error
	}{
		{"bad segment", 0, "Has Space", types.ErrInvalidSegment},
		{"collision", ids["docs"], "a", types.ErrPathCollision},
		{"repeated segment", ids["docs"], "docs", types.ErrDuplicateSegment},
		{"unknown parent", 404, "x", types.ErrPageNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Create(ctx, tt.parent, tt.segment, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEngine_ReloadPicksUpExternalWrites(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	e := New(store, Options{})
	seed(t, e, "a")

	pages, err := store.GetTable(types.TablePages)
	require.NoError(t, err)
	_, err = pages.Set("", &types.Page{Path: "b", Title: "B", Position: 2})
	require.NoError(t, err)

	tr, err := e.Tree(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Len(), "snapshot is never patched in place")

	tr, err = e.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Len())
}

func TestIDString(t *testing.T) {
	assert.Equal(t, strconv.Itoa(42), idString(42))
	assert.Equal(t, fmt.Sprint(int64(7)), idString(7))
}
