package sqlite

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// pagesTable implements types.Table for pages. IDs are decimal strings of
// the AUTOINCREMENT primary key. Fetch accepts path_prefix in addition to
// column filters.
type pagesTable struct {
	backend *Backend
}

func newPagesTable(b *Backend) *pagesTable {
	return &pagesTable{backend: b}
}

func parsePageID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", types.ErrInvalidID, id)
	}
	return n, nil
}

func asPage(data any) (*types.Page, error) {
	switch p := data.(type) {
	case *types.Page:
		if p == nil {
			return nil, types.ErrInvalidData
		}
		return p, nil
	case types.Page:
		return &p, nil
	}
	return nil, fmt.Errorf("%w: expected *types.Page, got %T", types.ErrInvalidData, data)
}

func scanPage(s rowScanner) (*types.Page, error) {
	var (
		p          types.Page
		parentPath sql.NullString
		parentID   sql.NullInt64
		createdAt  string
	)
	if err := s.Scan(&p.ID, &p.Path, &p.Title, &parentPath, &parentID, &p.Position, &createdAt); err != nil {
		return nil, err
	}
	p.ParentPath = parentPath.String
	p.ParentID = parentID.Int64
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// Get returns the *types.Page with the given ID.
func (t *pagesTable) Get(id string) (any, error) {
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	pid, err := parsePageID(id)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("SELECT %s FROM pages WHERE id = ?", joinColumns(pagesSpec.columns))
	page, err := scanPage(b.db.QueryRow(q, pid))
	if isNoRows(err) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Set inserts a page when id is empty and upserts it otherwise. The page's
// ID field is ignored in favor of id; on insert the generated ID is written
// back to data when data is a pointer.
func (t *pagesTable) Set(id string, data any) (string, error) {
	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return "", types.ErrStoreDetached
	}
	page, err := asPage(data)
	if err != nil {
		return "", err
	}
	if page.Path == "" {
		return "", fmt.Errorf("%w: page path is empty", types.ErrInvalidData)
	}
	if page.CreatedAt.IsZero() {
		page.CreatedAt = timeNow().UTC()
	}

	var parentPath, parentID any
	if page.ParentPath != "" {
		parentPath = page.ParentPath
	}
	if page.ParentID != 0 {
		parentID = page.ParentID
	}
	createdAt := formatTime(page.CreatedAt)

	var pid int64
	if id == "" {
		res, err := b.db.Exec(
			"INSERT INTO pages (path, title, parent_path, parent_id, position, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			page.Path, page.Title, parentPath, parentID, page.Position, createdAt,
		)
		if err != nil {
			return "", mapWriteError(err)
		}
		pid, err = res.LastInsertId()
		if err != nil {
			return "", err
		}
	} else {
		pid, err = parsePageID(id)
		if err != nil {
			return "", err
		}
		if _, err := b.db.Exec(upsertSQL(pagesSpec, pagesSpec.columns),
			pid, page.Path, page.Title, parentPath, parentID, page.Position, createdAt,
		); err != nil {
			return "", mapWriteError(err)
		}
	}
	page.ID = pid

	if err := b.persist(pagesSpec); err != nil {
		return "", err
	}
	if err := b.persist(sequencesSpec); err != nil {
		return "", err
	}
	return strconv.FormatInt(pid, 10), nil
}

// Delete removes the page with the given ID. Dependent records are not
// touched.
func (t *pagesTable) Delete(id string) error {
	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	pid, err := parsePageID(id)
	if err != nil {
		return err
	}
	return b.execDelete(pagesSpec, pid)
}

// Fetch returns []*types.Page as []any, ordered by parent path then position.
func (t *pagesTable) Fetch(filter types.Filter) ([]any, error) {
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	rows, err := b.query(pagesSpec, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, page)
	}
	return out, rows.Err()
}

// Update patches every page matching filter.
func (t *pagesTable) Update(filter types.Filter, patch types.Patch) (int, error) {
	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return 0, types.ErrStoreDetached
	}
	return b.execUpdate(pagesSpec, filter, patch)
}

// Purge deletes every page matching filter.
func (t *pagesTable) Purge(filter types.Filter) (int, error) {
	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return 0, types.ErrStoreDetached
	}
	return b.execPurge(pagesSpec, filter)
}
