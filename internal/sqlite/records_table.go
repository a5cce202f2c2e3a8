package sqlite

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// recordRow is the column layout shared by every dependent record table:
// key, page_path, two text columns, ordinal, created_at.
type recordRow struct {
	ID        string
	PagePath  string
	A, B      string
	Ordinal   int
	CreatedAt time.Time
}

// recordCodec converts between a record struct and its row.
type recordCodec struct {
	encode func(data any) (recordRow, bool)
	decode func(r recordRow) any
	setID  func(data any, id string)
}

var contentBlockCodec = recordCodec{
	encode: func(data any) (recordRow, bool) {
		var c *types.ContentBlock
		switch v := data.(type) {
		case *types.ContentBlock:
			c = v
		case types.ContentBlock:
			c = &v
		}
		if c == nil {
			return recordRow{}, false
		}
		return recordRow{c.BlockID, c.PagePath, c.Kind, c.Body, c.Ordinal, c.CreatedAt}, true
	},
	decode: func(r recordRow) any {
		return &types.ContentBlock{BlockID: r.ID, PagePath: r.PagePath, Kind: r.A, Body: r.B, Ordinal: r.Ordinal, CreatedAt: r.CreatedAt}
	},
	setID: func(data any, id string) {
		if c, ok := data.(*types.ContentBlock); ok {
			c.BlockID = id
		}
	},
}

var layoutSegmentCodec = recordCodec{
	encode: func(data any) (recordRow, bool) {
		var s *types.LayoutSegment
		switch v := data.(type) {
		case *types.LayoutSegment:
			s = v
		case types.LayoutSegment:
			s = &v
		}
		if s == nil {
			return recordRow{}, false
		}
		return recordRow{s.SegmentID, s.PagePath, s.Region, s.Component, s.Ordinal, s.CreatedAt}, true
	},
	decode: func(r recordRow) any {
		return &types.LayoutSegment{SegmentID: r.ID, PagePath: r.PagePath, Region: r.A, Component: r.B, Ordinal: r.Ordinal, CreatedAt: r.CreatedAt}
	},
	setID: func(data any, id string) {
		if s, ok := data.(*types.LayoutSegment); ok {
			s.SegmentID = id
		}
	},
}

var navEntryCodec = recordCodec{
	encode: func(data any) (recordRow, bool) {
		var n *types.NavEntry
		switch v := data.(type) {
		case *types.NavEntry:
			n = v
		case types.NavEntry:
			n = &v
		}
		if n == nil {
			return recordRow{}, false
		}
		return recordRow{n.EntryID, n.PagePath, n.Menu, n.Label, n.Ordinal, n.CreatedAt}, true
	},
	decode: func(r recordRow) any {
		return &types.NavEntry{EntryID: r.ID, PagePath: r.PagePath, Menu: r.A, Label: r.B, Ordinal: r.Ordinal, CreatedAt: r.CreatedAt}
	},
	setID: func(data any, id string) {
		if n, ok := data.(*types.NavEntry); ok {
			n.EntryID = id
		}
	},
}

// recordsTable implements types.Table for a collection of dependent records.
// IDs are UUID v7 strings generated on insert.
type recordsTable struct {
	backend *Backend
	spec    tableSpec
	codec   recordCodec
}

func newRecordsTable(b *Backend, spec tableSpec, codec recordCodec) *recordsTable {
	return &recordsTable{backend: b, spec: spec, codec: codec}
}

func (t *recordsTable) scan(s rowScanner) (any, error) {
	var (
		r         recordRow
		createdAt string
	)
	if err := s.Scan(&r.ID, &r.PagePath, &r.A, &r.B, &r.Ordinal, &createdAt); err != nil {
		return nil, err
	}
	r.CreatedAt = parseTime(createdAt)
	return t.codec.decode(r), nil
}

// Get returns the record with the given ID.
func (t *recordsTable) Get(id string) (any, error) {
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	if id == "" {
		return nil, types.ErrInvalidID
	}

	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", joinColumns(t.spec.columns), t.spec.name, t.spec.key)
	rec, err := t.scan(b.db.QueryRow(q, id))
	if isNoRows(err) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Set inserts the record under a fresh UUID when id is empty and upserts
// it otherwise.
func (t *recordsTable) Set(id string, data any) (string, error) {
	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return "", types.ErrStoreDetached
	}
	row, ok := t.codec.encode(data)
	if !ok {
		return "", fmt.Errorf("%w: %s cannot store %T", types.ErrInvalidData, t.spec.name, data)
	}
	if row.PagePath == "" {
		return "", fmt.Errorf("%w: page_path is empty", types.ErrInvalidData)
	}
	if id == "" {
		id = generateUUID()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = timeNow().UTC()
	}

	if _, err := b.db.Exec(upsertSQL(t.spec, t.spec.columns),
		id, row.PagePath, row.A, row.B, row.Ordinal, formatTime(row.CreatedAt),
	); err != nil {
		return "", mapWriteError(err)
	}
	t.codec.setID(data, id)

	if err := b.persist(t.spec); err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes the record with the given ID.
func (t *recordsTable) Delete(id string) error {
	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	if id == "" {
		return types.ErrInvalidID
	}
	return b.execDelete(t.spec, id)
}

// Fetch returns the matching records ordered by page_path then ordinal.
func (t *recordsTable) Fetch(filter types.Filter) ([]any, error) {
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	rows, err := b.query(t.spec, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		rec, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Update patches every record matching filter. Retargeting records from one
// page path to another is Update({"page_path": old}, {"page_path": new}).
func (t *recordsTable) Update(filter types.Filter, patch types.Patch) (int, error) {
	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return 0, types.ErrStoreDetached
	}
	return b.execUpdate(t.spec, filter, patch)
}

// Purge deletes every record matching filter.
func (t *recordsTable) Purge(filter types.Filter) (int, error) {
	b := t.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return 0, types.ErrStoreDetached
	}
	return b.execPurge(t.spec, filter)
}

var (
	_ types.Table = (*pagesTable)(nil)
	_ types.Table = (*recordsTable)(nil)
	_ types.Store = (*Backend)(nil)
)
