package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// timeFormat is how created_at columns are stored.
const timeFormat = time.RFC3339Nano

// timeNow is replaced in tests.
var timeNow = time.Now

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = timeNow()
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// mapWriteError turns a UNIQUE violation into ErrDuplicatePath.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", types.ErrDuplicatePath, err)
	}
	return err
}

// query runs a filtered SELECT over spec's columns in the table's natural
// order. The caller must hold b.mu.
func (b *Backend) query(spec tableSpec, filter types.Filter) (*sql.Rows, error) {
	where, args, err := buildWhere(spec, filter)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		joinColumns(spec.columns), spec.name, where, spec.orderBy)
	return b.db.Query(q, args...)
}

// execUpdate applies patch to every row matching filter and persists the
// table when anything matched. The caller must hold b.mu write lock.
func (b *Backend) execUpdate(spec tableSpec, filter types.Filter, patch types.Patch) (int, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("%w: update requires a filter", types.ErrInvalidFilter)
	}
	where, whereArgs, err := buildWhere(spec, filter)
	if err != nil {
		return 0, err
	}
	set, setArgs, err := buildSet(spec, patch)
	if err != nil {
		return 0, err
	}

	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s", spec.name, set, where)
	res, err := b.db.Exec(q, append(setArgs, whereArgs...)...)
	if err != nil {
		return 0, mapWriteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := b.persist(spec); err != nil {
			return int(n), err
		}
	}
	return int(n), nil
}

// execPurge deletes every row matching a non-empty filter.
// The caller must hold b.mu write lock.
func (b *Backend) execPurge(spec tableSpec, filter types.Filter) (int, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("%w: purge requires a filter", types.ErrInvalidFilter)
	}
	where, args, err := buildWhere(spec, filter)
	if err != nil {
		return 0, err
	}

	res, err := b.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s", spec.name, where), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := b.persist(spec); err != nil {
			return int(n), err
		}
	}
	return int(n), nil
}

// execDelete deletes the row whose key equals id.
// The caller must hold b.mu write lock.
func (b *Backend) execDelete(spec tableSpec, id any) error {
	res, err := b.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", spec.name, spec.key), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return b.persist(spec)
}

// upsertSQL builds an INSERT that replaces every non-key column when the
// key already exists.
func upsertSQL(spec tableSpec, columns []string) string {
	placeholders := make([]string, len(columns))
	var updates []string
	for i, col := range columns {
		placeholders[i] = "?"
		if col != spec.key {
			updates = append(updates, col+" = excluded."+col)
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		spec.name, joinColumns(columns), joinColumns(placeholders), spec.key, strings.Join(updates, ", "))
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
