package sqlite

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// columnKind describes how a column stores Go values.
type columnKind int

const (
	kindText     columnKind = iota // NOT NULL text
	kindNullText                   // text where "" is stored as NULL
	kindInt                        // NOT NULL integer
	kindNullInt                    // integer where 0 is stored as NULL
)

// filterPathPrefix matches a page path and every path below it.
const filterPathPrefix = "path_prefix"

// tableSpec ties a SQLite table to its JSONL file and column layout.
type tableSpec struct {
	name    string
	file    string
	key     string
	columns []string
	kinds   map[string]columnKind
	orderBy string
}

var pagesSpec = tableSpec{
	name:    types.TablePages,
	file:    pagesJSONL,
	key:     "id",
	columns: []string{"id", "path", "title", "parent_path", "parent_id", "position", "created_at"},
	kinds: map[string]columnKind{
		"id":          kindInt,
		"path":        kindText,
		"title":       kindText,
		"parent_path": kindNullText,
		"parent_id":   kindNullInt,
		"position":    kindInt,
		"created_at":  kindText,
	},
	orderBy: "COALESCE(parent_path, ''), position, id",
}

// recordSpec builds the spec shared by the dependent record tables, which
// differ only in names.
func recordSpec(name, file, key, colA, colB string) tableSpec {
	return tableSpec{
		name:    name,
		file:    file,
		key:     key,
		columns: []string{key, "page_path", colA, colB, "ordinal", "created_at"},
		kinds: map[string]columnKind{
			key:          kindText,
			"page_path":  kindText,
			colA:         kindText,
			colB:         kindText,
			"ordinal":    kindInt,
			"created_at": kindText,
		},
		orderBy: "page_path, ordinal, created_at, " + key,
	}
}

var (
	contentBlocksSpec  = recordSpec(types.TableContentBlocks, contentBlocksJSONL, "block_id", "kind", "body")
	layoutSegmentsSpec = recordSpec(types.TableLayoutSegments, layoutSegmentsJSONL, "segment_id", "region", "component")
	navEntriesSpec     = recordSpec(types.TableNavEntries, navEntriesJSONL, "entry_id", "menu", "label")
)

// sequencesSpec dumps SQLite's AUTOINCREMENT counters so page IDs are never
// reused after the database is rebuilt.
var sequencesSpec = tableSpec{
	name:    "sqlite_sequence",
	file:    sequencesJSONL,
	key:     "name",
	columns: []string{"name", "seq"},
	kinds: map[string]columnKind{
		"name": kindText,
		"seq":  kindInt,
	},
	orderBy: "name",
}

// sortedKeys returns map keys in a stable order so generated SQL is
// deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildWhere translates a filter into a WHERE clause (without the keyword)
// and its arguments. An empty filter yields "1=1".
func buildWhere(spec tableSpec, filter types.Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "1=1", nil, nil
	}

	var clauses []string
	var args []any
	for _, key := range sortedKeys(filter) {
		val := filter[key]

		if key == filterPathPrefix {
			if _, ok := spec.kinds["path"]; !ok {
				return "", nil, fmt.Errorf("%w: %s on %s", types.ErrInvalidFilter, key, spec.name)
			}
			prefix, ok := val.(string)
			if !ok || prefix == "" {
				return "", nil, fmt.Errorf("%w: %s must be a non-empty string", types.ErrInvalidFilter, key)
			}
			// substr instead of LIKE: '_' is legal in a segment and a LIKE wildcard.
			withSep := prefix + "/"
			clauses = append(clauses, "(path = ? OR substr(path, 1, ?) = ?)")
			args = append(args, prefix, len(withSep), withSep)
			continue
		}

		kind, ok := spec.kinds[key]
		if !ok {
			return "", nil, fmt.Errorf("%w: unknown column %s on %s", types.ErrInvalidFilter, key, spec.name)
		}
		norm, err := normalizeValue(kind, val)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidFilter, key, err)
		}
		if norm == nil {
			clauses = append(clauses, key+" IS NULL")
			continue
		}
		clauses = append(clauses, key+" = ?")
		args = append(args, norm)
	}
	return strings.Join(clauses, " AND "), args, nil
}

// buildSet translates a patch into a SET list (without the keyword) and its
// arguments. The key column cannot be patched.
func buildSet(spec tableSpec, patch types.Patch) (string, []any, error) {
	if len(patch) == 0 {
		return "", nil, fmt.Errorf("%w: empty patch", types.ErrInvalidPatch)
	}

	var sets []string
	var args []any
	for _, key := range sortedKeys(patch) {
		kind, ok := spec.kinds[key]
		if !ok || key == spec.key {
			return "", nil, fmt.Errorf("%w: column %s on %s", types.ErrInvalidPatch, key, spec.name)
		}
		norm, err := normalizeValue(kind, patch[key])
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidPatch, key, err)
		}
		if norm == nil && (kind == kindText || kind == kindInt) {
			return "", nil, fmt.Errorf("%w: %s cannot be null", types.ErrInvalidPatch, key)
		}
		sets = append(sets, key+" = ?")
		args = append(args, norm)
	}
	return strings.Join(sets, ", "), args, nil
}

// normalizeValue converts a Go value into what SQLite stores for the column
// kind. A nil result means NULL.
func normalizeValue(kind columnKind, val any) (any, error) {
	if val == nil {
		return nil, nil
	}
	switch kind {
	case kindText, kindNullText:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", val)
		}
		if kind == kindNullText && s == "" {
			return nil, nil
		}
		return s, nil
	case kindInt, kindNullInt:
		n, ok := toInt64(val)
		if !ok {
			return nil, fmt.Errorf("want integer, got %T", val)
		}
		if kind == kindNullInt && n == 0 {
			return nil, nil
		}
		return n, nil
	}
	return nil, fmt.Errorf("unknown column kind %d", kind)
}

// toInt64 accepts the integer shapes that reach the backend: Go ints and
// whole float64 values decoded from JSON.
func toInt64(val any) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}
