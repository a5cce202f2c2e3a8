package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// validTableNamesStr is a comma-separated list of valid table names for error output.
var validTableNamesStr = strings.Join(types.StandardTableNames, ", ")

// openTable looks up a table and maps an unknown name to a user error.
func openTable(s *session, name string) (types.Table, error) {
	table, err := s.store.GetTable(name)
	if errors.Is(err, types.ErrTableNotFound) {
		return nil, userError(fmt.Errorf("unknown table %q (valid: %s)", name, validTableNamesStr))
	}
	if err != nil {
		return nil, sysError(fmt.Errorf("get table: %w", err))
	}
	return table, nil
}

// parseRecordJSON unmarshals JSON data into the record type of the table.
func parseRecordJSON(tableName string, data []byte) (any, error) {
	var rec any
	switch tableName {
	case types.TablePages:
		rec = &types.Page{}
	case types.TableContentBlocks:
		rec = &types.ContentBlock{}
	case types.TableLayoutSegments:
		rec = &types.LayoutSegment{}
	case types.TableNavEntries:
		rec = &types.NavEntry{}
	default:
		return nil, fmt.Errorf("unknown table %q", tableName)
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// parseFilter turns key=value arguments into a filter. Values that parse
// as JSON are used as such, so numbers and null work.
func parseFilter(args []string) (types.Filter, error) {
	filter := types.Filter{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q (expected key=value)", arg)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		filter[key] = parsed
	}
	return filter, nil
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <id>",
		Short: "Get a record by ID",
		Long: `Get retrieves a record from the specified table by its ID.

Valid table names: ` + validTableNamesStr + `

Example:
  pagetree get pages 12
  pagetree get content_blocks 01912c3e-...`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				table, err := openTable(s, args[0])
				if err != nil {
					return err
				}
				rec, err := table.Get(args[1])
				if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrInvalidID) {
					return userError(fmt.Errorf("record %q not found in table %q", args[1], args[0]))
				}
				if err != nil {
					return sysError(fmt.Errorf("get record: %w", err))
				}
				return printJSON(cmd, rec)
			})
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <table> <id> <json>",
		Short: "Create or update a record in a table",
		Long: `Set writes a record as given, without the checks and cascades of add,
move and rename. An empty id creates a record. Run "pagetree audit"
after raw page edits.

Example:
  pagetree set content_blocks "" '{"page_path":"docs","kind":"text","body":"Hello"}'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableName, id, payload := args[0], args[1], args[2]
			return withSession(cmd, func(s *session) error {
				table, err := openTable(s, tableName)
				if err != nil {
					return err
				}
				rec, err := parseRecordJSON(tableName, []byte(payload))
				if err != nil {
					return userError(fmt.Errorf("parse JSON: %w", err))
				}
				savedID, err := table.Set(id, rec)
				if err != nil {
					return userError(fmt.Errorf("set record: %w", err))
				}
				saved, err := table.Get(savedID)
				if err != nil {
					return sysError(fmt.Errorf("get saved record: %w", err))
				}
				return printJSON(cmd, saved)
			})
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <table> [filter...]",
		Short: "List records with optional filter",
		Long: `List queries records from the specified table with optional filters.

Filters are specified as key=value pairs. Multiple filters are ANDed together.
An empty filter returns all records in the table. On pages, path_prefix=<path>
selects a subtree.

Valid table names: ` + validTableNamesStr + `

Example:
  pagetree list pages
  pagetree list pages path_prefix=docs
  pagetree list nav_entries menu=header`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(args[1:])
			if err != nil {
				return userError(err)
			}
			return withSession(cmd, func(s *session) error {
				table, err := openTable(s, args[0])
				if err != nil {
					return err
				}
				recs, err := table.Fetch(filter)
				if errors.Is(err, types.ErrInvalidFilter) {
					return userError(err)
				}
				if err != nil {
					return sysError(fmt.Errorf("fetch records: %w", err))
				}
				if recs == nil {
					recs = []any{}
				}
				return printJSON(cmd, recs)
			})
		},
	}
}
