// This file implements JSONL loading for startup.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// loadOrder lists the tables filled from JSONL on Attach. Pages load first
// so a failed dependent load never leaves records without their pages.
var loadOrder = []tableSpec{
	pagesSpec,
	contentBlocksSpec,
	layoutSegmentsSpec,
	navEntriesSpec,
}

// loadAllJSONL reads each JSONL file from dataDir and inserts its records
// into the matching SQLite table. Loading is transactional: either every
// file loads or the database stays empty. Malformed lines and rows that
// violate a constraint are skipped. Unknown fields are ignored so files
// written by a newer version still load.
func loadAllJSONL(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, spec := range loadOrder {
		records, err := readJSONL(filepath.Join(dataDir, spec.file))
		if err != nil {
			return fmt.Errorf("reading %s: %w", spec.file, err)
		}
		if len(records) == 0 {
			continue
		}
		if err := insertRecords(tx, spec, records); err != nil {
			return fmt.Errorf("loading %s into %s: %w", spec.file, spec.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

// insertRecords inserts parsed JSONL records into spec's table. Only the
// columns named by spec are read from each object.
func insertRecords(tx *sql.Tx, spec tableSpec, records []json.RawMessage) error {
	placeholders := make([]string, len(spec.columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		spec.name,
		joinColumns(spec.columns),
		joinColumns(placeholders),
	)

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", spec.name, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			continue
		}

		args := make([]any, len(spec.columns))
		valid := true
		for i, col := range spec.columns {
			norm, err := normalizeValue(spec.kinds[col], obj[col])
			if err != nil {
				valid = false
				break
			}
			args[i] = norm
		}
		if !valid {
			continue
		}

		if _, err := stmt.Exec(args...); err != nil {
			continue
		}
	}

	return nil
}

// joinColumns joins column names with commas.
func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
