// This file restores AUTOINCREMENT counters on attach.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
)

// restoreSequences raises each sqlite_sequence counter to the value saved in
// sequences.jsonl. Loading pages with explicit IDs already moves the counter
// to the highest loaded ID; the saved value covers pages deleted since, so a
// deleted page's ID is never handed out again.
func restoreSequences(db *sql.DB, dataDir string) error {
	records, err := readJSONL(filepath.Join(dataDir, sequencesJSONL))
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning sequence transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		var obj struct {
			Name string  `json:"name"`
			Seq  float64 `json:"seq"`
		}
		if err := json.Unmarshal(rec, &obj); err != nil || obj.Name == "" {
			continue
		}
		seq, ok := toInt64(obj.Seq)
		if !ok {
			continue
		}

		res, err := tx.Exec("UPDATE sqlite_sequence SET seq = MAX(seq, ?) WHERE name = ?", seq, obj.Name)
		if err != nil {
			return fmt.Errorf("updating sequence %s: %w", obj.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		if _, err := tx.Exec("INSERT INTO sqlite_sequence (name, seq) VALUES (?, ?)", obj.Name, seq); err != nil {
			return fmt.Errorf("inserting sequence %s: %w", obj.Name, err)
		}
	}

	return tx.Commit()
}
