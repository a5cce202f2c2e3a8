//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// pkgStats counts Go lines in one package directory.
type pkgStats struct {
	Package string `json:"package"`
	Prod    int    `json:"go_loc_prod"`
	Test    int    `json:"go_loc_test"`
}

// Stats prints one JSON line per package with its Go line counts, then a
// totals line. When PAGETREE_DATA_DIR is set the totals also carry the
// number of records in each JSONL file of that store.
func Stats() error {
	byPkg := map[string]*pkgStats{}

	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != "." && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
				name == "vendor" || name == binaryDir || name == "magefiles") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return err
		}
		dir := filepath.ToSlash(filepath.Dir(path))
		st, ok := byPkg[dir]
		if !ok {
			st = &pkgStats{Package: dir}
			byPkg[dir] = st
		}
		if strings.HasSuffix(path, "_test.go") {
			st.Test += n
		} else {
			st.Prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(byPkg))
	for dir := range byPkg {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	enc := json.NewEncoder(os.Stdout)
	totals := map[string]int{}
	for _, dir := range dirs {
		st := byPkg[dir]
		totals["go_loc_prod"] += st.Prod
		totals["go_loc_test"] += st.Test
		if err := enc.Encode(st); err != nil {
			return err
		}
	}
	totals["go_loc"] = totals["go_loc_prod"] + totals["go_loc_test"]

	if dataDir := os.Getenv("PAGETREE_DATA_DIR"); dataDir != "" {
		if err := addStoreCounts(totals, dataDir); err != nil {
			return err
		}
	}
	return enc.Encode(totals)
}

// addStoreCounts adds "records_<table>" entries for each JSONL file in
// dataDir.
func addStoreCounts(totals map[string]int, dataDir string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl"))
	if err != nil {
		return err
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		table := strings.TrimSuffix(filepath.Base(f), ".jsonl")
		totals["records_"+table] = bytes.Count(data, []byte("\n"))
	}
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
