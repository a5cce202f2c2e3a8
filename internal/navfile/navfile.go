// Package navfile keeps legacy YAML navigation files in step with page
// deletions.
//
// A navigation file holds a list of items, either at the top level or
// under one key per menu:
//
//	header:
//	  - path: docs
//	    label: Docs
//	    children:
//	      - path: docs/setup
//	        label: Setup
//
// Files are edited through the yaml.v3 node API so comments and the order
// of the surviving items are kept.
package navfile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/pagetree/pkg/slug"
	"github.com/mesh-intelligence/pagetree/pkg/tree"
)

const keyPath = "path"

// Dir is a directory of legacy navigation files.
type Dir struct {
	root string
}

var _ tree.LegacyNav = (*Dir)(nil)

// New returns a Dir rooted at root. The directory does not have to exist.
func New(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the directory path.
func (d *Dir) Root() string {
	return d.root
}

// Files lists the *.yaml and *.yml files directly inside the directory,
// sorted by name. A missing directory has no files.
func (d *Dir) Files() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading nav dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(d.root, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Rewrite returns the content of file with every item for pathToRemove, or
// for a page below it, removed. It returns nil when the file does not
// mention the page.
func (d *Dir) Rewrite(file, pathToRemove string) ([]byte, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	if prune(&doc, pathToRemove) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", file, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", file, err)
	}
	return buf.Bytes(), nil
}

// Save replaces path with data atomically.
func (d *Dir) Save(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".nav-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// prune removes matching items below n and returns how many it removed.
func prune(n *yaml.Node, target string) int {
	removed := 0
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			removed += prune(c, target)
		}
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			removed += prune(n.Content[i], target)
		}
	case yaml.SequenceNode:
		kept := n.Content[:0]
		for _, item := range n.Content {
			if p, ok := itemPath(item); ok && slug.IsAncestorOf(target, p) {
				removed++
				continue
			}
			removed += prune(item, target)
			kept = append(kept, item)
		}
		n.Content = kept
	}
	return removed
}

// itemPath returns the path of a navigation item node.
func itemPath(n *yaml.Node) (string, bool) {
	if n.Kind != yaml.MappingNode {
		return "", false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Value == keyPath && v.Kind == yaml.ScalarNode {
			return strings.Trim(v.Value, "/"), true
		}
	}
	return "", false
}
