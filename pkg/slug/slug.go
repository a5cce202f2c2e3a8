// Package slug holds the pure path functions of the page tree. A path is a
// sequence of lowercase segments joined by "/"; a page's path is its parent's
// path plus its own local name.
package slug

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// Separator joins path segments.
const Separator = "/"

// MaxDepth bounds the number of segments in any page path.
const MaxDepth = 6

// ChildPath returns the path of a page named localName under parentPath.
// An empty parentPath denotes the root level.
func ChildPath(parentPath, localName string) string {
	if parentPath == "" {
		return localName
	}
	return parentPath + Separator + localName
}

// LastSegment returns the local name of the page at path.
func LastSegment(path string) string {
	if i := strings.LastIndex(path, Separator); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Parent returns the parent path, or "" for a root path.
func Parent(path string) string {
	if i := strings.LastIndex(path, Separator); i >= 0 {
		return path[:i]
	}
	return ""
}

// Depth returns the number of segments in path. The empty path has depth 0.
func Depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, Separator) + 1
}

// Segments splits path into its segments.
func Segments(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

// IsAncestorOf reports whether path equals candidate or extends it by one or
// more whole segments. "shop" is an ancestor of "shop/camera" but not of
// "shopping".
func IsAncestorOf(candidate, path string) bool {
	if candidate == "" {
		return false
	}
	if path == candidate {
		return true
	}
	return strings.HasPrefix(path, candidate+Separator)
}

// HasAdjacentDuplicateSegment reports whether two neighbouring segments of
// path are equal, as in "docs/docs/intro".
func HasAdjacentDuplicateSegment(path string) bool {
	segs := Segments(path)
	for i := 1; i < len(segs); i++ {
		if segs[i] == segs[i-1] {
			return true
		}
	}
	return false
}

// Rebase replaces the oldPrefix ancestor of path with newPrefix. Paths that
// are not under oldPrefix are returned unchanged.
func Rebase(path, oldPrefix, newPrefix string) string {
	if !IsAncestorOf(oldPrefix, path) {
		return path
	}
	return newPrefix + path[len(oldPrefix):]
}

// ValidSegment checks that name can be used as a local page name: non-empty,
// lowercase ASCII letters, digits, '-' or '_'.
func ValidSegment(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", types.ErrInvalidSegment)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: %q contains %q", types.ErrInvalidSegment, name, r)
		}
	}
	return nil
}
