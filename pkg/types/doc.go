// Package types defines the Store and Table interfaces, the page and
// dependent-record entity types, and the standard error values shared by the
// pagetree engine, its storage backends and the CLI.
package types
