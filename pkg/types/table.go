package types

import "errors"

// Filter is an equality predicate over a table's columns. Multiple keys are
// ANDed. A nil value matches NULL. Tables document any extra keys they
// accept (for example path_prefix on pages).
type Filter map[string]any

// Patch maps column names to their new values for Table.Update.
type Patch map[string]any

// Table provides uniform CRUD operations for a single collection.
// Get and Fetch return any; callers type-assert to the concrete entity struct.
type Table interface {
	// Get retrieves the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Get(id string) (any, error)

	// Set creates or updates an entity. When id is empty a new entity is
	// inserted and its generated ID is returned.
	Set(id string, data any) (string, error)

	// Delete removes the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Delete(id string) error

	// Fetch returns all entities matching the filter. An empty filter
	// returns every entity in the table.
	Fetch(filter Filter) ([]any, error)

	// Update applies patch to every entity matching the filter and returns
	// the number of entities matched. Writing a value equal to the current
	// one is harmless, so an Update can always be re-issued.
	Update(filter Filter, patch Patch) (int, error)

	// Purge deletes every entity matching the filter and returns the count.
	// An empty filter is rejected with ErrInvalidFilter.
	Purge(filter Filter) (int, error)
}

// Table operation errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidID     = errors.New("invalid entity ID")
	ErrInvalidData   = errors.New("invalid entity data")
	ErrInvalidFilter = errors.New("invalid filter value type")
	ErrInvalidPatch  = errors.New("invalid patch")
	ErrDuplicatePath = errors.New("path already exists")
)
