package types

// Standard table names for Store.GetTable.
const (
	TablePages          = "pages"
	TableContentBlocks  = "content_blocks"
	TableLayoutSegments = "layout_segments"
	TableNavEntries     = "nav_entries"
)

// StandardTableNames lists all standard table names for enumeration.
var StandardTableNames = []string{
	TablePages,
	TableContentBlocks,
	TableLayoutSegments,
	TableNavEntries,
}

// DependentTableNames lists the collections keyed by page path rather than
// page id. A path rename must be propagated to each of them.
var DependentTableNames = []string{
	TableContentBlocks,
	TableLayoutSegments,
	TableNavEntries,
}
