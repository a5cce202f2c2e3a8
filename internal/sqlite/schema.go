package sqlite

// Schema DDL for all tables. The database is rebuilt from the JSONL files on
// every Attach, so the schema carries no migrations.
const (
	createPages = `CREATE TABLE pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    parent_path TEXT,
    parent_id INTEGER,
    position INTEGER NOT NULL,
    created_at TEXT NOT NULL
);`

	createContentBlocks = `CREATE TABLE content_blocks (
    block_id TEXT PRIMARY KEY,
    page_path TEXT NOT NULL,
    kind TEXT NOT NULL,
    body TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    created_at TEXT NOT NULL
);`

	createLayoutSegments = `CREATE TABLE layout_segments (
    segment_id TEXT PRIMARY KEY,
    page_path TEXT NOT NULL,
    region TEXT NOT NULL,
    component TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    created_at TEXT NOT NULL
);`

	createNavEntries = `CREATE TABLE nav_entries (
    entry_id TEXT PRIMARY KEY,
    page_path TEXT NOT NULL,
    menu TEXT NOT NULL,
    label TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    created_at TEXT NOT NULL
);`
)

// Indexes on the columns the cascade filters by.
const (
	indexPagesParentPath        = `CREATE INDEX idx_pages_parent_path ON pages (parent_path);`
	indexContentBlocksPagePath  = `CREATE INDEX idx_content_blocks_page_path ON content_blocks (page_path);`
	indexLayoutSegmentsPagePath = `CREATE INDEX idx_layout_segments_page_path ON layout_segments (page_path);`
	indexNavEntriesPagePath     = `CREATE INDEX idx_nav_entries_page_path ON nav_entries (page_path);`
)

// schemaStatements lists DDL in execution order.
var schemaStatements = []string{
	createPages,
	createContentBlocks,
	createLayoutSegments,
	createNavEntries,
	indexPagesParentPath,
	indexContentBlocksPagePath,
	indexLayoutSegmentsPagePath,
	indexNavEntriesPagePath,
}

// JSONL file names in DataDir.
const (
	pagesJSONL          = "pages.jsonl"
	contentBlocksJSONL  = "content_blocks.jsonl"
	layoutSegmentsJSONL = "layout_segments.jsonl"
	navEntriesJSONL     = "nav_entries.jsonl"
	sequencesJSONL      = "sequences.jsonl"
)

// jsonlFiles lists every JSONL file created on first Attach.
var jsonlFiles = []string{
	pagesJSONL,
	contentBlocksJSONL,
	layoutSegmentsJSONL,
	navEntriesJSONL,
	sequencesJSONL,
}

// dbFileName is the SQLite query cache inside DataDir.
const dbFileName = "pagetree.db"
