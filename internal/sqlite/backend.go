// Package sqlite implements the SQLite storage backend for the page tree.
// SQLite is a query cache rebuilt on every Attach; the JSONL files in
// DataDir are the source of truth.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/pagetree/pkg/types"
)

// Backend implements types.Store using SQLite as the query engine and JSONL
// files as the source of truth.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	tables   map[string]types.Table

	syncStrategy  string         // immediate, on_close, batch
	batchSize     int            // writes queued before a batch flush
	batchInterval time.Duration  // time between batch flushes
	pendingWrites []pendingWrite // JSONL persists not yet run, one per table
	queuedOps     int            // persist requests since the last flush
	batchTimer    *time.Timer
	batchMu       sync.Mutex // protects pendingWrites and batchTimer
}

// pendingWrite is a deferred JSONL persist, used by the on_close and batch
// sync strategies.
type pendingWrite struct {
	tableName string
	persist   func() error
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{
		tables: make(map[string]types.Table),
	}
}

// GetTable returns the Table for the given name.
// Returns ErrStoreDetached if the backend is not attached and
// ErrTableNotFound if the name is not recognized.
func (b *Backend) GetTable(name string) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	table, ok := b.tables[name]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return table, nil
}

// Attach initializes the backend with the given configuration. It creates
// DataDir if needed, builds a fresh SQLite schema, loads every JSONL file
// into it, and creates the table accessors.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// The database is a cache; start from an empty file every time.
	dbPath := filepath.Join(dataDir, dbFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	// One connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	if err := initJSONLFiles(dataDir); err != nil {
		db.Close()
		return err
	}

	if err := loadAllJSONL(db, dataDir); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	if err := restoreSequences(db, dataDir); err != nil {
		db.Close()
		return fmt.Errorf("restore sequences: %w", err)
	}

	b.db = db
	b.config = config
	b.config.DataDir = dataDir

	b.syncStrategy = config.SQLiteConfig.GetSyncStrategy()
	b.batchSize = config.SQLiteConfig.GetBatchSize()
	b.batchInterval = time.Duration(config.SQLiteConfig.GetBatchInterval()) * time.Second
	b.pendingWrites = nil
	b.queuedOps = 0

	b.attached = true

	b.tables[types.TablePages] = newPagesTable(b)
	b.tables[types.TableContentBlocks] = newRecordsTable(b, contentBlocksSpec, contentBlockCodec)
	b.tables[types.TableLayoutSegments] = newRecordsTable(b, layoutSegmentsSpec, layoutSegmentCodec)
	b.tables[types.TableNavEntries] = newRecordsTable(b, navEntriesSpec, navEntryCodec)

	if b.syncStrategy == types.SyncBatch && b.batchInterval > 0 {
		b.startBatchTimer()
	}

	return nil
}

// Detach flushes pending JSONL writes and closes the SQLite connection.
// After Detach, all operations return ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	b.stopBatchTimer()

	if err := b.flushPendingWritesLocked(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	b.tables = make(map[string]types.Table)

	return nil
}

// generateUUID generates a new UUID v7 for dependent record IDs.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// persist writes the named table back to its JSONL file, now or later
// depending on the sync strategy. The caller must hold b.mu.
func (b *Backend) persist(spec tableSpec) error {
	fn := func() error {
		return persistTableJSONL(b.db, b.config.DataDir, spec)
	}
	if b.shouldPersistImmediately() {
		return fn()
	}
	b.queueWrite(spec.name, fn)
	return nil
}

// shouldPersistImmediately reports whether JSONL writes happen on every
// mutation. True for the immediate strategy, which is the default.
func (b *Backend) shouldPersistImmediately() bool {
	return b.syncStrategy == types.SyncImmediate || b.syncStrategy == ""
}

// queueWrite adds a persist to the pending queue. A queued persist for the
// same table is replaced, since each one rewrites the whole file, but every
// request counts toward the batch size. The caller must hold b.mu.
func (b *Backend) queueWrite(tableName string, persist func() error) {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	replaced := false
	for i := range b.pendingWrites {
		if b.pendingWrites[i].tableName == tableName {
			b.pendingWrites[i].persist = persist
			replaced = true
			break
		}
	}
	if !replaced {
		b.pendingWrites = append(b.pendingWrites, pendingWrite{
			tableName: tableName,
			persist:   persist,
		})
	}

	b.queuedOps++

	if b.syncStrategy == types.SyncBatch && b.batchSize > 0 && b.queuedOps >= b.batchSize {
		_ = b.flushPendingWritesBatchLocked()
	}
}

// flushPendingWritesLocked flushes all pending writes to JSONL files.
// The caller must hold b.mu write lock.
func (b *Backend) flushPendingWritesLocked() error {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	return b.flushPendingWritesBatchLocked()
}

// flushPendingWritesBatchLocked executes all pending writes.
// The caller must hold b.batchMu.
func (b *Backend) flushPendingWritesBatchLocked() error {
	if len(b.pendingWrites) == 0 {
		return nil
	}

	for i, pw := range b.pendingWrites {
		if err := pw.persist(); err != nil {
			// Keep the failed persist and everything after it for the next flush.
			b.pendingWrites = b.pendingWrites[i:]
			return fmt.Errorf("flush %s: %w", pw.tableName, err)
		}
	}

	b.pendingWrites = nil
	b.queuedOps = 0
	return nil
}

// startBatchTimer starts the interval timer for periodic batch flushes.
func (b *Backend) startBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		return
	}

	b.batchTimer = time.AfterFunc(b.batchInterval, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if !b.attached {
			return
		}

		_ = b.flushPendingWritesLocked()

		b.batchMu.Lock()
		if b.batchTimer != nil && b.attached {
			b.batchTimer.Reset(b.batchInterval)
		}
		b.batchMu.Unlock()
	})
}

// stopBatchTimer stops the batch interval timer if running.
func (b *Backend) stopBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		b.batchTimer.Stop()
		b.batchTimer = nil
	}
}
