package types

import "errors"

// Config holds backend selection and parameters for Store.Attach.
type Config struct {
	Backend      string       `json:"backend" yaml:"backend"`
	DataDir      string       `json:"data_dir" yaml:"data_dir"`
	SQLiteConfig SQLiteConfig `json:"sqlite" yaml:"sqlite"`
}

// SQLiteConfig controls how the SQLite backend persists JSONL files.
type SQLiteConfig struct {
	SyncStrategy  string `json:"sync_strategy" yaml:"sync_strategy"`
	BatchSize     int    `json:"batch_size" yaml:"batch_size"`
	BatchInterval int    `json:"batch_interval" yaml:"batch_interval"` // seconds
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Sync strategies for JSONL persistence.
const (
	SyncImmediate = "immediate"
	SyncOnClose   = "on_close"
	SyncBatch     = "batch"
)

// Defaults applied when SQLiteConfig fields are left empty.
const (
	DefaultBatchSize     = 10
	DefaultBatchInterval = 5
)

// Config validation errors.
var (
	ErrBackendEmpty         = errors.New("backend must not be empty")
	ErrBackendUnknown       = errors.New("unknown backend")
	ErrSyncStrategyUnknown  = errors.New("unknown sync strategy")
	ErrBatchSizeInvalid     = errors.New("batch size must be positive")
	ErrBatchIntervalInvalid = errors.New("batch interval must be positive")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

var knownSyncStrategies = map[string]bool{
	"":            true,
	SyncImmediate: true,
	SyncOnClose:   true,
	SyncBatch:     true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	return c.SQLiteConfig.Validate()
}

// Validate checks the sync settings. Zero batch values mean "use the default".
func (s SQLiteConfig) Validate() error {
	if !knownSyncStrategies[s.SyncStrategy] {
		return ErrSyncStrategyUnknown
	}
	if s.BatchSize < 0 {
		return ErrBatchSizeInvalid
	}
	if s.BatchInterval < 0 {
		return ErrBatchIntervalInvalid
	}
	return nil
}

// GetSyncStrategy returns the effective strategy, immediate when unset.
func (s SQLiteConfig) GetSyncStrategy() string {
	if s.SyncStrategy == "" {
		return SyncImmediate
	}
	return s.SyncStrategy
}

// GetBatchSize returns the effective batch size.
func (s SQLiteConfig) GetBatchSize() int {
	if s.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return s.BatchSize
}

// GetBatchInterval returns the effective batch interval in seconds.
func (s SQLiteConfig) GetBatchInterval() int {
	if s.BatchInterval <= 0 {
		return DefaultBatchInterval
	}
	return s.BatchInterval
}
