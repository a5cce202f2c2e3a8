package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  Config{Backend: "", DataDir: "/tmp/data"},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown backend returns ErrBackendUnknown",
			config:  Config{Backend: "postgres", DataDir: "/tmp/data"},
			wantErr: ErrBackendUnknown,
		},
		{
			name:    "valid sqlite config",
			config:  Config{Backend: "sqlite", DataDir: "/tmp/data"},
			wantErr: nil,
		},
		{
			name:    "sqlite with empty DataDir is valid at config level",
			config:  Config{Backend: "sqlite", DataDir: ""},
			wantErr: nil,
		},
		{
			name: "unknown sync strategy",
			config: Config{Backend: "sqlite", SQLiteConfig: SQLiteConfig{
				SyncStrategy: "sometimes",
			}},
			wantErr: ErrSyncStrategyUnknown,
		},
		{
			name: "negative batch size",
			config: Config{Backend: "sqlite", SQLiteConfig: SQLiteConfig{
				SyncStrategy: SyncBatch,
				BatchSize:    -1,
			}},
			wantErr: ErrBatchSizeInvalid,
		},
		{
			name: "negative batch interval",
			config: Config{Backend: "sqlite", SQLiteConfig: SQLiteConfig{
				SyncStrategy:  SyncBatch,
				BatchInterval: -3,
			}},
			wantErr: ErrBatchIntervalInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
		})
	}
}

func TestSQLiteConfigDefaults(t *testing.T) {
	var s SQLiteConfig
	assert.Equal(t, SyncImmediate, s.GetSyncStrategy())
	assert.Equal(t, DefaultBatchSize, s.GetBatchSize())
	assert.Equal(t, DefaultBatchInterval, s.GetBatchInterval())

	s = SQLiteConfig{SyncStrategy: SyncBatch, BatchSize: 3, BatchInterval: 9}
	assert.Equal(t, SyncBatch, s.GetSyncStrategy())
	assert.Equal(t, 3, s.GetBatchSize())
	assert.Equal(t, 9, s.GetBatchInterval())
}

func TestPageIsRoot(t *testing.T) {
	assert.True(t, Page{ID: 1, Path: "home"}.IsRoot())
	assert.False(t, Page{ID: 2, Path: "home/about", ParentPath: "home", ParentID: 1}.IsRoot())
}
