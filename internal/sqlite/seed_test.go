// Tests for restoring AUTOINCREMENT counters on attach.
package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pagetree/pkg/types"
)

func TestRestoreSequences_DeletedIDNotReused(t *testing.T) {
	dir := t.TempDir()
	config := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	b1 := NewBackend()
	require.NoError(t, b1.Attach(config))
	pages := mustTable(t, b1, types.TablePages)
	addPage(t, pages, "a", "", 0, 1)
	last := addPage(t, pages, "b", "", 0, 2)
	require.NoError(t, pages.Delete(idString(last.ID)))
	require.NoError(t, b1.Detach())

	b2 := NewBackend()
	require.NoError(t, b2.Attach(config))
	defer b2.Detach()

	next := addPage(t, mustTable(t, b2, types.TablePages), "c", "", 0, 2)
	assert.Greater(t, next.ID, last.ID)
}

func TestRestoreSequences(t *testing.T) {
	tests := []struct {
		name    string
		pages   string
		seqs    string
		wantSeq int64
	}{
		{
			name:    "saved counter above loaded ids",
			pages:   `{"id":3,"path":"a","title":"A","position":1,"created_at":"2025-01-15T10:30:00Z"}` + "\n",
			seqs:    `{"name":"pages","seq":9}` + "\n",
			wantSeq: 9,
		},
		{
			name:    "loaded ids above saved counter",
			pages:   `{"id":12,"path":"a","title":"A","position":1,"created_at":"2025-01-15T10:30:00Z"}` + "\n",
			seqs:    `{"name":"pages","seq":5}` + "\n",
			wantSeq: 12,
		},
		{
			name:    "no pages loaded",
			seqs:    `{"name":"pages","seq":4}` + "\n",
			wantSeq: 4,
		},
		{
			name:    "malformed sequence line ignored",
			pages:   `{"id":2,"path":"a","title":"A","position":1,"created_at":"2025-01-15T10:30:00Z"}` + "\n",
			seqs:    `{"name":` + "\n",
			wantSeq: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, pagesJSONL), []byte(tt.pages), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(dir, sequencesJSONL), []byte(tt.seqs), 0o644))

			b := NewBackend()
			require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
			defer b.Detach()

			var seq int64
			require.NoError(t, b.db.QueryRow("SELECT seq FROM sqlite_sequence WHERE name = 'pages'").Scan(&seq))
			assert.Equal(t, tt.wantSeq, seq)
		})
	}
}
