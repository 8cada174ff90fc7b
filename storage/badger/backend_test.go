package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/kbsync/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(tmpDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0644))

	_, err := OpenBackend(tmpFile, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.WithTx(func(tx *badger.Txn) error { return nil }, false)
	require.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestBackend_BatchAndScan(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	err = backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, k := range []string{"a:1", "a:2", "b:1"} {
			if err := wb.Set([]byte(k), []byte("v-"+k)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var keys, values []string
	err = backend.ScanPrefix(context.Background(), []byte("a:"), func(key, value []byte) error {
		keys = append(keys, string(key))
		values = append(values, string(value))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "a:2"}, keys)
	assert.Equal(t, []string{"v-a:1", "v-a:2"}, values)
}

func TestBackend_ScanHonorsContext(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.WithBatch(func(wb *badger.WriteBatch) error {
		return wb.Set([]byte("k"), []byte("v"))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = backend.ScanPrefix(ctx, []byte("k"), func(_, _ []byte) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseChunkKey(t *testing.T) {
	id, n, err := parseChunkKey(makeChunkKey("KB0010042", 7))
	require.NoError(t, err)
	assert.Equal(t, "KB0010042", id)
	assert.Equal(t, 7, n)

	id, n, err = parseChunkKey(makeChunkKey("odd:id", 0))
	require.NoError(t, err)
	assert.Equal(t, "odd:id", id)
	assert.Equal(t, 0, n)

	_, _, err = parseChunkKey([]byte("other:KB1:0"))
	require.Error(t, err)
	_, _, err = parseChunkKey([]byte("chunk:KB1:x"))
	require.Error(t, err)
}
