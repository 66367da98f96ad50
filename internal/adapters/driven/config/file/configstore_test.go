package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot determine home directory")
	}

	store, err := NewConfigStore("")

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(home, ".marginalia", "config.toml"), store.Path())
}

func TestConfigStore_SetAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	err = store.Set("vault.root", "/home/reader/vault")
	require.NoError(t, err)

	val, ok := store.Get("vault.root")
	assert.True(t, ok)
	assert.Equal(t, "/home/reader/vault", val)

	// Typed accessors fall back to zero values on missing or mistyped keys.
	assert.Equal(t, "/home/reader/vault", store.GetString("vault.root"))
	assert.Equal(t, "", store.GetString("vault.highlights_dir"))
	assert.Equal(t, 0, store.GetInt("vault.root"))
	assert.False(t, store.GetBool("vault.root"))
}

func TestConfigStore_TypedValues(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("import.workers", 4))
	require.NoError(t, store.Set("import.auto_merge", true))
	require.NoError(t, store.Set("backup.keep_days", int64(30)))

	assert.Equal(t, 4, store.GetInt("import.workers"))
	assert.True(t, store.GetBool("import.auto_merge"))
	// TOML integers arrive as int64 after a reload
	assert.Equal(t, 30, store.GetInt("backup.keep_days"))
}

func TestConfigStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()

	store1, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store1.Set("vault.root", "/vault"))
	require.NoError(t, store1.Set("import.workers", 8))
	require.NoError(t, store1.Set("import.auto_merge", true))

	// A fresh instance loads from the same file.
	store2, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "/vault", store2.GetString("vault.root"))
	assert.Equal(t, 8, store2.GetInt("import.workers"))
	assert.True(t, store2.GetBool("import.auto_merge"))
}

func TestConfigStore_NestedTablesFlattened(t *testing.T) {
	tmpDir := t.TempDir()

	content := []byte("[vault]\nroot = \"/vault\"\nhighlights_dir = \"Highlights\"\n\n[import]\nauto_merge = true\nworkers = 2\n")
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), content, 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "/vault", store.GetString("vault.root"))
	assert.Equal(t, "Highlights", store.GetString("vault.highlights_dir"))
	assert.True(t, store.GetBool("import.auto_merge"))
	assert.Equal(t, 2, store.GetInt("import.workers"))
}

func TestConfigStore_Load_NonExistent(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	val, ok := store.Get("vault.root")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()

	corrupted := []byte("this is not valid TOML {{{[[")
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), corrupted, 0600))

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("vault.root", "/vault"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_OverwriteValue(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("vault.root", "/old"))
	require.NoError(t, store.Set("vault.root", "/new"))

	assert.Equal(t, "/new", store.GetString("vault.root"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			key := "key" + string(rune('0'+id))
			_ = store.Set(key, id)
			_ = store.GetInt(key)
			_ = store.GetString(key)
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
