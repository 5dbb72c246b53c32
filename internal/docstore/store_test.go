package docstore

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	store, err := New(t.TempDir(), 1024)
	require.NoError(t, err)

	saved, err := store.Save("Receipt.PDF", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(saved.StoredName, ".pdf"))
	assert.NotContains(t, saved.StoredName, "Receipt")
	assert.Equal(t, "application/pdf", saved.MimeType)
	assert.Equal(t, int64(8), saved.Size)

	f, err := store.Open(saved.StoredName)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestSaveRejections(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, 4)
	require.NoError(t, err)

	_, err = store.Save("script.exe", strings.NewReader("MZ"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = store.Save("noext", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrMissingExtension)

	_, err = store.Save("empty.txt", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = store.Save("big.txt", strings.NewReader("12345"))
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads must not leave files behind")
}

func TestMimeTypeFromExtension(t *testing.T) {
	store, err := New(t.TempDir(), 0)
	require.NoError(t, err)

	tests := []struct {
		name string
		want string
	}{
		{"photo.JPG", "image/jpeg"},
		{"notes.txt", "text/plain"},
		{"sheet.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved, err := store.Save(tt.name, strings.NewReader("x"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, saved.MimeType)
		})
	}
}

func TestRemoveToleratesMissing(t *testing.T) {
	store, err := New(t.TempDir(), 0)
	require.NoError(t, err)

	saved, err := store.Save("a.txt", strings.NewReader("a"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(saved.StoredName))
	require.NoError(t, store.Remove(saved.StoredName))

	_, err = store.Open(saved.StoredName)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestPathTraversalRejected(t *testing.T) {
	store, err := New(t.TempDir(), 0)
	require.NoError(t, err)

	for _, name := range []string{"../secret.txt", "a/b.txt", "", ".."} {
		_, err := store.Open(name)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
		assert.ErrorIs(t, store.Remove(name), ErrInvalidName, "name %q", name)
	}
}

func TestPurge(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, 0)
	require.NoError(t, err)

	for _, n := range []string{"a.txt", "b.csv"} {
		_, err := store.Save(n, strings.NewReader("x"))
		require.NoError(t, err)
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	require.NoError(t, store.Purge())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
