package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestArchivePath(t *testing.T) {
	path, err := archivePath(testHash)

	require.NoError(t, err)
	assert.Equal(t, "reports/2c/"+testHash+".pdf", path)
}

func TestArchivePathRejectsShortHash(t *testing.T) {
	_, err := archivePath("ab")

	assert.Error(t, err)
}

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	content := "%PDF-1.4 fake content"

	path, err := store.Archive(ctx, testHash, strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "reports/2c/"+testHash+".pdf", path)

	rc, err := store.Retrieve(ctx, path)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestLocalStorageRetrieveMissing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Retrieve(context.Background(), "reports/ab/none.pdf")
	assert.Error(t, err)
}

func TestLocalStorageDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	path, err := store.Archive(ctx, testHash, strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, path))

	_, err = store.Retrieve(ctx, path)
	assert.Error(t, err)

	// Deleting again is not an error
	assert.NoError(t, store.Delete(ctx, path))
}
