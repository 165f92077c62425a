package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	data := []byte("\x00asm\x01\x00\x00\x00")
	id, err := store.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, IDOf(data), id)
	assert.True(t, strings.HasPrefix(id, "sha256:"))

	again, err := store.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, id, again, "put must be idempotent")

	ok, err := store.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, store.Delete(ctx, id))
	require.NoError(t, store.Delete(ctx, id), "deleting twice is not an error")

	ok, err = store.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_NotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), IDOf([]byte("missing")))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_DetectsTampering(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	id, err := store.Put(context.Background(), []byte("original image"))
	require.NoError(t, err)

	raw, err := ParseID(id)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, raw+".wasm"), []byte("swapped image"), 0o644))

	_, err = store.Get(context.Background(), id)
	require.ErrorIs(t, err, ErrIntegrity)
}

func TestFileStore_AcceptsUppercaseID(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	data := []byte("image")
	id, err := store.Put(context.Background(), data)
	require.NoError(t, err)

	upper := "sha256:" + strings.ToUpper(strings.TrimPrefix(id, "sha256:"))
	got, err := store.Get(context.Background(), upper)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestParseID(t *testing.T) {
	valid := IDOf([]byte("x"))
	raw, err := ParseID(valid)
	require.NoError(t, err)
	assert.Len(t, raw, 64)

	digest, err := Digest(valid)
	require.NoError(t, err)
	assert.Len(t, digest, 32)

	for _, bad := range []string{
		"",
		strings.TrimPrefix(valid, "sha256:"),
		"sha512:" + strings.TrimPrefix(valid, "sha256:"),
		"sha256:abc",
		"sha256:" + strings.Repeat("zz", 32),
		"sha256:../../etc/passwd",
	} {
		_, err := ParseID(bad)
		assert.Error(t, err, "id %q", bad)
	}
}
