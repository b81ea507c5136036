package disk

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookvault/internal/common/errors"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "covers/abc.jpg", "image/jpeg", strings.NewReader("fake-jpeg-bytes")))

	exists, err := store.Exists(ctx, "covers/abc.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := store.Get(ctx, "covers/abc.jpg")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "fake-jpeg-bytes", string(data))
}

func TestPutOverwrites(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "covers/abc.jpg", "image/jpeg", strings.NewReader("v1")))
	require.NoError(t, store.Put(ctx, "covers/abc.jpg", "image/jpeg", strings.NewReader("v2")))

	rc, err := store.Get(ctx, "covers/abc.jpg")
	require.NoError(t, err)
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	assert.Equal(t, "v2", string(data))
}

func TestGetMissingKey(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "covers/missing.jpg")
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "covers/abc.jpg", "image/jpeg", strings.NewReader("bytes")))
	require.NoError(t, store.Delete(ctx, "covers/abc.jpg"))
	require.NoError(t, store.Delete(ctx, "covers/abc.jpg"))

	exists, err := store.Exists(ctx, "covers/abc.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRejectsPathTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"../escape.jpg", "/etc/passwd", "covers/../../escape.jpg", "."} {
		err := store.Put(ctx, key, "image/jpeg", strings.NewReader("x"))
		assert.Error(t, err, "key %q should be rejected", key)
	}
}
