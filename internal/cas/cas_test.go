package cas

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := New(t.TempDir())
	require.NoError(t, err)

	data := []byte("infections,week\n120,1\n145,2\n")
	address, err := c.Put(ctx, data)
	require.NoError(t, err)

	sum := sha256.Sum256(data)
	assert.Equal(t, "sha256:"+hex.EncodeToString(sum[:]), address)

	got, err := c.Get(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, err := New(t.TempDir())
	require.NoError(t, err)

	data := []byte("same bytes")
	a1, err := c.Put(ctx, data)
	require.NoError(t, err)
	a2, err := c.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
}

func TestDistinctContentDistinctAddress(t *testing.T) {
	ctx := context.Background()
	c, err := New(t.TempDir())
	require.NoError(t, err)

	a1, err := c.Put(ctx, []byte("alpha"))
	require.NoError(t, err)
	a2, err := c.Put(ctx, []byte("beta"))
	require.NoError(t, err)
	assert.NotEqual(t, a1, a2)
}

func TestPutEmptyBlob(t *testing.T) {
	ctx := context.Background()
	c, err := New(t.TempDir())
	require.NoError(t, err)

	address, err := c.Put(ctx, nil)
	require.NoError(t, err)

	got, err := c.Get(ctx, address)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetMissingBlob(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	missing := "sha256:" + hex.EncodeToString(make([]byte, 32))
	_, err = c.Get(context.Background(), missing)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	c, err := New(t.TempDir())
	require.NoError(t, err)

	address, err := c.Put(ctx, []byte("present"))
	require.NoError(t, err)

	ok, err := c.Exists(ctx, address)
	require.NoError(t, err)
	assert.True(t, ok)

	missing := "sha256:" + hex.EncodeToString(make([]byte, 32))
	ok, err = c.Exists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMalformedAddressRejected(t *testing.T) {
	ctx := context.Background()
	c, err := New(t.TempDir())
	require.NoError(t, err)

	for _, address := range []string{
		"",
		"sha256:short",
		"md5:" + hex.EncodeToString(make([]byte, 32)),
		"DEADBEEF",
	} {
		_, err := c.Get(ctx, address)
		assert.Error(t, err, "address %q", address)
		_, err = c.Exists(ctx, address)
		assert.Error(t, err, "address %q", address)
	}
}

func TestShardedLayout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	c, err := New(root)
	require.NoError(t, err)

	data := []byte("layout probe")
	address, err := c.Put(ctx, data)
	require.NoError(t, err)

	digest := address[len("sha256:"):]
	expected := filepath.Join(root, digest[0:2], digest[2:4], digest)
	info, err := os.Stat(expected)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	c, err := New(root)
	require.NoError(t, err)

	_, err = c.Put(ctx, []byte("clean"))
	require.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, e.Type().IsRegular(), "unexpected file %s in root", e.Name())
	}
}

func TestCancelledContext(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Put(ctx, []byte("x"))
	require.ErrorIs(t, err, context.Canceled)
}
