package backend

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBolt(t *testing.T) *Bolt {
	t.Helper()
	b, err := OpenBolt(filepath.Join(t.TempDir(), "catso.db"), "http://localhost:8080/objects/")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBoltWriteRead(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()

	require.NoError(t, b.Write(ctx, "cache.json", bytes.NewReader([]byte(`{"timestamp":1}`))))

	rc, err := b.Read(ctx, "cache.json")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, `{"timestamp":1}`, string(got))
}

func TestBoltReadNotFound(t *testing.T) {
	b := newTestBolt(t)

	_, err := b.Read(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBoltDelete(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()

	require.NoError(t, b.Write(ctx, "k", bytes.NewReader([]byte("v"))))
	require.NoError(t, b.Delete(ctx, "k"))
	require.NoError(t, b.Delete(ctx, "k"))

	_, err := b.Read(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catso.db")
	ctx := context.Background()

	b, err := OpenBolt(path, "")
	require.NoError(t, err)
	require.NoError(t, b.Write(ctx, "images/a.jpg", bytes.NewReader([]byte("jpeg"))))
	require.NoError(t, b.Close())

	b, err = OpenBolt(path, "")
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	rc, err := b.Read(ctx, "images/a.jpg")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "jpeg", string(got))
}

func TestBoltURL(t *testing.T) {
	b := newTestBolt(t)
	require.Equal(t, "http://localhost:8080/objects/images/a.jpg", b.URL("images/a.jpg"))
}
