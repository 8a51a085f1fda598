package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

var _ simpleupload.BlobStore = (*Backend)(nil)

func TestNew_RequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestBackend_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	b, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	n, err := b.Put(ctx, "/avatars/photo_abc.png", strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
	assert.FileExists(t, filepath.Join(base, "avatars", "photo_abc.png"))

	rc, meta, err := b.Get(ctx, "/avatars/photo_abc.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", meta.ContentType)
	assert.Equal(t, int64(9), meta.Size)

	require.NoError(t, b.Delete(ctx, "/avatars/photo_abc.png"))
	assert.NoDirExists(t, filepath.Join(base, "avatars"))
	assert.DirExists(t, base)

	_, _, err = b.Get(ctx, "/avatars/photo_abc.png")
	assert.ErrorIs(t, err, simpleupload.ErrObjectNotFound)
	assert.ErrorIs(t, b.Delete(ctx, "/avatars/photo_abc.png"), simpleupload.ErrObjectNotFound)
}

func TestBackend_SniffsContentTypeWithoutExtension(t *testing.T) {
	ctx := context.Background()
	b, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = b.Put(ctx, "notes", strings.NewReader("plain text content"), "")
	require.NoError(t, err)

	rc, meta, err := b.Get(ctx, "notes")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "text/plain; charset=utf-8", meta.ContentType)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "plain text content", string(data))
}

func TestBackend_KeysStayInsideBaseDir(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	base := filepath.Join(root, "uploads")
	b, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	_, err = b.Put(ctx, "../../escape.txt", strings.NewReader("x"), "text/plain")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(base, "escape.txt"))
	_, statErr := os.Stat(filepath.Join(root, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestBackend_PutCancelled(t *testing.T) {
	base := t.TempDir()
	b, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = b.Put(ctx, "cancelled.txt", strings.NewReader("x"), "text/plain")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(base, "cancelled.txt"))
}
