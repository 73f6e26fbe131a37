package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreSave(t *testing.T) {
	root := t.TempDir()
	s, err := NewDiskStore(root, 1024)
	require.NoError(t, err)

	path, err := s.Save(context.Background(), "session-1", "document", "id.JPG", strings.NewReader("image-bytes"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "session-1"), filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "document-"))
	assert.Equal(t, ".jpg", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
}

func TestDiskStoreSanitizesSessionID(t *testing.T) {
	root := t.TempDir()
	s, err := NewDiskStore(root, 0)
	require.NoError(t, err)

	path, err := s.Save(context.Background(), "../../etc", "selfie", "a.png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, root))
}

func TestDiskStoreTooLarge(t *testing.T) {
	root := t.TempDir()
	s, err := NewDiskStore(root, 4)
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "session-1", "document", "a.png", strings.NewReader("12345"))
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(filepath.Join(root, "session-1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskStoreCanceledContext(t *testing.T) {
	s, err := NewDiskStore(t.TempDir(), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Save(ctx, "session-1", "document", "a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
