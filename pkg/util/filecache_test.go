package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) *FileCache {
	t.Helper()
	fc := NewFileCache(FileCacheConfig{}, NewLogger(DefaultLoggerConfig()))
	t.Cleanup(func() { fc.Close() })
	return fc
}

func tmpFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f.ts")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFetchCode(t *testing.T) {
	fc := newCache(t)
	path := tmpFile(t, "export function hello() {}")

	code, err := fc.FetchCode(path, 16, 21)
	require.NoError(t, err)
	assert.Equal(t, "hello", code)
}

func TestFetchCodeInvalidRange(t *testing.T) {
	fc := newCache(t)
	path := tmpFile(t, "short")

	_, err := fc.FetchCode(path, 2, 2)
	assert.Error(t, err)
	_, err = fc.FetchCode(path, 0, 999)
	assert.Error(t, err)
}

func TestCacheHitsAndInvalidate(t *testing.T) {
	fc := newCache(t)
	path := tmpFile(t, "const a = 1;")

	_, err := fc.Get(path)
	require.NoError(t, err)
	_, err = fc.Get(path)
	require.NoError(t, err)

	stats := fc.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.CachedFiles)

	fc.Invalidate(path)
	assert.Equal(t, 0, fc.Size())
}

func TestEmptyFile(t *testing.T) {
	fc := newCache(t)
	path := tmpFile(t, "")

	mf, err := fc.Get(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), mf.Size)
	assert.True(t, mf.Fallback)
}

func TestMissingFile(t *testing.T) {
	fc := newCache(t)
	_, err := fc.Get(filepath.Join(t.TempDir(), "absent.ts"))
	assert.Error(t, err)
}

func TestCancellationToken(t *testing.T) {
	token := NewCancellationToken()
	assert.False(t, token.IsCancelled())
	token.Cancel()
	assert.True(t, token.IsCancelled())
	token.Cancel()
	assert.True(t, token.IsCancelled())

	var nilToken *CancellationToken
	assert.False(t, nilToken.IsCancelled())
}
