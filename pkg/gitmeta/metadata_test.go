package gitmeta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolscope/symbolscope/pkg/util"
)

func TestMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logger := util.NewLogger(util.DefaultLoggerConfig())

	meta := &Metadata{
		LastGitHash:  "abc123",
		FolderHashes: map[string]string{"src": "deadbeef"},
	}
	require.NoError(t, SaveMetadata(dir, meta))

	loaded, rebuild := LoadMetadata(dir, logger)
	assert.False(t, rebuild)
	assert.Equal(t, "abc123", loaded.LastGitHash)
	assert.Equal(t, "deadbeef", loaded.FolderHashes["src"])
	assert.Equal(t, MetadataVersion, loaded.Version)
	assert.Positive(t, loaded.LastUpdatedAt)
}

func TestMetadataMissingSchedulesRebuild(t *testing.T) {
	logger := util.NewLogger(util.DefaultLoggerConfig())
	meta, rebuild := LoadMetadata(t.TempDir(), logger)
	assert.True(t, rebuild)
	assert.Equal(t, int64(0), meta.LastUpdatedAt)
	assert.Equal(t, MetadataVersion, meta.Version)
}

func TestMetadataCorruptSchedulesRebuild(t *testing.T) {
	dir := t.TempDir()
	logger := util.NewLogger(util.DefaultLoggerConfig())
	require.NoError(t, os.WriteFile(filepath.Join(dir, metadataFileName), []byte("{not json"), 0o644))

	meta, rebuild := LoadMetadata(dir, logger)
	assert.True(t, rebuild)
	assert.Equal(t, "", meta.LastGitHash)
}

func TestMetadataVersionMismatchSchedulesRebuild(t *testing.T) {
	dir := t.TempDir()
	logger := util.NewLogger(util.DefaultLoggerConfig())
	require.NoError(t, os.WriteFile(filepath.Join(dir, metadataFileName),
		[]byte(`{"version": 999, "lastUpdatedAt": 5}`), 0o644))

	_, rebuild := LoadMetadata(dir, logger)
	assert.True(t, rebuild)
}

func TestMetadataSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveMetadata(dir, DefaultMetadata()))

	// No temp droppings left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, metadataFileName, entries[0].Name())
}

func TestGitAbsentReturnsNil(t *testing.T) {
	logger := util.NewLogger(util.DefaultLoggerConfig())
	assert.Nil(t, New(t.TempDir(), logger))
}
