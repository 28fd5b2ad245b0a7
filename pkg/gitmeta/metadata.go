package gitmeta

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// MetadataVersion is bumped when the metadata layout changes.
const MetadataVersion = 1

// metadataFileName under the cache directory.
const metadataFileName = "metadata.json"

// Metadata is the persisted indexer state: the last indexed commit, the
// last update time, and the folder signatures for early-exit scanning.
type Metadata struct {
	Version       int               `json:"version"`
	LastGitHash   string            `json:"lastGitHash,omitempty"`
	LastUpdatedAt int64             `json:"lastUpdatedAt"`
	FolderHashes  map[string]string `json:"folderHashes,omitempty"`
}

// DefaultMetadata is the state used when nothing (or garbage) is on disk.
// A zero LastUpdatedAt schedules a full rebuild.
func DefaultMetadata() *Metadata {
	return &Metadata{Version: MetadataVersion, LastUpdatedAt: 0}
}

// LoadMetadata reads the metadata file. Corrupt or missing metadata falls
// back to defaults; the second return value reports whether the caller
// should schedule a full rebuild.
func LoadMetadata(cacheDir string, logger *slog.Logger) (*Metadata, bool) {
	if logger == nil {
		logger = slog.Default()
	}
	path := filepath.Join(cacheDir, metadataFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read metadata, rebuilding", "path", path, "error", err)
		}
		return DefaultMetadata(), true
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		logger.Warn("corrupt metadata, rebuilding", "path", path, "error", err)
		return DefaultMetadata(), true
	}
	if meta.Version != MetadataVersion {
		logger.Info("metadata version mismatch, rebuilding", "found", meta.Version, "want", MetadataVersion)
		return DefaultMetadata(), true
	}
	return &meta, false
}

// SaveMetadata writes the metadata atomically: temp file in the cache
// directory, then rename. The single-writer rule lives with the caller
// (the indexer main loop).
func SaveMetadata(cacheDir string, meta *Metadata) error {
	meta.Version = MetadataVersion
	meta.LastUpdatedAt = time.Now().UnixMilli()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(cacheDir, ".metadata-*")
	if err != nil {
		return fmt.Errorf("failed to create temp metadata: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp metadata: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(cacheDir, metadataFileName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename metadata: %w", err)
	}
	return nil
}
