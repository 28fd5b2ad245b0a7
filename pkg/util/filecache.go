// FileCache provides fast file access using memory-mapped files.
//
// Used by the hover handler to slice code snippets by byte
// offset without re-reading whole files. Only accessed pages are loaded
// into RAM; if mmap fails the cache falls back to os.ReadFile.
package util

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// MappedFile holds a single mapped (or fallback-loaded) file.
type MappedFile struct {
	Path     string
	Data     []byte
	mapped   mmap.MMap // nil when the fallback path was used
	Size     int64
	Fallback bool
}

// FileCacheConfig controls FileCache behavior.
type FileCacheConfig struct {
	// MaxFiles is the maximum number of files to keep mapped.
	// 0 means the default of 4096.
	MaxFiles int
}

// FileCacheStats reports cache effectiveness.
type FileCacheStats struct {
	CachedFiles  int
	Hits         int64
	Misses       int64
	MmapFailures int64
	TotalBytes   int64
}

// FileCache lazily maps files and serves byte-range slices.
//
// Thread-safe: reads share an RWMutex; loads take the write lock.
type FileCache struct {
	files  map[string]*MappedFile
	mu     sync.RWMutex
	config FileCacheConfig
	logger *slog.Logger

	hits         int64
	misses       int64
	mmapFailures int64
	totalBytes   int64
}

// NewFileCache creates an empty file cache.
func NewFileCache(config FileCacheConfig, logger *slog.Logger) *FileCache {
	if config.MaxFiles == 0 {
		config.MaxFiles = 4096
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileCache{
		files:  make(map[string]*MappedFile),
		config: config,
		logger: logger,
	}
}

// Get returns the mapped file, loading it on first access.
func (fc *FileCache) Get(filePath string) (*MappedFile, error) {
	fc.mu.RLock()
	mf, ok := fc.files[filePath]
	fc.mu.RUnlock()
	if ok {
		fc.mu.Lock()
		fc.hits++
		fc.mu.Unlock()
		return mf, nil
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	// Double-check after acquiring the write lock.
	if mf, ok = fc.files[filePath]; ok {
		fc.hits++
		return mf, nil
	}
	fc.misses++

	if len(fc.files) >= fc.config.MaxFiles {
		return nil, fmt.Errorf("file cache limit reached (%d files)", fc.config.MaxFiles)
	}

	mf, err := fc.load(filePath)
	if err != nil {
		return nil, err
	}
	fc.files[filePath] = mf
	fc.totalBytes += mf.Size
	return mf, nil
}

// FetchCode extracts code using byte offsets. startByte is inclusive,
// endByte exclusive, both 0-based.
func (fc *FileCache) FetchCode(filePath string, startByte, endByte uint32) (string, error) {
	mf, err := fc.Get(filePath)
	if err != nil {
		return "", err
	}
	if endByte <= startByte || int64(endByte) > mf.Size {
		return "", fmt.Errorf("invalid byte range [%d,%d) for %s (size %d)", startByte, endByte, filePath, mf.Size)
	}
	return string(mf.Data[startByte:endByte]), nil
}

// Invalidate drops a single file from the cache. Called through
// handlers.InvalidateFile when a document is opened, changed or closed.
func (fc *FileCache) Invalidate(filePath string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	mf, ok := fc.files[filePath]
	if !ok {
		return
	}
	fc.unmap(mf)
	fc.totalBytes -= mf.Size
	delete(fc.files, filePath)
}

// Size returns the number of currently cached files.
func (fc *FileCache) Size() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return len(fc.files)
}

// Stats returns current cache metrics.
func (fc *FileCache) Stats() FileCacheStats {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return FileCacheStats{
		CachedFiles:  len(fc.files),
		Hits:         fc.hits,
		Misses:       fc.misses,
		MmapFailures: fc.mmapFailures,
		TotalBytes:   fc.totalBytes,
	}
}

// Close unmaps all files and releases resources.
func (fc *FileCache) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	var firstErr error
	for path, mf := range fc.files {
		if err := fc.unmapErr(mf); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unmap %s: %w", path, err)
		}
	}
	fc.files = make(map[string]*MappedFile)
	fc.totalBytes = 0
	return firstErr
}

// load maps the file, falling back to a plain read on failure.
// Must be called with the write lock held.
func (fc *FileCache) load(filePath string) (*MappedFile, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", filePath, err)
	}

	// mmap of an empty file fails on some platforms.
	if info.Size() == 0 {
		return &MappedFile{Path: filePath, Data: nil, Size: 0, Fallback: true}, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		fc.mmapFailures++
		fc.logger.Debug("mmap failed, falling back to ReadFile", "path", filePath, "error", err)
		data, rerr := os.ReadFile(filePath)
		if rerr != nil {
			return nil, fmt.Errorf("read %s: %w", filePath, rerr)
		}
		return &MappedFile{Path: filePath, Data: data, Size: int64(len(data)), Fallback: true}, nil
	}

	return &MappedFile{Path: filePath, Data: m, mapped: m, Size: info.Size()}, nil
}

func (fc *FileCache) unmap(mf *MappedFile) {
	if err := fc.unmapErr(mf); err != nil {
		fc.logger.Warn("failed to unmap file", "path", mf.Path, "error", err)
	}
}

func (fc *FileCache) unmapErr(mf *MappedFile) error {
	if mf.mapped == nil {
		return nil
	}
	err := mf.mapped.Unmap()
	mf.mapped = nil
	mf.Data = nil
	return err
}
