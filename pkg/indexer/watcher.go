package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce groups rapid writes to one file into a single reindex.
const watchDebounce = 200 * time.Millisecond

// FileWatcher feeds filesystem changes back into the indexer: changed
// files are re-extracted, deleted files drop their shards, affected
// folder hashes are invalidated, and a HEAD change triggers the Git
// catch-up path.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	indexer *Indexer
	logger  *slog.Logger

	// onConfigChange fires for tsconfig.json / package.json edits so the
	// import resolver can drop its caches before the TTL lapses.
	onConfigChange func()

	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	stopChan chan struct{}
	stopped  bool
	mu       sync.Mutex
}

// NewFileWatcher creates a watcher bound to the indexer.
func NewFileWatcher(ix *Indexer, onConfigChange func(), logger *slog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FileWatcher{
		watcher:        watcher,
		indexer:        ix,
		logger:         logger,
		onConfigChange: onConfigChange,
		debounceTimers: make(map[string]*time.Timer),
		stopChan:       make(chan struct{}),
	}, nil
}

// Start begins watching the workspace tree (and .git/HEAD when Git
// integration is on). Runs its event loop in a background goroutine.
func (fw *FileWatcher) Start(rootPath string) error {
	if err := fw.watcher.Add(rootPath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", rootPath, err)
	}

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // continue on error
		}
		if info.IsDir() {
			if fw.shouldIgnoreDir(path) {
				return filepath.SkipDir
			}
			if err := fw.watcher.Add(path); err != nil {
				fw.logger.Debug("failed to watch directory", "path", path, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set up watches: %w", err)
	}

	if git := fw.indexer.Git(); git != nil {
		if err := fw.watcher.Add(filepath.Dir(git.HeadPath())); err != nil {
			fw.logger.Debug("failed to watch .git", "error", err)
		}
	}

	fw.logger.Info("file watcher started", "root", rootPath)
	go fw.eventLoop()
	return nil
}

// Stop halts the watcher. Idempotent.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.stopped {
		return nil
	}
	fw.stopped = true
	close(fw.stopChan)

	fw.debounceMu.Lock()
	for _, timer := range fw.debounceTimers {
		timer.Stop()
	}
	fw.debounceTimers = make(map[string]*time.Timer)
	fw.debounceMu.Unlock()

	err := fw.watcher.Close()
	fw.logger.Info("file watcher stopped")
	return err
}

func (fw *FileWatcher) eventLoop() {
	for {
		select {
		case <-fw.stopChan:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("file watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	base := filepath.Base(path)

	// Git HEAD moved: branch switch or commit.
	if base == "HEAD" && strings.Contains(path, ".git") {
		go fw.indexer.OnHeadChange(context.Background())
		return
	}

	if fw.shouldIgnoreDir(filepath.Dir(path)) {
		return
	}

	// Resolver-relevant config.
	if base == "tsconfig.json" || base == "package.json" {
		if fw.onConfigChange != nil {
			fw.onConfigChange()
		}
	}

	// Any mutation invalidates the parent directory's folder hash.
	fw.indexer.InvalidateFolderHash(filepath.Dir(path))

	// New directories join the watch set.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !fw.shouldIgnoreDir(path) {
				if err := fw.watcher.Add(path); err != nil {
					fw.logger.Debug("failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	if !fw.indexer.indexableExtensions()[strings.ToLower(filepath.Ext(path))] {
		return
	}

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		fw.debounceReindex(path)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		fw.indexer.RemoveFile(path)
	}
}

// debounceReindex schedules a reindex after the debounce window; rapid
// consecutive writes collapse into the last one.
func (fw *FileWatcher) debounceReindex(path string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if timer, exists := fw.debounceTimers[path]; exists {
		timer.Stop()
	}
	fw.debounceTimers[path] = time.AfterFunc(watchDebounce, func() {
		fw.reindexFile(path)

		fw.debounceMu.Lock()
		delete(fw.debounceTimers, path)
		fw.debounceMu.Unlock()
	})
}

func (fw *FileWatcher) reindexFile(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fw.indexer.RemoveFile(path)
			return
		}
		fw.logger.Warn("failed to read changed file", "file", path, "error", err)
		return
	}
	if err := fw.indexer.IndexFile(path, content); err != nil {
		fw.logger.Warn("failed to reindex changed file", "file", path, "error", err)
	}
}

func (fw *FileWatcher) shouldIgnoreDir(path string) bool {
	cacheDir := fw.indexer.config.CacheDirName
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		switch part {
		case "node_modules", ".git", ".hg", ".svn", "dist", "build":
			return true
		}
		if cacheDir != "" && part == cacheDir {
			return true
		}
	}
	return false
}
