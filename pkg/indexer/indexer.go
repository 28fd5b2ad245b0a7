// Package indexer orchestrates the three-tier index: scanning,
// worker-pool extraction, shard persistence, and the live overlay.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/gitmeta"
	"github.com/symbolscope/symbolscope/pkg/index"
	"github.com/symbolscope/symbolscope/pkg/parser"
	"github.com/symbolscope/symbolscope/pkg/parser/queries"
	"github.com/symbolscope/symbolscope/pkg/scan"
	"github.com/symbolscope/symbolscope/pkg/shard"
	"github.com/symbolscope/symbolscope/pkg/textindex"
	"github.com/symbolscope/symbolscope/pkg/util"
)

// Indexer owns the shard store, the inverted tiers, and the indexing
// passes. All index mutation funnels through it (single-writer rule for
// store and metadata); queries go through Merged.
type Indexer struct {
	config Config
	logger *slog.Logger

	store      *shard.Store
	overlay    *index.Inverted
	background *index.Inverted
	merged     *index.Merged

	git  *gitmeta.Git
	meta *gitmeta.Metadata

	scanner     *scan.Scanner
	textIndexer *textindex.Indexer

	parserManager *parser.ParserManager
	queryManager  *queries.QueryManager

	// syncExtractor serves synchronous single-file extraction (overlay
	// updates, watcher reindex); guarded by syncMu.
	syncExtractor *extractor.Extractor
	syncMu        sync.Mutex

	progress ProgressFunc

	mu           sync.Mutex
	workers      int
	lastPass     PassStats
	needsRebuild bool
	passCancel   *util.CancellationToken
}

// New assembles an indexer. Call Start to open the store and run the
// first pass.
func New(config Config, pm *parser.ParserManager, qm *queries.QueryManager, progress ProgressFunc, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.CacheDirName == "" {
		config.CacheDirName = DefaultCacheDirName
	}
	if config.MaxConcurrentWorkers <= 0 {
		config.MaxConcurrentWorkers = DefaultWorkers
	}
	if config.MaxIndexedFileSize <= 0 {
		config.MaxIndexedFileSize = scan.DefaultMaxFileSize
	}

	ix := &Indexer{
		config:        config,
		logger:        logger,
		overlay:       index.NewInverted(),
		background:    index.NewInverted(),
		scanner:       scan.NewScanner(logger),
		parserManager: pm,
		queryManager:  qm,
		syncExtractor: extractor.NewExtractor(pm, qm, logger),
		progress:      progress,
		workers:       config.MaxConcurrentWorkers,
	}
	if config.TextIndexingEnabled {
		ix.textIndexer = textindex.NewIndexer(logger)
	}
	return ix
}

// Start opens the cache, loads the static index, replays shards into the
// background tier, and leaves the engine ready for the first pass.
func (ix *Indexer) Start(ctx context.Context) error {
	cacheDir := ix.cacheDir()

	store, err := shard.Open(cacheDir, ix.logger)
	if err != nil {
		return fmt.Errorf("failed to open shard store: %w", err)
	}
	ix.store = store

	meta, rebuild := gitmeta.LoadMetadata(cacheDir, ix.logger)
	ix.meta = meta
	ix.needsRebuild = rebuild

	var static *index.Inverted
	if ix.config.StaticIndexEnabled && ix.config.StaticIndexPath != "" {
		static, err = index.LoadStatic(ix.config.StaticIndexPath, ix.logger)
		if err != nil {
			// A broken static index degrades to two tiers.
			ix.logger.Warn("failed to load static index", "path", ix.config.StaticIndexPath, "error", err)
			static = nil
		}
	}
	ix.merged = index.NewMerged(ix.overlay, ix.background, static)

	if ix.config.EnableGitIntegration {
		ix.git = gitmeta.New(ix.config.WorkspaceRoot, ix.logger)
	}

	// Replay persisted shards into the background tier.
	count := 0
	ix.store.AllRecords(func(record *extractor.FileRecord) bool {
		ix.background.Apply(record)
		count++
		return true
	})
	ix.logger.Info("background tier restored", "files", count)

	return nil
}

// Merged returns the query surface.
func (ix *Indexer) Merged() *index.Merged { return ix.merged }

// Store returns the shard store.
func (ix *Indexer) Store() *shard.Store { return ix.store }

// Git returns the repository handle, or nil.
func (ix *Indexer) Git() *gitmeta.Git { return ix.git }

// InitialPass catches up the index: HEAD-diff incremental when Git
// metadata allows it, full scan otherwise.
func (ix *Indexer) InitialPass(ctx context.Context) (*PassStats, error) {
	if !ix.config.EnableBackgroundIndex {
		ix.logger.Info("background indexing disabled, overlay only")
		return &PassStats{}, nil
	}

	if ix.git != nil && !ix.needsRebuild && ix.meta.LastGitHash != "" {
		head, err := ix.git.Head(ctx)
		if err == nil && head == ix.meta.LastGitHash {
			ix.logger.Info("index up to date with HEAD", "head", head)
			return &PassStats{}, nil
		}
		if err == nil {
			if stats, derr := ix.gitCatchUp(ctx, ix.meta.LastGitHash, head); derr == nil {
				return stats, nil
			}
			// Diff failure (gc'd hash, shallow clone) falls back to full.
		}
	}

	return ix.IndexWorkspace(ctx, ix.needsRebuild)
}

// gitCatchUp indexes only the files changed between two commits.
func (ix *Indexer) gitCatchUp(ctx context.Context, fromHash, toHash string) (*PassStats, error) {
	changes, err := ix.git.ChangedFiles(ctx, fromHash, toHash)
	if err != nil {
		return nil, err
	}

	ix.logger.Info("git catch-up",
		"added", len(changes.Added),
		"modified", len(changes.Modified),
		"deleted", len(changes.Deleted))

	for _, uri := range changes.Deleted {
		ix.RemoveFile(uri)
	}

	var files []string
	exts := ix.indexableExtensions()
	for _, uri := range append(changes.Added, changes.Modified...) {
		if exts[strings.ToLower(filepath.Ext(uri))] {
			files = append(files, uri)
		}
	}

	stats, err := ix.runPass(ctx, files)
	if err != nil {
		return nil, err
	}

	ix.meta.LastGitHash = toHash
	ix.saveMetadata()
	return stats, nil
}

// IndexWorkspace scans and indexes the whole workspace. With force, the
// hash short-circuit still applies per file; force only bypasses the
// folder-hash early exit.
func (ix *Indexer) IndexWorkspace(ctx context.Context, force bool) (*PassStats, error) {
	if !ix.config.EnableBackgroundIndex {
		return &PassStats{}, nil
	}

	ix.reportProgress(PhaseScan, 0, 0, "scanning workspace")

	priorHashes := ix.meta.FolderHashes
	if force {
		priorHashes = nil
	}

	result, err := ix.scanner.Scan(ctx, ix.config.WorkspaceRoot, scan.Options{
		ExcludePatterns:   ix.config.ExcludePatterns,
		Extensions:        ix.indexableExtensions(),
		MaxFileSize:       ix.config.MaxIndexedFileSize,
		RespectGitignore:  true,
		CacheDirName:      ix.config.CacheDirName,
		UseFolderHashing:  ix.config.UseFolderHashing,
		PriorFolderHashes: priorHashes,
	})
	if err != nil {
		return nil, fmt.Errorf("workspace scan failed: %w", err)
	}

	stats, err := ix.runPass(ctx, result.Files)
	if err != nil {
		return nil, err
	}
	stats.FilesScanned = len(result.Files)

	if ix.config.UseFolderHashing {
		ix.meta.FolderHashes = result.FolderHashes
	}
	if ix.git != nil {
		if head, herr := ix.git.Head(ctx); herr == nil {
			ix.meta.LastGitHash = head
		}
	}
	ix.needsRebuild = false
	ix.saveMetadata()

	return stats, nil
}

// runPass pushes files through the worker pool and applies results.
// Every file is extracted; a record whose content hash and shard version
// match the stored shard is not rewritten or re-applied.
func (ix *Indexer) runPass(ctx context.Context, files []string) (*PassStats, error) {
	start := time.Now()

	ix.mu.Lock()
	workers := ix.workers
	cancel := util.NewCancellationToken()
	ix.passCancel = cancel
	ix.mu.Unlock()

	stats := &PassStats{Workers: workers}
	total := len(files)
	if total == 0 {
		stats.Duration = time.Since(start)
		ix.recordPass(stats)
		return stats, nil
	}

	pool := NewWorkerPool(workers, ix.parserManager, ix.queryManager, ix.textIndexer, cancel, ix.logger)
	pool.Start()

	batch := ix.config.BatchSize
	if batch <= 0 {
		batch = 25
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		processed := 0
		for result := range pool.Results() {
			processed++
			if cancel.IsCancelled() {
				continue // drain, discard
			}
			ix.applyResult(result, stats)
			if processed%batch == 0 || processed == total {
				ix.reportProgress(PhaseIndex, processed, total, result.URI)
			}
		}
	}()

	go func() {
		for _, uri := range files {
			select {
			case <-ctx.Done():
				cancel.Cancel()
			default:
			}
			if cancel.IsCancelled() {
				break
			}
			// Hash short-circuit happens in applyResult via store.Put;
			// skipping unchanged files entirely would miss version bumps.
			if pool.Submit(FileJob{URI: uri}) != nil {
				break
			}
		}
		pool.FinishSubmitting()
		pool.Wait()
	}()

	<-done

	stats.Cancelled = cancel.IsCancelled()
	stats.Duration = time.Since(start)
	stats.SymbolCount = ix.background.SymbolCount()
	ix.recordPass(stats)
	ix.autoTune(stats)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// applyResult moves one worker result into the store and background
// tier. Runs on the pass's collector goroutine only.
func (ix *Indexer) applyResult(result FileResult, stats *PassStats) {
	if result.Deleted {
		ix.RemoveFile(result.URI)
		stats.FilesDeleted++
		return
	}
	if result.Record == nil {
		return
	}
	if result.Record.IsSkipped {
		stats.FilesSkipped++
	}

	wrote, err := ix.store.Put(result.URI, result.Record)
	if err != nil {
		ix.logger.Warn("failed to persist shard", "file", result.URI, "error", err)
	}
	if !wrote {
		stats.FilesUnchanged++
		return
	}
	ix.background.Apply(result.Record)
	stats.FilesIndexed++
}

// IndexFile synchronously re-extracts one file into the store and
// background tier (watcher and didSave path).
func (ix *Indexer) IndexFile(uri string, content []byte) error {
	record, err := ix.extractSync(uri, content)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	wrote, err := ix.store.Put(uri, record)
	if err != nil {
		return err
	}
	if wrote {
		ix.background.Apply(record)
	}
	return nil
}

// RemoveFile drops a file from every mutable tier.
func (ix *Indexer) RemoveFile(uri string) {
	ix.background.Remove(uri)
	if ix.store != nil {
		if err := ix.store.Delete(uri); err != nil {
			ix.logger.Warn("failed to delete shard", "file", uri, "error", err)
		}
	}
}

// UpdateOverlay re-extracts an open document's content into the live
// tier. Called synchronously on didOpen/didChange, before any handler
// reads the index (read-your-writes).
func (ix *Indexer) UpdateOverlay(uri string, content []byte) {
	record, err := ix.extractSync(uri, content)
	if err != nil || record == nil {
		return
	}
	ix.overlay.Apply(record)
}

// RemoveOverlay discards the live entry on didClose. The shard tier
// keeps serving the file.
func (ix *Indexer) RemoveOverlay(uri string) {
	ix.overlay.Remove(uri)
}

// CancelPass cancels any in-flight indexing pass.
func (ix *Indexer) CancelPass() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.passCancel != nil {
		ix.passCancel.Cancel()
	}
}

// OnHeadChange is the Git watcher hook: diff and catch up.
func (ix *Indexer) OnHeadChange(ctx context.Context) {
	if ix.git == nil {
		return
	}
	head, err := ix.git.Head(ctx)
	if err != nil || head == ix.meta.LastGitHash {
		return
	}
	if ix.meta.LastGitHash != "" {
		if _, err := ix.gitCatchUp(ctx, ix.meta.LastGitHash, head); err == nil {
			return
		}
	}
	if _, err := ix.IndexWorkspace(ctx, false); err != nil {
		ix.logger.Warn("reindex after HEAD change failed", "error", err)
	}
}

// InvalidateFolderHash drops the stored signature for a directory and
// every ancestor, so the next scan descends all the way down to it.
// Clearing only the directory itself would leave an ancestor's matching
// signature to prune the subtree before the scan ever reaches it.
// Watcher hook.
func (ix *Indexer) InvalidateFolderHash(dir string) {
	rel, err := filepath.Rel(ix.config.WorkspaceRoot, dir)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	for {
		delete(ix.meta.FolderHashes, rel)
		if rel == "." || rel == "" {
			return
		}
		parent := filepath.ToSlash(filepath.Dir(rel))
		if parent == rel {
			return
		}
		rel = parent
	}
}

// Stats snapshots the engine.
func (ix *Indexer) Stats() Stats {
	ix.mu.Lock()
	last := ix.lastPass
	workers := ix.workers
	ix.mu.Unlock()

	s := Stats{
		BackgroundFiles:   ix.background.Len(),
		BackgroundSymbols: ix.background.SymbolCount(),
		OverlayFiles:      ix.overlay.Len(),
		Workers:           workers,
		LastPassMs:        last.Duration.Milliseconds(),
	}
	if static := ix.merged.Static(); static != nil {
		s.StaticFiles = static.Len()
	}
	if ix.store != nil {
		counts := ix.store.Counts()
		s.ShardFiles = counts.Files
		s.ShardSymbols = counts.Symbols
	}
	return s
}

// ClearCache wipes shards and metadata, then leaves the engine empty for
// a rebuild.
func (ix *Indexer) ClearCache(ctx context.Context) error {
	for _, uri := range ix.store.AllURIs() {
		ix.RemoveFile(uri)
	}
	ix.meta = gitmeta.DefaultMetadata()
	ix.saveMetadata()
	return nil
}

// autoTune adjusts the worker count from the last pass's average
// per-file time, within [MinWorkers, MaxWorkers].
func (ix *Indexer) autoTune(stats *PassStats) {
	processed := stats.FilesIndexed + stats.FilesUnchanged
	if processed == 0 {
		return
	}
	avg := stats.Duration / time.Duration(processed)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	switch {
	case avg > tuneSlowThreshold && ix.workers > MinWorkers:
		ix.workers--
		ix.logger.Info("auto-tune: reducing workers", "avg_ms", avg.Milliseconds(), "workers", ix.workers)
	case avg < tuneFastThreshold && ix.workers < MaxWorkers:
		ix.workers++
		ix.logger.Info("auto-tune: increasing workers", "avg_ms", avg.Milliseconds(), "workers", ix.workers)
	}
}

func (ix *Indexer) extractSync(uri string, content []byte) (*extractor.FileRecord, error) {
	if parser.DetectLanguage(uri) != parser.LanguageUnknown {
		ix.syncMu.Lock()
		defer ix.syncMu.Unlock()
		return ix.syncExtractor.ExtractFile(uri, content)
	}
	if ix.textIndexer != nil && textindex.Supported(uri) {
		return ix.textIndexer.ExtractFile(uri, content), nil
	}
	return nil, nil
}

func (ix *Indexer) indexableExtensions() map[string]bool {
	exts := make(map[string]bool, 16)
	for _, ext := range parser.ASTExtensions() {
		exts[ext] = true
	}
	if ix.textIndexer != nil {
		for _, ext := range textindex.Extensions() {
			exts[ext] = true
		}
	}
	return exts
}

func (ix *Indexer) cacheDir() string {
	return filepath.Join(ix.config.WorkspaceRoot, ix.config.CacheDirName)
}

func (ix *Indexer) saveMetadata() {
	if err := gitmeta.SaveMetadata(ix.cacheDir(), ix.meta); err != nil {
		ix.logger.Warn("failed to save metadata", "error", err)
	}
}

func (ix *Indexer) recordPass(stats *PassStats) {
	ix.mu.Lock()
	ix.lastPass = *stats
	ix.mu.Unlock()

	ix.logger.Info("indexing pass complete",
		"indexed", stats.FilesIndexed,
		"unchanged", stats.FilesUnchanged,
		"skipped", stats.FilesSkipped,
		"deleted", stats.FilesDeleted,
		"duration_ms", stats.Duration.Milliseconds(),
		"cancelled", stats.Cancelled)
}

func (ix *Indexer) reportProgress(phase string, processed, total int, message string) {
	if ix.progress != nil {
		ix.progress(phase, processed, total, message)
	}
}
