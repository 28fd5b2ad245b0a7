package indexer

import "time"

// DefaultCacheDirName holds metadata and shards inside the workspace.
const DefaultCacheDirName = ".smart-index"

// Worker count bounds for auto-tuning.
const (
	DefaultWorkers = 4
	MinWorkers     = 2
	MaxWorkers     = 8
)

// Auto-tune thresholds: average extraction time per file.
const (
	tuneSlowThreshold = 500 * time.Millisecond
	tuneFastThreshold = 100 * time.Millisecond
)

// Config configures the indexing engine. Zero values select defaults.
type Config struct {
	// WorkspaceRoot is the absolute workspace path.
	WorkspaceRoot string

	// CacheDirName is the cache subdirectory name (default ".smart-index").
	CacheDirName string

	// EnableGitIntegration turns on the HEAD-diff fast path.
	EnableGitIntegration bool

	// ExcludePatterns are additional scan exclusion globs.
	ExcludePatterns []string

	// MaxIndexedFileSize in bytes; oversized files are skipped.
	MaxIndexedFileSize int64

	// MaxConcurrentWorkers is the initial pool size (default 4).
	MaxConcurrentWorkers int

	// EnableBackgroundIndex false restricts the engine to the overlay.
	EnableBackgroundIndex bool

	// TextIndexingEnabled turns on pattern indexing for non-TS languages.
	TextIndexingEnabled bool

	// StaticIndexEnabled / StaticIndexPath load a pre-built read-only
	// index at startup.
	StaticIndexEnabled bool
	StaticIndexPath    string

	// UseFolderHashing enables folder-signature early exit in scans.
	UseFolderHashing bool

	// BatchSize is the progress granularity (files per notification).
	BatchSize int
}

// Phase names reported through progress notifications.
const (
	PhaseScan     = "scan"
	PhaseIndex    = "index"
	PhaseDeadCode = "dead-code"
)

// ProgressFunc receives indexing progress. message may be empty.
type ProgressFunc func(phase string, processed, total int, message string)

// PassStats summarizes one indexing pass.
type PassStats struct {
	FilesScanned   int
	FilesIndexed   int
	FilesUnchanged int
	FilesSkipped   int
	FilesDeleted   int
	SymbolCount    int
	Duration       time.Duration
	Workers        int
	Cancelled      bool
}

// Stats is the engine-wide snapshot served by getStats.
type Stats struct {
	BackgroundFiles   int   `json:"backgroundFiles"`
	BackgroundSymbols int   `json:"backgroundSymbols"`
	OverlayFiles      int   `json:"overlayFiles"`
	StaticFiles       int   `json:"staticFiles"`
	ShardFiles        int   `json:"shardFiles"`
	ShardSymbols      int   `json:"shardSymbols"`
	Workers           int   `json:"workers"`
	LastPassMs        int64 `json:"lastPassMs"`
}
