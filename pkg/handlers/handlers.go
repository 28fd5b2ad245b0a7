package handlers

import (
	"fmt"
	"log/slog"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/index"
	"github.com/symbolscope/symbolscope/pkg/position"
	"github.com/symbolscope/symbolscope/pkg/resolver"
	"github.com/symbolscope/symbolscope/pkg/shard"
	"github.com/symbolscope/symbolscope/pkg/util"
)

// definitionCacheSize caps the per-handler result cache.
const definitionCacheSize = 500

// defKey keys the definition cache by request position.
type defKey struct {
	uri  string
	line uint32
	col  uint32
}

// Handlers hosts the request-side logic. One instance serves the whole
// session; the definition cache is handler-private.
type Handlers struct {
	merged   *index.Merged
	store    *shard.Store
	resolver *resolver.Resolver
	position *position.Resolver
	files    *util.FileCache
	docs     DocumentSource
	logger   *slog.Logger

	// defCache memoizes definition results per (file, line, col); a nil
	// entry records a handler failure so the same broken request does
	// not repeat expensive work. Invalidated per file on edit.
	defCache *lru.Cache[defKey, []*extractor.Symbol]

	deadCode *DeadCodeAnalyzer
}

// New wires the handler set.
func New(
	merged *index.Merged,
	store *shard.Store,
	res *resolver.Resolver,
	pos *position.Resolver,
	files *util.FileCache,
	docs DocumentSource,
	logger *slog.Logger,
) (*Handlers, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := lru.New[defKey, []*extractor.Symbol](definitionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create definition cache: %w", err)
	}

	h := &Handlers{
		merged:   merged,
		store:    store,
		resolver: res,
		position: pos,
		files:    files,
		docs:     docs,
		logger:   logger,
		defCache: cache,
	}
	h.deadCode = NewDeadCodeAnalyzer(h, logger)
	return h, nil
}

// DeadCode exposes the analyzer (debounced on-save entry, workspace
// sweeps).
func (h *Handlers) DeadCode() *DeadCodeAnalyzer { return h.deadCode }

// InvalidateFile drops cached results for an edited file. Linear scan:
// the cache holds at most definitionCacheSize entries.
func (h *Handlers) InvalidateFile(uri string) {
	norm := index.NormPath(uri)
	for _, key := range h.defCache.Keys() {
		if index.NormPath(key.uri) == norm {
			h.defCache.Remove(key)
		}
	}
	if h.files != nil {
		h.files.Invalidate(uri)
	}
}

// content returns the live buffer for open documents, the disk content
// otherwise.
func (h *Handlers) content(uri string) ([]byte, error) {
	if h.docs != nil {
		if content, ok := h.docs.Content(uri); ok {
			return content, nil
		}
	}
	return os.ReadFile(uri)
}

// rankingContext snapshots editor state for search ranking.
func (h *Handlers) rankingContext(currentFile string) index.RankingContext {
	rctx := index.RankingContext{CurrentFile: index.NormPath(currentFile)}
	if h.docs != nil {
		rctx.OpenFiles = h.docs.OpenFiles()
	}
	return rctx
}
