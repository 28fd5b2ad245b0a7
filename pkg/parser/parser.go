// Package parser manages tree-sitter parsers for TypeScript and JavaScript.
package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// poolKey uniquely identifies a parser pool (language + TSX variant).
type poolKey struct {
	lang  Language
	isTSX bool
}

// ParserManager manages tree-sitter parsers with lazy pool initialization
// and thread-safe concurrent access.
//
// Memory Management:
//   - Parser pools are created lazily on first use per language
//   - ParserManager owns the pools and must be closed via Close()
//   - Callers own Tree instances and must call tree.Close() after use
//
// Thread Safety:
//   - Multiple goroutines can parse the same language simultaneously;
//     each borrows a parser from a bounded pool
type ParserManager struct {
	pools  map[poolKey]*parserPool
	mutex  sync.RWMutex
	logger *slog.Logger

	stats struct {
		parsersCreated int
		parsesCalled   int
	}
}

// NewParserManager creates a new ParserManager instance.
//
// The returned manager must be closed via Close() to free resources.
func NewParserManager(logger *slog.Logger) *ParserManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ParserManager{
		pools:  make(map[poolKey]*parserPool),
		logger: logger,
	}
}

// Parse parses source code using the specified language grammar.
//
// isTSX is only relevant for TypeScript - it enables JSX support.
//
// Returns a Tree that MUST be closed by the caller via tree.Close().
// A tree with syntax errors is still returned; partial trees are useful.
func (pm *ParserManager) Parse(source []byte, lang Language, isTSX bool) (*ts.Tree, error) {
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("cannot parse unknown language")
	}

	pm.mutex.Lock()
	pm.stats.parsesCalled++
	pm.mutex.Unlock()

	pool, err := pm.getOrCreatePool(lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool for %s: %w", lang, err)
	}

	parser, err := pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire parser: %w", err)
	}

	tree := parser.Parse(source, nil)
	pool.release(parser)

	if tree == nil {
		return nil, fmt.Errorf("parser.Parse returned nil tree")
	}

	if tree.RootNode().HasError() {
		pm.logger.Debug("parse tree contains errors", "language", lang.String())
	}

	return tree, nil
}

// ParseFile parses a file by detecting its language from the file path.
//
// Returns a Tree that MUST be closed by the caller via tree.Close().
func (pm *ParserManager) ParseFile(source []byte, filePath string) (*ts.Tree, error) {
	lang := DetectLanguage(filePath)
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("unsupported file extension: %s", filePath)
	}

	return pm.Parse(source, lang, IsTSXFile(filePath))
}

// Close releases all parser pool resources. After Close() the manager
// cannot be used.
func (pm *ParserManager) Close() error {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.logger.Info("closing ParserManager",
		"parsers_created", pm.stats.parsersCreated,
		"parses_called", pm.stats.parsesCalled)

	for key, pool := range pm.pools {
		if pool != nil {
			pool.close()
			pm.logger.Debug("closed parser pool",
				"language", key.lang.String(),
				"isTSX", key.isTSX)
		}
	}
	pm.pools = make(map[poolKey]*parserPool)

	return nil
}

// getOrCreatePool returns an existing parser pool or creates a new one.
// Thread-safe using double-checked locking.
func (pm *ParserManager) getOrCreatePool(lang Language, isTSX bool) (*parserPool, error) {
	key := poolKey{lang: lang, isTSX: isTSX}

	pm.mutex.RLock()
	pool, exists := pm.pools[key]
	pm.mutex.RUnlock()
	if exists {
		return pool, nil
	}

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pool, exists = pm.pools[key]; exists {
		return pool, nil
	}

	langPtr, err := pm.GetLanguagePointer(lang, isTSX)
	if err != nil {
		return nil, err
	}

	pool = newParserPool(lang, langPtr, isTSX, getDefaultPoolSize(), pm.logger)
	pm.pools[key] = pool

	pm.logger.Debug("created new parser pool",
		"language", lang.String(),
		"isTSX", isTSX)

	return pool, nil
}

// GetLanguagePointer returns the unsafe.Pointer to the tree-sitter grammar.
//
// Used by QueryManager to compile queries against the same grammar that
// produced the tree.
func (pm *ParserManager) GetLanguagePointer(lang Language, isTSX bool) (unsafe.Pointer, error) {
	switch lang {
	case LanguageTypeScript:
		if isTSX {
			return ts_typescript.LanguageTSX(), nil
		}
		return ts_typescript.LanguageTypescript(), nil

	case LanguageJavaScript:
		return ts_javascript.Language(), nil

	default:
		return nil, fmt.Errorf("unsupported language: %s", lang.String())
	}
}

// GetStats returns parser usage statistics.
func (pm *ParserManager) GetStats() ParserStats {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	totalParsers := 0
	for _, pool := range pm.pools {
		totalParsers += pool.getCreatedCount()
	}

	return ParserStats{
		ParsersCreated: totalParsers,
		ParsesCalled:   pm.stats.parsesCalled,
	}
}

// ParserStats contains parser usage statistics.
type ParserStats struct {
	ParsersCreated int
	ParsesCalled   int
}
