package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/symbolscope/symbolscope/pkg/handlers"
	"github.com/symbolscope/symbolscope/pkg/indexer"
	"github.com/symbolscope/symbolscope/pkg/parser"
	"github.com/symbolscope/symbolscope/pkg/parser/queries"
	"github.com/symbolscope/symbolscope/pkg/position"
	"github.com/symbolscope/symbolscope/pkg/resolver"
	"github.com/symbolscope/symbolscope/pkg/util"
)

// engine is the standalone (non-LSP) assembly used by the index,
// deadcode, and mcp commands.
type engine struct {
	Indexer  *indexer.Indexer
	Handlers *handlers.Handlers

	parserManager *parser.ParserManager
	queryManager  *queries.QueryManager
	fileCache     *util.FileCache
}

// buildEngine assembles and starts the indexing engine for a workspace.
func buildEngine(ctx context.Context, workspace string, progress indexer.ProgressFunc, logger *slog.Logger) (*engine, error) {
	root, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace path: %w", err)
	}

	pm := parser.NewParserManager(logger)
	qm := queries.NewQueryManager(pm, logger)
	fc := util.NewFileCache(util.FileCacheConfig{}, logger)

	ix := indexer.New(indexer.Config{
		WorkspaceRoot:         root,
		EnableGitIntegration:  true,
		EnableBackgroundIndex: true,
		TextIndexingEnabled:   true,
		UseFolderHashing:      true,
	}, pm, qm, progress, logger)
	if err := ix.Start(ctx); err != nil {
		pm.Close()
		return nil, err
	}

	res := resolver.New(root, ix.Merged(), logger)
	pos := position.NewResolver(pm, logger)

	h, err := handlers.New(ix.Merged(), ix.Store(), res, pos, fc, nil, logger)
	if err != nil {
		pm.Close()
		return nil, err
	}

	return &engine{
		Indexer:       ix,
		Handlers:      h,
		parserManager: pm,
		queryManager:  qm,
		fileCache:     fc,
	}, nil
}

// Close releases parser and cache resources.
func (e *engine) Close() {
	e.fileCache.Close()
	e.queryManager.Close()
	e.parserManager.Close()
}
