// Package queries provides tree-sitter query compilation, caching, and execution.
package queries

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/symbolscope/symbolscope/pkg/parser"
	"github.com/symbolscope/symbolscope/pkg/parser/queries/imports"
)

// QueryType identifies which compiled query to execute.
type QueryType int

const (
	// QueryTypeImports extracts import and re-export statements.
	QueryTypeImports QueryType = iota
)

// String returns the string representation of a QueryType.
func (qt QueryType) String() string {
	switch qt {
	case QueryTypeImports:
		return "imports"
	default:
		return "unknown"
	}
}

// queryKey uniquely identifies a compiled query (language + type + TSX).
type queryKey struct {
	lang  parser.Language
	qtype QueryType
	isTSX bool
}

// QueryManager compiles and caches tree-sitter queries.
//
// Queries are compiled lazily on first use and cached per (language, type,
// TSX) key. Compilation happens against the same grammar pointer that
// produced the tree, so TSX trees get TSX-compiled queries.
type QueryManager struct {
	parserManager *parser.ParserManager
	cache         map[queryKey]*ts.Query
	mutex         sync.RWMutex
	logger        *slog.Logger
}

// NewQueryManager creates a new query manager.
func NewQueryManager(pm *parser.ParserManager, logger *slog.Logger) *QueryManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &QueryManager{
		parserManager: pm,
		cache:         make(map[queryKey]*ts.Query),
		logger:        logger,
	}
}

// GetQuery returns a compiled query for the language and type.
//
// Thread-safe; uses double-checked locking around lazy compilation.
func (qm *QueryManager) GetQuery(lang parser.Language, qtype QueryType, isTSX bool) (*ts.Query, error) {
	key := queryKey{lang: lang, qtype: qtype, isTSX: isTSX}

	qm.mutex.RLock()
	query, exists := qm.cache[key]
	qm.mutex.RUnlock()
	if exists {
		return query, nil
	}

	qm.mutex.Lock()
	defer qm.mutex.Unlock()

	if query, exists = qm.cache[key]; exists {
		return query, nil
	}

	queryString, err := qm.getQueryString(lang, qtype)
	if err != nil {
		return nil, err
	}

	langPtr, err := qm.parserManager.GetLanguagePointer(lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to get language pointer for %s: %w", lang, err)
	}

	tsLang := ts.NewLanguage(langPtr)

	query, qerr := ts.NewQuery(tsLang, queryString)
	if qerr != nil {
		return nil, fmt.Errorf("failed to compile %s query for %s: %s", qtype, lang, qerr.Message)
	}

	qm.cache[key] = query

	qm.logger.Debug("compiled query",
		"language", lang.String(),
		"type", qtype.String(),
		"isTSX", isTSX)

	return query, nil
}

func (qm *QueryManager) getQueryString(lang parser.Language, qtype QueryType) (string, error) {
	switch qtype {
	case QueryTypeImports:
		switch lang {
		case parser.LanguageJavaScript:
			return imports.JSQueries, nil
		case parser.LanguageTypeScript:
			return imports.TSQueries, nil
		}
	}
	return "", fmt.Errorf("no %s query for language %s", qtype, lang)
}

// ExecuteQuery runs a compiled query on a parse tree and returns
// structured matches.
func (qm *QueryManager) ExecuteQuery(tree *ts.Tree, query *ts.Query, source []byte) ([]QueryMatch, error) {
	if tree == nil {
		return nil, fmt.Errorf("tree is nil")
	}
	if query == nil {
		return nil, fmt.Errorf("query is nil")
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	iter := cursor.Matches(query, tree.RootNode(), source)
	captureNames := query.CaptureNames()

	var matches []QueryMatch
	for {
		match := iter.Next()
		if match == nil {
			break
		}

		var captures []QueryCapture
		for _, capture := range match.Captures {
			var captureName string
			if int(capture.Index) < len(captureNames) {
				captureName = captureNames[capture.Index]
			}

			category, field := parseCaptureName(captureName)
			text := capture.Node.Utf8Text(source)

			captures = append(captures, QueryCapture{
				Name:     captureName,
				Category: category,
				Field:    field,
				Node:     &capture.Node,
				Text:     text,
			})
		}

		matches = append(matches, QueryMatch{
			PatternIndex: uint32(match.PatternIndex),
			Captures:     captures,
		})
	}

	return matches, nil
}

// Close releases all compiled queries. The manager cannot be used after.
func (qm *QueryManager) Close() error {
	qm.mutex.Lock()
	defer qm.mutex.Unlock()

	qm.logger.Debug("closing QueryManager", "queries_compiled", len(qm.cache))

	for key, query := range qm.cache {
		if query != nil {
			query.Close()
		}
		delete(qm.cache, key)
	}

	return nil
}

// QueryMatch represents a single pattern match from query execution.
type QueryMatch struct {
	PatternIndex uint32
	Captures     []QueryCapture
}

// QueryCapture represents a single captured node from a query match.
type QueryCapture struct {
	// Name is the full capture name (e.g., "import.named")
	Name string

	// Category is the part before the first dot ("import")
	Category string

	// Field is the part after the first dot ("named"); empty if no dot
	Field string

	// Node is the captured AST node
	Node *ts.Node

	// Text is the source text of the captured node
	Text string
}

// parseCaptureName splits "import.named" into ("import", "named").
func parseCaptureName(name string) (category, field string) {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return name, ""
}
