package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/uri"

	"github.com/symbolscope/symbolscope/pkg/handlers"
	"github.com/symbolscope/symbolscope/pkg/indexer"
	"github.com/symbolscope/symbolscope/pkg/parser"
	"github.com/symbolscope/symbolscope/pkg/parser/queries"
	"github.com/symbolscope/symbolscope/pkg/position"
	"github.com/symbolscope/symbolscope/pkg/resolver"
	"github.com/symbolscope/symbolscope/pkg/util"
)

// Server is the LSP session: lifecycle, document sync, and dispatch
// into the request handlers.
//
// Request errors do not propagate to the client as failures — handlers
// log and return empty results so the editor UX is not blocked. The
// exceptions are initialize, which replies with an error when its params
// do not decode, and unknown methods, which get a method-not-found error.
type Server struct {
	logger *slog.Logger

	mu            sync.Mutex
	workspaceRoot string
	opts          Options
	initialized   bool
	shuttingDown  bool

	docs     *documentStore
	indexer  *indexer.Indexer
	handlers *handlers.Handlers
	resolver *resolver.Resolver
	watcher  *indexer.FileWatcher

	parserManager *parser.ParserManager
	queryManager  *queries.QueryManager
	fileCache     *util.FileCache

	conn jsonrpc2.Conn
}

// NewServer creates an unstarted server.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger: logger,
		docs:   newDocumentStore(),
	}
}

// Handle dispatches one JSON-RPC request or notification.
func (s *Server) Handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic", "method", req.Method(), "panic", r)
			// The client still needs an answer; an empty result keeps
			// the editor unblocked. Double replies are ignored.
			_ = reply(ctx, nil, nil)
		}
	}()

	switch req.Method() {
	case "initialize":
		return s.handleInitialize(ctx, reply, req)
	case "initialized":
		s.handleInitialized(ctx)
		return reply(ctx, nil, nil)
	case "shutdown":
		s.mu.Lock()
		s.shuttingDown = true
		s.mu.Unlock()
		return reply(ctx, nil, nil)
	case "exit":
		s.teardown()
		return reply(ctx, nil, nil)

	case "textDocument/didOpen":
		return s.handleDidOpen(ctx, reply, req)
	case "textDocument/didChange":
		return s.handleDidChange(ctx, reply, req)
	case "textDocument/didSave":
		return s.handleDidSave(ctx, reply, req)
	case "textDocument/didClose":
		return s.handleDidClose(ctx, reply, req)

	case "textDocument/definition", "textDocument/implementation":
		return s.handleDefinition(ctx, reply, req)
	case "textDocument/references":
		return s.handleReferences(ctx, reply, req)
	case "textDocument/hover":
		return s.handleHover(ctx, reply, req)
	case "textDocument/prepareRename":
		return s.handlePrepareRename(ctx, reply, req)
	case "textDocument/rename":
		return s.handleRename(ctx, reply, req)
	case "textDocument/completion":
		return s.handleCompletion(ctx, reply, req)
	case "workspace/symbol":
		return s.handleWorkspaceSymbol(ctx, reply, req)

	case "symbolscope/rebuildIndex", "rebuildIndex":
		go s.rebuild(context.Background())
		return reply(ctx, "rebuilding", nil)
	case "symbolscope/clearCache", "clearCache":
		return s.handleClearCache(ctx, reply)
	case "symbolscope/getStats", "getStats":
		return s.handleGetStats(ctx, reply)
	case "symbolscope/inspectIndex", "inspectIndex":
		return s.handleInspectIndex(ctx, reply)
	case "symbolscope/findDeadCode", "findDeadCode":
		return s.handleFindDeadCode(ctx, reply, req)
	}

	return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
}

// ----------------------------------------------------------------------
// Lifecycle
// ----------------------------------------------------------------------

func (s *Server) handleInitialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, fmt.Errorf("invalid initialize params: %w", err))
	}

	root := params.RootPath
	if params.RootURI != "" {
		root = params.RootURI.Filename()
	}
	root, _ = filepath.Abs(root)

	s.mu.Lock()
	s.workspaceRoot = root
	s.opts = loadOptions(root, params.InitializationOptions, s.logger)
	s.mu.Unlock()

	if err := s.buildComponents(ctx); err != nil {
		// Startup failures degrade to an empty but responsive server.
		s.logger.Error("initialization failed", "error", err)
	}

	s.logger.Info("initialized", "workspace", root)

	return reply(ctx, InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: TextDocumentSyncOptions{
				OpenClose: true,
				Change:    SyncIncremental,
				Save:      true,
			},
			CompletionProvider:      CompletionOptions{TriggerCharacters: []string{"."}},
			DefinitionProvider:      true,
			ReferencesProvider:      true,
			HoverProvider:           true,
			ImplementationProvider:  true,
			RenameProvider:          RenameOptions{PrepareProvider: true},
			WorkspaceSymbolProvider: true,
		},
	}, nil)
}

// buildComponents wires the engine after the workspace root is known.
func (s *Server) buildComponents(ctx context.Context) error {
	s.parserManager = parser.NewParserManager(s.logger)
	s.queryManager = queries.NewQueryManager(s.parserManager, s.logger)
	s.fileCache = util.NewFileCache(util.FileCacheConfig{}, s.logger)

	progress := func(phase string, processed, total int, message string) {
		s.notify(ProgressMethod, ProgressParams{
			Phase:     phase,
			Processed: processed,
			Total:     total,
			Message:   message,
		})
	}

	s.indexer = indexer.New(s.opts.indexerConfig(s.workspaceRoot), s.parserManager, s.queryManager, progress, s.logger)
	if err := s.indexer.Start(ctx); err != nil {
		return err
	}

	s.resolver = resolver.New(s.workspaceRoot, s.indexer.Merged(), s.logger)
	posResolver := position.NewResolver(s.parserManager, s.logger)

	h, err := handlers.New(s.indexer.Merged(), s.indexer.Store(), s.resolver, posResolver, s.fileCache, s.docs, s.logger)
	if err != nil {
		return err
	}
	s.handlers = h

	s.handlers.DeadCode().SetDiagnosticsFunc(func(fileURI string, candidates []handlers.DeadCodeCandidate) {
		s.publishDeadCode(fileURI, candidates)
	})

	return nil
}

// handleInitialized kicks off the first index pass and the watcher.
func (s *Server) handleInitialized(ctx context.Context) {
	s.mu.Lock()
	if s.initialized || s.indexer == nil {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	s.mu.Unlock()

	go func() {
		if _, err := s.indexer.InitialPass(context.Background()); err != nil {
			s.logger.Warn("initial index pass failed", "error", err)
		}
	}()

	watcher, err := indexer.NewFileWatcher(s.indexer, s.resolver.Invalidate, s.logger)
	if err != nil {
		s.logger.Warn("file watcher unavailable", "error", err)
		return
	}
	if err := watcher.Start(s.workspaceRoot); err != nil {
		s.logger.Warn("file watcher failed to start", "error", err)
		return
	}
	s.watcher = watcher
}

func (s *Server) teardown() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.handlers != nil {
		s.handlers.DeadCode().CancelAll()
	}
	if s.fileCache != nil {
		s.fileCache.Close()
	}
	if s.queryManager != nil {
		s.queryManager.Close()
	}
	if s.parserManager != nil {
		s.parserManager.Close()
	}
}

// ----------------------------------------------------------------------
// Document sync
// ----------------------------------------------------------------------

func (s *Server) handleDidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, nil)
	}
	path := params.TextDocument.URI.Filename()
	content := []byte(params.TextDocument.Text)

	s.docs.Open(path, content)
	if s.ready() {
		s.indexer.UpdateOverlay(path, content)
		s.handlers.InvalidateFile(path)
	}
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, nil)
	}
	path := params.TextDocument.URI.Filename()

	content, err := s.docs.Apply(path, params.ContentChanges)
	if err != nil {
		s.logger.Warn("didChange apply failed", "uri", path, "error", err)
		return reply(ctx, nil, nil)
	}

	// Overlay update is synchronous: the next handler read sees this
	// edit (read-your-writes).
	if s.ready() {
		s.indexer.UpdateOverlay(path, content)
		s.handlers.InvalidateFile(path)
	}
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidSave(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params DidSaveTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, nil)
	}
	path := params.TextDocument.URI.Filename()

	if s.ready() {
		if content, ok := s.docs.Content(path); ok {
			if err := s.indexer.IndexFile(path, content); err != nil {
				s.logger.Warn("save reindex failed", "uri", path, "error", err)
			}
		}
		// Passive dead-code analysis, debounced.
		s.handlers.DeadCode().ScheduleFile(path)
	}
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, nil)
	}
	path := params.TextDocument.URI.Filename()

	s.docs.Close(path)
	if s.ready() {
		s.indexer.RemoveOverlay(path)
		s.handlers.InvalidateFile(path)
	}
	return reply(ctx, nil, nil)
}

// ----------------------------------------------------------------------
// Language features
// ----------------------------------------------------------------------

func (s *Server) handleDefinition(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params TextDocumentPositionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil || !s.ready() {
		return reply(ctx, []Location{}, nil)
	}
	path := params.TextDocument.URI.Filename()

	results := s.handlers.Definition(ctx, path, handlers.Position{
		Line:   params.Position.Line,
		Column: params.Position.Character,
	})

	locations := make([]Location, 0, len(results))
	for _, loc := range results {
		locations = append(locations, Location{URI: uri.File(loc.URI), Range: toLSPRange(loc.Range)})
	}
	return reply(ctx, locations, nil)
}

func (s *Server) handleReferences(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params ReferenceParams
	if err := json.Unmarshal(req.Params(), &params); err != nil || !s.ready() {
		return reply(ctx, []Location{}, nil)
	}
	path := params.TextDocument.URI.Filename()

	results := s.handlers.References(ctx, path, handlers.Position{
		Line:   params.Position.Line,
		Column: params.Position.Character,
	}, params.Context.IncludeDeclaration)

	locations := make([]Location, 0, len(results))
	for _, result := range results {
		locations = append(locations, Location{
			URI:   uri.File(result.Location.URI),
			Range: toLSPRange(result.Location.Range),
		})
	}
	return reply(ctx, locations, nil)
}

func (s *Server) handleHover(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params TextDocumentPositionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil || !s.ready() {
		return reply(ctx, nil, nil)
	}
	path := params.TextDocument.URI.Filename()

	markdown := s.handlers.Hover(ctx, path, handlers.Position{
		Line:   params.Position.Line,
		Column: params.Position.Character,
	})
	if markdown == "" {
		return reply(ctx, nil, nil)
	}
	return reply(ctx, Hover{Contents: MarkupContent{Kind: MarkdownMarkup, Value: markdown}}, nil)
}

func (s *Server) handlePrepareRename(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params TextDocumentPositionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil || !s.ready() {
		return reply(ctx, nil, nil)
	}
	path := params.TextDocument.URI.Filename()

	result, err := s.handlers.PrepareRename(ctx, path, handlers.Position{
		Line:   params.Position.Line,
		Column: params.Position.Character,
	})
	if err != nil {
		s.logger.Debug("prepareRename rejected", "error", err)
		return reply(ctx, nil, nil)
	}
	return reply(ctx, PrepareRenameResult{
		Range:       toLSPRange(result.Range),
		Placeholder: result.Placeholder,
	}, nil)
}

func (s *Server) handleRename(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params RenameParams
	if err := json.Unmarshal(req.Params(), &params); err != nil || !s.ready() {
		return reply(ctx, nil, nil)
	}
	path := params.TextDocument.URI.Filename()

	edits, err := s.handlers.Rename(ctx, path, handlers.Position{
		Line:   params.Position.Line,
		Column: params.Position.Character,
	}, params.NewName)
	if err != nil {
		s.logger.Debug("rename rejected", "error", err)
		return reply(ctx, nil, nil)
	}

	changes := make(map[uri.URI][]TextEdit)
	for _, edit := range edits {
		fileURI := uri.File(edit.URI)
		changes[fileURI] = append(changes[fileURI], TextEdit{
			Range:   toLSPRange(edit.Range),
			NewText: edit.NewText,
		})
	}
	return reply(ctx, WorkspaceEdit{Changes: changes}, nil)
}

func (s *Server) handleCompletion(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params TextDocumentPositionParams
	if err := json.Unmarshal(req.Params(), &params); err != nil || !s.ready() {
		return reply(ctx, []CompletionItem{}, nil)
	}
	path := params.TextDocument.URI.Filename()

	items := s.handlers.Completion(ctx, path, handlers.Position{
		Line:   params.Position.Line,
		Column: params.Position.Character,
	})

	out := make([]CompletionItem, 0, len(items))
	for _, item := range items {
		kind, ok := completionKindCodes[item.Kind]
		if !ok {
			kind = 6
		}
		out = append(out, CompletionItem{Label: item.Label, Kind: kind, Detail: item.Detail})
	}
	return reply(ctx, out, nil)
}

func (s *Server) handleWorkspaceSymbol(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params WorkspaceSymbolParams
	if err := json.Unmarshal(req.Params(), &params); err != nil || !s.ready() {
		return reply(ctx, []SymbolInformation{}, nil)
	}

	results := s.handlers.WorkspaceSymbol(ctx, params.Query, "")

	out := make([]SymbolInformation, 0, len(results))
	for _, info := range results {
		kind, ok := symbolKindCodes[info.Kind]
		if !ok {
			kind = 13
		}
		out = append(out, SymbolInformation{
			Name:          info.Name,
			Kind:          kind,
			Location:      Location{URI: uri.File(info.Location.URI), Range: toLSPRange(info.Location.Range)},
			ContainerName: info.ContainerName,
		})
	}
	return reply(ctx, out, nil)
}

// ----------------------------------------------------------------------
// Custom requests
// ----------------------------------------------------------------------

func (s *Server) rebuild(ctx context.Context) {
	if !s.ready() {
		return
	}
	if _, err := s.indexer.IndexWorkspace(ctx, true); err != nil {
		s.logger.Warn("rebuild failed", "error", err)
	}
}

func (s *Server) handleClearCache(ctx context.Context, reply jsonrpc2.Replier) error {
	if !s.ready() {
		return reply(ctx, nil, nil)
	}
	if err := s.indexer.ClearCache(ctx); err != nil {
		s.logger.Warn("clearCache failed", "error", err)
	}
	s.resolver.Invalidate()
	return reply(ctx, "cleared", nil)
}

func (s *Server) handleGetStats(ctx context.Context, reply jsonrpc2.Replier) error {
	if !s.ready() {
		return reply(ctx, nil, nil)
	}
	return reply(ctx, s.indexer.Stats(), nil)
}

func (s *Server) handleInspectIndex(ctx context.Context, reply jsonrpc2.Replier) error {
	if !s.ready() {
		return reply(ctx, nil, nil)
	}

	stats := s.indexer.Stats()
	folderBreakdown := make(map[string]int)
	for _, fileURI := range s.indexer.Store().AllURIs() {
		rel, err := filepath.Rel(s.workspaceRoot, fileURI)
		if err != nil {
			rel = fileURI
		}
		folderBreakdown[filepath.ToSlash(filepath.Dir(rel))]++
	}

	return reply(ctx, map[string]any{
		"folderBreakdown": folderBreakdown,
		"dynamic":         stats.OverlayFiles,
		"background":      stats.BackgroundFiles,
		"static":          stats.StaticFiles,
		"symbols":         stats.BackgroundSymbols,
		"workers":         stats.Workers,
	}, nil)
}

func (s *Server) handleFindDeadCode(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params FindDeadCodeParams
	if len(req.Params()) > 0 {
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			s.logger.Warn("invalid findDeadCode params", "error", err)
			return reply(ctx, &handlers.DeadCodeReport{}, nil)
		}
	}
	if !s.ready() {
		return reply(ctx, &handlers.DeadCodeReport{}, nil)
	}

	scope := params.ScopeURI
	if strings.HasPrefix(scope, "file://") {
		scope = uri.URI(scope).Filename()
	}

	token := util.NewCancellationToken()
	report := s.handlers.DeadCode().AnalyzeWorkspace(ctx, token, handlers.DeadCodeOptions{
		ScopeURI:        scope,
		ExcludePatterns: params.ExcludePatterns,
		IncludeTests:    params.IncludeTests,
	}, func(processed, total int) {
		s.notify(ProgressMethod, ProgressParams{
			Phase:     indexer.PhaseDeadCode,
			Processed: processed,
			Total:     total,
		})
	})
	return reply(ctx, report, nil)
}

// ----------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------

func (s *Server) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexer != nil && s.handlers != nil && !s.shuttingDown
}

func (s *Server) notify(method string, params any) {
	if s.conn == nil {
		return
	}
	if err := s.conn.Notify(context.Background(), method, params); err != nil {
		s.logger.Debug("notification failed", "method", method, "error", err)
	}
}

func (s *Server) publishDeadCode(fileURI string, candidates []handlers.DeadCodeCandidate) {
	diagnostics := make([]Diagnostic, 0, len(candidates))
	for _, candidate := range candidates {
		diagnostics = append(diagnostics, Diagnostic{
			Range:    toLSPRange(candidate.Location.Range),
			Severity: SeverityHint,
			Source:   "symbolscope",
			Message:  fmt.Sprintf("%q appears unused (%s confidence): %s", candidate.Name, candidate.Confidence, candidate.Reason),
			Tags:     []int{TagUnnecessary},
		})
	}
	s.notify(DiagnosticMethod, PublishDiagnosticsParams{
		URI:         uri.File(fileURI),
		Diagnostics: diagnostics,
	})
}
