// Package lsp adapts the request handlers to the Language Server
// Protocol over stdio JSON-RPC. Only the subset of the protocol this
// server implements is modeled; the wire layer itself stays thin.
package lsp

import (
	"encoding/json"

	"go.lsp.dev/uri"

	"github.com/symbolscope/symbolscope/pkg/extractor"
)

// Position is an LSP position (0-based).
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

// Range is an LSP range; End is exclusive.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is an LSP location.
type Location struct {
	URI   uri.URI `json:"uri"`
	Range Range   `json:"range"`
}

// TextDocumentIdentifier names a document.
type TextDocumentIdentifier struct {
	URI uri.URI `json:"uri"`
}

// TextDocumentItem is the didOpen payload.
type TextDocumentItem struct {
	URI        uri.URI `json:"uri"`
	LanguageID string  `json:"languageId"`
	Version    int32   `json:"version"`
	Text       string  `json:"text"`
}

// TextDocumentPositionParams is the shared request base.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// InitializeParams is the subset of initialize this server consumes.
type InitializeParams struct {
	RootURI               uri.URI         `json:"rootUri"`
	RootPath              string          `json:"rootPath"`
	InitializationOptions json.RawMessage `json:"initializationOptions"`
}

// InitializeResult advertises capabilities.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}

// ServerCapabilities is the advertised capability set.
type ServerCapabilities struct {
	TextDocumentSync        TextDocumentSyncOptions `json:"textDocumentSync"`
	CompletionProvider      CompletionOptions       `json:"completionProvider"`
	DefinitionProvider      bool                    `json:"definitionProvider"`
	ReferencesProvider      bool                    `json:"referencesProvider"`
	HoverProvider           bool                    `json:"hoverProvider"`
	ImplementationProvider  bool                    `json:"implementationProvider"`
	RenameProvider          RenameOptions           `json:"renameProvider"`
	WorkspaceSymbolProvider bool                    `json:"workspaceSymbolProvider"`
}

// TextDocumentSyncOptions requests incremental sync.
type TextDocumentSyncOptions struct {
	OpenClose bool `json:"openClose"`
	Change    int  `json:"change"` // 2 = incremental
	Save      bool `json:"save"`
}

// CompletionOptions with the member-access trigger.
type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters"`
}

// RenameOptions enables prepareRename.
type RenameOptions struct {
	PrepareProvider bool `json:"prepareProvider"`
}

// DidOpenTextDocumentParams for textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidChangeTextDocumentParams for textDocument/didChange.
type DidChangeTextDocumentParams struct {
	TextDocument   TextDocumentIdentifier           `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// TextDocumentContentChangeEvent is one incremental (or full) change.
type TextDocumentContentChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

// DidSaveTextDocumentParams for textDocument/didSave.
type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         string                 `json:"text,omitempty"`
}

// DidCloseTextDocumentParams for textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// ReferenceParams adds the declaration toggle.
type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

// ReferenceContext for references requests.
type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// RenameParams for textDocument/rename.
type RenameParams struct {
	TextDocumentPositionParams
	NewName string `json:"newName"`
}

// PrepareRenameResult is the validated range + placeholder.
type PrepareRenameResult struct {
	Range       Range  `json:"range"`
	Placeholder string `json:"placeholder"`
}

// WorkspaceEdit carries rename edits keyed by document.
type WorkspaceEdit struct {
	Changes map[uri.URI][]TextEdit `json:"changes"`
}

// TextEdit is one replacement.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// Hover is the markdown hover result.
type Hover struct {
	Contents MarkupContent `json:"contents"`
}

// MarkupContent is LSP markup.
type MarkupContent struct {
	Kind  string `json:"kind"` // "markdown"
	Value string `json:"value"`
}

// CompletionItem is one completion result.
type CompletionItem struct {
	Label  string `json:"label"`
	Kind   int    `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// completionKindCodes maps internal kinds to LSP CompletionItemKind.
var completionKindCodes = map[extractor.SymbolKind]int{
	extractor.KindClass:      7,
	extractor.KindInterface:  8,
	extractor.KindFunction:   3,
	extractor.KindMethod:     2,
	extractor.KindProperty:   10,
	extractor.KindVariable:   6,
	extractor.KindConstant:   21,
	extractor.KindType:       7,
	extractor.KindEnum:       13,
	extractor.KindEnumMember: 20,
	extractor.KindNamespace:  9,
	extractor.KindModule:     9,
	extractor.KindText:       1,
}

// WorkspaceSymbolParams for workspace/symbol.
type WorkspaceSymbolParams struct {
	Query string `json:"query"`
}

// SymbolInformation is one workspace-symbol result.
type SymbolInformation struct {
	Name          string   `json:"name"`
	Kind          int      `json:"kind"`
	Location      Location `json:"location"`
	ContainerName string   `json:"containerName,omitempty"`
}

// Diagnostic severities and tags used by the dead-code publisher.
const (
	SeverityHint     = 4
	TagUnnecessary   = 1
	MarkdownMarkup   = "markdown"
	SyncIncremental  = 2
	ProgressMethod   = "indexer/progress"
	DiagnosticMethod = "textDocument/publishDiagnostics"
)

// Diagnostic is one published diagnostic.
type Diagnostic struct {
	Range    Range  `json:"range"`
	Severity int    `json:"severity"`
	Source   string `json:"source"`
	Message  string `json:"message"`
	Tags     []int  `json:"tags,omitempty"`
}

// PublishDiagnosticsParams for textDocument/publishDiagnostics.
type PublishDiagnosticsParams struct {
	URI         uri.URI      `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// ProgressParams is the custom indexer/progress notification.
type ProgressParams struct {
	Phase     string `json:"phase"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Message   string `json:"message,omitempty"`
}

// FindDeadCodeParams for the custom findDeadCode request.
type FindDeadCodeParams struct {
	ExcludePatterns []string `json:"excludePatterns,omitempty"`
	IncludeTests    bool     `json:"includeTests,omitempty"`
	ScopeURI        string   `json:"scopeUri,omitempty"`
}

// symbolKindCodes maps internal kinds to LSP SymbolKind codes.
var symbolKindCodes = map[extractor.SymbolKind]int{
	extractor.KindClass:      5,
	extractor.KindInterface:  11,
	extractor.KindFunction:   12,
	extractor.KindMethod:     6,
	extractor.KindProperty:   7,
	extractor.KindVariable:   13,
	extractor.KindConstant:   14,
	extractor.KindType:       5,
	extractor.KindEnum:       10,
	extractor.KindEnumMember: 22,
	extractor.KindNamespace:  3,
	extractor.KindModule:     2,
	extractor.KindParameter:  13,
	extractor.KindText:       15, // string
}

// toLSPRange converts an internal range.
func toLSPRange(r extractor.Range) Range {
	return Range{
		Start: Position{Line: r.StartLine, Character: r.StartColumn},
		End:   Position{Line: r.EndLine, Character: r.EndColumn},
	}
}
