// Package handlers implements the request-side logic: definition,
// references, workspace symbol, hover, rename, and dead-code analysis.
// The LSP layer is a thin adapter over these.
package handlers

import (
	"github.com/symbolscope/symbolscope/pkg/extractor"
)

// Position is a 0-based cursor position.
type Position struct {
	Line   uint32
	Column uint32
}

// Location is a file range result.
type Location struct {
	URI   string          `json:"uri"`
	Range extractor.Range `json:"range"`
}

// ReferenceConfidence classifies how a reference site was matched.
type ReferenceConfidence string

const (
	// ConfidenceExact: the site uses the symbol's own name.
	ConfidenceExact ReferenceConfidence = "exact"
	// ConfidenceImport: the site uses a local rename of the import.
	ConfidenceImport ReferenceConfidence = "import"
	// ConfidenceNgrxMedium: loose-mode match through a wildcard import
	// or an action-type string.
	ConfidenceNgrxMedium ReferenceConfidence = "ngrx-medium"
)

// ReferenceResult is one reference site with provenance.
type ReferenceResult struct {
	Location   Location            `json:"location"`
	Confidence ReferenceConfidence `json:"confidence"`
}

// DocumentSource supplies open-document content; the LSP layer backs it
// with the didOpen/didChange overlay.
type DocumentSource interface {
	// Content returns the live buffer for a uri, or ok=false when the
	// document is not open (callers then read from disk).
	Content(uri string) (content []byte, ok bool)

	// OpenFiles lists currently open documents (normalized paths).
	OpenFiles() map[string]bool
}

// TextEdit is one replacement for rename.
type TextEdit struct {
	URI     string          `json:"uri"`
	Range   extractor.Range `json:"range"`
	NewText string          `json:"newText"`
}

// symbolLocation converts a definition symbol to a result location.
func symbolLocation(sym *extractor.Symbol) Location {
	return Location{URI: sym.FilePath, Range: sym.Range}
}
