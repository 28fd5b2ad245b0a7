package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/symbolscope/symbolscope/pkg/extractor"
)

// PrepareRenameResult validates a rename request.
type PrepareRenameResult struct {
	Range       extractor.Range `json:"range"`
	Placeholder string          `json:"placeholder"`
}

// PrepareRename checks that the cursor sits on a known, workspace-local
// symbol. External symbols (anything under node_modules) are rejected.
func (h *Handlers) PrepareRename(ctx context.Context, uri string, pos Position) (*PrepareRenameResult, error) {
	content, err := h.content(uri)
	if err != nil {
		return nil, fmt.Errorf("cannot read document: %w", err)
	}
	info := h.position.SymbolAt(uri, content, pos.Line, pos.Column)
	if info == nil {
		return nil, fmt.Errorf("no symbol at position")
	}

	defs := h.definitionsOf(info.Name)
	if len(defs) == 0 {
		return nil, fmt.Errorf("unknown symbol %q", info.Name)
	}
	for _, def := range defs {
		if strings.Contains(def.FilePath, "node_modules") {
			return nil, fmt.Errorf("cannot rename external symbol %q", info.Name)
		}
	}

	return &PrepareRenameResult{Range: info.Range, Placeholder: info.Name}, nil
}

// Rename produces text edits for the definition and every reference.
// Edits are sorted bottom-up per file so earlier edits never shift the
// offsets of later ones.
func (h *Handlers) Rename(ctx context.Context, uri string, pos Position, newName string) ([]TextEdit, error) {
	content, err := h.content(uri)
	if err != nil {
		return nil, fmt.Errorf("cannot read document: %w", err)
	}
	info := h.position.SymbolAt(uri, content, pos.Line, pos.Column)
	if info == nil {
		return nil, fmt.Errorf("no symbol at position")
	}
	if newName == info.Name {
		// Renaming to the same name is a no-op edit.
		return nil, nil
	}

	seen := make(map[string]bool)
	var edits []TextEdit
	add := func(fileURI string, r extractor.Range) {
		key := fmt.Sprintf("%s:%d:%d", fileURI, r.StartLine, r.StartColumn)
		if seen[key] {
			return
		}
		seen[key] = true
		edits = append(edits, TextEdit{URI: fileURI, Range: r, NewText: newName})
	}

	for _, def := range h.merged.FindDefinitions(info.Name) {
		if strings.Contains(def.FilePath, "node_modules") {
			continue
		}
		add(def.FilePath, def.Range)
	}
	for _, result := range h.References(ctx, uri, pos, false) {
		if result.Confidence == ConfidenceNgrxMedium {
			// String-literal and wildcard matches are not safe to edit.
			continue
		}
		add(result.Location.URI, result.Location.Range)
	}

	// Bottom-up within each file.
	sort.Slice(edits, func(i, j int) bool {
		if edits[i].URI != edits[j].URI {
			return edits[i].URI < edits[j].URI
		}
		if edits[i].Range.StartLine != edits[j].Range.StartLine {
			return edits[i].Range.StartLine > edits[j].Range.StartLine
		}
		return edits[i].Range.StartColumn > edits[j].Range.StartColumn
	})

	return edits, nil
}
