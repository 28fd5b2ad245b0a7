package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/index"
)

// candidateFileLimit caps the shard-store candidate query.
const candidateFileLimit = 2000

// ngrxNamePattern is part of the loose-mode activation predicate: action
// containers conventionally end in Actions/actions.
var ngrxNamePattern = regexp.MustCompile(`(Actions?|actions?)$`)

// References finds all use sites of the symbol at the cursor.
//
// Base set from the inverted index, then per-candidate-file import
// analysis derives which local token the file uses for the symbol
// (rename table), and NgRx loose mode widens the net for action
// patterns.
func (h *Handlers) References(ctx context.Context, uri string, pos Position, includeDeclaration bool) []ReferenceResult {
	content, err := h.content(uri)
	if err != nil {
		return nil
	}
	info := h.position.SymbolAt(uri, content, pos.Line, pos.Column)
	if info == nil {
		return nil
	}
	symbolName := info.Name

	// The definition file anchors both the basename hint and loose mode.
	definitionFile := uri
	if defs := h.definitionsOf(symbolName); len(defs) > 0 {
		definitionFile = defs[0].FilePath
	}
	basename := strings.TrimSuffix(filepath.Base(definitionFile), filepath.Ext(definitionFile))

	var results []ReferenceResult

	// 1. Base set: direct name hits.
	for _, ref := range h.merged.FindReferencesByName(symbolName) {
		if ref.IsLocal && index.NormPath(ref.Location.URI) != index.NormPath(definitionFile) {
			continue
		}
		results = append(results, ReferenceResult{
			Location:   Location{URI: ref.Location.URI, Range: ref.Range},
			Confidence: ConfidenceExact,
		})
	}

	// 2. Candidate files: rename tables from their imports.
	candidates := h.store.FindReferenceCandidates(symbolName, basename, candidateFileLimit)
	for _, record := range candidates {
		locals := localTokensFor(record, symbolName, basename)
		for local := range locals {
			if local == symbolName {
				continue // already in the base set
			}
			for i := range record.References {
				ref := &record.References[i]
				if ref.SymbolName != local {
					continue
				}
				results = append(results, ReferenceResult{
					Location:   Location{URI: ref.Location.URI, Range: ref.Range},
					Confidence: ConfidenceImport,
				})
			}
		}
	}

	// 3. NgRx loose mode.
	if h.ngrxLooseActive(symbolName, definitionFile) {
		results = append(results, h.ngrxLooseReferences(symbolName, definitionFile)...)
	}

	// 4. Declarations on request.
	if includeDeclaration {
		for _, sym := range h.merged.FindDefinitions(symbolName) {
			results = append(results, ReferenceResult{
				Location:   symbolLocation(sym),
				Confidence: ConfidenceExact,
			})
		}
	}

	return dedupeReferences(results)
}

// definitionsOf is the strict-pipeline definition set for a name. The
// empty request file and out-of-range cursor keep the self-reference
// rule from firing here.
func (h *Handlers) definitionsOf(name string) []*extractor.Symbol {
	return applyStrictPipeline(h.merged.FindDefinitions(name), "", Position{Line: ^uint32(0)})
}

// localTokensFor derives the rename table: which local names in the
// candidate file denote the symbol.
//
//   - default/namespace import of the definition module (matched by
//     module basename): the binding name itself
//   - named renamed (import { S as L }): L
//   - named plain: S
func localTokensFor(record *extractor.FileRecord, symbolName, moduleBasename string) map[string]bool {
	locals := make(map[string]bool, 2)
	for i := range record.Imports {
		imp := &record.Imports[i]
		switch {
		case imp.IsDefault || imp.IsNamespace:
			spec := imp.ModuleSpecifier
			specBase := strings.TrimSuffix(filepath.Base(spec), filepath.Ext(spec))
			if moduleBasename != "" && strings.EqualFold(specBase, moduleBasename) {
				locals[imp.LocalName] = true
			}
		case imp.ExportedName != "":
			if imp.ExportedName == symbolName {
				locals[imp.LocalName] = true
			}
		default:
			if imp.LocalName == symbolName {
				locals[imp.LocalName] = true
			}
		}
	}
	return locals
}

// ngrxLooseActive is the loose-mode activation predicate: NgRx imports
// in the definition file, an Actions-suffixed name, or action-factory
// calls in the definition record.
func (h *Handlers) ngrxLooseActive(symbolName, definitionFile string) bool {
	if ngrxNamePattern.MatchString(symbolName) {
		return true
	}
	record, ok := h.merged.Record(definitionFile)
	if !ok {
		return false
	}
	for i := range record.Imports {
		spec := record.Imports[i].ModuleSpecifier
		if strings.HasPrefix(spec, "@ngrx/") {
			return true
		}
	}
	for i := range record.Symbols {
		if meta, ok := record.Symbols[i].Metadata["ngrx"]; ok {
			if meta["createAction"] == true || meta["createActionGroup"] == true {
				return true
			}
		}
	}
	return false
}

// ngrxLooseReferences widens the search: wildcard importers of the
// definition file count even without a name match, and extractable
// action-type strings are hunted through reducer/effect files.
func (h *Handlers) ngrxLooseReferences(symbolName, definitionFile string) []ReferenceResult {
	var results []ReferenceResult
	defBase := strings.TrimSuffix(filepath.Base(definitionFile), filepath.Ext(definitionFile))

	// Wildcard importers: import * as X from '<definition module>'.
	candidates := h.store.FindReferenceCandidates(symbolName, "", candidateFileLimit)
	for _, record := range candidates {
		for i := range record.Imports {
			imp := &record.Imports[i]
			if !imp.IsNamespace {
				continue
			}
			base := strings.TrimSuffix(filepath.Base(imp.ModuleSpecifier), filepath.Ext(imp.ModuleSpecifier))
			if !strings.EqualFold(base, defBase) {
				continue
			}
			for j := range record.References {
				ref := &record.References[j]
				if ref.SymbolName == imp.LocalName {
					results = append(results, ReferenceResult{
						Location:   Location{URI: ref.Location.URI, Range: ref.Range},
						Confidence: ConfidenceNgrxMedium,
					})
				}
			}
			for j := range record.PendingReferences {
				pending := &record.PendingReferences[j]
				if pending.Container == imp.LocalName {
					results = append(results, ReferenceResult{
						Location:   Location{URI: pending.Location.URI, Range: pending.Range},
						Confidence: ConfidenceNgrxMedium,
					})
				}
			}
		}
	}

	// Action-type string matches in on(...)/ofType(...) call sites.
	if actionType := h.actionTypeOf(symbolName, definitionFile); actionType != "" {
		results = append(results, h.actionTypeStringMatches(actionType)...)
	}

	return results
}

// actionTypeOf pulls the action-type literal recorded by the NgRx
// plugin for this symbol, if any.
func (h *Handlers) actionTypeOf(symbolName, definitionFile string) string {
	record, ok := h.merged.Record(definitionFile)
	if !ok {
		return ""
	}
	for i := range record.Symbols {
		sym := &record.Symbols[i]
		if sym.Name != symbolName {
			continue
		}
		if meta, ok := sym.Metadata["ngrx"]; ok {
			if actionType, ok := meta["actionType"].(string); ok {
				return actionType
			}
		}
	}
	return ""
}

// actionTypeStringMatches scans reducer/effect files for the literal
// action type inside on(...)/ofType(...) lines.
func (h *Handlers) actionTypeStringMatches(actionType string) []ReferenceResult {
	var results []ReferenceResult
	needle := fmt.Sprintf("%q", actionType)
	needleSingle := "'" + actionType + "'"

	for _, tier := range []*index.Inverted{h.merged.Overlay(), h.merged.Background()} {
		for _, normURI := range tier.Files() {
			record, ok := tier.Record(normURI)
			if !ok || !isReducerOrEffectFile(record) {
				continue
			}
			content, err := h.content(record.URI)
			if err != nil {
				continue
			}
			for lineNo, line := range strings.Split(string(content), "\n") {
				if !strings.Contains(line, "on(") && !strings.Contains(line, "ofType(") {
					continue
				}
				idx := strings.Index(line, needle)
				if idx < 0 {
					idx = strings.Index(line, needleSingle)
				}
				if idx < 0 {
					continue
				}
				results = append(results, ReferenceResult{
					Location: Location{
						URI: record.URI,
						Range: extractor.Range{
							StartLine:   uint32(lineNo),
							StartColumn: uint32(idx),
							EndLine:     uint32(lineNo),
							EndColumn:   uint32(idx + len(actionType) + 2),
						},
					},
					Confidence: ConfidenceNgrxMedium,
				})
			}
		}
	}
	return results
}

// isReducerOrEffectFile detects reducer/effect records by name or
// recorded NgRx metadata.
func isReducerOrEffectFile(record *extractor.FileRecord) bool {
	base := strings.ToLower(filepath.Base(record.URI))
	if strings.Contains(base, "reducer") || strings.Contains(base, "effect") {
		return true
	}
	for i := range record.Symbols {
		if meta, ok := record.Symbols[i].Metadata["ngrx"]; ok {
			if meta["isReducer"] == true || meta["isEffect"] == true {
				return true
			}
		}
	}
	return false
}

// dedupeReferences collapses results by (file, startLine, startCol),
// keeping the highest-confidence entry.
func dedupeReferences(results []ReferenceResult) []ReferenceResult {
	rank := map[ReferenceConfidence]int{
		ConfidenceExact:      0,
		ConfidenceImport:     1,
		ConfidenceNgrxMedium: 2,
	}

	type key struct {
		uri  string
		line uint32
		col  uint32
	}
	best := make(map[key]ReferenceResult, len(results))
	var order []key
	for _, result := range results {
		k := key{
			uri:  index.NormPath(result.Location.URI),
			line: result.Location.Range.StartLine,
			col:  result.Location.Range.StartColumn,
		}
		existing, ok := best[k]
		if !ok {
			best[k] = result
			order = append(order, k)
			continue
		}
		if rank[result.Confidence] < rank[existing.Confidence] {
			best[k] = result
		}
	}

	out := make([]ReferenceResult, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}
