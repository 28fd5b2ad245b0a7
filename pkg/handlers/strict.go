package handlers

import (
	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/index"
)

// kindPriority orders the single-winner pick: lower wins.
//
// Import-specifier kinds never reach this pipeline: the extractor emits
// import bindings as references, so the import ban of the filtering
// rules is enforced structurally at extraction time.
var kindPriority = map[extractor.SymbolKind]int{
	extractor.KindClass:     0,
	extractor.KindFunction:  1,
	extractor.KindInterface: 2,
	extractor.KindEnum:      3,
	extractor.KindType:      4,
	extractor.KindVariable:  5,
	extractor.KindConstant:  6,
	extractor.KindMethod:    7,
	extractor.KindProperty:  8,
}

// applyStrictPipeline runs the definition filtering rules in order:
//
//  1. self-reference: drop results in the request file whose range
//     contains the cursor
//  2. code superiority: any real definition present drops text hits
//  3. implementation over abstraction: class shadows same-named interface
//  4. (import ban — guaranteed upstream, see kindPriority)
//  5. single winner: one per file by earliest line; identical names in
//     several files collapse by kind priority
//
// The pipeline is idempotent: a second application returns the same set.
func applyStrictPipeline(candidates []*extractor.Symbol, requestFile string, cursor Position) []*extractor.Symbol {
	if len(candidates) == 0 {
		return nil
	}
	normRequest := index.NormPath(requestFile)

	// Rule 1 — self-reference.
	kept := candidates[:0:0]
	for _, sym := range candidates {
		if index.NormPath(sym.FilePath) == normRequest && sym.Range.Contains(cursor.Line, cursor.Column) {
			continue
		}
		kept = append(kept, sym)
	}
	if len(kept) == 0 {
		return nil
	}

	// Rule 2 — code superiority.
	hasReal := false
	for _, sym := range kept {
		if sym.IsDefinition {
			hasReal = true
			break
		}
	}
	if hasReal {
		filtered := kept[:0:0]
		for _, sym := range kept {
			if sym.Kind != extractor.KindText {
				filtered = append(filtered, sym)
			}
		}
		kept = filtered
	}

	// Rule 3 — implementation over abstraction.
	classNames := make(map[string]bool)
	for _, sym := range kept {
		if sym.Kind == extractor.KindClass {
			classNames[sym.Name] = true
		}
	}
	if len(classNames) > 0 {
		filtered := kept[:0:0]
		for _, sym := range kept {
			if sym.Kind == extractor.KindInterface && classNames[sym.Name] {
				continue
			}
			filtered = append(filtered, sym)
		}
		kept = filtered
	}

	// Rule 5 — single winner. One per file by earliest start line first.
	byFile := make(map[string]*extractor.Symbol)
	var fileOrder []string
	for _, sym := range kept {
		key := index.NormPath(sym.FilePath)
		existing, ok := byFile[key]
		if !ok {
			byFile[key] = sym
			fileOrder = append(fileOrder, key)
			continue
		}
		if sym.Range.StartLine < existing.Range.StartLine {
			byFile[key] = sym
		}
	}

	result := make([]*extractor.Symbol, 0, len(fileOrder))
	for _, key := range fileOrder {
		result = append(result, byFile[key])
	}
	if len(result) <= 1 {
		return result
	}

	// Several files, identical names: collapse by kind priority.
	sameName := true
	for _, sym := range result[1:] {
		if sym.Name != result[0].Name {
			sameName = false
			break
		}
	}
	if !sameName {
		return result
	}

	best := result[0]
	for _, sym := range result[1:] {
		if priorityOf(sym.Kind) < priorityOf(best.Kind) {
			best = sym
		}
	}
	return []*extractor.Symbol{best}
}

func priorityOf(kind extractor.SymbolKind) int {
	if p, ok := kindPriority[kind]; ok {
		return p
	}
	return len(kindPriority)
}
