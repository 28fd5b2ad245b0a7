package handlers

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/index"
)

// Timeouts for the bounded races. When a timer wins, the handler
// returns the best answer it already has.
const (
	disambiguationTimeout = 500 * time.Millisecond
	fallbackTimeout       = 500 * time.Millisecond
)

// memberChainMaxDepth bounds the recursive property resolver.
const memberChainMaxDepth = 10

// fallbackBlocklist rejects common keywords before the word-based
// fallback search runs.
var fallbackBlocklist = map[string]bool{
	"const": true, "let": true, "var": true, "function": true, "class": true,
	"interface": true, "type": true, "enum": true, "import": true, "export": true,
	"return": true, "if": true, "else": true, "for": true, "while": true,
	"switch": true, "case": true, "break": true, "continue": true, "new": true,
	"this": true, "super": true, "null": true, "undefined": true, "true": true,
	"false": true, "async": true, "await": true, "of": true, "in": true,
	"typeof": true, "instanceof": true, "void": true, "delete": true,
	"try": true, "catch": true, "finally": true, "throw": true, "yield": true,
	"static": true, "public": true, "private": true, "protected": true,
	"readonly": true, "extends": true, "implements": true, "from": true,
	"default": true, "as": true, "string": true, "number": true, "boolean": true,
	"any": true, "unknown": true, "never": true, "object": true,
}

// Definition resolves the cursor position to its canonical definitions.
//
// Pipeline: cache → member chain → position resolution (imports and
// re-exports) → name lookup through the strict filtering rules →
// semantic disambiguation under a 500 ms race.
func (h *Handlers) Definition(ctx context.Context, uri string, pos Position) []Location {
	key := defKey{uri: uri, line: pos.Line, col: pos.Column}
	if cached, ok := h.defCache.Get(key); ok {
		return symbolLocations(cached)
	}

	symbols := h.resolveDefinition(ctx, uri, pos)

	// Cache also the nil outcome: a failing position must not redo the
	// full pipeline on every hover of the same spot.
	h.defCache.Add(key, symbols)
	return symbolLocations(symbols)
}

func (h *Handlers) resolveDefinition(ctx context.Context, uri string, pos Position) []*extractor.Symbol {
	content, err := h.content(uri)
	if err != nil {
		h.logger.Debug("definition: unreadable document", "uri", uri, "error", err)
		return nil
	}

	// Member chain handling before plain position resolution: the chain
	// root decides what the property means.
	if access := h.position.ParseMemberAccess(uri, content, pos.Line, pos.Column); access != nil && len(access.PropertyChain) > 0 {
		if resolved := h.resolveMemberChain(uri, access.BaseName, access.PropertyChain); len(resolved) > 0 {
			return h.disambiguate(ctx, resolved, uri)
		}
	}

	info := h.position.SymbolAt(uri, content, pos.Line, pos.Column)
	if info == nil {
		return h.fallbackSearch(ctx, uri, content, pos)
	}

	// Import binding: jump through the import (and barrels) to the
	// declaring file.
	if info.IsImport && info.ModuleSpecifier != "" {
		if resolved := h.resolveThroughImport(info.ImportedName, info.ModuleSpecifier, uri); len(resolved) > 0 {
			return resolved
		}
	}

	candidates := h.merged.FindSymbols(info.Name)
	candidates = applyStrictPipeline(candidates, uri, pos)
	if len(candidates) > 1 {
		candidates = h.disambiguateWithContainer(ctx, candidates, info.FullContainerPath)
	}
	return candidates
}

// resolveThroughImport finds name's definitions in the import target,
// walking re-export chains when the target is a barrel.
func (h *Handlers) resolveThroughImport(name, moduleSpecifier, fromFile string) []*extractor.Symbol {
	target := h.resolver.ResolveImport(moduleSpecifier, fromFile)
	if target == "" {
		return nil
	}

	if defs := h.definitionsInFile(name, target); len(defs) > 0 {
		return defs
	}

	// Not declared there: follow the barrel.
	declaring := h.resolver.ResolveReExport(name, moduleSpecifier, fromFile, 0, nil)
	if declaring == "" {
		return nil
	}
	return h.definitionsInFile(name, declaring)
}

func (h *Handlers) definitionsInFile(name, file string) []*extractor.Symbol {
	normFile := index.NormPath(file)
	var defs []*extractor.Symbol
	for _, sym := range h.merged.FindDefinitions(name) {
		if index.NormPath(sym.FilePath) == normFile {
			defs = append(defs, sym)
		}
	}
	return defs
}

// resolveMemberChain resolves base.prop1.prop2... by walking container
// relationships: object-literal keys, action-group events, class
// members, and identifier aliases. Depth-limited and cycle-protected.
func (h *Handlers) resolveMemberChain(uri, baseName string, chain []string) []*extractor.Symbol {
	baseDefs := h.merged.FindDefinitions(baseName)
	if len(baseDefs) == 0 {
		return nil
	}
	if len(baseDefs) > 1 {
		baseDefs = applyStrictPipeline(baseDefs, "", Position{})
	}

	current := baseDefs
	visited := make(map[string]bool)
	for _, prop := range chain {
		next := h.resolveProperty(current, prop, 0, visited)
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// resolveProperty finds prop as a member of any of the owner symbols.
func (h *Handlers) resolveProperty(owners []*extractor.Symbol, prop string, depth int, visited map[string]bool) []*extractor.Symbol {
	if depth > memberChainMaxDepth {
		return nil
	}

	var out []*extractor.Symbol
	for _, owner := range owners {
		key := owner.ID + "." + prop
		if visited[key] {
			continue
		}
		visited[key] = true

		// Members recorded under the owner's container path: object
		// literal keys, virtual action-group methods, class members.
		for _, candidate := range h.merged.FindDefinitions(prop) {
			if candidate.ContainerName == owner.Name ||
				strings.HasSuffix(candidate.FullContainerPath, owner.Name) {
				out = append(out, candidate)
			}
		}
		if len(out) > 0 {
			continue
		}

		// Identifier alias: const alias = original — retry against the
		// aliased symbol's name.
		if owner.Kind == extractor.KindVariable || owner.Kind == extractor.KindConstant {
			if aliased := h.aliasTarget(owner); aliased != "" && !visited[aliased+"."+prop] {
				aliasDefs := h.merged.FindDefinitions(aliased)
				out = append(out, h.resolveProperty(aliasDefs, prop, depth+1, visited)...)
			}
		}
	}
	return out
}

// aliasTarget inspects the owner's file record for the first plain,
// non-import reference on the declaration line whose name differs from
// the owner's — the initializer of a pure alias. Pending references are
// not consulted.
func (h *Handlers) aliasTarget(owner *extractor.Symbol) string {
	record, ok := h.merged.Record(owner.FilePath)
	if !ok {
		return ""
	}
	for i := range record.References {
		ref := &record.References[i]
		if ref.Location.Line == owner.Location.Line && ref.SymbolName != owner.Name && !ref.IsImport {
			return ref.SymbolName
		}
	}
	return ""
}

// disambiguate runs the bounded semantic pass when several candidates
// are present. The strict pipeline is not applied here.
func (h *Handlers) disambiguate(ctx context.Context, candidates []*extractor.Symbol, uri string) []*extractor.Symbol {
	if len(candidates) <= 1 {
		return candidates
	}
	return h.disambiguateWithContainer(ctx, candidates, "")
}

// disambiguateWithContainer races a container-path scorer against the
// disambiguation timeout. On timeout — or when scoring filters to zero —
// the prior set stands.
func (h *Handlers) disambiguateWithContainer(ctx context.Context, candidates []*extractor.Symbol, containerPath string) []*extractor.Symbol {
	type scored struct{ result []*extractor.Symbol }
	resultCh := make(chan scored, 1)

	go func() {
		best := make([]*extractor.Symbol, 0, len(candidates))
		bestScore := -1
		for _, sym := range candidates {
			score := 0
			if containerPath != "" {
				if sym.FullContainerPath == containerPath {
					score += 4
				} else if strings.HasSuffix(containerPath, sym.ContainerName) && sym.ContainerName != "" {
					score += 2
				}
			}
			if sym.IsExported {
				score++
			}
			if score > bestScore {
				bestScore = score
				best = best[:0]
			}
			if score == bestScore {
				best = append(best, sym)
			}
		}
		resultCh <- scored{result: best}
	}()

	timer := time.NewTimer(disambiguationTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return candidates
	case <-timer.C:
		// Timeout: pre-disambiguation set wins.
		return candidates
	case s := <-resultCh:
		if len(s.result) == 0 {
			return candidates
		}
		return s.result
	}
}

// fallbackSearch runs when no AST symbol sits under the cursor: take the
// word at the offset, reject blocklisted keywords, and run the standard
// pipeline under the fallback timeout.
func (h *Handlers) fallbackSearch(ctx context.Context, uri string, content []byte, pos Position) []*extractor.Symbol {
	word := wordAt(content, pos.Line, pos.Column)
	if word == "" || fallbackBlocklist[word] {
		return nil
	}

	resultCh := make(chan []*extractor.Symbol, 1)
	go func() {
		candidates := h.merged.FindSymbols(word)
		resultCh <- applyStrictPipeline(candidates, uri, pos)
	}()

	timer := time.NewTimer(fallbackTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
		return nil
	case result := <-resultCh:
		return result
	}
}

// wordAt extracts the identifier containing (line, col) in content.
func wordAt(content []byte, line, col uint32) string {
	lines := strings.Split(string(content), "\n")
	if int(line) >= len(lines) {
		return ""
	}
	text := lines[line]
	if int(col) > len(text) {
		return ""
	}

	isWord := func(r byte) bool {
		return r == '_' || r == '$' || unicode.IsLetter(rune(r)) || unicode.IsDigit(rune(r))
	}

	start := int(col)
	for start > 0 && isWord(text[start-1]) {
		start--
	}
	end := int(col)
	for end < len(text) && isWord(text[end]) {
		end++
	}
	if start == end {
		return ""
	}
	return text[start:end]
}

func symbolLocations(symbols []*extractor.Symbol) []Location {
	if len(symbols) == 0 {
		return nil
	}
	out := make([]Location, 0, len(symbols))
	for _, sym := range symbols {
		out = append(out, symbolLocation(sym))
	}
	return out
}
