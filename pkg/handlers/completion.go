package handlers

import (
	"context"
	"sort"
	"strings"

	"github.com/symbolscope/symbolscope/pkg/extractor"
)

// completionCap bounds one completion response.
const completionCap = 100

// CompletionItem is one completion candidate.
type CompletionItem struct {
	Label  string               `json:"label"`
	Kind   extractor.SymbolKind `json:"kind"`
	Detail string               `json:"detail,omitempty"`
}

// Completion serves the "." trigger: members of the base left of the
// dot, looked up by container name among the files that define the
// base. Without a member context it falls back to prefix search over
// the current word.
func (h *Handlers) Completion(ctx context.Context, uri string, pos Position) []CompletionItem {
	content, err := h.content(uri)
	if err != nil {
		return nil
	}

	if base, ok := memberBaseBeforeDot(content, pos); ok {
		return h.memberCompletions(base)
	}

	word := wordAt(content, pos.Line, pos.Column)
	if word == "" {
		return nil
	}
	return h.prefixCompletions(word, uri)
}

// memberCompletions lists symbols whose container is the base, covering
// object-literal keys, class members, and action-group events. Only
// symbols in the files that define the base are listed; aliases of the
// base are not followed.
func (h *Handlers) memberCompletions(base string) []CompletionItem {
	owners := h.merged.FindDefinitions(base)
	if len(owners) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var items []CompletionItem
	for _, owner := range owners {
		record, ok := h.merged.Record(owner.FilePath)
		if !ok {
			continue
		}
		for i := range record.Symbols {
			sym := &record.Symbols[i]
			if sym.ContainerName != owner.Name || seen[sym.Name] {
				continue
			}
			seen[sym.Name] = true
			items = append(items, CompletionItem{
				Label:  sym.Name,
				Kind:   sym.Kind,
				Detail: sym.FullContainerPath,
			})
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	if len(items) > completionCap {
		items = items[:completionCap]
	}
	return items
}

// prefixCompletions ranks workspace symbols starting with the word.
func (h *Handlers) prefixCompletions(word, uri string) []CompletionItem {
	hits := h.merged.SearchSymbols(word, completionCap, h.rankingContext(uri))

	items := make([]CompletionItem, 0, len(hits))
	seen := make(map[string]bool)
	for _, hit := range hits {
		if !strings.HasPrefix(strings.ToLower(hit.Symbol.Name), strings.ToLower(word)) {
			continue
		}
		if seen[hit.Symbol.Name] {
			continue
		}
		seen[hit.Symbol.Name] = true
		items = append(items, CompletionItem{
			Label:  hit.Symbol.Name,
			Kind:   hit.Symbol.Kind,
			Detail: hit.Symbol.ContainerName,
		})
	}
	return items
}

// memberBaseBeforeDot inspects the text left of the cursor for an
// "ident." (optionally with a partial member typed) and returns the
// base identifier.
func memberBaseBeforeDot(content []byte, pos Position) (string, bool) {
	lines := strings.Split(string(content), "\n")
	if int(pos.Line) >= len(lines) {
		return "", false
	}
	line := lines[pos.Line]
	col := int(pos.Column)
	if col > len(line) {
		col = len(line)
	}
	text := line[:col]

	// Strip a partially typed member name back to the dot.
	end := len(text)
	for end > 0 && isWordByte(text[end-1]) {
		end--
	}
	if end == 0 || text[end-1] != '.' {
		return "", false
	}

	// The base identifier sits left of the dot.
	baseEnd := end - 1
	baseStart := baseEnd
	for baseStart > 0 && isWordByte(text[baseStart-1]) {
		baseStart--
	}
	if baseStart == baseEnd {
		return "", false
	}
	return text[baseStart:baseEnd], true
}

func isWordByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
