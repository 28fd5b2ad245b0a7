package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/index"
)

// Hover renders a structured markdown block for the symbol at the
// cursor: kind-prefixed signature, framework badges, file:line footer.
func (h *Handlers) Hover(ctx context.Context, uri string, pos Position) string {
	content, err := h.content(uri)
	if err != nil {
		return ""
	}
	info := h.position.SymbolAt(uri, content, pos.Line, pos.Column)
	if info == nil {
		return ""
	}

	best := h.bestDefinition(info.Name, uri, info.Kind)
	if best == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("```typescript\n")
	b.WriteString(h.signatureLine(best))
	b.WriteString("\n```\n")

	for ns, meta := range best.Metadata {
		var badges []string
		for k, v := range meta {
			switch val := v.(type) {
			case bool:
				if val {
					badges = append(badges, k)
				}
			case string:
				badges = append(badges, fmt.Sprintf("%s: %s", k, val))
			}
		}
		if len(badges) > 0 {
			b.WriteString(fmt.Sprintf("\n_%s_: %s\n", ns, strings.Join(badges, ", ")))
		}
	}

	b.WriteString(fmt.Sprintf("\n---\n%s:%d\n", best.FilePath, best.Location.Line+1))
	return b.String()
}

// bestDefinition prefers same-file definitions, then kind matches, then
// the first survivor of the strict pipeline.
func (h *Handlers) bestDefinition(name, uri string, kind extractor.SymbolKind) *extractor.Symbol {
	defs := h.merged.FindDefinitions(name)
	if len(defs) == 0 {
		return nil
	}

	normURI := index.NormPath(uri)
	for _, sym := range defs {
		if index.NormPath(sym.FilePath) == normURI {
			return sym
		}
	}
	if kind != "" {
		for _, sym := range defs {
			if sym.Kind == kind {
				return sym
			}
		}
	}
	survivors := applyStrictPipeline(defs, "", Position{Line: ^uint32(0)})
	if len(survivors) > 0 {
		return survivors[0]
	}
	return defs[0]
}

// signatureLine fetches the declaration's source line through the mmap
// cache, falling back to a synthesized kind-prefixed signature.
func (h *Handlers) signatureLine(sym *extractor.Symbol) string {
	if h.files != nil {
		if mf, err := h.files.Get(sym.FilePath); err == nil {
			if line := lineAt(mf.Data, sym.Location.Line); line != "" {
				return strings.TrimSpace(line)
			}
		}
	}

	prefix := string(sym.Kind)
	name := sym.Name
	if sym.FullContainerPath != "" {
		name = sym.FullContainerPath + "." + name
	}
	if sym.ParametersCount > 0 {
		return fmt.Sprintf("%s %s(...%d params)", prefix, name, sym.ParametersCount)
	}
	return fmt.Sprintf("%s %s", prefix, name)
}

// lineAt slices one 0-based line out of raw content.
func lineAt(data []byte, line uint32) string {
	start := 0
	current := uint32(0)
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			if current == line {
				return string(data[start:i])
			}
			current++
			start = i + 1
		}
	}
	if current == line {
		return string(data[start:])
	}
	return ""
}
