package handlers

import (
	"context"

	"github.com/symbolscope/symbolscope/pkg/extractor"
)

// workspaceSymbolCap is the hard result cap.
const workspaceSymbolCap = 200

// SymbolInformation is one workspace-symbol result.
type SymbolInformation struct {
	Name          string               `json:"name"`
	Kind          extractor.SymbolKind `json:"kind"`
	Location      Location             `json:"location"`
	ContainerName string               `json:"containerName,omitempty"`
	Score         float64              `json:"-"`
}

// WorkspaceSymbol searches symbol names across the workspace. Queries
// shorter than three characters run in prefix mode; longer queries get
// full-text ranking. Results carry open-file and current-file bonuses.
func (h *Handlers) WorkspaceSymbol(ctx context.Context, query, currentFile string) []SymbolInformation {
	if query == "" {
		return nil
	}

	scored := h.merged.SearchSymbols(query, workspaceSymbolCap, h.rankingContext(currentFile))

	out := make([]SymbolInformation, 0, len(scored))
	for _, hit := range scored {
		out = append(out, SymbolInformation{
			Name:          hit.Symbol.Name,
			Kind:          hit.Symbol.Kind,
			Location:      symbolLocation(hit.Symbol),
			ContainerName: hit.Symbol.ContainerName,
			Score:         hit.Score,
		})
	}
	return out
}
