package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolscope/symbolscope/pkg/extractor"
)

func sym(file, name string, kind extractor.SymbolKind, line uint32) *extractor.Symbol {
	return &extractor.Symbol{
		ID:           file + "#" + name,
		Name:         name,
		Kind:         kind,
		IsDefinition: kind != extractor.KindText,
		FilePath:     file,
		Location:     extractor.Location{URI: file, Line: line},
		Range:        extractor.Range{StartLine: line, StartColumn: 0, EndLine: line, EndColumn: uint32(len(name))},
	}
}

func TestStrictSelfReference(t *testing.T) {
	candidates := []*extractor.Symbol{sym("/ws/a.ts", "myFunction", extractor.KindFunction, 3)}

	// Cursor inside the declaration's own range: suppressed.
	result := applyStrictPipeline(candidates, "/ws/a.ts", Position{Line: 3, Column: 2})
	assert.Empty(t, result)

	// Cursor elsewhere in the same file: kept.
	result = applyStrictPipeline(candidates, "/ws/a.ts", Position{Line: 10, Column: 0})
	assert.Len(t, result, 1)
}

func TestStrictCodeSuperiority(t *testing.T) {
	candidates := []*extractor.Symbol{
		sym("/ws/real.ts", "thing", extractor.KindFunction, 0),
		sym("/ws/notes.go", "thing", extractor.KindText, 5),
	}
	result := applyStrictPipeline(candidates, "/ws/other.ts", Position{})
	require.Len(t, result, 1)
	assert.Equal(t, extractor.KindFunction, result[0].Kind)
}

func TestStrictClassOverInterface(t *testing.T) {
	candidates := []*extractor.Symbol{
		sym("/ws/iface.ts", "User", extractor.KindInterface, 0),
		sym("/ws/impl.ts", "User", extractor.KindClass, 0),
	}
	result := applyStrictPipeline(candidates, "/ws/other.ts", Position{})
	require.Len(t, result, 1)
	assert.Equal(t, extractor.KindClass, result[0].Kind)
}

func TestStrictOnePerFileEarliestLine(t *testing.T) {
	candidates := []*extractor.Symbol{
		sym("/ws/a.ts", "dup", extractor.KindVariable, 9),
		sym("/ws/a.ts", "dup", extractor.KindVariable, 2),
	}
	result := applyStrictPipeline(candidates, "/ws/other.ts", Position{})
	require.Len(t, result, 1)
	assert.Equal(t, uint32(2), result[0].Range.StartLine)
}

func TestStrictKindPriorityWinner(t *testing.T) {
	candidates := []*extractor.Symbol{
		sym("/ws/a.ts", "same", extractor.KindVariable, 0),
		sym("/ws/b.ts", "same", extractor.KindClass, 0),
		sym("/ws/c.ts", "same", extractor.KindMethod, 0),
	}
	result := applyStrictPipeline(candidates, "/ws/other.ts", Position{})
	require.Len(t, result, 1)
	assert.Equal(t, extractor.KindClass, result[0].Kind)
}

func TestStrictDifferentNamesNotCollapsed(t *testing.T) {
	candidates := []*extractor.Symbol{
		sym("/ws/a.ts", "alpha", extractor.KindFunction, 0),
		sym("/ws/b.ts", "beta", extractor.KindFunction, 0),
	}
	result := applyStrictPipeline(candidates, "/ws/other.ts", Position{})
	assert.Len(t, result, 2)
}

func TestStrictIdempotent(t *testing.T) {
	candidates := []*extractor.Symbol{
		sym("/ws/a.ts", "User", extractor.KindInterface, 0),
		sym("/ws/b.ts", "User", extractor.KindClass, 0),
		sym("/ws/c.ts", "User", extractor.KindText, 3),
		sym("/ws/b.ts", "User", extractor.KindClass, 8),
	}
	once := applyStrictPipeline(candidates, "/ws/req.ts", Position{})
	twice := applyStrictPipeline(once, "/ws/req.ts", Position{})
	assert.Equal(t, once, twice)
}

func TestStrictEmptyInput(t *testing.T) {
	assert.Empty(t, applyStrictPipeline(nil, "/ws/a.ts", Position{}))
}
