package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStoreOpenCloseContent(t *testing.T) {
	ds := newDocumentStore()

	ds.Open("/ws/A.ts", []byte("hello"))

	// Lookup is case-insensitive on the path.
	content, ok := ds.Content("/ws/a.ts")
	require.True(t, ok)
	assert.Equal(t, "hello", string(content))

	assert.Len(t, ds.OpenFiles(), 1)

	ds.Close("/ws/A.ts")
	_, ok = ds.Content("/ws/A.ts")
	assert.False(t, ok)
}

func TestApplyFullReplacement(t *testing.T) {
	ds := newDocumentStore()
	ds.Open("/ws/a.ts", []byte("old"))

	content, err := ds.Apply("/ws/a.ts", []TextDocumentContentChangeEvent{{Text: "brand new"}})
	require.NoError(t, err)
	assert.Equal(t, "brand new", string(content))
}

func TestApplyIncrementalEdit(t *testing.T) {
	ds := newDocumentStore()
	ds.Open("/ws/a.ts", []byte("const x = 1;\nconst y = 2;\n"))

	// Replace "1" with "42".
	content, err := ds.Apply("/ws/a.ts", []TextDocumentContentChangeEvent{{
		Range: &Range{
			Start: Position{Line: 0, Character: 10},
			End:   Position{Line: 0, Character: 11},
		},
		Text: "42",
	}})
	require.NoError(t, err)
	assert.Equal(t, "const x = 42;\nconst y = 2;\n", string(content))

	// Last edit wins within a stream.
	content, err = ds.Apply("/ws/a.ts", []TextDocumentContentChangeEvent{
		{Range: &Range{Start: Position{Line: 1, Character: 10}, End: Position{Line: 1, Character: 11}}, Text: "3"},
		{Range: &Range{Start: Position{Line: 1, Character: 10}, End: Position{Line: 1, Character: 11}}, Text: "4"},
	})
	require.NoError(t, err)
	assert.Equal(t, "const x = 42;\nconst y = 4;\n", string(content))
}

func TestApplyMultiLineEdit(t *testing.T) {
	ds := newDocumentStore()
	ds.Open("/ws/a.ts", []byte("aaa\nbbb\nccc"))

	content, err := ds.Apply("/ws/a.ts", []TextDocumentContentChangeEvent{{
		Range: &Range{
			Start: Position{Line: 0, Character: 1},
			End:   Position{Line: 2, Character: 1},
		},
		Text: "X",
	}})
	require.NoError(t, err)
	assert.Equal(t, "aXcc", string(content))
}

func TestApplyUnopenedDocument(t *testing.T) {
	ds := newDocumentStore()
	_, err := ds.Apply("/ws/never-opened.ts", []TextDocumentContentChangeEvent{{Text: "x"}})
	assert.Error(t, err)
}
