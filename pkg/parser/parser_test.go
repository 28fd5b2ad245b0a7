package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolscope/symbolscope/pkg/util"
)

func newManager(t *testing.T) *ParserManager {
	t.Helper()
	pm := NewParserManager(util.NewLogger(util.DefaultLoggerConfig()))
	t.Cleanup(func() { pm.Close() })
	return pm
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]Language{
		"a.ts":   LanguageTypeScript,
		"a.tsx":  LanguageTypeScript,
		"a.mts":  LanguageTypeScript,
		"a.cts":  LanguageTypeScript,
		"a.js":   LanguageJavaScript,
		"a.jsx":  LanguageJavaScript,
		"a.mjs":  LanguageJavaScript,
		"a.cjs":  LanguageJavaScript,
		"a.go":   LanguageUnknown,
		"README": LanguageUnknown,
	}
	for path, want := range cases {
		assert.Equal(t, want, DetectLanguage(path), path)
	}

	assert.True(t, IsTSXFile("x.tsx"))
	assert.False(t, IsTSXFile("x.ts"))
	assert.True(t, IsJSXFile("x.jsx"))
}

func TestParseTypeScript(t *testing.T) {
	pm := newManager(t)

	tree, err := pm.Parse([]byte("const x: number = 1;"), LanguageTypeScript, false)
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "program", root.GrammarName())
	assert.False(t, root.HasError())
}

func TestParseTSX(t *testing.T) {
	pm := newManager(t)

	tree, err := pm.Parse([]byte("const el = <div>hello</div>;"), LanguageTypeScript, true)
	require.NoError(t, err)
	defer tree.Close()

	assert.False(t, tree.RootNode().HasError())
}

func TestParseFileByExtension(t *testing.T) {
	pm := newManager(t)

	tree, err := pm.ParseFile([]byte("function f() {}"), "src/a.js")
	require.NoError(t, err)
	tree.Close()

	_, err = pm.ParseFile([]byte("x"), "src/a.rb")
	assert.Error(t, err)
}

func TestBrokenSourceStillReturnsTree(t *testing.T) {
	pm := newManager(t)

	tree, err := pm.Parse([]byte("class {{{{"), LanguageTypeScript, false)
	require.NoError(t, err)
	defer tree.Close()

	// Partial trees are useful; errors are flagged on the tree, not
	// returned as failures.
	assert.True(t, tree.RootNode().HasError())
}

func TestConcurrentParsing(t *testing.T) {
	pm := newManager(t)

	done := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func() {
			tree, err := pm.Parse([]byte("const x = 1;"), LanguageTypeScript, false)
			if tree != nil {
				tree.Close()
			}
			done <- err
		}()
	}
	for i := 0; i < 16; i++ {
		require.NoError(t, <-done)
	}

	stats := pm.GetStats()
	assert.Equal(t, 16, stats.ParsesCalled)
	assert.Positive(t, stats.ParsersCreated)
}
