package queries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolscope/symbolscope/pkg/parser"
	"github.com/symbolscope/symbolscope/pkg/util"
)

func newTestManagers(t *testing.T) (*parser.ParserManager, *QueryManager) {
	t.Helper()
	logger := util.NewLogger(util.DefaultLoggerConfig())
	pm := parser.NewParserManager(logger)
	t.Cleanup(func() { pm.Close() })
	qm := NewQueryManager(pm, logger)
	t.Cleanup(func() { qm.Close() })
	return pm, qm
}

func TestImportQueryCompilesForBothLanguages(t *testing.T) {
	_, qm := newTestManagers(t)

	for _, lang := range []parser.Language{parser.LanguageTypeScript, parser.LanguageJavaScript} {
		query, err := qm.GetQuery(lang, QueryTypeImports, false)
		require.NoError(t, err, lang.String())
		require.NotNil(t, query)

		// Second fetch hits the cache and returns the same instance.
		again, err := qm.GetQuery(lang, QueryTypeImports, false)
		require.NoError(t, err)
		assert.Same(t, query, again)
	}

	// TSX variant compiles against the TSX grammar.
	_, err := qm.GetQuery(parser.LanguageTypeScript, QueryTypeImports, true)
	require.NoError(t, err)
}

func TestExecuteImportQuery(t *testing.T) {
	pm, qm := newTestManagers(t)

	source := []byte(`import { foo, bar as baz } from "./mod";`)
	tree, err := pm.Parse(source, parser.LanguageTypeScript, false)
	require.NoError(t, err)
	defer tree.Close()

	query, err := qm.GetQuery(parser.LanguageTypeScript, QueryTypeImports, false)
	require.NoError(t, err)

	matches, err := qm.ExecuteQuery(tree, query, source)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	// Every named-import match carries its source alongside the name.
	named := 0
	for _, match := range matches {
		var name, src string
		for _, capture := range match.Captures {
			switch capture.Name {
			case "import.named":
				name = capture.Text
			case "import.source":
				src = capture.Text
			}
		}
		if name != "" {
			named++
			assert.Equal(t, "./mod", src, "match for %q must be statement-scoped", name)
		}
	}
	assert.Equal(t, 2, named)
}

func TestExecuteQueryNilArguments(t *testing.T) {
	_, qm := newTestManagers(t)
	_, err := qm.ExecuteQuery(nil, nil, nil)
	assert.Error(t, err)
}

func TestUnknownLanguageQuery(t *testing.T) {
	_, qm := newTestManagers(t)
	_, err := qm.GetQuery(parser.LanguageUnknown, QueryTypeImports, false)
	assert.Error(t, err)
}

func TestParseCaptureName(t *testing.T) {
	category, field := parseCaptureName("import.named")
	assert.Equal(t, "import", category)
	assert.Equal(t, "named", field)

	category, field = parseCaptureName("bare")
	assert.Equal(t, "bare", category)
	assert.Equal(t, "", field)
}
