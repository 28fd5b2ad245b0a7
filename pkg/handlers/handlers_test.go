package handlers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/index"
	"github.com/symbolscope/symbolscope/pkg/parser"
	"github.com/symbolscope/symbolscope/pkg/parser/queries"
	"github.com/symbolscope/symbolscope/pkg/position"
	"github.com/symbolscope/symbolscope/pkg/resolver"
	"github.com/symbolscope/symbolscope/pkg/shard"
	"github.com/symbolscope/symbolscope/pkg/util"
)

// testWorkspace writes files to a temp dir, indexes them, and wires the
// full handler stack over the result.
type testWorkspace struct {
	root     string
	handlers *Handlers
	merged   *index.Merged
	ex       *extractor.Extractor
	bg       *index.Inverted
	store    *shard.Store
}

func newTestWorkspace(t *testing.T, files map[string]string) *testWorkspace {
	t.Helper()
	logger := util.NewLogger(util.DefaultLoggerConfig())
	root := t.TempDir()

	pm := parser.NewParserManager(logger)
	t.Cleanup(func() { pm.Close() })
	qm := queries.NewQueryManager(pm, logger)
	t.Cleanup(func() { qm.Close() })
	ex := extractor.NewExtractor(pm, qm, logger)

	store, err := shard.Open(filepath.Join(root, ".smart-index"), logger)
	require.NoError(t, err)

	overlay := index.NewInverted()
	background := index.NewInverted()
	merged := index.NewMerged(overlay, background, nil)

	ws := &testWorkspace{root: root, merged: merged, ex: ex, bg: background, store: store}

	for rel, content := range files {
		ws.writeAndIndex(t, rel, content)
	}

	res := resolver.New(root, merged, logger)
	pos := position.NewResolver(pm, logger)
	files2 := util.NewFileCache(util.FileCacheConfig{}, logger)
	t.Cleanup(func() { files2.Close() })

	h, err := New(merged, store, res, pos, files2, nil, logger)
	require.NoError(t, err)
	ws.handlers = h
	return ws
}

func (ws *testWorkspace) path(rel string) string {
	return filepath.Join(ws.root, rel)
}

func (ws *testWorkspace) writeAndIndex(t *testing.T, rel, content string) {
	t.Helper()
	path := ws.path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	record, err := ws.ex.ExtractFile(path, []byte(content))
	require.NoError(t, err)
	_, err = ws.store.Put(path, record)
	require.NoError(t, err)
	ws.bg.Apply(record)
}

func (ws *testWorkspace) removeFile(t *testing.T, rel string) {
	t.Helper()
	path := ws.path(rel)
	require.NoError(t, os.Remove(path))
	ws.bg.Remove(path)
	require.NoError(t, ws.store.Delete(path))
}

// cursorAt finds (line, column) of the n-th occurrence of needle.
func cursorAt(t *testing.T, content, needle string, occurrence int) Position {
	t.Helper()
	lines := strings.Split(content, "\n")
	count := 0
	for lineNo, line := range lines {
		col := 0
		for {
			idx := strings.Index(line[col:], needle)
			if idx < 0 {
				break
			}
			count++
			if count == occurrence {
				return Position{Line: uint32(lineNo), Column: uint32(col + idx)}
			}
			col += idx + len(needle)
		}
	}
	t.Fatalf("needle %q occurrence %d not found", needle, occurrence)
	return Position{}
}

func TestDefinitionSelfReferenceSuppressed(t *testing.T) {
	source := "export function myFunction() {}\n"
	ws := newTestWorkspace(t, map[string]string{"a.ts": source})

	pos := cursorAt(t, source, "myFunction", 1)
	results := ws.handlers.Definition(context.Background(), ws.path("a.ts"), pos)
	assert.Empty(t, results, "definition on the declaration itself must not navigate")
}

func TestDefinitionJumpToImportedFunction(t *testing.T) {
	utils := "export function calculateTotal(a, b) { return a + b; }\n"
	app := "import { calculateTotal } from \"./utils\";\nconst r = calculateTotal(10, 20);\n"
	ws := newTestWorkspace(t, map[string]string{
		"utils.ts": utils,
		"app.ts":   app,
	})

	// On the call site.
	pos := cursorAt(t, app, "calculateTotal", 2)
	results := ws.handlers.Definition(context.Background(), ws.path("app.ts"), pos)
	require.Len(t, results, 1)
	assert.Equal(t, ws.path("utils.ts"), results[0].URI)
	assert.Equal(t, uint32(0), results[0].Range.StartLine)
	assert.Equal(t, uint32(16), results[0].Range.StartColumn)

	// On the import specifier.
	pos = cursorAt(t, app, "calculateTotal", 1)
	results = ws.handlers.Definition(context.Background(), ws.path("app.ts"), pos)
	require.Len(t, results, 1)
	assert.Equal(t, ws.path("utils.ts"), results[0].URI)
}

func TestReferencesThroughRenamedImport(t *testing.T) {
	user := "export class User {}\n"
	app := "import { User as Admin } from \"./user\";\nconst u = new Admin();\n"
	ws := newTestWorkspace(t, map[string]string{
		"user.ts": user,
		"app.ts":  app,
	})

	pos := cursorAt(t, user, "User", 1)
	results := ws.handlers.References(context.Background(), ws.path("user.ts"), pos, false)

	found := false
	for _, result := range results {
		if index.NormPath(result.Location.URI) == index.NormPath(ws.path("app.ts")) &&
			result.Location.Range.StartLine == 1 {
			found = true
		}
	}
	assert.True(t, found, "the Admin usage site must be included: %+v", results)
}

func TestDefinitionThroughReExportChain(t *testing.T) {
	bar := "export class Foo {}\n"
	barrel := "export * from \"./bar\";\n"
	use := "import { Foo } from \"./index\";\nconst f = new Foo();\n"
	ws := newTestWorkspace(t, map[string]string{
		"bar.ts":   bar,
		"index.ts": barrel,
		"use.ts":   use,
	})

	pos := cursorAt(t, use, "Foo", 1)
	results := ws.handlers.Definition(context.Background(), ws.path("use.ts"), pos)
	require.NotEmpty(t, results)
	assert.Equal(t, ws.path("bar.ts"), results[0].URI)
}

func TestDefinitionClassOverInterface(t *testing.T) {
	iface := "export interface User { name: string; }\n"
	impl := "export class User { name = \"\"; }\n"
	app := "import { User } from \"./impl\";\nconst u = new User();\n"
	ws := newTestWorkspace(t, map[string]string{
		"iface.ts": iface,
		"impl.ts":  impl,
		"app.ts":   app,
	})

	pos := cursorAt(t, app, "User", 2)
	results := ws.handlers.Definition(context.Background(), ws.path("app.ts"), pos)
	require.Len(t, results, 1)
	assert.Equal(t, ws.path("impl.ts"), results[0].URI)
}

func TestDeadCodeBasicAndMonotone(t *testing.T) {
	util := "export function unusedHelper() {}\n"
	ws := newTestWorkspace(t, map[string]string{"util.ts": util})

	token := utilToken()
	candidates, cancelled := ws.handlers.DeadCode().AnalyzeFile(token, ws.path("util.ts"))
	require.False(t, cancelled)
	require.Len(t, candidates, 1)
	assert.Equal(t, "unusedHelper", candidates[0].Name)
	assert.Equal(t, DeadHigh, candidates[0].Confidence)

	// Adding a reference removes the candidate (monotone).
	ws.writeAndIndex(t, "caller.ts", "import { unusedHelper } from \"./util\";\nunusedHelper();\n")
	candidates, cancelled = ws.handlers.DeadCode().AnalyzeFile(token, ws.path("util.ts"))
	require.False(t, cancelled)
	assert.Empty(t, candidates)

	// Deleting the referencing file brings it back.
	ws.removeFile(t, "caller.ts")
	candidates, _ = ws.handlers.DeadCode().AnalyzeFile(token, ws.path("util.ts"))
	require.Len(t, candidates, 1)
}

func TestDeadCodeEntryPointWhitelisted(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{
		"index.ts": "export function boot() {}\n",
	})
	candidates, _ := ws.handlers.DeadCode().AnalyzeFile(utilToken(), ws.path("index.ts"))
	assert.Empty(t, candidates, "index.* files are entry points")
}

func TestDeadCodeCancelled(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{
		"util.ts": "export function unusedHelper() {}\n",
	})
	token := utilToken()
	token.Cancel()
	candidates, cancelled := ws.handlers.DeadCode().AnalyzeFile(token, ws.path("util.ts"))
	assert.True(t, cancelled)
	assert.Empty(t, candidates)
}

func TestFallbackBlocklist(t *testing.T) {
	source := "const x = 1;\n"
	ws := newTestWorkspace(t, map[string]string{"a.ts": source})

	// Cursor on the "const" keyword: blocked before any search runs.
	results := ws.handlers.Definition(context.Background(), ws.path("a.ts"), Position{Line: 0, Column: 1})
	assert.Empty(t, results)
}

func TestRenameEditsSortedBottomUp(t *testing.T) {
	user := "export class User {}\n"
	app := "import { User } from \"./user\";\nconst a = new User();\nconst b = new User();\n"
	ws := newTestWorkspace(t, map[string]string{
		"user.ts": user,
		"app.ts":  app,
	})

	pos := cursorAt(t, app, "User", 2)
	edits, err := ws.handlers.Rename(context.Background(), ws.path("app.ts"), pos, "Person")
	require.NoError(t, err)
	require.NotEmpty(t, edits)

	// Within each file, later lines come first.
	for i := 1; i < len(edits); i++ {
		if edits[i].URI == edits[i-1].URI {
			assert.GreaterOrEqual(t, edits[i-1].Range.StartLine, edits[i].Range.StartLine)
		}
	}
	for _, edit := range edits {
		assert.Equal(t, "Person", edit.NewText)
	}
}

func TestRenameSameNameNoOp(t *testing.T) {
	source := "export class User {}\nconst u = new User();\n"
	ws := newTestWorkspace(t, map[string]string{"user.ts": source})

	pos := cursorAt(t, source, "User", 2)
	edits, err := ws.handlers.Rename(context.Background(), ws.path("user.ts"), pos, "User")
	require.NoError(t, err)
	assert.Empty(t, edits)
}

func TestWorkspaceSymbolCap(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{
		"a.ts": "export function findAll() {}\nexport function findOne() {}\n",
	})
	results := ws.handlers.WorkspaceSymbol(context.Background(), "find", "")
	assert.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 200)
}

func TestCompletionAfterDot(t *testing.T) {
	config := "export const config = {\n  server: {\n    port: 8080\n  }\n};\n"
	app := "import { config } from \"./config\";\nconfig.\n"
	ws := newTestWorkspace(t, map[string]string{
		"config.ts": config,
		"app.ts":    app,
	})

	// Cursor right after "config." on line 1.
	items := ws.handlers.Completion(context.Background(), ws.path("app.ts"), Position{Line: 1, Column: 7})
	labels := make([]string, 0, len(items))
	for _, item := range items {
		labels = append(labels, item.Label)
	}
	assert.Contains(t, labels, "server")
}

func TestCompletionPrefix(t *testing.T) {
	source := "export function calculateTotal() {}\nexport function calculateTax() {}\ncalcu\n"
	ws := newTestWorkspace(t, map[string]string{"a.ts": source})

	items := ws.handlers.Completion(context.Background(), ws.path("a.ts"), Position{Line: 2, Column: 5})
	labels := make([]string, 0, len(items))
	for _, item := range items {
		labels = append(labels, item.Label)
	}
	assert.Contains(t, labels, "calculateTotal")
	assert.Contains(t, labels, "calculateTax")
}

func TestHoverRendersSignature(t *testing.T) {
	utilSrc := "export function calculateTotal(a, b) { return a + b; }\n"
	app := "import { calculateTotal } from \"./util\";\ncalculateTotal(1, 2);\n"
	ws := newTestWorkspace(t, map[string]string{
		"util.ts": utilSrc,
		"app.ts":  app,
	})

	pos := cursorAt(t, app, "calculateTotal", 2)
	markdown := ws.handlers.Hover(context.Background(), ws.path("app.ts"), pos)
	require.NotEmpty(t, markdown)
	assert.Contains(t, markdown, "calculateTotal")
	assert.Contains(t, markdown, "util.ts:1")
}

func utilToken() *util.CancellationToken {
	return util.NewCancellationToken()
}
