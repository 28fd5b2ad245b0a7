package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/util"
)

// recordMap is a RecordSource over a plain map for re-export tests.
type recordMap map[string]*extractor.FileRecord

func (m recordMap) Record(uri string) (*extractor.FileRecord, bool) {
	record, ok := m[uri]
	return record, ok
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestResolver(t *testing.T, records recordMap) (*Resolver, string) {
	t.Helper()
	root := t.TempDir()
	if records == nil {
		records = recordMap{}
	}
	return New(root, records, util.NewLogger(util.DefaultLoggerConfig())), root
}

func TestResolveRelative(t *testing.T) {
	r, root := newTestResolver(t, nil)
	writeFile(t, filepath.Join(root, "src", "utils.ts"), "export const x = 1;")
	from := filepath.Join(root, "src", "app.ts")

	assert.Equal(t, filepath.Join(root, "src", "utils.ts"), r.ResolveImport("./utils", from))
	assert.Equal(t, "", r.ResolveImport("./missing", from))
}

func TestExtensionProbeOrder(t *testing.T) {
	r, root := newTestResolver(t, nil)
	// Both .ts and .js exist: .ts wins per probe order.
	writeFile(t, filepath.Join(root, "both.ts"), "")
	writeFile(t, filepath.Join(root, "both.js"), "")
	from := filepath.Join(root, "app.ts")

	assert.Equal(t, filepath.Join(root, "both.ts"), r.ResolveImport("./both", from))
}

func TestExplicitJSPrefersTSSibling(t *testing.T) {
	r, root := newTestResolver(t, nil)
	writeFile(t, filepath.Join(root, "mod.ts"), "")
	from := filepath.Join(root, "app.ts")

	// ESM layouts import "./mod.js" while the source on disk is mod.ts.
	assert.Equal(t, filepath.Join(root, "mod.ts"), r.ResolveImport("./mod.js", from))
}

func TestDirectoryIndexProbe(t *testing.T) {
	r, root := newTestResolver(t, nil)
	writeFile(t, filepath.Join(root, "lib", "index.ts"), "")
	from := filepath.Join(root, "app.ts")

	assert.Equal(t, filepath.Join(root, "lib", "index.ts"), r.ResolveImport("./lib", from))
}

func TestTsconfigPaths(t *testing.T) {
	r, root := newTestResolver(t, nil)
	writeFile(t, filepath.Join(root, "tsconfig.json"), `{
  "compilerOptions": {
    "baseUrl": ".",
    "paths": { "@app/*": ["src/app/*"] }
  }
}`)
	writeFile(t, filepath.Join(root, "src", "app", "service.ts"), "")
	from := filepath.Join(root, "src", "main.ts")

	assert.Equal(t, filepath.Join(root, "src", "app", "service.ts"), r.ResolveImport("@app/service", from))
}

func TestTsconfigJSONC(t *testing.T) {
	r, root := newTestResolver(t, nil)
	writeFile(t, filepath.Join(root, "tsconfig.json"), `{
  // project config
  "compilerOptions": {
    "baseUrl": ".",
    "paths": { "@lib/*": ["lib/*"] },
  }
}`)
	writeFile(t, filepath.Join(root, "lib", "a.ts"), "")
	from := filepath.Join(root, "main.ts")

	assert.Equal(t, filepath.Join(root, "lib", "a.ts"), r.ResolveImport("@lib/a", from))
}

func TestNodeModulesResolution(t *testing.T) {
	r, root := newTestResolver(t, nil)
	pkgDir := filepath.Join(root, "node_modules", "mylib")
	writeFile(t, filepath.Join(pkgDir, "package.json"), `{"types": "dist/index.d.ts"}`)
	writeFile(t, filepath.Join(pkgDir, "dist", "index.d.ts"), "")
	from := filepath.Join(root, "src", "app.ts")

	assert.Equal(t, filepath.Join(pkgDir, "dist", "index.d.ts"), r.ResolveImport("mylib", from))
}

func TestNodeModulesIndexFallback(t *testing.T) {
	r, root := newTestResolver(t, nil)
	pkgDir := filepath.Join(root, "node_modules", "plain")
	writeFile(t, filepath.Join(pkgDir, "index.js"), "")
	from := filepath.Join(root, "app.ts")

	assert.Equal(t, filepath.Join(pkgDir, "index.js"), r.ResolveImport("plain", from))
}

func TestUnresolvableIsNotAnError(t *testing.T) {
	r, root := newTestResolver(t, nil)
	from := filepath.Join(root, "app.ts")
	assert.Equal(t, "", r.ResolveImport("totally-absent-package", from))
	assert.Equal(t, "", r.ResolveImport("", from))
}

func TestResolveReExportChain(t *testing.T) {
	root := t.TempDir()
	barPath := filepath.Join(root, "bar.ts")
	indexPath := filepath.Join(root, "index.ts")
	writeFile(t, barPath, "export class Foo {}")
	writeFile(t, indexPath, `export * from "./bar";`)

	records := recordMap{
		barPath: {
			URI: barPath,
			Symbols: []extractor.Symbol{{
				Name: "Foo", Kind: extractor.KindClass, IsDefinition: true, FilePath: barPath,
			}},
		},
		indexPath: {
			URI:       indexPath,
			ReExports: []extractor.ReExport{{ModuleSpecifier: "./bar", IsAll: true}},
		},
	}
	r := New(root, records, util.NewLogger(util.DefaultLoggerConfig()))

	from := filepath.Join(root, "use.ts")
	assert.Equal(t, barPath, r.ResolveReExport("Foo", "./index", from, 0, nil))
	assert.Equal(t, "", r.ResolveReExport("Missing", "./index", from, 0, nil))
}

func TestResolveReExportCycle(t *testing.T) {
	root := t.TempDir()
	aPath := filepath.Join(root, "a.ts")
	bPath := filepath.Join(root, "b.ts")
	writeFile(t, aPath, `export * from "./b";`)
	writeFile(t, bPath, `export * from "./a";`)

	records := recordMap{
		aPath: {URI: aPath, ReExports: []extractor.ReExport{{ModuleSpecifier: "./b", IsAll: true}}},
		bPath: {URI: bPath, ReExports: []extractor.ReExport{{ModuleSpecifier: "./a", IsAll: true}}},
	}
	r := New(root, records, util.NewLogger(util.DefaultLoggerConfig()))

	// Must terminate without finding anything.
	assert.Equal(t, "", r.ResolveReExport("Ghost", "./a", filepath.Join(root, "use.ts"), 0, nil))
}

func TestMatchPath(t *testing.T) {
	assert.Equal(t, []string{"src/app/service"}, matchPath("@app/*", []string{"src/app/*"}, "@app/service"))
	assert.Nil(t, matchPath("@app/*", []string{"src/app/*"}, "@other/service"))
	assert.Equal(t, []string{"src/exact.ts"}, matchPath("exact", []string{"src/exact.ts"}, "exact"))
}
