// Package resolver maps module specifiers to workspace file paths:
// relative imports, tsconfig path aliases, node_modules packages, and
// re-export (barrel) chains.
package resolver

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/symbolscope/symbolscope/pkg/extractor"
)

// extensionProbeOrder is the probe sequence for extensionless imports.
var extensionProbeOrder = []string{".ts", ".tsx", ".d.ts", ".js", ".jsx", ".mts", ".cts", ".mjs", ".cjs"}

// cacheTTL bounds staleness of tsconfig, package.json, and existence
// lookups. Invalidation is also explicit via Invalidate (watcher hook).
const cacheTTL = 10 * time.Second

// MaxReExportDepth bounds barrel-chain recursion.
const MaxReExportDepth = 5

// RecordSource supplies extraction records for re-export walking. The
// merged index implements it.
type RecordSource interface {
	Record(uri string) (*extractor.FileRecord, bool)
}

// Resolver resolves module specifiers from a given file.
type Resolver struct {
	workspaceRoot string
	records       RecordSource
	logger        *slog.Logger

	tsconfigCache *expirable.LRU[string, *TSConfig]
	pkgCache      *expirable.LRU[string, *packageJSON]
	existsCache   *expirable.LRU[string, bool]
}

type packageJSON struct {
	Types   string `json:"types"`
	Typings string `json:"typings"`
	Module  string `json:"module"`
	Main    string `json:"main"`
}

// New creates a resolver rooted at the workspace.
func New(workspaceRoot string, records RecordSource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		workspaceRoot: workspaceRoot,
		records:       records,
		logger:        logger,
		tsconfigCache: expirable.NewLRU[string, *TSConfig](16, nil, cacheTTL),
		pkgCache:      expirable.NewLRU[string, *packageJSON](256, nil, cacheTTL),
		existsCache:   expirable.NewLRU[string, bool](4096, nil, cacheTTL),
	}
}

// Invalidate drops all caches. Wired to the file watcher so config
// edits take effect before the TTL lapses.
func (r *Resolver) Invalidate() {
	r.tsconfigCache.Purge()
	r.pkgCache.Purge()
	r.existsCache.Purge()
}

// ResolveImport maps a module specifier to an absolute file path, or ""
// when unresolvable. Unresolvable is not an error: strategies fall
// through in order — relative, tsconfig paths, node_modules, baseUrl.
func (r *Resolver) ResolveImport(specifier, fromFile string) string {
	if specifier == "" {
		return ""
	}

	// 1. Relative specifiers.
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		base := filepath.Join(filepath.Dir(fromFile), specifier)
		return r.probeFileOrDir(base)
	}
	if filepath.IsAbs(specifier) {
		return r.probeFileOrDir(specifier)
	}

	// 2. tsconfig path mappings.
	if resolved := r.resolveWithPaths(specifier); resolved != "" {
		return resolved
	}

	// 3. node_modules, walking up from the importing file.
	if resolved := r.resolveNodeModules(specifier, fromFile); resolved != "" {
		return resolved
	}

	// 4. Last-chance probe against baseUrl (the host-resolver fallback).
	if config := r.tsconfig(); config != nil && config.CompilerOptions.BaseURL != "" {
		base := filepath.Join(config.Dir, config.CompilerOptions.BaseURL, specifier)
		return r.probeFileOrDir(base)
	}

	return ""
}

// ResolveReExport follows export-from chains looking for name, bounded
// by MaxReExportDepth and a visited set for cycles. Returns the file
// that actually declares the name, or "".
func (r *Resolver) ResolveReExport(name, targetModule, fromFile string, depth int, visited map[string]bool) string {
	if depth > MaxReExportDepth {
		return ""
	}
	if visited == nil {
		visited = make(map[string]bool, 4)
	}

	target := r.ResolveImport(targetModule, fromFile)
	if target == "" || visited[target] {
		return ""
	}
	visited[target] = true

	record, ok := r.records.Record(target)
	if !ok {
		return ""
	}

	// Declared right here?
	for i := range record.Symbols {
		if record.Symbols[i].Name == name && record.Symbols[i].IsDefinition {
			return target
		}
	}

	// Follow matching re-exports first, then wildcard stars.
	for i := range record.ReExports {
		re := &record.ReExports[i]
		if re.IsAll {
			continue
		}
		for _, exported := range re.ExportedNames {
			if exported == name {
				if found := r.ResolveReExport(name, re.ModuleSpecifier, target, depth+1, visited); found != "" {
					return found
				}
			}
		}
	}
	for i := range record.ReExports {
		re := &record.ReExports[i]
		if !re.IsAll {
			continue
		}
		if found := r.ResolveReExport(name, re.ModuleSpecifier, target, depth+1, visited); found != "" {
			return found
		}
	}

	return ""
}

// resolveWithPaths applies tsconfig baseUrl + paths patterns.
func (r *Resolver) resolveWithPaths(specifier string) string {
	config := r.tsconfig()
	if config == nil || len(config.CompilerOptions.Paths) == 0 {
		return ""
	}

	baseDir := config.Dir
	if config.CompilerOptions.BaseURL != "" {
		baseDir = filepath.Join(config.Dir, config.CompilerOptions.BaseURL)
	}

	for pattern, targets := range config.CompilerOptions.Paths {
		for _, candidate := range matchPath(pattern, targets, specifier) {
			if resolved := r.probeFileOrDir(filepath.Join(baseDir, candidate)); resolved != "" {
				return resolved
			}
		}
	}
	return ""
}

// resolveNodeModules walks node_modules directories from the importing
// file up to the workspace root, honoring package.json entry fields.
func (r *Resolver) resolveNodeModules(specifier, fromFile string) string {
	dir := filepath.Dir(fromFile)
	for {
		pkgDir := filepath.Join(dir, "node_modules", specifier)
		if r.exists(pkgDir) {
			if resolved := r.resolvePackageDir(pkgDir); resolved != "" {
				return resolved
			}
		} else if resolved := r.probeFile(filepath.Join(dir, "node_modules", specifier)); resolved != "" {
			return resolved
		}

		if dir == r.workspaceRoot || dir == filepath.Dir(dir) {
			return ""
		}
		dir = filepath.Dir(dir)
	}
}

// resolvePackageDir resolves a package directory through its
// package.json entry points: types, typings, module, main, then index.
func (r *Resolver) resolvePackageDir(pkgDir string) string {
	pkg := r.packageJSON(filepath.Join(pkgDir, "package.json"))
	if pkg != nil {
		for _, entry := range []string{pkg.Types, pkg.Typings, pkg.Module, pkg.Main} {
			if entry == "" {
				continue
			}
			if resolved := r.probeFileOrDir(filepath.Join(pkgDir, entry)); resolved != "" {
				return resolved
			}
		}
	}
	return r.probeIndex(pkgDir)
}

// probeFileOrDir resolves a base path to a real file: exact path,
// extension probes, then index files for directories.
func (r *Resolver) probeFileOrDir(base string) string {
	if resolved := r.probeFile(base); resolved != "" {
		return resolved
	}
	if r.isDir(base) {
		return r.probeIndex(base)
	}
	return ""
}

// probeFile tries the path itself and the extension probe order. An
// explicit .js specifier additionally probes its .ts/.tsx siblings
// first (ESM source layouts import compiled names).
func (r *Resolver) probeFile(base string) string {
	ext := filepath.Ext(base)

	if ext == ".js" || ext == ".mjs" || ext == ".cjs" {
		stem := strings.TrimSuffix(base, ext)
		var siblings []string
		switch ext {
		case ".js":
			siblings = []string{stem + ".ts", stem + ".tsx"}
		case ".mjs":
			siblings = []string{stem + ".mts"}
		case ".cjs":
			siblings = []string{stem + ".cts"}
		}
		for _, sibling := range siblings {
			if r.isFile(sibling) {
				return sibling
			}
		}
	}

	if ext != "" && r.isFile(base) {
		return base
	}

	for _, probe := range extensionProbeOrder {
		candidate := base + probe
		if r.isFile(candidate) {
			return candidate
		}
	}
	return ""
}

func (r *Resolver) probeIndex(dir string) string {
	for _, probe := range extensionProbeOrder {
		candidate := filepath.Join(dir, "index"+probe)
		if r.isFile(candidate) {
			return candidate
		}
	}
	return ""
}

func (r *Resolver) tsconfig() *TSConfig {
	path := filepath.Join(r.workspaceRoot, "tsconfig.json")
	if cached, ok := r.tsconfigCache.Get(path); ok {
		return cached
	}
	config, err := loadTSConfig(path)
	if err != nil {
		r.logger.Debug("failed to load tsconfig", "path", path, "error", err)
	}
	r.tsconfigCache.Add(path, config)
	return config
}

func (r *Resolver) packageJSON(path string) *packageJSON {
	if cached, ok := r.pkgCache.Get(path); ok {
		return cached
	}
	var pkg *packageJSON
	if data, err := os.ReadFile(path); err == nil {
		var parsed packageJSON
		if json.Unmarshal(data, &parsed) == nil {
			pkg = &parsed
		}
	}
	r.pkgCache.Add(path, pkg)
	return pkg
}

func (r *Resolver) exists(path string) bool {
	if cached, ok := r.existsCache.Get(path); ok {
		return cached
	}
	_, err := os.Stat(path)
	exists := err == nil
	r.existsCache.Add(path, exists)
	return exists
}

func (r *Resolver) isFile(path string) bool {
	if cached, ok := r.existsCache.Get("f:" + path); ok {
		return cached
	}
	info, err := os.Stat(path)
	ok := err == nil && !info.IsDir()
	r.existsCache.Add("f:"+path, ok)
	return ok
}

func (r *Resolver) isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
