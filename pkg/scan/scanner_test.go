package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolscope/symbolscope/pkg/util"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func tsOptions() Options {
	return Options{
		Extensions: map[string]bool{".ts": true, ".js": true},
	}
}

func scanFiles(t *testing.T, root string, opts Options) []string {
	t.Helper()
	scanner := NewScanner(util.NewLogger(util.DefaultLoggerConfig()))
	result, err := scanner.Scan(context.Background(), root, opts)
	require.NoError(t, err)
	rels := make([]string, 0, len(result.Files))
	for _, file := range result.Files {
		rel, err := filepath.Rel(root, file)
		require.NoError(t, err)
		rels = append(rels, filepath.ToSlash(rel))
	}
	return rels
}

func TestScanFindsIndexableFiles(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/app.ts", "const a = 1;")
	write(t, root, "src/deep/b.js", "const b = 2;")
	write(t, root, "readme.md", "# nope")

	files := scanFiles(t, root, tsOptions())
	assert.ElementsMatch(t, []string{"src/app.ts", "src/deep/b.js"}, files)
}

func TestScanBuiltinIgnores(t *testing.T) {
	root := t.TempDir()
	write(t, root, "node_modules/lib/index.ts", "")
	write(t, root, ".git/hooks/x.ts", "")
	write(t, root, "src/keep.ts", "")

	files := scanFiles(t, root, tsOptions())
	assert.Equal(t, []string{"src/keep.ts"}, files)
}

func TestScanUserExcludes(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/keep.ts", "")
	write(t, root, "generated/out.ts", "")
	write(t, root, "src/skip.spec.ts", "")

	opts := tsOptions()
	opts.ExcludePatterns = []string{"generated/**", "**/*.spec.ts"}
	files := scanFiles(t, root, opts)
	assert.Equal(t, []string{"src/keep.ts"}, files)
}

func TestScanInvalidPattern(t *testing.T) {
	root := t.TempDir()
	opts := tsOptions()
	opts.ExcludePatterns = []string{"[broken"}
	scanner := NewScanner(util.NewLogger(util.DefaultLoggerConfig()))
	_, err := scanner.Scan(context.Background(), root, opts)
	assert.Error(t, err)
}

func TestScanSizeCap(t *testing.T) {
	root := t.TempDir()
	write(t, root, "small.ts", "x")
	big := make([]byte, 2048)
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.ts"), big, 0o644))

	opts := tsOptions()
	opts.MaxFileSize = 1024
	files := scanFiles(t, root, opts)
	assert.Equal(t, []string{"small.ts"}, files)
}

func TestScanGitignore(t *testing.T) {
	root := t.TempDir()
	write(t, root, ".gitignore", "dist/\n*.tmp.ts\n")
	write(t, root, "dist/out.ts", "")
	write(t, root, "scratch.tmp.ts", "")
	write(t, root, "src/keep.ts", "")

	opts := tsOptions()
	opts.RespectGitignore = true
	files := scanFiles(t, root, opts)
	assert.Equal(t, []string{"src/keep.ts"}, files)
}

func TestFolderHashEarlyExit(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/a.ts", "const a = 1;")

	scanner := NewScanner(util.NewLogger(util.DefaultLoggerConfig()))
	opts := tsOptions()
	opts.UseFolderHashing = true

	first, err := scanner.Scan(context.Background(), root, opts)
	require.NoError(t, err)
	require.Len(t, first.Files, 1)
	require.NotEmpty(t, first.FolderHashes)

	// Unchanged tree: subdirectories are pruned on the second pass.
	opts.PriorFolderHashes = first.FolderHashes
	second, err := scanner.Scan(context.Background(), root, opts)
	require.NoError(t, err)
	assert.Positive(t, second.SkippedDirs)
	assert.Empty(t, second.Files, "skipped subtrees contribute no files")

	// A changed file re-enters the scan once the watcher invalidates the
	// signatures along its path.
	write(t, root, "src/a.ts", "const a = 2; // changed")
	delete(opts.PriorFolderHashes, "src")
	delete(opts.PriorFolderHashes, ".")
	third, err := scanner.Scan(context.Background(), root, opts)
	require.NoError(t, err)
	found := false
	for _, f := range third.Files {
		if filepath.Base(f) == "a.ts" {
			found = true
		}
	}
	assert.True(t, found, "changed directory must be rescanned")
}
