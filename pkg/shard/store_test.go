package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/util"
)

func testRecord(uri, hash string, refNames ...string) *extractor.FileRecord {
	record := &extractor.FileRecord{
		URI:          uri,
		ContentHash:  hash,
		ShardVersion: extractor.ShardVersion,
		Symbols: []extractor.Symbol{{
			ID:           "sym-" + uri,
			Name:         "Thing",
			Kind:         extractor.KindClass,
			IsDefinition: true,
			FilePath:     uri,
		}},
	}
	for _, name := range refNames {
		record.References = append(record.References, extractor.Reference{
			SymbolName: name,
			Location:   extractor.Location{URI: uri},
		})
	}
	return record
}

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	store, err := Open(dir, util.NewLogger(util.DefaultLoggerConfig()))
	require.NoError(t, err)
	return store
}

func TestPutGetDelete(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t, dir)

	record := testRecord("/ws/a.ts", "hash1", "helper")
	wrote, err := store.Put(record.URI, record)
	require.NoError(t, err)
	assert.True(t, wrote)

	got, ok := store.Get("/ws/a.ts")
	require.True(t, ok)
	assert.Equal(t, "hash1", got.ContentHash)

	require.NoError(t, store.Delete("/ws/a.ts"))
	_, ok = store.Get("/ws/a.ts")
	assert.False(t, ok)
}

func TestHashShortCircuit(t *testing.T) {
	store := openTestStore(t, t.TempDir())

	record := testRecord("/ws/a.ts", "same")
	wrote, err := store.Put(record.URI, record)
	require.NoError(t, err)
	require.True(t, wrote)

	// Identical hash: no rewrite.
	wrote, err = store.Put(record.URI, testRecord("/ws/a.ts", "same"))
	require.NoError(t, err)
	assert.False(t, wrote)

	// Changed hash: rewrite.
	wrote, err = store.Put(record.URI, testRecord("/ws/a.ts", "different"))
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestReopenLoadsShards(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t, dir)

	_, err := store.Put("/ws/a.ts", testRecord("/ws/a.ts", "h1", "usedName"))
	require.NoError(t, err)
	_, err = store.Put("/ws/b.ts", testRecord("/ws/b.ts", "h2"))
	require.NoError(t, err)

	reopened := openTestStore(t, dir)
	counts := reopened.Counts()
	assert.Equal(t, 2, counts.Files)
	assert.Equal(t, 2, counts.Shards)

	// The presence index survives the reload.
	candidates := reopened.FindReferenceCandidates("usedName", "", 0)
	require.Len(t, candidates, 1)
	assert.Equal(t, "/ws/a.ts", candidates[0].URI)
}

func TestStaleVersionDropped(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t, dir)

	stale := testRecord("/ws/old.ts", "h")
	stale.ShardVersion = extractor.ShardVersion - 1
	// Force the write past the version check by writing directly.
	require.NoError(t, store.writeShard(stale.URI, stale))

	reopened := openTestStore(t, dir)
	_, ok := reopened.Get("/ws/old.ts")
	assert.False(t, ok, "stale shard must be treated as missing")
}

func TestFindReferenceCandidatesBasenameFilter(t *testing.T) {
	store := openTestStore(t, t.TempDir())

	withImport := testRecord("/ws/uses.ts", "h1", "calculateTotal")
	withImport.Imports = []extractor.Import{{LocalName: "calculateTotal", ModuleSpecifier: "./utils"}}
	_, err := store.Put(withImport.URI, withImport)
	require.NoError(t, err)

	unrelated := testRecord("/ws/other.ts", "h2", "calculateTotal")
	unrelated.Imports = []extractor.Import{{LocalName: "calculateTotal", ModuleSpecifier: "./math"}}
	_, err = store.Put(unrelated.URI, unrelated)
	require.NoError(t, err)

	all := store.FindReferenceCandidates("calculateTotal", "", 0)
	assert.Len(t, all, 2)

	filtered := store.FindReferenceCandidates("calculateTotal", "utils", 0)
	require.Len(t, filtered, 1)
	assert.Equal(t, "/ws/uses.ts", filtered[0].URI)

	assert.Empty(t, store.FindReferenceCandidates("nonexistent", "", 0))
}

func TestCandidateLimit(t *testing.T) {
	store := openTestStore(t, t.TempDir())
	for _, uri := range []string{"/ws/1.ts", "/ws/2.ts", "/ws/3.ts"} {
		_, err := store.Put(uri, testRecord(uri, uri, "popular"))
		require.NoError(t, err)
	}
	assert.Len(t, store.FindReferenceCandidates("popular", "", 2), 2)
}
