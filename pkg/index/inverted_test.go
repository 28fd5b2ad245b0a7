package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolscope/symbolscope/pkg/extractor"
)

func defRecord(uri string, names ...string) *extractor.FileRecord {
	record := &extractor.FileRecord{URI: uri, ShardVersion: extractor.ShardVersion}
	for i, name := range names {
		record.Symbols = append(record.Symbols, extractor.Symbol{
			ID:           uri + "#" + name,
			Name:         name,
			Kind:         extractor.KindFunction,
			IsDefinition: true,
			FilePath:     uri,
			Location:     extractor.Location{URI: uri, Line: uint32(i)},
			Range:        extractor.Range{StartLine: uint32(i), EndLine: uint32(i), EndColumn: uint32(len(name))},
		})
	}
	return record
}

func refRecord(uri string, names ...string) *extractor.FileRecord {
	record := &extractor.FileRecord{URI: uri, ShardVersion: extractor.ShardVersion}
	for i, name := range names {
		record.References = append(record.References, extractor.Reference{
			SymbolName: name,
			Location:   extractor.Location{URI: uri, Line: uint32(i)},
		})
	}
	return record
}

func TestApplyAndRemove(t *testing.T) {
	tier := NewInverted()

	tier.Apply(defRecord("/ws/a.ts", "alpha", "beta"))
	tier.Apply(refRecord("/ws/b.ts", "alpha"))

	require.Len(t, tier.Definitions("alpha"), 1)
	require.Len(t, tier.References("alpha"), 1)
	assert.Equal(t, 2, tier.Len())

	referring := tier.ReferringFiles("alpha")
	require.Contains(t, referring, NormPath("/ws/b.ts"))

	tier.Remove("/ws/b.ts")
	assert.Empty(t, tier.References("alpha"))
	assert.Empty(t, tier.ReferringFiles("alpha"))

	tier.Remove("/ws/a.ts")
	assert.Empty(t, tier.Definitions("alpha"))
	assert.Equal(t, 0, tier.Len())
}

func TestApplyReplacesPrevious(t *testing.T) {
	tier := NewInverted()

	tier.Apply(defRecord("/ws/a.ts", "old"))
	tier.Apply(defRecord("/ws/a.ts", "new"))

	assert.Empty(t, tier.Definitions("old"))
	assert.Len(t, tier.Definitions("new"), 1)
	assert.Equal(t, 1, tier.Len())
}

func TestPendingReferencesMaterialized(t *testing.T) {
	tier := NewInverted()

	record := &extractor.FileRecord{
		URI:          "/ws/consumer.ts",
		ShardVersion: extractor.ShardVersion,
		PendingReferences: []extractor.PendingReference{{
			Container: "acts",
			Member:    "load",
			Location:  extractor.Location{URI: "/ws/consumer.ts", Line: 1},
		}},
	}
	tier.Apply(record)

	refs := tier.References("load")
	require.Len(t, refs, 1)
	assert.Equal(t, "acts", refs[0].ContainerName)

	tier.Remove("/ws/consumer.ts")
	assert.Empty(t, tier.References("load"))
}

func TestMergedPrecedence(t *testing.T) {
	overlay := NewInverted()
	background := NewInverted()
	merged := NewMerged(overlay, background, nil)

	background.Apply(defRecord("/ws/a.ts", "target"))
	require.Len(t, merged.FindDefinitions("target"), 1)

	// The overlay entry for the same file shadows the background one.
	overlayRecord := defRecord("/ws/a.ts", "target")
	overlayRecord.Symbols[0].Location.Line = 42
	overlay.Apply(overlayRecord)

	defs := merged.FindDefinitions("target")
	require.Len(t, defs, 1)
	assert.Equal(t, uint32(42), defs[0].Location.Line)

	// Closing the document uncovers the background tier again.
	overlay.Remove("/ws/a.ts")
	defs = merged.FindDefinitions("target")
	require.Len(t, defs, 1)
	assert.Equal(t, uint32(0), defs[0].Location.Line)
}

func TestMergedStaticTier(t *testing.T) {
	overlay := NewInverted()
	background := NewInverted()
	static := NewInverted()
	merged := NewMerged(overlay, background, static)

	static.Apply(defRecord("/ws/lib.ts", "fromStatic"))
	require.Len(t, merged.FindDefinitions("fromStatic"), 1)

	// A background shard for the same file wins over static.
	bgRecord := defRecord("/ws/lib.ts", "fromStatic")
	bgRecord.Symbols[0].Location.Line = 7
	background.Apply(bgRecord)

	defs := merged.FindDefinitions("fromStatic")
	require.Len(t, defs, 1)
	assert.Equal(t, uint32(7), defs[0].Location.Line)
}

func TestSearchRanking(t *testing.T) {
	overlay := NewInverted()
	background := NewInverted()
	merged := NewMerged(overlay, background, nil)

	background.Apply(defRecord("/ws/a.ts", "getUserById"))
	background.Apply(defRecord("/ws/b.ts", "getUserByEmail"))

	// Exact query string ranks its symbol first.
	results := merged.SearchSymbols("getUserById", 10, RankingContext{})
	require.NotEmpty(t, results)
	assert.Equal(t, "getUserById", results[0].Symbol.Name)

	// Open-file bonus promotes the open document's symbol.
	results = merged.SearchSymbols("user", 10, RankingContext{
		OpenFiles: map[string]bool{NormPath("/ws/b.ts"): true},
	})
	require.Len(t, results, 2)
	assert.Equal(t, "getUserByEmail", results[0].Symbol.Name)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"get", "user", "by", "id"}, Tokenize("getUserById"))
	assert.Equal(t, []string{"http", "client"}, Tokenize("HTTP_CLIENT"))
	assert.Equal(t, []string{"http", "client"}, Tokenize("HTTPClient"))
	assert.Equal(t, []string{"foo"}, Tokenize("foo"))
	assert.Empty(t, Tokenize("___"))
}

func TestFTSPrefixMode(t *testing.T) {
	fts := NewFTS()
	sym := &extractor.Symbol{ID: "1", Name: "UserService", FilePath: "/ws/a.ts", IsDefinition: true, Kind: extractor.KindClass}
	fts.AddSymbol(sym)
	fts.AddSymbol(&extractor.Symbol{ID: "2", Name: "Unrelated", FilePath: "/ws/b.ts", IsDefinition: true, Kind: extractor.KindClass})

	hits := fts.Search("Us", 10) // < 3 chars → prefix mode
	require.Len(t, hits, 1)
	assert.Equal(t, "UserService", hits[0].Symbol.Name)

	// Fulltext finds by inner token.
	hits = fts.Search("service", 10)
	require.Len(t, hits, 1)
	assert.Equal(t, "UserService", hits[0].Symbol.Name)

	fts.RemoveFile("/ws/a.ts")
	assert.Empty(t, fts.Search("Us", 10))
}
