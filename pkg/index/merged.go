package index

import (
	"sort"

	"github.com/symbolscope/symbolscope/pkg/extractor"
)

// RankingContext carries the editor state that biases search ranking.
type RankingContext struct {
	// OpenFiles is the set of currently open documents (normalized paths).
	OpenFiles map[string]bool

	// CurrentFile is the normalized path of the active document.
	CurrentFile string
}

// Ranking bonuses applied on top of the FTS score.
const (
	bonusOpenFile    = 0.5
	bonusCurrentFile = 1.0
	bonusExactName   = 2.0
	bonusKind        = 0.25
)

// Merged presents one query surface over the three tiers: the live
// overlay (open documents), the background shard index, and an optional
// pre-built static index.
//
// Precedence on file collisions is overlay > background > static: when a
// file is open, its overlay extraction supersedes whatever the shards or
// the static index say about that file.
type Merged struct {
	overlay    *Inverted
	background *Inverted
	static     *Inverted // nil when no static index is loaded
}

// NewMerged assembles the merged view. static may be nil.
func NewMerged(overlay, background, static *Inverted) *Merged {
	return &Merged{overlay: overlay, background: background, static: static}
}

// Overlay returns the live tier.
func (m *Merged) Overlay() *Inverted { return m.overlay }

// Background returns the shard-backed tier.
func (m *Merged) Background() *Inverted { return m.background }

// Static returns the static tier, or nil.
func (m *Merged) Static() *Inverted { return m.static }

// tiers returns non-nil tiers in precedence order.
func (m *Merged) tiers() []*Inverted {
	tiers := []*Inverted{m.overlay, m.background}
	if m.static != nil {
		tiers = append(tiers, m.static)
	}
	return tiers
}

// FindDefinitions returns IsDefinition symbols for the name, deduplicated
// across tiers by file precedence.
func (m *Merged) FindDefinitions(name string) []*extractor.Symbol {
	var out []*extractor.Symbol
	for tierIdx, tier := range m.tiers() {
		for _, sym := range tier.Definitions(name) {
			if !sym.IsDefinition {
				continue
			}
			if tierIdx > 0 && m.shadowedSafe(tierIdx, NormPath(sym.FilePath)) {
				continue
			}
			out = append(out, sym)
		}
	}
	return out
}

// FindSymbols is FindDefinitions without the definition filter: text
// tokens from the text indexer are included.
func (m *Merged) FindSymbols(name string) []*extractor.Symbol {
	var out []*extractor.Symbol
	for tierIdx, tier := range m.tiers() {
		for _, sym := range tier.Definitions(name) {
			if tierIdx > 0 && m.shadowedSafe(tierIdx, NormPath(sym.FilePath)) {
				continue
			}
			out = append(out, sym)
		}
	}
	return out
}

// FindReferencesByName returns the union of use sites across tiers,
// overlay superseding lower tiers per file.
func (m *Merged) FindReferencesByName(name string) []*extractor.Reference {
	var out []*extractor.Reference
	for tierIdx, tier := range m.tiers() {
		for _, ref := range tier.References(name) {
			if tierIdx > 0 && m.shadowedSafe(tierIdx, NormPath(ref.Location.URI)) {
				continue
			}
			out = append(out, ref)
		}
	}
	return out
}

// Record returns the highest-precedence record for a file.
func (m *Merged) Record(uri string) (*extractor.FileRecord, bool) {
	for _, tier := range m.tiers() {
		if record, ok := tier.Record(uri); ok {
			return record, true
		}
	}
	return nil, false
}

// ReferringFiles unions the reverse index across tiers. The overlay's
// counts supersede lower tiers for files it covers.
func (m *Merged) ReferringFiles(name string) map[string]int {
	out := make(map[string]int)
	for tierIdx, tier := range m.tiers() {
		for file, count := range tier.ReferringFiles(name) {
			if tierIdx > 0 && m.shadowedSafe(tierIdx, file) {
				continue
			}
			out[file] += count
		}
	}
	return out
}

// ScoredSymbol is one ranked search result.
type ScoredSymbol struct {
	Symbol *extractor.Symbol
	Score  float64
}

// SearchSymbols runs the FTS across tiers and ranks with editor-state
// bonuses: open-file, current-file, exact-name, and kind (classes,
// functions, and interfaces above variables).
func (m *Merged) SearchSymbols(query string, limit int, rctx RankingContext) []ScoredSymbol {
	perTier := limit
	if perTier <= 0 {
		perTier = 200
	}

	seen := make(map[string]bool)
	var results []ScoredSymbol

	for tierIdx, tier := range m.tiers() {
		for _, hit := range tier.Search(query, perTier) {
			normFile := NormPath(hit.Symbol.FilePath)
			if tierIdx > 0 && m.shadowedSafe(tierIdx, normFile) {
				continue
			}
			if seen[hit.Symbol.ID] {
				continue
			}
			seen[hit.Symbol.ID] = true

			score := hit.Score
			if rctx.OpenFiles[normFile] {
				score += bonusOpenFile
			}
			if rctx.CurrentFile != "" && normFile == rctx.CurrentFile {
				score += bonusCurrentFile
			}
			if hit.Symbol.Name == query {
				score += bonusExactName
			}
			switch hit.Symbol.Kind {
			case extractor.KindClass, extractor.KindFunction, extractor.KindInterface:
				score += bonusKind
			}
			results = append(results, ScoredSymbol{Symbol: hit.Symbol, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Symbol.Name < results[j].Symbol.Name
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// shadowedSafe reports whether a higher-precedence tier already covers
// the file.
func (m *Merged) shadowedSafe(tierIdx int, normURI string) bool {
	tiers := m.tiers()
	for i := 0; i < tierIdx; i++ {
		if _, ok := tiers[i].Record(normURI); ok {
			return true
		}
	}
	return false
}
