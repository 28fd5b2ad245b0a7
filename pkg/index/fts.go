package index

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/symbolscope/symbolscope/pkg/extractor"
)

// FTSHit is one scored full-text result.
type FTSHit struct {
	Symbol *extractor.Symbol
	Score  float64
}

// bm25 constants; standard values, not tuned per workspace.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// FTS is the full-text index over symbol names.
//
// Two query modes: prefix (queries shorter than three characters) and
// fulltext with BM25 ranking (longer queries). Names are tokenized on
// camelCase boundaries and separators, so "getUserById" answers "user".
//
// The corpus is symbol names only — short documents, small term counts —
// which is why this is a purpose-built map-based index rather than a
// search-engine dependency (see DESIGN.md).
type FTS struct {
	docs     map[string]*ftsDoc
	terms    map[string]map[string]int
	fileDocs map[string][]string
	totalLen int
}

type ftsDoc struct {
	sym       *extractor.Symbol
	lowerName string
	length    int
}

// NewFTS creates an empty full-text index.
func NewFTS() *FTS {
	return &FTS{
		docs:     make(map[string]*ftsDoc, 4096),
		terms:    make(map[string]map[string]int, 4096),
		fileDocs: make(map[string][]string, 512),
	}
}

// AddSymbol indexes one symbol name.
func (f *FTS) AddSymbol(sym *extractor.Symbol) {
	if _, exists := f.docs[sym.ID]; exists {
		return
	}
	tokens := Tokenize(sym.Name)
	doc := &ftsDoc{
		sym:       sym,
		lowerName: strings.ToLower(sym.Name),
		length:    len(tokens),
	}
	f.docs[sym.ID] = doc
	f.fileDocs[sym.FilePath] = append(f.fileDocs[sym.FilePath], sym.ID)
	f.totalLen += doc.length

	for _, tok := range tokens {
		postings, ok := f.terms[tok]
		if !ok {
			postings = make(map[string]int, 4)
			f.terms[tok] = postings
		}
		postings[sym.ID]++
	}
}

// RemoveFile drops every symbol indexed from a file.
func (f *FTS) RemoveFile(uri string) {
	ids, ok := f.fileDocs[uri]
	if !ok {
		return
	}
	delete(f.fileDocs, uri)

	for _, id := range ids {
		doc, ok := f.docs[id]
		if !ok {
			continue
		}
		delete(f.docs, id)
		f.totalLen -= doc.length

		for _, tok := range Tokenize(doc.sym.Name) {
			if postings, ok := f.terms[tok]; ok {
				delete(postings, id)
				if len(postings) == 0 {
					delete(f.terms, tok)
				}
			}
		}
	}
}

// Search routes by query length: prefix mode under three characters,
// fulltext above.
func (f *FTS) Search(query string, limit int) []FTSHit {
	if len(query) < 3 {
		return f.SearchPrefix(query, limit)
	}
	return f.SearchFulltext(query, limit)
}

// SearchPrefix returns symbols whose name starts with the query,
// shortest names first (closest match to a short query).
func (f *FTS) SearchPrefix(query string, limit int) []FTSHit {
	q := strings.ToLower(query)
	var hits []FTSHit
	for _, doc := range f.docs {
		if strings.HasPrefix(doc.lowerName, q) {
			score := 1.0 / float64(1+len(doc.lowerName)-len(q))
			hits = append(hits, FTSHit{Symbol: doc.sym, Score: score})
		}
	}
	sortHits(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// SearchFulltext scores documents with BM25 over tokenized names.
func (f *FTS) SearchFulltext(query string, limit int) []FTSHit {
	qTokens := Tokenize(query)
	if len(qTokens) == 0 {
		return nil
	}

	n := len(f.docs)
	if n == 0 {
		return nil
	}
	avgLen := float64(f.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[string]float64)
	for _, tok := range qTokens {
		postings := f.matchingPostings(tok)
		if len(postings) == 0 {
			continue
		}
		// Lucene-style smoothed idf keeps scores positive for terms in
		// more than half the corpus.
		df := len(postings)
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))

		for id, tf := range postings {
			doc, ok := f.docs[id]
			if !ok {
				continue
			}
			tfNorm := (float64(tf) * (bm25K1 + 1)) /
				(float64(tf) + bm25K1*(1-bm25B+bm25B*float64(doc.length)/avgLen))
			scores[id] += idf * tfNorm
		}
	}

	hits := make([]FTSHit, 0, len(scores))
	lowerQuery := strings.ToLower(query)
	for id, score := range scores {
		doc := f.docs[id]
		if doc.lowerName == lowerQuery {
			score *= 2 // exact full-name match
		}
		hits = append(hits, FTSHit{Symbol: doc.sym, Score: score})
	}
	sortHits(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// matchingPostings returns the exact term's postings when the token is a
// known term of 6+ characters; otherwise it merges the postings of every
// term starting with the token, so "calcul" still finds "calculate".
func (f *FTS) matchingPostings(tok string) map[string]int {
	if exact, ok := f.terms[tok]; ok && len(tok) >= 6 {
		return exact
	}
	merged := make(map[string]int)
	for term, postings := range f.terms {
		if strings.HasPrefix(term, tok) {
			for id, tf := range postings {
				merged[id] += tf
			}
		}
	}
	return merged
}

func sortHits(hits []FTSHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Symbol.Name < hits[j].Symbol.Name
	})
}

// Tokenize splits an identifier into lowercase terms on camelCase
// boundaries, digits, and separator characters.
//
//	"getUserById"  → [get user by id]
//	"HTTP_CLIENT"  → [http client]
func Tokenize(name string) []string {
	var tokens []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, strings.ToLower(string(current)))
			current = current[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r):
			// Boundary at lower→Upper and at the end of an acronym
			// (HTTPClient → http, client).
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1]))) {
				flush()
			}
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	return tokens
}
