// Package index maintains the inverted indices over extraction records
// and presents the merged multi-tier query surface.
package index

import (
	"strings"
	"sync"

	"github.com/symbolscope/symbolscope/pkg/extractor"
)

// Inverted is one tier's set of inverted indices, maintained
// incrementally per file: Apply removes the file's previous
// contribution and inserts the new record's.
//
// Names are case-sensitive; file paths compare case-insensitively.
type Inverted struct {
	mu sync.RWMutex

	// records holds the indexed record per normalized uri.
	records map[string]*extractor.FileRecord

	// nameToDefs lists definition symbols (IsDefinition or text) by name.
	nameToDefs map[string][]*extractor.Symbol

	// nameToRefs lists use sites by name, including materialized pending
	// references (the record itself never carries them as plain refs).
	nameToRefs map[string][]*extractor.Reference

	// reverse maps a symbol name to its referring files with counts —
	// the O(1) dead-code lookup.
	reverse map[string]map[string]int

	// fts indexes definition symbol names for workspace search.
	fts *FTS
}

// NewInverted creates an empty tier.
func NewInverted() *Inverted {
	return &Inverted{
		records:    make(map[string]*extractor.FileRecord, 1024),
		nameToDefs: make(map[string][]*extractor.Symbol, 4096),
		nameToRefs: make(map[string][]*extractor.Reference, 4096),
		reverse:    make(map[string]map[string]int, 4096),
		fts:        NewFTS(),
	}
}

// NormPath normalizes a path for comparison. File paths are compared
// case-insensitively throughout the index.
func NormPath(path string) string {
	return strings.ToLower(path)
}

// Apply replaces the file's contribution with the given record.
func (ix *Inverted) Apply(record *extractor.FileRecord) {
	key := NormPath(record.URI)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(key)
	ix.records[key] = record

	for i := range record.Symbols {
		sym := &record.Symbols[i]
		ix.nameToDefs[sym.Name] = append(ix.nameToDefs[sym.Name], sym)
		if sym.IsDefinition {
			ix.fts.AddSymbol(sym)
		}
	}

	addRef := func(name string, ref *extractor.Reference) {
		ix.nameToRefs[name] = append(ix.nameToRefs[name], ref)
		files, ok := ix.reverse[name]
		if !ok {
			files = make(map[string]int, 2)
			ix.reverse[name] = files
		}
		files[key]++
	}

	for i := range record.References {
		ref := &record.References[i]
		addRef(ref.SymbolName, ref)
	}
	for i := range record.PendingReferences {
		pending := &record.PendingReferences[i]
		addRef(pending.Member, &extractor.Reference{
			SymbolName:    pending.Member,
			Location:      pending.Location,
			Range:         pending.Range,
			ContainerName: pending.Container,
		})
	}
}

// Remove drops a file's contribution entirely.
func (ix *Inverted) Remove(uri string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(NormPath(uri))
}

// removeLocked walks the stored record and strips its entries from every
// index. Caller holds the write lock.
func (ix *Inverted) removeLocked(key string) {
	record, ok := ix.records[key]
	if !ok {
		return
	}
	delete(ix.records, key)
	ix.fts.RemoveFile(record.URI)

	for i := range record.Symbols {
		name := record.Symbols[i].Name
		ix.nameToDefs[name] = dropSymbolsFromFile(ix.nameToDefs[name], key)
		if len(ix.nameToDefs[name]) == 0 {
			delete(ix.nameToDefs, name)
		}
	}

	dropRef := func(name string) {
		ix.nameToRefs[name] = dropRefsFromFile(ix.nameToRefs[name], key)
		if len(ix.nameToRefs[name]) == 0 {
			delete(ix.nameToRefs, name)
		}
		if files, ok := ix.reverse[name]; ok {
			if files[key] > 1 {
				files[key]--
			} else {
				delete(files, key)
			}
			if len(files) == 0 {
				delete(ix.reverse, name)
			}
		}
	}
	for i := range record.References {
		dropRef(record.References[i].SymbolName)
	}
	for i := range record.PendingReferences {
		dropRef(record.PendingReferences[i].Member)
	}
}

// Definitions returns symbols declared under the name.
func (ix *Inverted) Definitions(name string) []*extractor.Symbol {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]*extractor.Symbol(nil), ix.nameToDefs[name]...)
}

// References returns use sites of the name across all indexed files.
func (ix *Inverted) References(name string) []*extractor.Reference {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]*extractor.Reference(nil), ix.nameToRefs[name]...)
}

// Record returns the indexed record for a uri.
func (ix *Inverted) Record(uri string) (*extractor.FileRecord, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	record, ok := ix.records[NormPath(uri)]
	return record, ok
}

// Files returns the normalized uris of all indexed files.
func (ix *Inverted) Files() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	files := make([]string, 0, len(ix.records))
	for key := range ix.records {
		files = append(files, key)
	}
	return files
}

// Len returns the number of indexed files.
func (ix *Inverted) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// SymbolCount returns the number of indexed symbols.
func (ix *Inverted) SymbolCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	count := 0
	for _, record := range ix.records {
		count += len(record.Symbols)
	}
	return count
}

// ReferringFiles returns the normalized uris of files referencing the
// name. O(1) map lookup plus the copy.
func (ix *Inverted) ReferringFiles(name string) map[string]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	files, ok := ix.reverse[name]
	if !ok {
		return nil
	}
	out := make(map[string]int, len(files))
	for file, count := range files {
		out[file] = count
	}
	return out
}

// Search runs the tier's FTS (prefix or fulltext by query length).
func (ix *Inverted) Search(query string, limit int) []FTSHit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.fts.Search(query, limit)
}

func dropSymbolsFromFile(symbols []*extractor.Symbol, normURI string) []*extractor.Symbol {
	kept := symbols[:0]
	for _, sym := range symbols {
		if NormPath(sym.FilePath) != normURI {
			kept = append(kept, sym)
		}
	}
	return kept
}

func dropRefsFromFile(refs []*extractor.Reference, normURI string) []*extractor.Reference {
	kept := refs[:0]
	for _, ref := range refs {
		if NormPath(ref.Location.URI) != normURI {
			kept = append(kept, ref)
		}
	}
	return kept
}
