// Package shard persists per-file extraction records.
//
// One shard = one file's FileRecord, stored as JSON under
// <cacheDir>/shards/<sha256(uri)[:32]>.json (the first 16 bytes of the
// hash, hex-encoded) and mirrored in memory for
// queries. Writes are atomic (temp file + rename), so readers never
// observe a partial record.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/symbolscope/symbolscope/pkg/extractor"
)

// Stats aggregates store counters.
type Stats struct {
	Files   int `json:"files"`
	Symbols int `json:"symbols"`
	Shards  int `json:"shards"`
}

// Store is the on-disk shard store with an in-memory mirror.
//
// The main loop owns all writes; reads are safe from any goroutine.
type Store struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	records map[string]*extractor.FileRecord

	// nameToFiles is the reference-name presence index backing
	// FindReferenceCandidates: name → set of file uris whose references
	// (or pending members, or import bindings) mention it.
	nameToFiles map[string]map[string]struct{}

	symbolCount int
}

// Open creates the store, loading every shard already on disk. Records
// with a stale ShardVersion are dropped and their files re-indexed later.
func Open(cacheDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Join(cacheDir, "shards")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create shard directory: %w", err)
	}

	s := &Store{
		dir:         dir,
		logger:      logger,
		records:     make(map[string]*extractor.FileRecord, 1024),
		nameToFiles: make(map[string]map[string]struct{}, 4096),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read shard directory: %w", err)
	}

	stale := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("failed to read shard, dropping", "path", path, "error", err)
			os.Remove(path)
			continue
		}
		var record extractor.FileRecord
		if err := json.Unmarshal(data, &record); err != nil {
			logger.Warn("corrupt shard, dropping", "path", path, "error", err)
			os.Remove(path)
			continue
		}
		if record.ShardVersion != extractor.ShardVersion {
			// Treated as missing: the indexer will re-extract the file.
			os.Remove(path)
			stale++
			continue
		}
		s.indexRecord(&record)
	}

	logger.Info("shard store opened",
		"shards", len(s.records),
		"stale_dropped", stale)

	return s, nil
}

// Get returns the record for a uri, or (nil, false).
func (s *Store) Get(uri string) (*extractor.FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[uri]
	return record, ok
}

// Put stores a record, replacing any previous shard for the uri.
//
// When the stored record already carries the same content hash the call
// is a no-op: nothing is rewritten and false is returned.
func (s *Store) Put(uri string, record *extractor.FileRecord) (bool, error) {
	s.mu.Lock()
	if old, ok := s.records[uri]; ok && old.ContentHash == record.ContentHash && old.ShardVersion == record.ShardVersion {
		s.mu.Unlock()
		return false, nil
	}
	s.removeFromIndexes(uri)
	s.indexRecord(record)
	s.mu.Unlock()

	if err := s.writeShard(uri, record); err != nil {
		return true, err
	}
	return true, nil
}

// Delete removes the shard for a uri, both from memory and disk.
func (s *Store) Delete(uri string) error {
	s.mu.Lock()
	s.removeFromIndexes(uri)
	s.mu.Unlock()

	if err := os.Remove(s.shardPath(uri)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete shard for %s: %w", uri, err)
	}
	return nil
}

// AllURIs returns every indexed file uri.
func (s *Store) AllURIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uris := make([]string, 0, len(s.records))
	for uri := range s.records {
		uris = append(uris, uri)
	}
	return uris
}

// AllRecords invokes fn for every record until fn returns false.
func (s *Store) AllRecords(fn func(*extractor.FileRecord) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if !fn(record) {
			return
		}
	}
}

// FindReferenceCandidates returns records whose references include the
// name. With a basename hint, candidates must also import a module whose
// basename (extension stripped) matches — this prunes same-named symbols
// from unrelated modules.
func (s *Store) FindReferenceCandidates(name, fileBasename string, limit int) []*extractor.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uris, ok := s.nameToFiles[name]
	if !ok {
		return nil
	}

	candidates := make([]*extractor.FileRecord, 0, min(len(uris), limit))
	for uri := range uris {
		if limit > 0 && len(candidates) >= limit {
			break
		}
		record, ok := s.records[uri]
		if !ok {
			continue
		}
		if fileBasename != "" && !importsModuleBasename(record, fileBasename) {
			continue
		}
		candidates = append(candidates, record)
	}
	return candidates
}

// Counts returns aggregate store statistics.
func (s *Store) Counts() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Files:   len(s.records),
		Symbols: s.symbolCount,
		Shards:  len(s.records),
	}
}

// indexRecord adds a record to the in-memory mirror and presence index.
// Caller holds the write lock.
func (s *Store) indexRecord(record *extractor.FileRecord) {
	s.records[record.URI] = record
	s.symbolCount += len(record.Symbols)

	add := func(name string) {
		if name == "" {
			return
		}
		set, ok := s.nameToFiles[name]
		if !ok {
			set = make(map[string]struct{}, 2)
			s.nameToFiles[name] = set
		}
		set[record.URI] = struct{}{}
	}

	for i := range record.References {
		add(record.References[i].SymbolName)
	}
	for i := range record.PendingReferences {
		add(record.PendingReferences[i].Member)
		add(record.PendingReferences[i].Container)
	}
	for i := range record.Imports {
		add(record.Imports[i].LocalName)
		add(record.Imports[i].ExportedName)
	}
}

// removeFromIndexes drops a uri from the mirror and presence index.
// Caller holds the write lock.
func (s *Store) removeFromIndexes(uri string) {
	record, ok := s.records[uri]
	if !ok {
		return
	}
	s.symbolCount -= len(record.Symbols)
	delete(s.records, uri)

	remove := func(name string) {
		if set, ok := s.nameToFiles[name]; ok {
			delete(set, uri)
			if len(set) == 0 {
				delete(s.nameToFiles, name)
			}
		}
	}
	for i := range record.References {
		remove(record.References[i].SymbolName)
	}
	for i := range record.PendingReferences {
		remove(record.PendingReferences[i].Member)
		remove(record.PendingReferences[i].Container)
	}
	for i := range record.Imports {
		remove(record.Imports[i].LocalName)
		remove(record.Imports[i].ExportedName)
	}
}

// writeShard persists a record atomically: temp file in the same
// directory, then rename over the final path.
func (s *Store) writeShard(uri string, record *extractor.FileRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal shard for %s: %w", uri, err)
	}

	final := s.shardPath(uri)
	tmp, err := os.CreateTemp(s.dir, ".shard-*")
	if err != nil {
		return fmt.Errorf("failed to create temp shard: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write shard for %s: %w", uri, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync shard for %s: %w", uri, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp shard: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename shard for %s: %w", uri, err)
	}
	return nil
}

func (s *Store) shardPath(uri string) string {
	h := sha256.Sum256([]byte(uri))
	return filepath.Join(s.dir, hex.EncodeToString(h[:16])+".json")
}

// importsModuleBasename reports whether the record imports a module whose
// basename matches. Comparison is case-insensitive, matching file-path
// comparison rules elsewhere.
func importsModuleBasename(record *extractor.FileRecord, basename string) bool {
	want := strings.ToLower(basename)
	for i := range record.Imports {
		spec := record.Imports[i].ModuleSpecifier
		base := strings.ToLower(strings.TrimSuffix(filepath.Base(spec), filepath.Ext(spec)))
		if base == want {
			return true
		}
	}
	for i := range record.ReExports {
		spec := record.ReExports[i].ModuleSpecifier
		base := strings.ToLower(strings.TrimSuffix(filepath.Base(spec), filepath.Ext(spec)))
		if base == want {
			return true
		}
	}
	return false
}
