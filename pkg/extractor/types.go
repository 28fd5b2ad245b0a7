// Package extractor implements per-file extraction of symbols, references,
// imports, and re-exports from TypeScript/JavaScript source.
//
// Each file is parsed once; a single recursive walk over the tree emits
// everything the index needs, so extraction cost is one parse plus one
// traversal per file.
package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ShardVersion is embedded in every FileRecord. Records carrying an older
// version are treated as missing and re-extracted.
const ShardVersion = 3

// SymbolKind identifies the type of symbol.
type SymbolKind string

const (
	KindClass      SymbolKind = "class"
	KindInterface  SymbolKind = "interface"
	KindFunction   SymbolKind = "function"
	KindMethod     SymbolKind = "method"
	KindProperty   SymbolKind = "property"
	KindVariable   SymbolKind = "variable"
	KindConstant   SymbolKind = "constant"
	KindType       SymbolKind = "type"
	KindEnum       SymbolKind = "enum"
	KindEnumMember SymbolKind = "enumMember"
	KindNamespace  SymbolKind = "namespace"
	KindModule     SymbolKind = "module"
	KindParameter  SymbolKind = "parameter"
	// KindText marks tokens found by the pattern-based text indexer.
	// Text symbols are never definitions.
	KindText SymbolKind = "text"
)

// Location is a point in a file. Line and Column are 0-based.
type Location struct {
	URI    string `json:"uri"`
	Line   uint32 `json:"line"`
	Column uint32 `json:"column"`
}

// Range spans source text. All coordinates are 0-based; EndColumn is
// exclusive.
type Range struct {
	StartLine   uint32 `json:"startLine"`
	StartColumn uint32 `json:"startColumn"`
	EndLine     uint32 `json:"endLine"`
	EndColumn   uint32 `json:"endColumn"`
}

// Contains reports whether the range contains the position.
func (r Range) Contains(line, column uint32) bool {
	if line < r.StartLine || line > r.EndLine {
		return false
	}
	if line == r.StartLine && column < r.StartColumn {
		return false
	}
	if line == r.EndLine && column > r.EndColumn {
		return false
	}
	return true
}

// Symbol is a declaration site.
type Symbol struct {
	// ID is a stable 16-hex-digit fingerprint of the declaration. Equal
	// content always produces equal ids.
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Kind SymbolKind `json:"kind"`

	Location Location `json:"location"`
	Range    Range    `json:"range"`

	// Enclosing declaration chain.
	ContainerName     string     `json:"containerName,omitempty"`
	ContainerKind     SymbolKind `json:"containerKind,omitempty"`
	FullContainerPath string     `json:"fullContainerPath,omitempty"`

	IsStatic        bool `json:"isStatic,omitempty"`
	ParametersCount int  `json:"parametersCount,omitempty"`

	// IsDefinition is true for declarations, false for text-indexed tokens.
	IsDefinition bool `json:"isDefinition"`

	// IsExported is true when the declaration reaches the module's public
	// surface.
	IsExported bool `json:"isExported"`

	// Metadata is keyed by framework namespace ("angular", "ngrx").
	Metadata map[string]map[string]any `json:"metadata,omitempty"`

	// FilePath duplicates Location.URI for sort/group convenience.
	FilePath string `json:"filePath"`
}

// ComputeSymbolID builds the stable 16-hex-digit symbol fingerprint.
func ComputeSymbolID(file, containerPath, name string, kind SymbolKind, isStatic bool, paramCount int, startLine, startCol uint32) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%t\x00%d\x00%d\x00%d",
		file, containerPath, name, kind, isStatic, paramCount, startLine, startCol)))
	return hex.EncodeToString(h[:8])
}

// Reference is an identifier use site.
type Reference struct {
	SymbolName    string   `json:"symbolName"`
	Location      Location `json:"location"`
	Range         Range    `json:"range"`
	ContainerName string   `json:"containerName,omitempty"`

	// IsImport is true when the use site is an import binding.
	IsImport bool `json:"isImport,omitempty"`

	// ScopeID is the dotted scope path of the enclosing declarations.
	ScopeID string `json:"scopeId,omitempty"`

	// IsLocal is true when the name is bound to a local variable in the
	// current scope. Local references are excluded from cross-file
	// searches unless explicitly requested.
	IsLocal bool `json:"isLocal,omitempty"`
}

// PendingReference is a member access X.y where X is an imported binding.
// It is resolved against the target file's exports after indexing, which
// lets action-group-style patterns resolve cross-file without double
// counting the member as a plain reference.
type PendingReference struct {
	Container string   `json:"container"`
	Member    string   `json:"member"`
	Location  Location `json:"location"`
	Range     Range    `json:"range"`
}

// Import is a single imported binding.
type Import struct {
	LocalName       string `json:"localName"`
	ModuleSpecifier string `json:"moduleSpecifier"`
	IsDefault       bool   `json:"isDefault,omitempty"`
	IsNamespace     bool   `json:"isNamespace,omitempty"`

	// ExportedName is set iff the import was renamed:
	// import { A as B } → ExportedName="A", LocalName="B".
	ExportedName string `json:"exportedName,omitempty"`
}

// ReExport is an export ... from statement.
type ReExport struct {
	ModuleSpecifier string   `json:"moduleSpecifier"`
	IsAll           bool     `json:"isAll,omitempty"`
	ExportedNames   []string `json:"exportedNames,omitempty"`
}

// FileRecord is one file's complete extraction result — the unit stored
// as a shard.
type FileRecord struct {
	URI          string `json:"uri"`
	ContentHash  string `json:"contentHash"`
	ShardVersion int    `json:"shardVersion"`

	Symbols           []Symbol           `json:"symbols,omitempty"`
	References        []Reference        `json:"references,omitempty"`
	Imports           []Import           `json:"imports,omitempty"`
	ReExports         []ReExport         `json:"reExports,omitempty"`
	PendingReferences []PendingReference `json:"pendingReferences,omitempty"`

	IsSkipped  bool   `json:"isSkipped,omitempty"`
	SkipReason string `json:"skipReason,omitempty"`
}

// ContentHash returns the hex sha256 of file content; the value stored in
// shards and compared for re-extraction short-circuits.
func ContentHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// SkippedRecord builds the record written for files that failed to read
// or parse. A skipped record still occupies the file's shard slot so the
// batch completes.
func SkippedRecord(uri, contentHash, reason string) *FileRecord {
	return &FileRecord{
		URI:          uri,
		ContentHash:  contentHash,
		ShardVersion: ShardVersion,
		IsSkipped:    true,
		SkipReason:   reason,
	}
}
