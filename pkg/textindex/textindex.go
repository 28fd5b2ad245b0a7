// Package textindex provides pattern-based symbol indexing for source
// languages outside the TypeScript/JavaScript AST pipeline.
//
// Matching is line-oriented and purely textual: every hit becomes a
// kind="text" symbol with IsDefinition=false, so AST-backed candidates
// always win over text hits in the request pipelines.
package textindex

import (
	"bufio"
	"bytes"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/symbolscope/symbolscope/pkg/extractor"
)

// pattern pairs a compiled declaration regex with the capture group that
// holds the symbol name.
type pattern struct {
	re    *regexp2.Regexp
	group string
}

// languagePatterns maps a file extension to its declaration patterns.
//
// regexp2 is used for its lookbehind support: several patterns anchor on
// preceding keywords without consuming them, which keeps match indices
// on the symbol name itself.
var languagePatterns = map[string][]pattern{
	".java": {
		{regexp2.MustCompile(`(?<=\b(?:class|interface|enum|record)\s+)(?<name>[A-Za-z_$][\w$]*)`, 0), "name"},
		{regexp2.MustCompile(`(?:public|protected|private|static|final|\s)+[\w<>\[\],\s]+\s+(?<name>[a-z_$][\w$]*)\s*\(`, 0), "name"},
	},
	".go": {
		{regexp2.MustCompile(`(?<=^func\s(?:\([^)]*\)\s*)?)(?<name>[A-Za-z_]\w*)`, regexp2.Multiline), "name"},
		{regexp2.MustCompile(`(?<=^type\s+)(?<name>[A-Za-z_]\w*)`, regexp2.Multiline), "name"},
	},
	".cs": {
		{regexp2.MustCompile(`(?<=\b(?:class|interface|struct|enum|record)\s+)(?<name>[A-Za-z_]\w*)`, 0), "name"},
		{regexp2.MustCompile(`(?:public|internal|protected|private|static|virtual|override|async|\s)+[\w<>\[\],\s]+\s+(?<name>[A-Z]\w*)\s*\(`, 0), "name"},
	},
	".py": {
		{regexp2.MustCompile(`(?<=^\s*def\s+)(?<name>[A-Za-z_]\w*)`, regexp2.Multiline), "name"},
		{regexp2.MustCompile(`(?<=^\s*class\s+)(?<name>[A-Za-z_]\w*)`, regexp2.Multiline), "name"},
	},
	".rs": {
		{regexp2.MustCompile(`(?<=\b(?:fn|struct|enum|trait|mod)\s+)(?<name>[A-Za-z_]\w*)`, 0), "name"},
	},
	".c":   cPatterns,
	".h":   cPatterns,
	".cpp": cPatterns,
	".cc":  cPatterns,
	".hpp": cPatterns,
}

var cPatterns = []pattern{
	{regexp2.MustCompile(`(?<=\b(?:struct|enum|union|class)\s+)(?<name>[A-Za-z_]\w*)`, 0), "name"},
	{regexp2.MustCompile(`^[\w\*\s]+?\b(?<name>[A-Za-z_]\w*)\s*\([^;]*$`, regexp2.Multiline), "name"},
}

// Supported reports whether the extension has text-indexing patterns.
func Supported(path string) bool {
	_, ok := languagePatterns[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns every extension the text indexer handles.
func Extensions() []string {
	exts := make([]string, 0, len(languagePatterns))
	for ext := range languagePatterns {
		exts = append(exts, ext)
	}
	return exts
}

// Indexer performs pattern-based extraction.
type Indexer struct {
	logger *slog.Logger
}

// NewIndexer creates a text indexer.
func NewIndexer(logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{logger: logger}
}

// ExtractFile scans the file line by line and returns a record of
// kind="text" symbols. Never fails: unmatched content yields an empty
// record.
func (ix *Indexer) ExtractFile(filePath string, content []byte) *extractor.FileRecord {
	record := &extractor.FileRecord{
		URI:          filePath,
		ContentHash:  extractor.ContentHash(content),
		ShardVersion: extractor.ShardVersion,
	}

	patterns, ok := languagePatterns[strings.ToLower(filepath.Ext(filePath))]
	if !ok {
		return record
	}

	seen := make(map[string]bool)
	lineNo := 0
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		for _, p := range patterns {
			m, err := p.re.FindStringMatch(line)
			for err == nil && m != nil {
				name, col, length := matchName(m, p.group)
				if name != "" {
					key := name + "\x00" + strconv.Itoa(lineNo)
					if !seen[key] {
						seen[key] = true
						record.Symbols = append(record.Symbols, textSymbol(filePath, name, uint32(lineNo), uint32(col), uint32(length)))
					}
				}
				m, err = p.re.FindNextMatch(m)
			}
		}
		lineNo++
	}
	if err := scanner.Err(); err != nil {
		ix.logger.Debug("text indexing stopped early", "file", filePath, "error", err)
	}

	return record
}

func matchName(m *regexp2.Match, group string) (name string, col, length int) {
	g := m.GroupByName(group)
	if g == nil || len(g.Captures) == 0 {
		return "", 0, 0
	}
	c := g.Captures[0]
	return c.String(), c.Index, c.Length
}

func textSymbol(filePath, name string, line, col, length uint32) extractor.Symbol {
	loc := extractor.Location{URI: filePath, Line: line, Column: col}
	return extractor.Symbol{
		ID:           extractor.ComputeSymbolID(filePath, "", name, extractor.KindText, false, 0, line, col),
		Name:         name,
		Kind:         extractor.KindText,
		Location:     loc,
		Range:        extractor.Range{StartLine: line, StartColumn: col, EndLine: line, EndColumn: col + length},
		IsDefinition: false,
		FilePath:     filePath,
	}
}
