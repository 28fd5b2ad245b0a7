package extractor

import (
	"fmt"
	"log/slog"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/symbolscope/symbolscope/pkg/parser"
	"github.com/symbolscope/symbolscope/pkg/parser/queries"
)

// Extractor turns one source file into a FileRecord.
//
// The file is parsed once; imports and re-exports come from a compiled
// tree-sitter query, everything else from a single recursive walk of the
// same tree. Extraction is deterministic given (content, plugin set).
//
// An Extractor is not safe for concurrent use — the worker pool creates
// one per worker so interner state stays goroutine-local.
type Extractor struct {
	parserManager *parser.ParserManager
	queryManager  *queries.QueryManager
	plugins       []NodeVisitor
	interner      *Interner
	logger        *slog.Logger
}

// NewExtractor creates an extractor with the default plugin set
// (Angular, NgRx).
func NewExtractor(pm *parser.ParserManager, qm *queries.QueryManager, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		parserManager: pm,
		queryManager:  qm,
		plugins:       DefaultPlugins(),
		interner:      NewInterner(),
		logger:        logger,
	}
}

// RegisterPlugin appends a framework visitor. Must be called before the
// first ExtractFile.
func (e *Extractor) RegisterPlugin(p NodeVisitor) {
	e.plugins = append(e.plugins, p)
}

// ExtractFile parses the file and extracts its complete record.
//
// The content comes from the caller; ExtractFile does not read the file.
// Parse failures do not return an error: they yield a skipped record
// (zero symbols, IsSkipped=true) so the indexing batch completes.
// Only infrastructure failures (no grammar, query compile error) surface
// as errors.
func (e *Extractor) ExtractFile(filePath string, sourceCode []byte) (*FileRecord, error) {
	lang := parser.DetectLanguage(filePath)
	if lang == parser.LanguageUnknown {
		return nil, fmt.Errorf("unsupported language for file: %s", filePath)
	}
	isTSX := parser.IsTSXFile(filePath)
	hash := ContentHash(sourceCode)

	tree, err := e.parserManager.Parse(sourceCode, lang, isTSX)
	if err != nil {
		e.logger.Debug("parse failed, recording skip", "file", filePath, "error", err)
		return SkippedRecord(filePath, hash, fmt.Sprintf("parse error: %v", err)), nil
	}
	defer tree.Close()

	record := &FileRecord{
		URI:          filePath,
		ContentHash:  hash,
		ShardVersion: ShardVersion,
	}

	// Imports and re-exports first: the walk consults the import table to
	// classify references and pending member accesses.
	if err := e.extractImports(tree, sourceCode, lang, isTSX, record); err != nil {
		return nil, err
	}

	e.interner.Reset()
	w := newWalker(e, sourceCode, filePath, record)
	w.walk(tree.RootNode(), nil)
	w.finish()

	e.logger.Debug("extracted file",
		"file", filePath,
		"symbols", len(record.Symbols),
		"references", len(record.References),
		"imports", len(record.Imports),
		"reExports", len(record.ReExports),
		"pending", len(record.PendingReferences))

	return record, nil
}

// extractImports runs the import query and fills record.Imports and
// record.ReExports.
func (e *Extractor) extractImports(tree *ts.Tree, source []byte, lang parser.Language, isTSX bool, record *FileRecord) error {
	query, err := e.queryManager.GetQuery(lang, queries.QueryTypeImports, isTSX)
	if err != nil {
		return fmt.Errorf("failed to get import query for %s: %w", lang, err)
	}

	matches, err := e.queryManager.ExecuteQuery(tree, query, source)
	if err != nil {
		return fmt.Errorf("failed to execute import query: %w", err)
	}

	// Named re-exports arrive one specifier per match; aggregate by source.
	reExportNames := make(map[string][]string)
	var reExportOrder []string

	for _, match := range matches {
		var named, alias, def, namespace, source string
		var reAll, reName, reSource string

		for _, c := range match.Captures {
			switch c.Name {
			case "import.named":
				named = c.Text
			case "import.alias":
				alias = c.Text
			case "import.default":
				def = c.Text
			case "import.namespace":
				namespace = c.Text
			case "import.source":
				source = c.Text
			case "reexport.all":
				reAll = c.Text
			case "reexport.named":
				reName = c.Text
			case "reexport.source":
				reSource = c.Text
			}
		}

		switch {
		case named != "" && source != "":
			imp := Import{
				LocalName:       named,
				ModuleSpecifier: source,
			}
			if alias != "" {
				imp.ExportedName = named
				imp.LocalName = alias
			}
			record.Imports = append(record.Imports, imp)

		case def != "" && source != "":
			record.Imports = append(record.Imports, Import{
				LocalName:       def,
				ModuleSpecifier: source,
				IsDefault:       true,
			})

		case namespace != "" && source != "":
			record.Imports = append(record.Imports, Import{
				LocalName:       namespace,
				ModuleSpecifier: source,
				IsNamespace:     true,
			})

		case reAll != "":
			record.ReExports = append(record.ReExports, ReExport{
				ModuleSpecifier: reAll,
				IsAll:           true,
			})

		case reName != "" && reSource != "":
			if _, seen := reExportNames[reSource]; !seen {
				reExportOrder = append(reExportOrder, reSource)
			}
			reExportNames[reSource] = append(reExportNames[reSource], reName)
		}
	}

	for _, src := range reExportOrder {
		record.ReExports = append(record.ReExports, ReExport{
			ModuleSpecifier: src,
			ExportedNames:   reExportNames[src],
		})
	}

	return nil
}
