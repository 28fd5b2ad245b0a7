package parser

import (
	"path/filepath"
	"strings"
)

// Language represents a language the AST pipeline can parse.
//
// Only TypeScript and JavaScript get full AST extraction; other source
// languages are handled by the pattern-based text indexer.
type Language int

const (
	// LanguageTypeScript represents TypeScript (.ts, .tsx, .mts, .cts files)
	LanguageTypeScript Language = iota
	// LanguageJavaScript represents JavaScript (.js, .jsx, .mjs, .cjs files)
	LanguageJavaScript
	// LanguageUnknown represents an unsupported language
	LanguageUnknown
)

// String returns the string representation of the language.
func (l Language) String() string {
	switch l {
	case LanguageTypeScript:
		return "typescript"
	case LanguageJavaScript:
		return "javascript"
	default:
		return "unknown"
	}
}

// DetectLanguage detects the language from a file path.
// Returns LanguageUnknown if the extension is not recognized.
func DetectLanguage(filePath string) Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".mts", ".cts", ".tsx":
		return LanguageTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	default:
		return LanguageUnknown
	}
}

// IsTSXFile reports whether the path is a TSX file, which uses the
// TypeScript grammar with JSX enabled.
func IsTSXFile(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".tsx"
}

// IsJSXFile reports whether the path is a JSX file.
func IsJSXFile(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".jsx"
}

// ASTExtensions lists every extension routed to the tree-sitter pipeline.
func ASTExtensions() []string {
	return []string{".ts", ".tsx", ".mts", ".cts", ".d.ts", ".js", ".jsx", ".mjs", ".cjs"}
}
