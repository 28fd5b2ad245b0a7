// Package position resolves "what symbol is at this cursor" questions
// with a fresh parse of the file, independent of index state.
package position

import (
	"log/slog"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/parser"
)

// SymbolInfo describes the symbol under a cursor.
type SymbolInfo struct {
	Name              string
	Kind              extractor.SymbolKind
	ContainerName     string
	ContainerKind     extractor.SymbolKind
	FullContainerPath string
	IsStatic          bool
	ParametersCount   int
	Range             extractor.Range

	// IsImport is true when the cursor sits on an import binding;
	// ModuleSpecifier then carries the import source.
	IsImport        bool
	ModuleSpecifier string

	// ImportedName is the external name for renamed bindings
	// (import { A as B }: cursor on either yields ImportedName "A").
	ImportedName string
}

// MemberAccess is a parsed member chain at the cursor.
type MemberAccess struct {
	// BaseName is the chain's base identifier.
	BaseName string

	// PropertyChain lists properties from the base up to and including
	// the one under the cursor.
	PropertyChain []string
}

// Resolver performs position lookups.
type Resolver struct {
	parserManager *parser.ParserManager
	logger        *slog.Logger
}

// NewResolver creates a position resolver.
func NewResolver(pm *parser.ParserManager, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{parserManager: pm, logger: logger}
}

// SymbolAt returns the symbol at (line, column), both 0-based, or nil
// when the position does not sit on an identifier.
func (r *Resolver) SymbolAt(filePath string, content []byte, line, column uint32) *SymbolInfo {
	tree, err := r.parserManager.ParseFile(content, filePath)
	if err != nil {
		r.logger.Debug("position parse failed", "file", filePath, "error", err)
		return nil
	}
	defer tree.Close()

	node := deepestAt(tree.RootNode(), line, column)
	if node == nil || !isIdentifierKind(node.GrammarName()) {
		return nil
	}

	info := &SymbolInfo{
		Name:  node.Utf8Text(content),
		Kind:  kindAt(node),
		Range: nodeRange(node),
	}

	// Import binding detection walks the specifier's statement for the
	// source string.
	if stmt, specifier := enclosingImport(node); stmt != nil {
		info.IsImport = true
		if src := stmt.ChildByFieldName("source"); src != nil {
			info.ModuleSpecifier = strings.Trim(src.Utf8Text(content), "\"'`")
		}
		if specifier != nil {
			if nameNode := specifier.ChildByFieldName("name"); nameNode != nil {
				info.ImportedName = nameNode.Utf8Text(content)
			}
		}
		if info.ImportedName == "" {
			info.ImportedName = info.Name
		}
	}

	// Container chain and static-ness from the parent walk.
	var chain []string
	current := node.Parent()
	for current != nil {
		switch current.GrammarName() {
		case "class_declaration", "abstract_class_declaration":
			chain = appendContainer(&chain, current, content, info, extractor.KindClass)
		case "interface_declaration":
			chain = appendContainer(&chain, current, content, info, extractor.KindInterface)
		case "enum_declaration":
			chain = appendContainer(&chain, current, content, info, extractor.KindEnum)
		case "internal_module", "module":
			chain = appendContainer(&chain, current, content, info, extractor.KindNamespace)
		case "function_declaration", "generator_function_declaration":
			chain = appendContainer(&chain, current, content, info, extractor.KindFunction)
		case "method_definition":
			if nameNode := current.ChildByFieldName("name"); nameNode != nil && nameNode.Id() != node.Id() {
				chain = appendContainer(&chain, current, content, info, extractor.KindMethod)
			}
		case "variable_declarator":
			if nameNode := current.ChildByFieldName("name"); nameNode != nil && nameNode.Id() != node.Id() {
				chain = appendContainer(&chain, current, content, info, extractor.KindVariable)
			}
		}
		current = current.Parent()
	}
	info.FullContainerPath = strings.Join(chain, ".")

	// Static-ness and parameter count when the cursor is on a
	// declaration's own name.
	if parent := node.Parent(); parent != nil {
		switch parent.GrammarName() {
		case "method_definition", "method_signature", "abstract_method_signature":
			info.IsStatic = hasStaticKeyword(parent, content)
			info.ParametersCount = countParams(parent)
		case "function_declaration", "generator_function_declaration", "function_signature":
			info.ParametersCount = countParams(parent)
		case "public_field_definition":
			info.IsStatic = hasStaticKeyword(parent, content)
		}
	}

	return info
}

// ParseMemberAccess returns the member chain at the cursor, or nil when
// the cursor is not inside a member expression.
func (r *Resolver) ParseMemberAccess(filePath string, content []byte, line, column uint32) *MemberAccess {
	tree, err := r.parserManager.ParseFile(content, filePath)
	if err != nil {
		return nil
	}
	defer tree.Close()

	node := deepestAt(tree.RootNode(), line, column)
	if node == nil {
		return nil
	}

	// Climb to the member expression containing the cursor identifier.
	member := node
	for member != nil && member.GrammarName() != "member_expression" {
		member = member.Parent()
	}
	if member == nil {
		return nil
	}

	// Walk to the chain root, collecting properties outside-in.
	var properties []string
	cursorProp := ""
	if node.GrammarName() == "property_identifier" {
		cursorProp = node.Utf8Text(content)
	}

	current := member
	for {
		prop := current.ChildByFieldName("property")
		if prop != nil {
			properties = append([]string{prop.Utf8Text(content)}, properties...)
		}
		obj := current.ChildByFieldName("object")
		if obj == nil {
			return nil
		}
		if obj.GrammarName() == "member_expression" {
			current = obj
			continue
		}
		if obj.GrammarName() != "identifier" {
			return nil
		}

		access := &MemberAccess{BaseName: obj.Utf8Text(content)}
		// Truncate the chain at the cursor's property.
		if cursorProp != "" {
			for i, p := range properties {
				if p == cursorProp {
					access.PropertyChain = properties[:i+1]
					return access
				}
			}
		}
		access.PropertyChain = properties
		return access
	}
}

// deepestAt returns the deepest named node whose range contains the
// position.
func deepestAt(node *ts.Node, line, column uint32) *ts.Node {
	if !nodeContains(node, line, column) {
		return nil
	}
	for {
		descended := false
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child != nil && nodeContains(child, line, column) {
				node = child
				descended = true
				break
			}
		}
		if !descended {
			return node
		}
	}
}

func nodeContains(node *ts.Node, line, column uint32) bool {
	start := node.StartPosition()
	end := node.EndPosition()
	if line < uint32(start.Row) || line > uint32(end.Row) {
		return false
	}
	if line == uint32(start.Row) && column < uint32(start.Column) {
		return false
	}
	if line == uint32(end.Row) && column > uint32(end.Column) {
		return false
	}
	return true
}

func isIdentifierKind(kind string) bool {
	switch kind {
	case "identifier", "property_identifier", "type_identifier",
		"shorthand_property_identifier", "shorthand_property_identifier_pattern",
		"statement_identifier":
		return true
	}
	return false
}

// kindAt infers the symbol kind from the identifier's parent.
func kindAt(node *ts.Node) extractor.SymbolKind {
	parent := node.Parent()
	if parent == nil {
		return extractor.KindVariable
	}
	isName := false
	if nameNode := parent.ChildByFieldName("name"); nameNode != nil && nameNode.Id() == node.Id() {
		isName = true
	}

	switch parent.GrammarName() {
	case "function_declaration", "generator_function_declaration", "function_signature":
		if isName {
			return extractor.KindFunction
		}
	case "class_declaration", "abstract_class_declaration":
		if isName {
			return extractor.KindClass
		}
	case "interface_declaration":
		if isName {
			return extractor.KindInterface
		}
	case "type_alias_declaration":
		if isName {
			return extractor.KindType
		}
	case "enum_declaration":
		if isName {
			return extractor.KindEnum
		}
	case "internal_module", "module":
		if isName {
			return extractor.KindNamespace
		}
	case "method_definition", "method_signature", "abstract_method_signature":
		if isName {
			return extractor.KindMethod
		}
	case "public_field_definition", "property_signature", "pair":
		return extractor.KindProperty
	case "required_parameter", "optional_parameter":
		return extractor.KindParameter
	case "enum_body", "enum_assignment":
		return extractor.KindEnumMember
	case "member_expression":
		if prop := parent.ChildByFieldName("property"); prop != nil && prop.Id() == node.Id() {
			return extractor.KindProperty
		}
	}

	switch node.GrammarName() {
	case "type_identifier":
		return extractor.KindType
	case "property_identifier":
		return extractor.KindProperty
	}
	return extractor.KindVariable
}

// enclosingImport returns the import statement and specifier enclosing a
// node, or nils.
func enclosingImport(node *ts.Node) (stmt, specifier *ts.Node) {
	current := node.Parent()
	for current != nil {
		switch current.GrammarName() {
		case "import_specifier":
			specifier = current
		case "import_statement":
			return current, specifier
		case "program", "statement_block":
			return nil, nil
		}
		current = current.Parent()
	}
	return nil, nil
}

func appendContainer(chain *[]string, node *ts.Node, content []byte, info *SymbolInfo, kind extractor.SymbolKind) []string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return *chain
	}
	name := nameNode.Utf8Text(content)
	if info.ContainerName == "" {
		info.ContainerName = name
		info.ContainerKind = kind
	}
	*chain = append([]string{name}, *chain...)
	return *chain
}

func hasStaticKeyword(node *ts.Node, content []byte) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Utf8Text(content) == "static" {
			return true
		}
	}
	return false
}

func countParams(node *ts.Node) int {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return 0
	}
	count := 0
	for i := uint(0); i < params.NamedChildCount(); i++ {
		child := params.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.GrammarName() {
		case "required_parameter", "optional_parameter", "identifier", "rest_pattern",
			"object_pattern", "array_pattern":
			count++
		}
	}
	return count
}

func nodeRange(node *ts.Node) extractor.Range {
	start := node.StartPosition()
	end := node.EndPosition()
	return extractor.Range{
		StartLine:   uint32(start.Row),
		StartColumn: uint32(start.Column),
		EndLine:     uint32(end.Row),
		EndColumn:   uint32(end.Column),
	}
}
