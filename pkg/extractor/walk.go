package extractor

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// walker performs the single recursive pass that emits symbols,
// references, and pending references. The parent is threaded explicitly
// through the recursion; tree-sitter's Parent() is only used as a
// fallback inside helpers.
type walker struct {
	ex       *Extractor
	src      []byte
	filePath string
	rec      *FileRecord

	scopes *scopeStack
	intern *Interner

	// importLocals maps a local binding name to its import.
	importLocals map[string]Import

	// objectDepth > 0 while inside an object literal that acts as a
	// declaration initializer; pair keys emit property symbols there.
	objectDepth int
}

func newWalker(e *Extractor, src []byte, filePath string, rec *FileRecord) *walker {
	w := &walker{
		ex:           e,
		src:          src,
		filePath:     filePath,
		rec:          rec,
		scopes:       newScopeStack(),
		intern:       e.interner,
		importLocals: make(map[string]Import, len(rec.Imports)),
	}
	for _, imp := range rec.Imports {
		w.importLocals[imp.LocalName] = imp
	}
	return w
}

func (w *walker) finish() {}

func (w *walker) text(n *ts.Node) string {
	return w.intern.Intern(n.Utf8Text(w.src))
}

func (w *walker) nodeRange(n *ts.Node) Range {
	start := n.StartPosition()
	end := n.EndPosition()
	return Range{
		StartLine:   uint32(start.Row),
		StartColumn: uint32(start.Column),
		EndLine:     uint32(end.Row),
		EndColumn:   uint32(end.Column),
	}
}

func (w *walker) nodeLocation(n *ts.Node) Location {
	start := n.StartPosition()
	return Location{
		URI:    w.filePath,
		Line:   uint32(start.Row),
		Column: uint32(start.Column),
	}
}

func (w *walker) walkChildren(n *ts.Node) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child != nil {
			w.walk(child, n)
		}
	}
}

// walk dispatches on node kind. Declaration kinds emit a symbol and push
// a scope around their children; identifier kinds classify into
// declaration-site, import binding, member access, or plain reference.
func (w *walker) walk(n *ts.Node, parent *ts.Node) {
	switch n.GrammarName() {
	case "function_declaration", "generator_function_declaration", "function_signature":
		w.walkNamedDeclaration(n, KindFunction, true)

	case "class_declaration", "abstract_class_declaration":
		w.walkNamedDeclaration(n, KindClass, false)

	case "interface_declaration":
		w.walkNamedDeclaration(n, KindInterface, false)

	case "type_alias_declaration":
		w.walkNamedDeclaration(n, KindType, false)

	case "enum_declaration":
		w.walkNamedDeclaration(n, KindEnum, false)

	case "enum_body":
		w.walkEnumBody(n)

	case "internal_module", "module":
		w.walkNamedDeclaration(n, KindNamespace, false)

	case "lexical_declaration", "variable_declaration":
		w.walkVariableStatement(n)

	case "method_definition", "method_signature", "abstract_method_signature":
		w.walkMethod(n)

	case "public_field_definition", "property_signature":
		w.walkField(n)

	case "pair":
		w.walkPair(n)

	case "arrow_function", "function_expression", "generator_function":
		// Anonymous function scope: binds locals, contributes no name.
		w.scopes.push("", KindFunction, true)
		w.walkChildren(n)
		w.scopes.pop()

	case "call_expression":
		w.applyPlugins(n, -1)
		w.walkChildren(n)

	case "decorator":
		w.applyPlugins(n, -1)
		w.walkChildren(n)

	case "identifier", "property_identifier", "type_identifier",
		"shorthand_property_identifier", "shorthand_property_identifier_pattern",
		"statement_identifier":
		w.handleIdentifier(n, parent)

	default:
		w.walkChildren(n)
	}
}

// walkNamedDeclaration handles declarations with a "name" field: emits
// the symbol, pushes its scope, and recurses.
func (w *walker) walkNamedDeclaration(n *ts.Node, kind SymbolKind, functionScope bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		w.walkChildren(n)
		return
	}
	name := w.text(nameNode)

	symIdx := w.emitSymbol(nameNode, n, name, kind, w.isStaticNode(n), w.paramCount(n))
	w.applyPlugins(n, symIdx)

	if functionScope {
		// The function's own name is callable from sibling scopes.
		w.scopes.addLocal(name)
	}
	w.scopes.push(name, kind, functionScope)
	w.walkChildren(n)
	w.scopes.pop()
}

func (w *walker) walkEnumBody(n *ts.Node) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		member := n.NamedChild(i)
		if member == nil {
			continue
		}
		switch member.GrammarName() {
		case "property_identifier":
			w.emitSymbol(member, member, w.text(member), KindEnumMember, false, 0)
		case "enum_assignment":
			if nameNode := member.ChildByFieldName("name"); nameNode != nil {
				w.emitSymbol(nameNode, member, w.text(nameNode), KindEnumMember, false, 0)
			}
			if valueNode := member.ChildByFieldName("value"); valueNode != nil {
				w.walk(valueNode, member)
			}
		default:
			w.walk(member, n)
		}
	}
}

// walkVariableStatement handles let/const/var statements. Each
// declarator emits a symbol; object-literal initializers become nested
// property containers.
func (w *walker) walkVariableStatement(n *ts.Node) {
	isConst := false
	if first := n.Child(0); first != nil && first.Utf8Text(w.src) == "const" {
		isConst = true
	}
	kind := KindVariable
	if isConst {
		kind = KindConstant
	}

	for i := uint(0); i < n.NamedChildCount(); i++ {
		decl := n.NamedChild(i)
		if decl == nil || decl.GrammarName() != "variable_declarator" {
			continue
		}

		nameNode := decl.ChildByFieldName("name")
		valueNode := decl.ChildByFieldName("value")
		if typeNode := decl.ChildByFieldName("type"); typeNode != nil {
			w.walk(typeNode, decl)
		}

		if nameNode == nil {
			continue
		}

		if nameNode.GrammarName() != "identifier" {
			// Destructuring pattern: bind locals, emit no symbols.
			w.bindPatternLocals(nameNode)
			if valueNode != nil {
				w.walk(valueNode, decl)
			}
			continue
		}

		name := w.text(nameNode)
		w.scopes.addLocal(name)
		symIdx := w.emitSymbol(nameNode, decl, name, kind, false, 0)

		if valueNode == nil {
			continue
		}
		w.applyPluginsToInitializer(decl, valueNode, symIdx)

		if valueNode.GrammarName() == "object" {
			// Nested object keys are recorded under the variable's path.
			w.scopes.push(name, kind, false)
			w.objectDepth++
			w.walkChildren(valueNode)
			w.objectDepth--
			w.scopes.pop()
		} else {
			w.walk(valueNode, decl)
		}
	}
}

func (w *walker) walkMethod(n *ts.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil || nameNode.GrammarName() == "computed_property_name" {
		w.walkChildren(n)
		return
	}
	name := w.text(nameNode)

	symIdx := w.emitSymbol(nameNode, n, name, KindMethod, w.isStaticNode(n), w.paramCount(n))
	w.applyPlugins(n, symIdx)

	w.scopes.push(name, KindMethod, true)
	w.walkChildren(n)
	w.scopes.pop()
}

func (w *walker) walkField(n *ts.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil || nameNode.GrammarName() == "computed_property_name" {
		w.walkChildren(n)
		return
	}
	name := w.text(nameNode)

	symIdx := w.emitSymbol(nameNode, n, name, KindProperty, w.isStaticNode(n), 0)
	w.applyPlugins(n, symIdx)

	if typeNode := n.ChildByFieldName("type"); typeNode != nil {
		w.walk(typeNode, n)
	}
	valueNode := n.ChildByFieldName("value")
	if valueNode == nil {
		return
	}
	w.applyPluginsToInitializer(n, valueNode, symIdx)
	if valueNode.GrammarName() == "object" {
		w.scopes.push(name, KindProperty, false)
		w.objectDepth++
		w.walkChildren(valueNode)
		w.objectDepth--
		w.scopes.pop()
	} else {
		w.walk(valueNode, n)
	}
}

// walkPair handles object-literal entries. Identifier keys inside a
// declaration initializer are property declarations with their nested
// path in fullContainerPath.
func (w *walker) walkPair(n *ts.Node) {
	keyNode := n.ChildByFieldName("key")
	valueNode := n.ChildByFieldName("value")

	emitKey := w.objectDepth > 0 && keyNode != nil && keyNode.GrammarName() == "property_identifier"
	if emitKey {
		name := w.text(keyNode)
		w.emitSymbol(keyNode, n, name, KindProperty, false, 0)
		if valueNode != nil && valueNode.GrammarName() == "object" {
			w.scopes.push(name, KindProperty, false)
			w.objectDepth++
			w.walkChildren(valueNode)
			w.objectDepth--
			w.scopes.pop()
			return
		}
	}
	if valueNode != nil {
		w.walk(valueNode, n)
	}
}

// handleIdentifier classifies a leaf identifier into declaration-site,
// import binding, member access, or plain reference.
func (w *walker) handleIdentifier(n *ts.Node, parent *ts.Node) {
	if parent == nil {
		parent = n.Parent()
	}
	if parent == nil {
		return
	}
	name := w.text(n)

	if w.isDeclarationName(n, parent) {
		// Parameters and destructured bindings become locals.
		switch parent.GrammarName() {
		case "required_parameter", "optional_parameter", "formal_parameters",
			"object_pattern", "array_pattern", "pair_pattern", "rest_pattern",
			"arrow_function":
			w.scopes.addLocal(name)
		}
		return
	}

	// Import specifier identifiers name an external symbol: they are
	// references, never declarations.
	switch parent.GrammarName() {
	case "import_specifier", "namespace_import", "import_clause":
		w.emitReference(n, name, true)
		return
	}

	// The name side of a qualified type (A.B): only the leftmost
	// identifier records a reference.
	if parent.GrammarName() == "nested_type_identifier" {
		if nameField := parent.ChildByFieldName("name"); nameField != nil && nameField.Id() == n.Id() {
			return
		}
	}

	// Property side of a member expression.
	if parent.GrammarName() == "member_expression" {
		if prop := parent.ChildByFieldName("property"); prop != nil && prop.Id() == n.Id() {
			w.handleMemberProperty(n, parent, name)
			return
		}
	}

	w.emitReference(n, name, w.isImportedLocal(name))
}

// handleMemberProperty emits either a pending reference (imported base)
// or a plain reference for the property side of X.y.
func (w *walker) handleMemberProperty(n *ts.Node, memberExpr *ts.Node, name string) {
	objNode := memberExpr.ChildByFieldName("object")
	if objNode != nil && objNode.GrammarName() == "identifier" {
		base := w.text(objNode)
		if w.isImportedLocal(base) {
			// Deferred to cross-file resolution; emitting a plain
			// reference here would double-count the site.
			w.rec.PendingReferences = append(w.rec.PendingReferences, PendingReference{
				Container: base,
				Member:    name,
				Location:  w.nodeLocation(n),
				Range:     w.nodeRange(n),
			})
			return
		}
	}
	w.emitReference(n, name, false)
}

func (w *walker) isImportedLocal(name string) bool {
	_, ok := w.importLocals[name]
	return ok
}

// isDeclarationName reports whether n is the declared name of its parent
// declaration, the left of a variable declarator, a non-computed
// property key, or a function parameter.
func (w *walker) isDeclarationName(n *ts.Node, parent *ts.Node) bool {
	switch parent.GrammarName() {
	case "function_declaration", "generator_function_declaration", "function_signature",
		"class_declaration", "abstract_class_declaration", "interface_declaration",
		"type_alias_declaration", "enum_declaration", "internal_module", "module",
		"method_definition", "method_signature", "abstract_method_signature",
		"public_field_definition", "property_signature", "variable_declarator",
		"enum_assignment":
		nameField := parent.ChildByFieldName("name")
		return nameField != nil && nameField.Id() == n.Id()

	case "pair":
		keyField := parent.ChildByFieldName("key")
		return keyField != nil && keyField.Id() == n.Id()

	case "required_parameter", "optional_parameter":
		patternField := parent.ChildByFieldName("pattern")
		return patternField != nil && patternField.Id() == n.Id()

	case "formal_parameters", "object_pattern", "array_pattern", "rest_pattern":
		return true

	case "pair_pattern":
		valueField := parent.ChildByFieldName("value")
		return valueField != nil && valueField.Id() == n.Id()

	case "arrow_function":
		paramField := parent.ChildByFieldName("parameter")
		return paramField != nil && paramField.Id() == n.Id()

	case "enum_body":
		return true
	}
	return false
}

// bindPatternLocals registers every identifier inside a destructuring
// pattern as a local binding.
func (w *walker) bindPatternLocals(pattern *ts.Node) {
	switch pattern.GrammarName() {
	case "identifier", "shorthand_property_identifier_pattern":
		w.scopes.addLocal(w.text(pattern))
		return
	}
	for i := uint(0); i < pattern.NamedChildCount(); i++ {
		if child := pattern.NamedChild(i); child != nil {
			w.bindPatternLocals(child)
		}
	}
}

func (w *walker) emitReference(n *ts.Node, name string, isImport bool) {
	containerName, _ := w.scopes.container()
	w.rec.References = append(w.rec.References, Reference{
		SymbolName:    name,
		Location:      w.nodeLocation(n),
		Range:         w.nodeRange(n),
		ContainerName: w.intern.Intern(containerName),
		IsImport:      isImport,
		ScopeID:       w.intern.Intern(w.scopes.id()),
		IsLocal:       w.scopes.isLocal(name),
	})
}

// emitSymbol appends the symbol and returns its index in the record.
// Indices stay valid across later appends; pointers into the slice would
// not.
func (w *walker) emitSymbol(nameNode, declNode *ts.Node, name string, kind SymbolKind, isStatic bool, paramCount int) int {
	containerName, containerKind := w.scopes.container()
	containerPath := w.intern.Intern(w.scopes.containerPath())
	loc := w.nodeLocation(nameNode)

	sym := Symbol{
		ID:                ComputeSymbolID(w.filePath, containerPath, name, kind, isStatic, paramCount, loc.Line, loc.Column),
		Name:              name,
		Kind:              kind,
		Location:          loc,
		Range:             w.nodeRange(nameNode),
		ContainerName:     w.intern.Intern(containerName),
		ContainerKind:     containerKind,
		FullContainerPath: containerPath,
		IsStatic:          isStatic,
		ParametersCount:   paramCount,
		IsDefinition:      true,
		IsExported:        w.isExported(declNode),
		FilePath:          w.filePath,
	}
	w.rec.Symbols = append(w.rec.Symbols, sym)
	return len(w.rec.Symbols) - 1
}

// isExported checks whether the declaration reaches the module surface:
// an export_statement parent, or membership in an exported container.
func (w *walker) isExported(declNode *ts.Node) bool {
	current := declNode.Parent()
	for current != nil {
		switch current.GrammarName() {
		case "export_statement":
			return true
		case "statement_block", "function_declaration", "arrow_function", "function_expression":
			// Function-local declarations never reach the surface.
			return false
		}
		current = current.Parent()
	}
	return false
}

func (w *walker) isStaticNode(n *ts.Node) bool {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child != nil && child.Utf8Text(w.src) == "static" {
			return true
		}
	}
	return false
}

func (w *walker) paramCount(n *ts.Node) int {
	params := n.ChildByFieldName("parameters")
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

// applyPlugins runs every registered framework visitor on the node and
// merges results into the record (and the symbol at symIdx, if >= 0).
func (w *walker) applyPlugins(n *ts.Node, symIdx int) {
	ctx := &VisitContext{
		Source:        w.src,
		FilePath:      w.filePath,
		ContainerPath: w.scopes.containerPath(),
	}
	if symIdx >= 0 {
		snapshot := w.rec.Symbols[symIdx]
		ctx.Symbol = &snapshot
	}
	for _, p := range w.ex.plugins {
		result := p.Visit(n, ctx)
		if result == nil {
			continue
		}
		w.mergePluginResult(p.Namespace(), result, symIdx)
	}
}

// applyPluginsToInitializer runs plugins against a declaration's
// initializer with the declared symbol attached, so call-style factories
// (createAction, createActionGroup) can annotate the variable.
func (w *walker) applyPluginsToInitializer(declNode, valueNode *ts.Node, symIdx int) {
	if valueNode.GrammarName() != "call_expression" {
		return
	}
	ctx := &VisitContext{
		Source:        w.src,
		FilePath:      w.filePath,
		ContainerPath: w.scopes.containerPath(),
	}
	if symIdx >= 0 {
		snapshot := w.rec.Symbols[symIdx]
		ctx.Symbol = &snapshot
	}
	for _, p := range w.ex.plugins {
		result := p.Visit(valueNode, ctx)
		if result == nil {
			continue
		}
		w.mergePluginResult(p.Namespace(), result, symIdx)
	}
}

func (w *walker) mergePluginResult(ns string, result *VisitResult, symIdx int) {
	if len(result.Metadata) > 0 && symIdx >= 0 {
		sym := &w.rec.Symbols[symIdx]
		if sym.Metadata == nil {
			sym.Metadata = make(map[string]map[string]any, 1)
		}
		if sym.Metadata[ns] == nil {
			sym.Metadata[ns] = make(map[string]any, len(result.Metadata))
		}
		for k, v := range result.Metadata {
			sym.Metadata[ns][k] = v
		}
	}
	w.rec.Symbols = append(w.rec.Symbols, result.Symbols...)
	w.rec.References = append(w.rec.References, result.References...)
}

// camelCase converts an action-group event name ("Load User Success")
// into its generated method name ("loadUserSuccess").
func camelCase(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return s
	}
	var b strings.Builder
	for i, word := range words {
		if i == 0 {
			b.WriteString(strings.ToLower(word[:1]) + word[1:])
			continue
		}
		b.WriteString(strings.ToUpper(word[:1]) + word[1:])
	}
	return b.String()
}
