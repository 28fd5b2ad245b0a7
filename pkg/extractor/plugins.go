package extractor

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// VisitContext carries walk state into framework visitors.
type VisitContext struct {
	Source        []byte
	FilePath      string
	ContainerPath string

	// Symbol is a read-only snapshot of the symbol emitted for the node
	// being visited, or nil for free-standing calls and decorators.
	Symbol *Symbol
}

// VisitResult is what a visitor contributes for one node. Metadata is
// merged into the visited symbol under the plugin's namespace; Symbols
// and References are appended to the file record.
type VisitResult struct {
	Metadata   map[string]any
	Symbols    []Symbol
	References []Reference
}

// NodeVisitor is a framework extension hooked into the walk. Visitors
// are registered in a slice and statically linked; there is no dynamic
// loading.
type NodeVisitor interface {
	// Namespace keys the metadata map ("angular", "ngrx").
	Namespace() string

	// Visit inspects one node. Returning nil means no contribution.
	Visit(node *ts.Node, ctx *VisitContext) *VisitResult
}

// DefaultPlugins returns the built-in visitor set.
func DefaultPlugins() []NodeVisitor {
	return []NodeVisitor{
		&AngularPlugin{},
		&NgRxPlugin{},
	}
}

// -----------------------------------------------------------------------
// Angular
// -----------------------------------------------------------------------

// AngularPlugin records Angular decorator metadata on classes
// (@Component, @Directive, @Injectable, @Pipe) and members
// (@Input, @Output).
type AngularPlugin struct{}

func (p *AngularPlugin) Namespace() string { return "angular" }

var angularClassDecorators = map[string]bool{
	"Component": true, "Directive": true, "Injectable": true, "Pipe": true,
}

var angularMemberDecorators = map[string]bool{
	"Input": true, "Output": true,
}

func (p *AngularPlugin) Visit(node *ts.Node, ctx *VisitContext) *VisitResult {
	if ctx.Symbol == nil {
		return nil
	}

	switch node.GrammarName() {
	case "class_declaration", "abstract_class_declaration":
		for _, name := range decoratorNames(node, ctx.Source) {
			if angularClassDecorators[name] {
				return &VisitResult{Metadata: map[string]any{"decorator": name}}
			}
		}

	case "public_field_definition", "method_definition":
		for _, name := range decoratorNames(node, ctx.Source) {
			if angularMemberDecorators[name] {
				return &VisitResult{Metadata: map[string]any{"decorator": name}}
			}
		}
	}
	return nil
}

// decoratorNames collects decorator identifiers attached to a node,
// checking both decorator children and preceding decorator siblings
// (grammar versions differ on where decorators hang).
func decoratorNames(node *ts.Node, source []byte) []string {
	var names []string

	collect := func(n *ts.Node) {
		if n != nil && n.GrammarName() == "decorator" {
			if name := decoratorName(n, source); name != "" {
				names = append(names, name)
			}
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		collect(node.Child(i))
	}
	for sib := node.PrevNamedSibling(); sib != nil && sib.GrammarName() == "decorator"; sib = sib.PrevNamedSibling() {
		collect(sib)
	}
	return names
}

// decoratorName extracts "Component" from @Component({...}) or @Component.
func decoratorName(dec *ts.Node, source []byte) string {
	for i := uint(0); i < dec.NamedChildCount(); i++ {
		child := dec.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.GrammarName() {
		case "call_expression":
			if fn := child.ChildByFieldName("function"); fn != nil {
				return fn.Utf8Text(source)
			}
		case "identifier":
			return child.Utf8Text(source)
		}
	}
	return ""
}

// -----------------------------------------------------------------------
// NgRx
// -----------------------------------------------------------------------

// NgRxPlugin recognises NgRx action and effect patterns:
//
//   - class implementing Action with a readonly type property
//   - createAction("[Src] Event", ...)
//   - createActionGroup({source, events: {...}}) — emits a virtual
//     method symbol per event, name camel-cased
//   - createEffect(...) and the @Effect decorator
type NgRxPlugin struct{}

func (p *NgRxPlugin) Namespace() string { return "ngrx" }

func (p *NgRxPlugin) Visit(node *ts.Node, ctx *VisitContext) *VisitResult {
	switch node.GrammarName() {
	case "class_declaration":
		return p.visitClass(node, ctx)
	case "call_expression":
		return p.visitCall(node, ctx)
	case "public_field_definition", "method_definition":
		for _, name := range decoratorNames(node, ctx.Source) {
			if name == "Effect" {
				return &VisitResult{Metadata: map[string]any{"isEffect": true}}
			}
		}
	}
	return nil
}

// visitClass detects the classic class-based action shape:
// class LoadUser implements Action { readonly type = '[User] Load'; }
func (p *NgRxPlugin) visitClass(node *ts.Node, ctx *VisitContext) *VisitResult {
	if ctx.Symbol == nil || !implementsInterface(node, ctx.Source, "Action") {
		return nil
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		member := body.NamedChild(i)
		if member == nil || member.GrammarName() != "public_field_definition" {
			continue
		}
		nameNode := member.ChildByFieldName("name")
		if nameNode == nil || nameNode.Utf8Text(ctx.Source) != "type" || !hasKeywordChild(member, ctx.Source, "readonly") {
			continue
		}
		meta := map[string]any{"isAction": true}
		if valueNode := member.ChildByFieldName("value"); valueNode != nil {
			if lit := stringLiteral(valueNode, ctx.Source); lit != "" {
				meta["actionType"] = lit
			}
		}
		return &VisitResult{Metadata: meta}
	}
	return nil
}

func (p *NgRxPlugin) visitCall(node *ts.Node, ctx *VisitContext) *VisitResult {
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.GrammarName() != "identifier" {
		return nil
	}

	switch fn.Utf8Text(ctx.Source) {
	case "createAction":
		if ctx.Symbol == nil {
			return nil
		}
		meta := map[string]any{"createAction": true}
		if lit := firstArgString(node, ctx.Source); lit != "" {
			meta["actionType"] = lit
		}
		return &VisitResult{Metadata: meta}

	case "createActionGroup":
		if ctx.Symbol == nil {
			return nil
		}
		return p.visitActionGroup(node, ctx)

	case "createEffect":
		if ctx.Symbol == nil {
			return nil
		}
		return &VisitResult{Metadata: map[string]any{"isEffect": true}}

	case "createReducer":
		if ctx.Symbol == nil {
			return nil
		}
		return &VisitResult{Metadata: map[string]any{"isReducer": true}}
	}
	return nil
}

// visitActionGroup expands createActionGroup({source, events: {...}}):
// each event key becomes a virtual method-kind symbol on the group
// container so member access like userActions.loadSuccess resolves.
func (p *NgRxPlugin) visitActionGroup(node *ts.Node, ctx *VisitContext) *VisitResult {
	config := firstArgObject(node)
	if config == nil {
		return nil
	}

	meta := map[string]any{"createActionGroup": true}
	events := make(map[string]string)
	var virtual []Symbol

	for i := uint(0); i < config.NamedChildCount(); i++ {
		pair := config.NamedChild(i)
		if pair == nil || pair.GrammarName() != "pair" {
			continue
		}
		keyNode := pair.ChildByFieldName("key")
		valueNode := pair.ChildByFieldName("value")
		if keyNode == nil || valueNode == nil {
			continue
		}

		switch keyNode.Utf8Text(ctx.Source) {
		case "source":
			if lit := stringLiteral(valueNode, ctx.Source); lit != "" {
				meta["source"] = lit
			}

		case "events":
			if valueNode.GrammarName() != "object" {
				continue
			}
			for j := uint(0); j < valueNode.NamedChildCount(); j++ {
				event := valueNode.NamedChild(j)
				if event == nil || event.GrammarName() != "pair" {
					continue
				}
				eventKey := event.ChildByFieldName("key")
				if eventKey == nil {
					continue
				}
				eventName := strings.Trim(eventKey.Utf8Text(ctx.Source), "\"'`")
				methodName := camelCase(eventName)
				events[eventName] = methodName

				start := eventKey.StartPosition()
				end := eventKey.EndPosition()
				loc := Location{URI: ctx.FilePath, Line: uint32(start.Row), Column: uint32(start.Column)}
				containerPath := ctx.ContainerPath
				if containerPath == "" {
					containerPath = ctx.Symbol.Name
				} else {
					containerPath = containerPath + "." + ctx.Symbol.Name
				}
				virtual = append(virtual, Symbol{
					ID:                ComputeSymbolID(ctx.FilePath, containerPath, methodName, KindMethod, false, 0, loc.Line, loc.Column),
					Name:              methodName,
					Kind:              KindMethod,
					Location:          loc,
					Range:             Range{StartLine: uint32(start.Row), StartColumn: uint32(start.Column), EndLine: uint32(end.Row), EndColumn: uint32(end.Column)},
					ContainerName:     ctx.Symbol.Name,
					ContainerKind:     ctx.Symbol.Kind,
					FullContainerPath: containerPath,
					IsDefinition:      true,
					IsExported:        ctx.Symbol.IsExported,
					Metadata:          map[string]map[string]any{"ngrx": {"event": eventName}},
					FilePath:          ctx.FilePath,
				})
			}
		}
	}

	if len(events) > 0 {
		meta["events"] = events
	}
	return &VisitResult{Metadata: meta, Symbols: virtual}
}

// implementsInterface checks the class heritage clause for a name.
func implementsInterface(classNode *ts.Node, source []byte, ifaceName string) bool {
	for i := uint(0); i < classNode.NamedChildCount(); i++ {
		child := classNode.NamedChild(i)
		if child == nil || child.GrammarName() != "class_heritage" {
			continue
		}
		text := child.Utf8Text(source)
		if !strings.Contains(text, "implements") {
			continue
		}
		for _, part := range strings.Split(strings.TrimSpace(strings.SplitN(text, "implements", 2)[1]), ",") {
			name := strings.TrimSpace(part)
			// Strip generics: Action<Payload> → Action.
			if idx := strings.IndexByte(name, '<'); idx >= 0 {
				name = name[:idx]
			}
			if name == ifaceName {
				return true
			}
		}
	}
	return false
}

func hasKeywordChild(node *ts.Node, source []byte, keyword string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Utf8Text(source) == keyword {
			return true
		}
	}
	return false
}

// stringLiteral unquotes a string/template literal node, or returns "".
func stringLiteral(node *ts.Node, source []byte) string {
	switch node.GrammarName() {
	case "string", "template_string":
		return strings.Trim(node.Utf8Text(source), "\"'`")
	}
	return ""
}

// firstArgString returns the first call argument if it is a string literal.
func firstArgString(call *ts.Node, source []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return ""
	}
	first := args.NamedChild(0)
	if first == nil {
		return ""
	}
	return stringLiteral(first, source)
}

// firstArgObject returns the first call argument if it is an object literal.
func firstArgObject(call *ts.Node) *ts.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return nil
	}
	first := args.NamedChild(0)
	if first == nil || first.GrammarName() != "object" {
		return nil
	}
	return first
}
