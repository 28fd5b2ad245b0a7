package extractor

import "strings"

// scopeEntry is one level of the declaration chain during a walk.
type scopeEntry struct {
	name string
	kind SymbolKind

	// functionScope marks scopes that bind local variables (function
	// bodies, methods). Locals declared here are invisible cross-file.
	functionScope bool

	// locals holds variable and parameter names bound in this scope.
	locals map[string]bool
}

// scopeStack tracks the enclosing declaration chain while walking a file.
// Cleared between files; never shared across workers.
type scopeStack struct {
	entries []scopeEntry
}

func newScopeStack() *scopeStack {
	return &scopeStack{entries: make([]scopeEntry, 0, 8)}
}

func (s *scopeStack) push(name string, kind SymbolKind, functionScope bool) {
	s.entries = append(s.entries, scopeEntry{
		name:          name,
		kind:          kind,
		functionScope: functionScope,
		locals:        make(map[string]bool, 4),
	})
}

func (s *scopeStack) pop() {
	if len(s.entries) > 0 {
		s.entries = s.entries[:len(s.entries)-1]
	}
}

func (s *scopeStack) depth() int {
	return len(s.entries)
}

// addLocal binds a name in the innermost function scope, if any.
func (s *scopeStack) addLocal(name string) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].functionScope {
			s.entries[i].locals[name] = true
			return
		}
	}
	// No function scope on the stack: module-level binding, not local.
}

// isLocal reports whether name is bound by an enclosing function scope.
func (s *scopeStack) isLocal(name string) bool {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].functionScope && s.entries[i].locals[name] {
			return true
		}
	}
	return false
}

// id returns the dotted scope path, e.g. "UserService.getUser".
func (s *scopeStack) id() string {
	if len(s.entries) == 0 {
		return ""
	}
	parts := make([]string, len(s.entries))
	for i, e := range s.entries {
		parts[i] = e.name
	}
	return strings.Join(parts, ".")
}

// container returns the innermost enclosing declaration, or ("", "") at
// module level.
func (s *scopeStack) container() (name string, kind SymbolKind) {
	if len(s.entries) == 0 {
		return "", ""
	}
	top := s.entries[len(s.entries)-1]
	return top.name, top.kind
}

// containerPath returns the dot-joined chain of enclosing declarations.
func (s *scopeStack) containerPath() string {
	return s.id()
}
