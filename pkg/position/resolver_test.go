package position

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/parser"
	"github.com/symbolscope/symbolscope/pkg/util"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	logger := util.NewLogger(util.DefaultLoggerConfig())
	pm := parser.NewParserManager(logger)
	t.Cleanup(func() { pm.Close() })
	return NewResolver(pm, logger)
}

// at locates the first occurrence of needle in source, 0-based.
func at(t *testing.T, source, needle string) (uint32, uint32) {
	t.Helper()
	idx := strings.Index(source, needle)
	require.GreaterOrEqual(t, idx, 0)
	line := uint32(strings.Count(source[:idx], "\n"))
	lastNL := strings.LastIndex(source[:idx], "\n")
	return line, uint32(idx - lastNL - 1)
}

func TestSymbolAtFunctionName(t *testing.T) {
	r := newTestResolver(t)
	source := "export function calculateTotal(a, b) { return a + b; }"

	line, col := at(t, source, "calculateTotal")
	info := r.SymbolAt("/ws/utils.ts", []byte(source), line, col)
	require.NotNil(t, info)
	assert.Equal(t, "calculateTotal", info.Name)
	assert.Equal(t, extractor.KindFunction, info.Kind)
	assert.Equal(t, 2, info.ParametersCount)
	assert.False(t, info.IsImport)
}

func TestSymbolAtMethodWithContainer(t *testing.T) {
	r := newTestResolver(t)
	source := `class UserService {
  static getUser(id) { return null; }
}`

	line, col := at(t, source, "getUser")
	info := r.SymbolAt("/ws/service.ts", []byte(source), line, col)
	require.NotNil(t, info)
	assert.Equal(t, "getUser", info.Name)
	assert.Equal(t, extractor.KindMethod, info.Kind)
	assert.True(t, info.IsStatic)
	assert.Equal(t, "UserService", info.ContainerName)
	assert.Equal(t, extractor.KindClass, info.ContainerKind)
	assert.Equal(t, "UserService", info.FullContainerPath)
}

func TestSymbolAtImportBinding(t *testing.T) {
	r := newTestResolver(t)
	source := `import { User as Admin } from "./user";`

	line, col := at(t, source, "Admin")
	info := r.SymbolAt("/ws/app.ts", []byte(source), line, col)
	require.NotNil(t, info)
	assert.True(t, info.IsImport)
	assert.Equal(t, "./user", info.ModuleSpecifier)
	assert.Equal(t, "User", info.ImportedName)
}

func TestSymbolAtWhitespaceReturnsNil(t *testing.T) {
	r := newTestResolver(t)
	source := "const x = 1;   \nconst y = 2;"
	info := r.SymbolAt("/ws/a.ts", []byte(source), 0, 13)
	assert.Nil(t, info)
}

func TestParseMemberAccess(t *testing.T) {
	r := newTestResolver(t)
	source := "config.server.port = 8080;"

	// Cursor on "port".
	line, col := at(t, source, "port")
	access := r.ParseMemberAccess("/ws/a.ts", []byte(source), line, col)
	require.NotNil(t, access)
	assert.Equal(t, "config", access.BaseName)
	assert.Equal(t, []string{"server", "port"}, access.PropertyChain)

	// Cursor on "server" truncates the chain there.
	line, col = at(t, source, "server")
	access = r.ParseMemberAccess("/ws/a.ts", []byte(source), line, col)
	require.NotNil(t, access)
	assert.Equal(t, "config", access.BaseName)
	assert.Equal(t, []string{"server"}, access.PropertyChain)
}

func TestParseMemberAccessOutsideChain(t *testing.T) {
	r := newTestResolver(t)
	source := "const plain = 42;"
	line, col := at(t, source, "plain")
	assert.Nil(t, r.ParseMemberAccess("/ws/a.ts", []byte(source), line, col))
}
