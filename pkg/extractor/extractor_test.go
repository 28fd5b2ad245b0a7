package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolscope/symbolscope/pkg/parser"
	"github.com/symbolscope/symbolscope/pkg/parser/queries"
	"github.com/symbolscope/symbolscope/pkg/util"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	logger := util.NewLogger(util.DefaultLoggerConfig())
	pm := parser.NewParserManager(logger)
	t.Cleanup(func() { pm.Close() })
	qm := queries.NewQueryManager(pm, logger)
	t.Cleanup(func() { qm.Close() })
	return NewExtractor(pm, qm, logger)
}

func findSymbol(record *FileRecord, name string) *Symbol {
	for i := range record.Symbols {
		if record.Symbols[i].Name == name {
			return &record.Symbols[i]
		}
	}
	return nil
}

func findSymbolKind(record *FileRecord, name string, kind SymbolKind) *Symbol {
	for i := range record.Symbols {
		if record.Symbols[i].Name == name && record.Symbols[i].Kind == kind {
			return &record.Symbols[i]
		}
	}
	return nil
}

func referenceNames(record *FileRecord) map[string]int {
	names := make(map[string]int)
	for i := range record.References {
		names[record.References[i].SymbolName]++
	}
	return names
}

func TestExtractExportedFunction(t *testing.T) {
	ex := newTestExtractor(t)

	record, err := ex.ExtractFile("/ws/utils.ts", []byte("export function calculateTotal(a, b) { return a + b; }"))
	require.NoError(t, err)
	require.False(t, record.IsSkipped)

	sym := findSymbol(record, "calculateTotal")
	require.NotNil(t, sym)
	assert.Equal(t, KindFunction, sym.Kind)
	assert.True(t, sym.IsExported)
	assert.True(t, sym.IsDefinition)
	assert.Equal(t, 2, sym.ParametersCount)
	assert.Equal(t, uint32(0), sym.Location.Line)
	assert.Equal(t, uint32(16), sym.Location.Column)
}

func TestExtractClassMembers(t *testing.T) {
	ex := newTestExtractor(t)

	source := `export class User {
  static create() { return new User(); }
  getName() { return this.name; }
  readonly role = "admin";
}`
	record, err := ex.ExtractFile("/ws/user.ts", []byte(source))
	require.NoError(t, err)

	class := findSymbolKind(record, "User", KindClass)
	require.NotNil(t, class)
	assert.True(t, class.IsExported)

	create := findSymbolKind(record, "create", KindMethod)
	require.NotNil(t, create)
	assert.True(t, create.IsStatic)
	assert.Equal(t, "User", create.ContainerName)
	assert.Equal(t, KindClass, create.ContainerKind)
	assert.Equal(t, "User", create.FullContainerPath)

	getName := findSymbolKind(record, "getName", KindMethod)
	require.NotNil(t, getName)
	assert.False(t, getName.IsStatic)

	role := findSymbolKind(record, "role", KindProperty)
	require.NotNil(t, role)
}

func TestExtractImports(t *testing.T) {
	ex := newTestExtractor(t)

	source := `import { User as Admin } from "./user";
import React from "react";
import * as utils from "./utils";
const a = new Admin();`
	record, err := ex.ExtractFile("/ws/app.ts", []byte(source))
	require.NoError(t, err)

	require.Len(t, record.Imports, 3)

	byLocal := make(map[string]Import)
	for _, imp := range record.Imports {
		byLocal[imp.LocalName] = imp
	}

	admin, ok := byLocal["Admin"]
	require.True(t, ok)
	assert.Equal(t, "User", admin.ExportedName)
	assert.Equal(t, "./user", admin.ModuleSpecifier)

	react, ok := byLocal["React"]
	require.True(t, ok)
	assert.True(t, react.IsDefault)

	ns, ok := byLocal["utils"]
	require.True(t, ok)
	assert.True(t, ns.IsNamespace)

	// The usage of the renamed binding is a reference marked as import.
	foundUse := false
	for i := range record.References {
		ref := &record.References[i]
		if ref.SymbolName == "Admin" && ref.Location.Line == 3 {
			foundUse = true
			assert.True(t, ref.IsImport)
		}
	}
	assert.True(t, foundUse, "usage of renamed import should be recorded")
}

func TestExtractReExports(t *testing.T) {
	ex := newTestExtractor(t)

	source := `export * from "./bar";
export { Foo, Baz } from "./foo";`
	record, err := ex.ExtractFile("/ws/index.ts", []byte(source))
	require.NoError(t, err)

	var all, named *ReExport
	for i := range record.ReExports {
		re := &record.ReExports[i]
		if re.IsAll {
			all = re
		} else {
			named = re
		}
	}
	require.NotNil(t, all)
	assert.Equal(t, "./bar", all.ModuleSpecifier)

	require.NotNil(t, named)
	assert.Equal(t, "./foo", named.ModuleSpecifier)
	assert.ElementsMatch(t, []string{"Foo", "Baz"}, named.ExportedNames)
}

func TestPendingReferenceNoDoubleCount(t *testing.T) {
	ex := newTestExtractor(t)

	source := `import * as acts from "./actions";
acts.load();`
	record, err := ex.ExtractFile("/ws/consumer.ts", []byte(source))
	require.NoError(t, err)

	require.Len(t, record.PendingReferences, 1)
	pending := record.PendingReferences[0]
	assert.Equal(t, "acts", pending.Container)
	assert.Equal(t, "load", pending.Member)

	// The member never shows up as a plain reference from the same site.
	assert.Zero(t, referenceNames(record)["load"])
}

func TestLocalReferencesFlagged(t *testing.T) {
	ex := newTestExtractor(t)

	source := `export const shared = 1;
function work() {
  const local = 2;
  return local + shared;
}`
	record, err := ex.ExtractFile("/ws/scope.ts", []byte(source))
	require.NoError(t, err)

	var localRef, sharedRef *Reference
	for i := range record.References {
		ref := &record.References[i]
		switch {
		case ref.SymbolName == "local" && ref.Location.Line == 3:
			localRef = ref
		case ref.SymbolName == "shared" && ref.Location.Line == 3:
			sharedRef = ref
		}
	}

	require.NotNil(t, localRef)
	assert.True(t, localRef.IsLocal)
	assert.Equal(t, "work", localRef.ContainerName)

	require.NotNil(t, sharedRef)
	assert.False(t, sharedRef.IsLocal)
}

func TestExtractEnum(t *testing.T) {
	ex := newTestExtractor(t)

	record, err := ex.ExtractFile("/ws/color.ts", []byte(`export enum Color { Red, Green = 2 }`))
	require.NoError(t, err)

	require.NotNil(t, findSymbolKind(record, "Color", KindEnum))
	red := findSymbolKind(record, "Red", KindEnumMember)
	require.NotNil(t, red)
	assert.Equal(t, "Color", red.ContainerName)
	require.NotNil(t, findSymbolKind(record, "Green", KindEnumMember))
}

func TestObjectLiteralKeys(t *testing.T) {
	ex := newTestExtractor(t)

	source := `export const config = {
  server: {
    port: 8080
  }
};`
	record, err := ex.ExtractFile("/ws/config.ts", []byte(source))
	require.NoError(t, err)

	server := findSymbolKind(record, "server", KindProperty)
	require.NotNil(t, server)
	assert.Equal(t, "config", server.FullContainerPath)

	port := findSymbolKind(record, "port", KindProperty)
	require.NotNil(t, port)
	assert.Equal(t, "config.server", port.FullContainerPath)
}

func TestSymbolIDsStable(t *testing.T) {
	ex := newTestExtractor(t)
	source := []byte(`export class Stable { work(a) {} }`)

	first, err := ex.ExtractFile("/ws/stable.ts", source)
	require.NoError(t, err)
	second, err := ex.ExtractFile("/ws/stable.ts", source)
	require.NoError(t, err)

	require.Equal(t, len(first.Symbols), len(second.Symbols))
	for i := range first.Symbols {
		assert.Equal(t, first.Symbols[i].ID, second.Symbols[i].ID)
	}
	assert.Equal(t, first.ContentHash, second.ContentHash)
}

func TestNgrxActionGroupVirtualSymbols(t *testing.T) {
	ex := newTestExtractor(t)

	source := `import { createActionGroup, emptyProps } from "@ngrx/store";
export const userActions = createActionGroup({
  source: "User",
  events: {
    "Load User": emptyProps(),
    "Load User Success": emptyProps()
  }
});`
	record, err := ex.ExtractFile("/ws/user.actions.ts", []byte(source))
	require.NoError(t, err)

	group := findSymbol(record, "userActions")
	require.NotNil(t, group)
	require.Contains(t, group.Metadata, "ngrx")
	events, ok := group.Metadata["ngrx"]["events"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "loadUser", events["Load User"])
	assert.Equal(t, "loadUserSuccess", events["Load User Success"])

	loadUser := findSymbolKind(record, "loadUser", KindMethod)
	require.NotNil(t, loadUser)
	assert.Equal(t, "userActions", loadUser.ContainerName)
	assert.True(t, loadUser.IsDefinition)

	require.NotNil(t, findSymbolKind(record, "loadUserSuccess", KindMethod))
}

func TestNgrxCreateAction(t *testing.T) {
	ex := newTestExtractor(t)

	source := `import { createAction } from "@ngrx/store";
export const loadUsers = createAction("[User] Load Users");`
	record, err := ex.ExtractFile("/ws/actions.ts", []byte(source))
	require.NoError(t, err)

	action := findSymbol(record, "loadUsers")
	require.NotNil(t, action)
	require.Contains(t, action.Metadata, "ngrx")
	assert.Equal(t, true, action.Metadata["ngrx"]["createAction"])
	assert.Equal(t, "[User] Load Users", action.Metadata["ngrx"]["actionType"])
}

func TestAngularComponentMetadata(t *testing.T) {
	ex := newTestExtractor(t)

	source := `import { Component } from "@angular/core";

@Component({ selector: "app-root" })
export class AppComponent {}`
	record, err := ex.ExtractFile("/ws/app.component.ts", []byte(source))
	require.NoError(t, err)

	component := findSymbolKind(record, "AppComponent", KindClass)
	require.NotNil(t, component)
	require.Contains(t, component.Metadata, "angular")
	assert.Equal(t, "Component", component.Metadata["angular"]["decorator"])
}

func TestUnsupportedLanguageErrors(t *testing.T) {
	ex := newTestExtractor(t)
	_, err := ex.ExtractFile("/ws/readme.md", []byte("# hello"))
	assert.Error(t, err)
}

func TestCamelCase(t *testing.T) {
	assert.Equal(t, "loadUserSuccess", camelCase("Load User Success"))
	assert.Equal(t, "load", camelCase("Load"))
	assert.Equal(t, "load", camelCase("load"))
	assert.Equal(t, "", camelCase(""))
}
