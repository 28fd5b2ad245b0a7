// Package mcp exposes a read-only tool surface over the symbol index
// for MCP clients: search, definitions, references, dead code, stats.
// It is a secondary surface beside the LSP server, never a writer.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/symbolscope/symbolscope/pkg/handlers"
	"github.com/symbolscope/symbolscope/pkg/indexer"
)

const serverVersion = "0.1.0-dev"

// Server wires the index query surface into MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	handlers  *handlers.Handlers
	indexer   *indexer.Indexer
}

// NewServer creates the MCP server over an already-started indexer and
// handler set.
func NewServer(h *handlers.Handlers, ix *indexer.Indexer) *Server {
	s := &Server{handlers: h, indexer: ix}

	s.mcpServer = server.NewMCPServer("symbolscope", serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: searchSymbolsTool(), Handler: s.handleSearchSymbols},
		server.ServerTool{Tool: findDefinitionTool(), Handler: s.handleFindDefinition},
		server.ServerTool{Tool: findReferencesTool(), Handler: s.handleFindReferences},
		server.ServerTool{Tool: findDeadCodeTool(), Handler: s.handleFindDeadCode},
		server.ServerTool{Tool: indexStatsTool(), Handler: s.handleIndexStats},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
