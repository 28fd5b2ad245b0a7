package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/symbolscope/symbolscope/pkg/handlers"
	"github.com/symbolscope/symbolscope/pkg/util"
)

func searchSymbolsTool() mcp.Tool {
	return mcp.NewTool("search_symbols",
		mcp.WithDescription("Search workspace symbols by name. Short queries use prefix matching, longer queries full-text ranking."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Symbol name or name fragment")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 50)")),
	)
}

func (s *Server) handleSearchSymbols(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 50)

	results := s.handlers.WorkspaceSymbol(ctx, query, "")
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return jsonResult(results)
}

func findDefinitionTool() mcp.Tool {
	return mcp.NewTool("find_definition",
		mcp.WithDescription("Resolve a cursor position to its canonical definition."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Absolute file path")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("0-based line")),
		mcp.WithNumber("column", mcp.Required(), mcp.Description("0-based column")),
	)
}

func (s *Server) handleFindDefinition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	line := req.GetInt("line", 0)
	column := req.GetInt("column", 0)

	locations := s.handlers.Definition(ctx, file, handlers.Position{
		Line:   uint32(line),
		Column: uint32(column),
	})
	return jsonResult(locations)
}

func findReferencesTool() mcp.Tool {
	return mcp.NewTool("find_references",
		mcp.WithDescription("Find all reference sites of the symbol at a cursor position."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Absolute file path")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("0-based line")),
		mcp.WithNumber("column", mcp.Required(), mcp.Description("0-based column")),
		mcp.WithBoolean("includeDeclaration", mcp.Description("Include the declaration site")),
	)
}

func (s *Server) handleFindReferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	line := req.GetInt("line", 0)
	column := req.GetInt("column", 0)
	includeDeclaration := req.GetBool("includeDeclaration", false)

	results := s.handlers.References(ctx, file, handlers.Position{
		Line:   uint32(line),
		Column: uint32(column),
	}, includeDeclaration)
	return jsonResult(results)
}

func findDeadCodeTool() mcp.Tool {
	return mcp.NewTool("find_dead_code",
		mcp.WithDescription("Report exported symbols without any observed reference."),
		mcp.WithString("scope", mcp.Description("Restrict the sweep to this directory")),
		mcp.WithBoolean("includeTests", mcp.Description("Analyze test files too")),
	)
}

func (s *Server) handleFindDeadCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token := util.NewCancellationToken()
	report := s.handlers.DeadCode().AnalyzeWorkspace(ctx, token, handlers.DeadCodeOptions{
		ScopeURI:     req.GetString("scope", ""),
		IncludeTests: req.GetBool("includeTests", false),
	}, nil)
	return jsonResult(report)
}

func indexStatsTool() mcp.Tool {
	return mcp.NewTool("index_stats",
		mcp.WithDescription("Index statistics: file and symbol counts per tier, worker pool size."),
	)
}

func (s *Server) handleIndexStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.indexer.Stats())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
