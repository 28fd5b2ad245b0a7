package main

import (
	"context"

	"github.com/spf13/cobra"

	mcpserver "github.com/symbolscope/symbolscope/pkg/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the index as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := context.Background()

			eng, err := buildEngine(ctx, flagWorkspace, nil, logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			if _, err := eng.Indexer.InitialPass(ctx); err != nil {
				logger.Warn("initial index pass failed", "error", err)
			}

			srv := mcpserver.NewServer(eng.Handlers, eng.Indexer)
			return srv.ServeStdio()
		},
	}
}
