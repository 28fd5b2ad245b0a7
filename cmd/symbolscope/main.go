// Command symbolscope is the workspace symbol-intelligence server:
// an LSP backend over stdio, with one-shot indexing and dead-code
// commands and an optional MCP tool surface.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/symbolscope/symbolscope/pkg/util"
)

const version = "0.1.0-dev"

var (
	flagLogLevel  string
	flagLogFormat string
	flagWorkspace string
)

func main() {
	root := &cobra.Command{
		Use:           "symbolscope",
		Short:         "Workspace symbol intelligence for TypeScript/JavaScript",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "log format: text, json")
	root.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", ".", "workspace root")

	root.AddCommand(
		newServeCmd(),
		newIndexCmd(),
		newDeadCodeCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "symbolscope: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return util.NewLogger(util.LoggerConfig{
		Level:  util.LogLevel(flagLogLevel),
		Format: util.LogFormat(flagLogFormat),
		Output: os.Stderr,
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("symbolscope %s\n", version)
		},
	}
}
