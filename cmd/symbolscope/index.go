package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run one indexing pass over the workspace and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := context.Background()

			progress := func(phase string, processed, total int, message string) {
				if total > 0 {
					fmt.Fprintf(os.Stderr, "\r%s: %d/%d", phase, processed, total)
				}
			}

			eng, err := buildEngine(ctx, flagWorkspace, progress, logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			var perr error
			if full {
				_, perr = eng.Indexer.IndexWorkspace(ctx, true)
			} else {
				_, perr = eng.Indexer.InitialPass(ctx)
			}
			fmt.Fprintln(os.Stderr)
			if perr != nil {
				return perr
			}

			stats := eng.Indexer.Stats()
			fmt.Printf("indexed %d files, %d symbols (workers: %d, %d ms)\n",
				stats.BackgroundFiles, stats.BackgroundSymbols, stats.Workers, stats.LastPassMs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "ignore folder hashes and git state, rescan everything")
	return cmd
}
