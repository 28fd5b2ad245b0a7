package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/symbolscope/symbolscope/pkg/handlers"
	"github.com/symbolscope/symbolscope/pkg/util"
)

func newDeadCodeCmd() *cobra.Command {
	var (
		includeTests bool
		jsonOut      bool
		exclude      []string
	)

	cmd := &cobra.Command{
		Use:   "deadcode [scope]",
		Short: "Report exported symbols with no references",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := context.Background()

			eng, err := buildEngine(ctx, flagWorkspace, nil, logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			if _, err := eng.Indexer.InitialPass(ctx); err != nil {
				return err
			}

			scope := ""
			if len(args) == 1 {
				scope = args[0]
			}

			token := util.NewCancellationToken()
			report := eng.Handlers.DeadCode().AnalyzeWorkspace(ctx, token, handlers.DeadCodeOptions{
				ScopeURI:        scope,
				ExcludePatterns: exclude,
				IncludeTests:    includeTests,
			}, func(processed, total int) {
				fmt.Fprintf(os.Stderr, "\rdead-code: %d/%d", processed, total)
			})
			fmt.Fprintln(os.Stderr)

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(report)
			}

			for _, candidate := range report.Candidates {
				fmt.Printf("%s:%d:%d  %s %s  (%s)\n",
					candidate.Location.URI,
					candidate.Location.Range.StartLine+1,
					candidate.Location.Range.StartColumn+1,
					candidate.Kind, candidate.Name, candidate.Confidence)
			}
			fmt.Printf("\n%d candidates across %d files (%d exports checked, %d ms)\n",
				len(report.Candidates), report.AnalyzedFiles, report.TotalExports, report.DurationMs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeTests, "include-tests", false, "analyze test files too")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the raw JSON report")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "glob patterns to skip")
	return cmd
}
