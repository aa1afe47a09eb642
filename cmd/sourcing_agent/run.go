package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/talent-sourcer/internal/observability"
	"github.com/jonathan/talent-sourcer/internal/pipeline"
	"github.com/jonathan/talent-sourcer/internal/types"
)

var (
	runJobID string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sourcing pipeline once for a job",
	Long: `Run every pipeline step for a job in the foreground, printing progress as each step
finishes and a summary of where candidates were routed.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runJobID, "job-id", "", "Job to source candidates for (required)")
	_ = runCmd.MarkFlagRequired("job-id")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	jobID, err := uuid.Parse(runJobID)
	if err != nil {
		return fmt.Errorf("invalid --job-id: %w", err)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	printer := observability.NewPrinter(cmd.OutOrStdout())
	summary, err := a.pipeline.Run(ctx, jobID, pipeline.RunOptions{OnProgress: printer.PrintProgress})
	if summary != nil {
		printer.PrintRunSummary(summary)
	}
	if err != nil {
		return err
	}
	if summary.Status == types.RunStatusFailed {
		return fmt.Errorf("run %s failed: %s", summary.RunID, summary.Error)
	}
	return nil
}
