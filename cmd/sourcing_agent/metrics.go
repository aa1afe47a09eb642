package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/talent-sourcer/internal/observability"
)

var (
	metricsDays int
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show routing precision and recent outcomes for an agent",
	RunE:  runMetrics,
}

func init() {
	metricsCmd.Flags().String("agent", "sourcing_agent", "Agent name (overrides learning.agent)")
	metricsCmd.Flags().IntVar(&metricsDays, "days", 30, "Window of recent outcomes")
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	agent := appConfig.Learning.Agent
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.engine.Metrics(ctx, agent, metricsDays)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintMetrics(m)
	return nil
}
