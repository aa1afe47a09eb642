package main

import (
	"errors"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/talent-sourcer/internal/learning"
	"github.com/jonathan/talent-sourcer/internal/observability"
)

var (
	simIterations   int
	simSeed         int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate threshold learning against synthetic outcomes",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simIterations, "iterations", 100, "Number of synthetic outcomes")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed (default: current time)")
	simulateCmd.Flags().Float64("learning-rate", 0.1, "Learning rate (overrides learning.learning_rate)")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	if simIterations <= 0 {
		return errors.New("--iterations must be positive")
	}
	lr := appConfig.Learning.LearningRate
	seed := time.Now().UnixNano()
	if cmd.Flags().Changed("seed") {
		seed = simSeed
	}

	points := learning.Simulate(simIterations, lr, rand.New(rand.NewSource(seed)))
	observability.NewPrinter(cmd.OutOrStdout()).PrintSimulation(points)
	return nil
}
