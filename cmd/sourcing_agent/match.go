package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/talent-sourcer/internal/observability"
)

var (
	matchCandidateID string
	matchJobID       string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match a sourced candidate against active teams",
	RunE:  runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchCandidateID, "candidate-id", "", "Candidate to place (required)")
	matchCmd.Flags().StringVar(&matchJobID, "job-id", "", "Job the candidate was sourced for (required)")
	_ = matchCmd.MarkFlagRequired("candidate-id")
	_ = matchCmd.MarkFlagRequired("job-id")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, _ []string) error {
	candidateID, err := uuid.Parse(matchCandidateID)
	if err != nil {
		return fmt.Errorf("invalid --candidate-id: %w", err)
	}
	jobID, err := uuid.Parse(matchJobID)
	if err != nil {
		return fmt.Errorf("invalid --job-id: %w", err)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	matches, err := a.matcher.Match(ctx, candidateID, jobID)
	if err != nil {
		return err
	}
	label := candidateID.String()
	if cand, err := a.store.GetCandidate(ctx, candidateID); err == nil && cand != nil {
		label = cand.Handle
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintTeamMatches(label, matches)
	return nil
}
