package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/talent-sourcer/internal/ingestion"
	"github.com/jonathan/talent-sourcer/internal/seed"
	"github.com/jonathan/talent-sourcer/internal/types"
)

var (
	seedFile string
	seedJobs bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load teams (and optionally jobs) from a YAML file",
	Long: `Register the teams listed in a seed file. Teams whose name already exists are skipped.
With --jobs the file's jobs are created too.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "teams", "", "Seed YAML file (required)")
	seedCmd.Flags().BoolVar(&seedJobs, "jobs", false, "Also create the jobs listed in the file")
	_ = seedCmd.MarkFlagRequired("teams")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	f, err := seed.Load(seedFile)
	if err != nil {
		return err
	}
	if len(f.Teams) == 0 && (!seedJobs || len(f.Jobs) == 0) {
		return errors.New("seed file has nothing to load")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	existing, err := a.store.ListTeams(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to list teams: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[strings.ToLower(t.Name)] = true
	}

	out := cmd.OutOrStdout()
	created, skipped := 0, 0
	for i := range f.Teams {
		t := f.Teams[i]
		if known[strings.ToLower(t.Name)] {
			skipped++
			continue
		}
		if err := a.store.CreateTeam(ctx, &t); err != nil {
			return fmt.Errorf("failed to create team %q: %w", t.Name, err)
		}
		known[strings.ToLower(t.Name)] = true
		created++
		_, _ = fmt.Fprintf(out, "team %s  %s\n", t.ID, t.Name)
	}
	_, _ = fmt.Fprintf(out, "teams: %d created, %d skipped\n", created, skipped)

	if !seedJobs {
		return nil
	}
	for _, j := range f.Jobs {
		if j.Description == "" && j.DescriptionFile != "" {
			path := j.DescriptionFile
			if !filepath.IsAbs(path) {
				path = filepath.Join(filepath.Dir(seedFile), path)
			}
			text, _, err := ingestion.IngestFromFile(path)
			if err != nil {
				return fmt.Errorf("job %q: %w", j.Title, err)
			}
			j.Description = text
		}
		job, err := a.jobs.CreateJob(ctx, &types.CreateJobRequest{
			Title:        j.Title,
			Description:  j.Description,
			URL:          j.URL,
			Requirements: j.Requirements,
		})
		if err != nil {
			return fmt.Errorf("failed to create job %q: %w", j.Title, err)
		}
		_, _ = fmt.Fprintf(out, "job %s  %s\n", job.ID, job.Title)
	}
	_, _ = fmt.Fprintf(out, "jobs: %d created\n", len(f.Jobs))
	return nil
}
