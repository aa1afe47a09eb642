package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/talent-sourcer/internal/types"
)

// -----------------------------------------------------------------------------
// Pipeline Runs Methods
// -----------------------------------------------------------------------------

const runColumns = `id, job_id, status, error_message, summary, started_at, completed_at`

// CreatePipelineRun inserts a run in the running state unless a status is set.
func (db *DB) CreatePipelineRun(ctx context.Context, run *types.PipelineRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = types.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, job_id, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.JobID, run.Status, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompletePipelineRun sets the final status and summary of a run.
func (db *DB) CompletePipelineRun(ctx context.Context, id uuid.UUID, status, errMsg string, summary map[string]int) error {
	var summaryJSON []byte
	if summary != nil {
		var err error
		summaryJSON, err = json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE pipeline_runs
		 SET status = $1, error_message = $2, summary = $3, completed_at = NOW()
		 WHERE id = $4`,
		status, errMsg, summaryJSON, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NotFound("pipeline run", id)
	}
	return nil
}

// GetPipelineRun returns the run or nil.
func (db *DB) GetPipelineRun(ctx context.Context, id uuid.UUID) (*types.PipelineRun, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListPipelineRuns returns runs newest first. A nil job id lists all runs.
func (db *DB) ListPipelineRuns(ctx context.Context, jobID *uuid.UUID, limit int) ([]types.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs`
	args := []interface{}{}
	if jobID != nil {
		query += " WHERE job_id = $1"
		args = append(args, *jobID)
	}
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limitParam(limit))

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []types.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*types.PipelineRun, error) {
	var run types.PipelineRun
	var summaryJSON []byte
	if err := row.Scan(&run.ID, &run.JobID, &run.Status, &run.ErrorMessage, &summaryJSON,
		&run.StartedAt, &run.CompletedAt); err != nil {
		return nil, err
	}
	if summaryJSON != nil {
		_ = json.Unmarshal(summaryJSON, &run.Summary)
	}
	return &run, nil
}

// -----------------------------------------------------------------------------
// Run Steps Methods
// -----------------------------------------------------------------------------

const stepColumns = `run_id, step, category, status, started_at, completed_at, duration_ms,
	error_message, counts`

// CreateRunStep adds a step to a run. Steps are unique per run.
func (db *DB) CreateRunStep(ctx context.Context, step *types.RunStep) error {
	if step.Status == "" {
		step.Status = types.StepStatusPending
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO run_steps (run_id, step, category, status) VALUES ($1, $2, $3, $4)`,
		step.RunID, step.Step, step.Category, step.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("step %s already exists for run %s: %w", step.Step, step.RunID, err)
		}
		return fmt.Errorf("failed to create run step: %w", err)
	}
	return nil
}

// GetRunStep retrieves a run step by run_id and step name
func (db *DB) GetRunStep(ctx context.Context, runID uuid.UUID, stepName string) (*types.RunStep, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+stepColumns+` FROM run_steps WHERE run_id = $1 AND step = $2`,
		runID, stepName,
	)
	step, err := scanStep(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run step: %w", err)
	}
	return step, nil
}

// ListRunSteps returns the steps of a run in creation order.
func (db *DB) ListRunSteps(ctx context.Context, runID uuid.UUID) ([]types.RunStep, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+stepColumns+` FROM run_steps WHERE run_id = $1 ORDER BY created_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run steps: %w", err)
	}
	defer rows.Close()

	var steps []types.RunStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run step: %w", err)
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}

// UpdateRunStepStatus moves a step to status. Entering in_progress stamps the start time;
// a terminal status stamps completion and the duration since start.
func (db *DB) UpdateRunStepStatus(ctx context.Context, runID uuid.UUID, stepName, status string, errMsg *string, counts map[string]int) error {
	now := time.Now().UTC()

	current, err := db.GetRunStep(ctx, runID, stepName)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("step not found: %s", stepName)
	}

	var startedAt *time.Time
	if status == types.StepStatusInProgress && current.StartedAt == nil {
		startedAt = &now
	}

	var completedAt *time.Time
	var durationMs *int
	switch status {
	case types.StepStatusCompleted, types.StepStatusFailed, types.StepStatusSkipped:
		completedAt = &now
		if current.StartedAt != nil {
			d := int(now.Sub(*current.StartedAt).Milliseconds())
			durationMs = &d
		}
	}

	var countsJSON []byte
	if counts != nil {
		countsJSON, err = json.Marshal(counts)
		if err != nil {
			return fmt.Errorf("failed to marshal counts: %w", err)
		}
	}

	_, err = db.pool.Exec(ctx,
		`UPDATE run_steps
		 SET status = $1,
		     started_at = COALESCE($2, started_at),
		     completed_at = COALESCE($3, completed_at),
		     duration_ms = COALESCE($4, duration_ms),
		     error_message = COALESCE($5, error_message),
		     counts = COALESCE($6, counts)
		 WHERE run_id = $7 AND step = $8`,
		status, startedAt, completedAt, durationMs, errMsg, countsJSON, runID, stepName,
	)
	if err != nil {
		return fmt.Errorf("failed to update run step: %w", err)
	}
	return nil
}

func scanStep(row pgx.Row) (*types.RunStep, error) {
	var step types.RunStep
	var countsJSON []byte
	if err := row.Scan(&step.RunID, &step.Step, &step.Category, &step.Status, &step.StartedAt,
		&step.CompletedAt, &step.DurationMs, &step.ErrorMessage, &countsJSON); err != nil {
		return nil, err
	}
	if countsJSON != nil {
		_ = json.Unmarshal(countsJSON, &step.Counts)
	}
	return &step, nil
}
