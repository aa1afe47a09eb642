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
// Learning Params Methods
// -----------------------------------------------------------------------------

const paramsColumns = `id, agent_name, threshold_reject, threshold_takehome, threshold_interview,
	threshold_fasttrack, feature_weights, total_predictions, correct_predictions, accuracy,
	precision_by_stage, learning_rate, version, is_active, last_updated_at, created_at`

// GetActiveParams returns the active params for agent or nil.
func (db *DB) GetActiveParams(ctx context.Context, agent string) (*types.LearningParams, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+paramsColumns+` FROM learning_params WHERE agent_name = $1 AND is_active`, agent)
	p, err := scanParams(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active params: %w", err)
	}
	return p, nil
}

// ActivateParams inserts p as the active version and deactivates the prior active row for the
// same agent in one transaction. A duplicate (agent, version) fails without changing anything.
func (db *DB) ActivateParams(ctx context.Context, p *types.LearningParams) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.LastUpdatedAt.IsZero() {
		p.LastUpdatedAt = time.Now().UTC()
	}
	weights, err := marshalJSON(p.FeatureWeights, "{}")
	if err != nil {
		return fmt.Errorf("failed to marshal feature weights: %w", err)
	}
	precision, err := marshalJSON(p.PrecisionByStage, "{}")
	if err != nil {
		return fmt.Errorf("failed to marshal precision: %w", err)
	}

	err = pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE learning_params SET is_active = FALSE WHERE agent_name = $1 AND is_active`,
			p.AgentName,
		); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			`INSERT INTO learning_params (id, agent_name, threshold_reject, threshold_takehome,
			     threshold_interview, threshold_fasttrack, feature_weights, total_predictions,
			     correct_predictions, accuracy, precision_by_stage, learning_rate, version,
			     is_active, last_updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, TRUE, $14)
			 RETURNING created_at`,
			p.ID, p.AgentName, p.ThresholdReject, p.ThresholdTakehome,
			p.ThresholdInterview, p.ThresholdFasttrack, weights, p.TotalPredictions,
			p.CorrectPredictions, p.Accuracy, precision, p.LearningRate, p.Version,
			p.LastUpdatedAt,
		).Scan(&p.CreatedAt)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("params version %d already exists for %s: %w", p.Version, p.AgentName, err)
		}
		return fmt.Errorf("failed to activate params: %w", err)
	}
	p.IsActive = true
	return nil
}

// ListParamsHistory returns the agent's versions newest first.
func (db *DB) ListParamsHistory(ctx context.Context, agent string, limit int) ([]types.LearningParams, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+paramsColumns+` FROM learning_params
		 WHERE agent_name = $1
		 ORDER BY version DESC
		 LIMIT $2`,
		agent, limitParam(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list params history: %w", err)
	}
	return collectParams(rows)
}

// ListActiveParams returns the active row of every agent.
func (db *DB) ListActiveParams(ctx context.Context) ([]types.LearningParams, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+paramsColumns+` FROM learning_params WHERE is_active ORDER BY agent_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active params: %w", err)
	}
	return collectParams(rows)
}

func collectParams(rows pgx.Rows) ([]types.LearningParams, error) {
	defer rows.Close()
	var out []types.LearningParams
	for rows.Next() {
		p, err := scanParams(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan params: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanParams(row pgx.Row) (*types.LearningParams, error) {
	var p types.LearningParams
	var weights, precision []byte
	if err := row.Scan(&p.ID, &p.AgentName, &p.ThresholdReject, &p.ThresholdTakehome,
		&p.ThresholdInterview, &p.ThresholdFasttrack, &weights, &p.TotalPredictions,
		&p.CorrectPredictions, &p.Accuracy, &precision, &p.LearningRate, &p.Version,
		&p.IsActive, &p.LastUpdatedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.FeatureWeights = map[string]float64{}
	p.PrecisionByStage = map[string]types.StageCounts{}
	_ = json.Unmarshal(weights, &p.FeatureWeights)
	_ = json.Unmarshal(precision, &p.PrecisionByStage)
	return &p, nil
}

// -----------------------------------------------------------------------------
// Outcome Methods
// -----------------------------------------------------------------------------

const outcomeColumns = `id, candidate_id, job_id, predicted_score, predicted_stage, outcome,
	outcome_reason, performance_rating, retention_months, would_hire_again, ai_was_correct,
	reported_by, reported_at`

// CreateOutcome inserts a write-once outcome record.
func (db *DB) CreateOutcome(ctx context.Context, o *types.Outcome) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.ReportedAt.IsZero() {
		o.ReportedAt = time.Now().UTC()
	}
	correct, _ := o.AIWasCorrect.MarshalText()

	_, err := db.pool.Exec(ctx,
		`INSERT INTO outcomes (`+outcomeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.CandidateID, o.JobID, o.PredictedScore, o.PredictedStage, string(o.Label),
		o.Reason, o.PerformanceRating, o.RetentionMonths, o.WouldHireAgain, string(correct),
		o.ReportedBy, o.ReportedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("outcome %s already recorded: %w", o.ID, err)
		}
		return fmt.Errorf("failed to create outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns outcomes matching f, newest first.
func (db *DB) ListOutcomes(ctx context.Context, f types.OutcomeFilter) ([]types.Outcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM outcomes WHERE TRUE`
	args := []interface{}{}
	argPos := 1

	if f.JobID != nil {
		query += fmt.Sprintf(" AND job_id = $%d", argPos)
		args = append(args, *f.JobID)
		argPos++
	}
	if f.CandidateID != nil {
		query += fmt.Sprintf(" AND candidate_id = $%d", argPos)
		args = append(args, *f.CandidateID)
		argPos++
	}
	if f.Label != nil {
		query += fmt.Sprintf(" AND outcome = $%d", argPos)
		args = append(args, string(*f.Label))
		argPos++
	}
	if f.Since != nil {
		query += fmt.Sprintf(" AND reported_at >= $%d", argPos)
		args = append(args, *f.Since)
		argPos++
	}
	query += fmt.Sprintf(" ORDER BY reported_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limitParam(f.Limit), max(f.Offset, 0))

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var out []types.Outcome
	for rows.Next() {
		var o types.Outcome
		var label, correct string
		if err := rows.Scan(&o.ID, &o.CandidateID, &o.JobID, &o.PredictedScore, &o.PredictedStage,
			&label, &o.Reason, &o.PerformanceRating, &o.RetentionMonths, &o.WouldHireAgain,
			&correct, &o.ReportedBy, &o.ReportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Label = types.OutcomeLabel(label)
		_ = o.AIWasCorrect.UnmarshalText([]byte(correct))
		out = append(out, o)
	}
	return out, rows.Err()
}
