package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/jonathan/talent-sourcer/internal/types"
)

// -----------------------------------------------------------------------------
// Teams
// -----------------------------------------------------------------------------

const teamColumns = `id, name, description, tech_stack, current_needs, team_culture,
	manager_name, manager_email, is_active, created_at, updated_at`

// CreateTeam inserts a team.
func (db *DB) CreateTeam(ctx context.Context, t *types.Team) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	stack, err := marshalJSON(t.TechStack, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal tech stack: %w", err)
	}
	needs, err := marshalJSON(t.CurrentNeeds, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal current needs: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO teams (id, name, description, tech_stack, current_needs, team_culture,
		                    manager_name, manager_email, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Description, stack, needs, t.Culture,
		t.ManagerName, t.ManagerEmail, t.IsActive,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

// GetTeam returns the team or nil.
func (db *DB) GetTeam(ctx context.Context, id uuid.UUID) (*types.Team, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id)
	t, err := scanTeam(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return t, nil
}

// ListTeams returns teams by name, optionally only active ones.
func (db *DB) ListTeams(ctx context.Context, activeOnly bool) ([]types.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := []types.Team{}
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}

// UpdateTeam replaces a team's editable fields. resetEmbedding drops the cached profile
// embedding so the next match re-embeds the team.
func (db *DB) UpdateTeam(ctx context.Context, t *types.Team, resetEmbedding bool) error {
	stack, err := marshalJSON(t.TechStack, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal tech stack: %w", err)
	}
	needs, err := marshalJSON(t.CurrentNeeds, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal current needs: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`UPDATE teams SET name = $2, description = $3, tech_stack = $4, current_needs = $5,
		                  team_culture = $6, manager_name = $7, manager_email = $8, is_active = $9,
		                  embedding = CASE WHEN $10::boolean THEN NULL ELSE embedding END,
		                  updated_at = NOW()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Description, stack, needs, t.Culture,
		t.ManagerName, t.ManagerEmail, t.IsActive, resetEmbedding,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return types.NotFound("team", t.ID)
		}
		return fmt.Errorf("failed to update team: %w", err)
	}
	return nil
}

// SetTeamEmbedding caches the team's profile embedding.
func (db *DB) SetTeamEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE teams SET embedding = $1, updated_at = NOW() WHERE id = $2`,
		vectorParam(vec), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set team embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NotFound("team", id)
	}
	return nil
}

// GetTeamEmbedding returns the cached vector or nil.
func (db *DB) GetTeamEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error) {
	var vec *pgvector.Vector
	err := db.pool.QueryRow(ctx, `SELECT embedding FROM teams WHERE id = $1`, id).Scan(&vec)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get team embedding: %w", err)
	}
	return vectorSlice(vec), nil
}

func scanTeam(row pgx.Row) (*types.Team, error) {
	var t types.Team
	var stack, needs []byte
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &stack, &needs, &t.Culture,
		&t.ManagerName, &t.ManagerEmail, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.TechStack = unmarshalStrings(stack)
	t.CurrentNeeds = unmarshalStrings(needs)
	return &t, nil
}

// -----------------------------------------------------------------------------
// Team Matches
// -----------------------------------------------------------------------------

const matchColumns = `m.id, m.candidate_id, m.job_id, m.team_id, t.name, m.similarity_score,
	m.reasoning_adjustment, m.final_score, m.recommendation, m.model_recommendation,
	m.passes_threshold, m.match_reasoning, m.strengths, m.concerns, m.manager_notified,
	m.manager_email, m.notified_at, m.status, m.reviewed_by, m.reviewer_notes, m.reviewed_at,
	m.created_at, m.updated_at`

// UpsertTeamMatch inserts or replaces the match for (candidate, job, team). Notification and
// review state of an existing row is preserved and read back into m.
func (db *DB) UpsertTeamMatch(ctx context.Context, m *types.TeamMatch) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = types.MatchPending
	}
	strengths, err := marshalJSON(m.Strengths, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal strengths: %w", err)
	}
	concerns, err := marshalJSON(m.Concerns, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal concerns: %w", err)
	}

	var status string
	err = db.pool.QueryRow(ctx,
		`INSERT INTO team_matches (id, candidate_id, job_id, team_id, similarity_score,
		     reasoning_adjustment, final_score, recommendation, model_recommendation,
		     passes_threshold, match_reasoning, strengths, concerns, manager_email, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (candidate_id, job_id, team_id) DO UPDATE SET
		     similarity_score = EXCLUDED.similarity_score,
		     reasoning_adjustment = EXCLUDED.reasoning_adjustment,
		     final_score = EXCLUDED.final_score,
		     recommendation = EXCLUDED.recommendation,
		     model_recommendation = EXCLUDED.model_recommendation,
		     passes_threshold = EXCLUDED.passes_threshold,
		     match_reasoning = EXCLUDED.match_reasoning,
		     strengths = EXCLUDED.strengths,
		     concerns = EXCLUDED.concerns,
		     manager_email = CASE WHEN EXCLUDED.manager_email = ''
		                          THEN team_matches.manager_email
		                          ELSE EXCLUDED.manager_email END,
		     updated_at = NOW()
		 RETURNING id, manager_notified, manager_email, notified_at, status, reviewed_by,
		           reviewer_notes, reviewed_at, created_at, updated_at`,
		m.ID, m.CandidateID, m.JobID, m.TeamID, m.SimilarityScore,
		m.ReasoningAdjustment, m.FinalScore, string(m.Recommendation), m.ModelRecommendation,
		m.PassesThreshold, m.MatchReasoning, strengths, concerns, m.ManagerEmail, string(m.Status),
	).Scan(&m.ID, &m.ManagerNotified, &m.ManagerEmail, &m.NotifiedAt, &status, &m.ReviewedBy,
		&m.ReviewerNotes, &m.ReviewedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert team match: %w", err)
	}
	m.Status = types.MatchStatus(status)
	return nil
}

// GetTeamMatch returns the match or nil.
func (db *DB) GetTeamMatch(ctx context.Context, id uuid.UUID) (*types.TeamMatch, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+matchColumns+`
		 FROM team_matches m JOIN teams t ON t.id = m.team_id
		 WHERE m.id = $1`, id)
	m, err := scanMatch(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get team match: %w", err)
	}
	return m, nil
}

// ListTeamMatchesByCandidate returns the candidate's matches by descending final score.
func (db *DB) ListTeamMatchesByCandidate(ctx context.Context, candidateID uuid.UUID) ([]types.TeamMatch, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+matchColumns+`
		 FROM team_matches m JOIN teams t ON t.id = m.team_id
		 WHERE m.candidate_id = $1
		 ORDER BY m.final_score DESC`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team matches: %w", err)
	}
	defer rows.Close()

	var out []types.TeamMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team match: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// MarkMatchNotified records that the team manager was notified.
func (db *DB) MarkMatchNotified(ctx context.Context, id uuid.UUID, email string, at time.Time) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE team_matches
		 SET manager_notified = TRUE, manager_email = $1, notified_at = $2, updated_at = NOW()
		 WHERE id = $3`,
		email, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark match notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NotFound("team match", id)
	}
	return nil
}

// ReviewTeamMatch stamps a human review decision on a match.
func (db *DB) ReviewTeamMatch(ctx context.Context, id uuid.UUID, status types.MatchStatus, reviewer, notes string, at time.Time) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE team_matches
		 SET status = $1, reviewed_by = $2, reviewer_notes = $3, reviewed_at = $4, updated_at = NOW()
		 WHERE id = $5`,
		string(status), reviewer, notes, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to review team match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NotFound("team match", id)
	}
	return nil
}

func scanMatch(row pgx.Row) (*types.TeamMatch, error) {
	var m types.TeamMatch
	var recommendation, status string
	var strengths, concerns []byte
	if err := row.Scan(&m.ID, &m.CandidateID, &m.JobID, &m.TeamID, &m.TeamName, &m.SimilarityScore,
		&m.ReasoningAdjustment, &m.FinalScore, &recommendation, &m.ModelRecommendation,
		&m.PassesThreshold, &m.MatchReasoning, &strengths, &concerns, &m.ManagerNotified,
		&m.ManagerEmail, &m.NotifiedAt, &status, &m.ReviewedBy, &m.ReviewerNotes, &m.ReviewedAt,
		&m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Recommendation = types.Recommendation(recommendation)
	m.Status = types.MatchStatus(status)
	m.Strengths = unmarshalStrings(strengths)
	m.Concerns = unmarshalStrings(concerns)
	return &m, nil
}

// -----------------------------------------------------------------------------
// Notification Claims
// -----------------------------------------------------------------------------

// ClaimNotification atomically records a (kind, key) delivery claim. It reports false when the
// claim already exists.
func (db *DB) ClaimNotification(ctx context.Context, kind, key string) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO notification_claims (kind, key) VALUES ($1, $2)
		 ON CONFLICT (kind, key) DO NOTHING`,
		kind, key,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim notification: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseNotification removes a claim so a later attempt can deliver again.
func (db *DB) ReleaseNotification(ctx context.Context, kind, key string) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM notification_claims WHERE kind = $1 AND key = $2`, kind, key)
	if err != nil {
		return fmt.Errorf("failed to release notification: %w", err)
	}
	return nil
}
