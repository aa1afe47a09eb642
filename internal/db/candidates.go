package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/jonathan/talent-sourcer/internal/types"
)

// -----------------------------------------------------------------------------
// Candidates
// -----------------------------------------------------------------------------

const candidateColumns = `id, name, handle, bio, email, homepage_url, enrichment, created_at, updated_at`

// UpsertCandidate inserts a candidate or updates the existing one with the same handle
// (case-insensitive). A nil enrichment keeps the stored one. On return c.ID holds the stored id.
func (db *DB) UpsertCandidate(ctx context.Context, c *types.Candidate) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	var enrichmentJSON []byte
	if c.Enrichment != nil {
		var err error
		enrichmentJSON, err = json.Marshal(c.Enrichment)
		if err != nil {
			return fmt.Errorf("failed to marshal enrichment: %w", err)
		}
	}

	var stored []byte
	err := db.pool.QueryRow(ctx,
		`INSERT INTO candidates (id, name, handle, bio, email, homepage_url, enrichment)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT ((LOWER(handle))) DO UPDATE SET
		     name = EXCLUDED.name,
		     handle = EXCLUDED.handle,
		     bio = EXCLUDED.bio,
		     email = CASE WHEN EXCLUDED.email = '' THEN candidates.email ELSE EXCLUDED.email END,
		     homepage_url = EXCLUDED.homepage_url,
		     enrichment = COALESCE(EXCLUDED.enrichment, candidates.enrichment),
		     updated_at = NOW()
		 RETURNING id, enrichment, created_at, updated_at`,
		c.ID, c.Name, c.Handle, c.Bio, c.Email, c.HomepageURL, enrichmentJSON,
	).Scan(&c.ID, &stored, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert candidate: %w", err)
	}

	if c.Enrichment == nil && stored != nil {
		var e types.Enrichment
		if err := json.Unmarshal(stored, &e); err == nil {
			c.Enrichment = &e
		}
	}
	return nil
}

// GetCandidate returns the candidate or nil.
func (db *DB) GetCandidate(ctx context.Context, id uuid.UUID) (*types.Candidate, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
	c, err := scanCandidate(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return c, nil
}

// ListCandidates returns candidates newest first.
func (db *DB) ListCandidates(ctx context.Context, limit, offset int) ([]types.Candidate, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+candidateColumns+` FROM candidates
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limitParam(limit), max(offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	out := []types.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetCandidateByHandle returns the candidate with handle or nil.
func (db *DB) GetCandidateByHandle(ctx context.Context, handle string) (*types.Candidate, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE LOWER(handle) = LOWER($1)`, handle)
	c, err := scanCandidate(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get candidate by handle: %w", err)
	}
	return c, nil
}

// UpdateCandidateEnrichment replaces the candidate's enrichment blob.
func (db *DB) UpdateCandidateEnrichment(ctx context.Context, id uuid.UUID, e *types.Enrichment) error {
	var enrichmentJSON []byte
	if e != nil {
		var err error
		enrichmentJSON, err = json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal enrichment: %w", err)
		}
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE candidates SET enrichment = $1, updated_at = NOW() WHERE id = $2`,
		enrichmentJSON, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update enrichment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NotFound("candidate", id)
	}
	return nil
}

// SetCandidateEmbedding stores the candidate's embedding vector.
func (db *DB) SetCandidateEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE candidates SET embedding = $1, updated_at = NOW() WHERE id = $2`,
		vectorParam(vec), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set candidate embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NotFound("candidate", id)
	}
	return nil
}

// GetCandidateEmbedding returns the stored vector or nil.
func (db *DB) GetCandidateEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error) {
	var vec *pgvector.Vector
	err := db.pool.QueryRow(ctx, `SELECT embedding FROM candidates WHERE id = $1`, id).Scan(&vec)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get candidate embedding: %w", err)
	}
	return vectorSlice(vec), nil
}

// NearestCandidates returns embedded candidates ordered by cosine distance to vec.
func (db *DB) NearestCandidates(ctx context.Context, vec []float32, limit int) ([]types.CandidateDistance, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+candidateColumns+`, embedding <=> $1 AS distance
		 FROM candidates
		 WHERE embedding IS NOT NULL
		 ORDER BY distance
		 LIMIT $2`,
		pgvector.NewVector(vec), limitParam(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search candidates: %w", err)
	}
	defer rows.Close()

	out := []types.CandidateDistance{}
	for rows.Next() {
		var c types.Candidate
		var enrichmentJSON []byte
		var distance float64
		if err := rows.Scan(&c.ID, &c.Name, &c.Handle, &c.Bio, &c.Email, &c.HomepageURL,
			&enrichmentJSON, &c.CreatedAt, &c.UpdatedAt, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		c.Enrichment = decodeEnrichment(enrichmentJSON)
		out = append(out, types.CandidateDistance{Candidate: c, Distance: distance})
	}
	return out, rows.Err()
}

func scanCandidate(row pgx.Row) (*types.Candidate, error) {
	var c types.Candidate
	var enrichmentJSON []byte
	if err := row.Scan(&c.ID, &c.Name, &c.Handle, &c.Bio, &c.Email, &c.HomepageURL,
		&enrichmentJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Enrichment = decodeEnrichment(enrichmentJSON)
	return &c, nil
}

func decodeEnrichment(b []byte) *types.Enrichment {
	if len(b) == 0 {
		return nil
	}
	var e types.Enrichment
	if err := json.Unmarshal(b, &e); err != nil {
		return nil
	}
	return &e
}

// -----------------------------------------------------------------------------
// Job Candidates
// -----------------------------------------------------------------------------

const jobCandidateColumns = `job_id, candidate_id, compatibility_score, reasoning, strengths, weaknesses,
	score_source, stage, created_at, updated_at`

// GetJobCandidate returns the relationship row or nil.
func (db *DB) GetJobCandidate(ctx context.Context, jobID, candidateID uuid.UUID) (*types.JobCandidate, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobCandidateColumns+` FROM job_candidates WHERE job_id = $1 AND candidate_id = $2`,
		jobID, candidateID,
	)
	jc, err := scanJobCandidate(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job candidate: %w", err)
	}
	return jc, nil
}

// UpsertJobCandidate inserts or replaces the (job, candidate) row, keeping its creation time.
func (db *DB) UpsertJobCandidate(ctx context.Context, jc *types.JobCandidate) error {
	strengths, err := marshalJSON(jc.Strengths, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal strengths: %w", err)
	}
	weaknesses, err := marshalJSON(jc.Weaknesses, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal weaknesses: %w", err)
	}
	stage := jc.Stage
	if stage == "" {
		stage = types.StageSourced
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO job_candidates (job_id, candidate_id, compatibility_score, reasoning,
		                             strengths, weaknesses, score_source, stage)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (job_id, candidate_id) DO UPDATE SET
		     compatibility_score = EXCLUDED.compatibility_score,
		     reasoning = EXCLUDED.reasoning,
		     strengths = EXCLUDED.strengths,
		     weaknesses = EXCLUDED.weaknesses,
		     score_source = EXCLUDED.score_source,
		     stage = EXCLUDED.stage,
		     updated_at = NOW()
		 RETURNING created_at, updated_at`,
		jc.JobID, jc.CandidateID, jc.CompatibilityScore, jc.Reasoning,
		strengths, weaknesses, jc.ScoreSource, string(stage),
	).Scan(&jc.CreatedAt, &jc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert job candidate: %w", err)
	}
	jc.Stage = stage
	return nil
}

// UpdateJobCandidateStage sets the stage of an existing row.
func (db *DB) UpdateJobCandidateStage(ctx context.Context, jobID, candidateID uuid.UUID, stage types.PipelineStage) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE job_candidates SET stage = $1, updated_at = NOW()
		 WHERE job_id = $2 AND candidate_id = $3`,
		string(stage), jobID, candidateID,
	)
	if err != nil {
		return fmt.Errorf("failed to update stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NotFound("job candidate", jobID.String()+"/"+candidateID.String())
	}
	return nil
}

// ListJobCandidates returns the job's candidates by descending score, optionally by stage.
func (db *DB) ListJobCandidates(ctx context.Context, jobID uuid.UUID, stage *types.PipelineStage) ([]types.JobCandidate, error) {
	query := `SELECT ` + jobCandidateColumns + ` FROM job_candidates WHERE job_id = $1`
	args := []interface{}{jobID}
	if stage != nil {
		query += " AND stage = $2"
		args = append(args, string(*stage))
	}
	query += " ORDER BY compatibility_score DESC NULLS LAST, created_at"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list job candidates: %w", err)
	}
	defer rows.Close()

	var out []types.JobCandidate
	for rows.Next() {
		jc, err := scanJobCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job candidate: %w", err)
		}
		out = append(out, *jc)
	}
	return out, rows.Err()
}

// ListCandidateJobs returns every job relationship of a candidate, most recently updated first.
func (db *DB) ListCandidateJobs(ctx context.Context, candidateID uuid.UUID) ([]types.JobCandidate, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobCandidateColumns+` FROM job_candidates
		 WHERE candidate_id = $1
		 ORDER BY updated_at DESC`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate jobs: %w", err)
	}
	defer rows.Close()

	var out []types.JobCandidate
	for rows.Next() {
		jc, err := scanJobCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job candidate: %w", err)
		}
		out = append(out, *jc)
	}
	return out, rows.Err()
}

func scanJobCandidate(row pgx.Row) (*types.JobCandidate, error) {
	var jc types.JobCandidate
	var strengths, weaknesses []byte
	var stage string
	if err := row.Scan(&jc.JobID, &jc.CandidateID, &jc.CompatibilityScore, &jc.Reasoning,
		&strengths, &weaknesses, &jc.ScoreSource, &stage, &jc.CreatedAt, &jc.UpdatedAt); err != nil {
		return nil, err
	}
	jc.Strengths = unmarshalStrings(strengths)
	jc.Weaknesses = unmarshalStrings(weaknesses)
	jc.Stage = types.PipelineStage(stage)
	return &jc, nil
}
