package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/jonathan/talent-sourcer/internal/types"
)

// -----------------------------------------------------------------------------
// Jobs
// -----------------------------------------------------------------------------

const jobColumns = `id, title, description, requirements, source_url, created_at, updated_at`

// CreateJob inserts a job, assigning an id when missing.
func (db *DB) CreateJob(ctx context.Context, job *types.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	reqJSON, err := marshalJSON(job.Requirements, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal requirements: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, title, description, requirements, source_url)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		job.ID, job.Title, job.Description, reqJSON, job.SourceURL,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob returns the job or nil when it does not exist.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs newest first.
func (db *DB) ListJobs(ctx context.Context, limit, offset int) ([]types.Job, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limitParam(limit), max(offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []types.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// SetJobEmbedding stores the job's embedding vector.
func (db *DB) SetJobEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET embedding = $1, updated_at = NOW() WHERE id = $2`,
		vectorParam(vec), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set job embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NotFound("job", id)
	}
	return nil
}

// GetJobEmbedding returns the stored vector or nil.
func (db *DB) GetJobEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error) {
	var vec *pgvector.Vector
	err := db.pool.QueryRow(ctx, `SELECT embedding FROM jobs WHERE id = $1`, id).Scan(&vec)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job embedding: %w", err)
	}
	return vectorSlice(vec), nil
}

func scanJob(row pgx.Row) (*types.Job, error) {
	var job types.Job
	var reqJSON []byte
	if err := row.Scan(&job.ID, &job.Title, &job.Description, &reqJSON, &job.SourceURL,
		&job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	job.Requirements = unmarshalStrings(reqJSON)
	if job.Requirements == nil {
		job.Requirements = []string{}
	}
	return &job, nil
}
