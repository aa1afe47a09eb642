// Package memstore is an in-memory implementation of every repository interface the services
// depend on. It mirrors the Postgres semantics that matter to callers: nil results for missing
// rows, one active learning-params row per agent, unique notification claims and
// (job, candidate) uniqueness for job candidates.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/talent-sourcer/internal/types"
)

type pairKey struct {
	a uuid.UUID
	b uuid.UUID
}

// Store holds all entities behind a single mutex.
type Store struct {
	mu sync.RWMutex

	jobs             map[uuid.UUID]types.Job
	jobEmbeddings    map[uuid.UUID][]float32
	candidates       map[uuid.UUID]types.Candidate
	candidateHandles map[string]uuid.UUID
	candEmbeddings   map[uuid.UUID][]float32
	jobCandidates    map[pairKey]types.JobCandidate
	params           []types.LearningParams
	outcomes         []types.Outcome
	teams            map[uuid.UUID]types.Team
	teamEmbeddings   map[uuid.UUID][]float32
	matches          map[uuid.UUID]types.TeamMatch
	claims           map[string]time.Time
	runs             map[uuid.UUID]types.PipelineRun
	steps            map[uuid.UUID][]types.RunStep

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		jobs:             make(map[uuid.UUID]types.Job),
		jobEmbeddings:    make(map[uuid.UUID][]float32),
		candidates:       make(map[uuid.UUID]types.Candidate),
		candidateHandles: make(map[string]uuid.UUID),
		candEmbeddings:   make(map[uuid.UUID][]float32),
		jobCandidates:    make(map[pairKey]types.JobCandidate),
		teams:            make(map[uuid.UUID]types.Team),
		teamEmbeddings:   make(map[uuid.UUID][]float32),
		matches:          make(map[uuid.UUID]types.TeamMatch),
		claims:           make(map[string]time.Time),
		runs:             make(map[uuid.UUID]types.PipelineRun),
		steps:            make(map[uuid.UUID][]types.RunStep),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Close is a no-op so Store satisfies the same lifecycle as the Postgres store.
func (s *Store) Close() {}

// -----------------------------------------------------------------------------
// Jobs
// -----------------------------------------------------------------------------

// CreateJob stores a new job, assigning an id and timestamps when missing.
func (s *Store) CreateJob(_ context.Context, job *types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := s.now()
	job.CreatedAt = now
	job.UpdatedAt = now
	j := *job
	j.Requirements = append([]string(nil), job.Requirements...)
	s.jobs[job.ID] = j
	return nil
}

// GetJob returns the job or nil when it does not exist.
func (s *Store) GetJob(_ context.Context, id uuid.UUID) (*types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

// ListJobs returns jobs newest first.
func (s *Store) ListJobs(_ context.Context, limit, offset int) ([]types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]types.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].CreatedAt.After(jobs[k].CreatedAt) })
	return page(jobs, limit, offset), nil
}

// SetJobEmbedding stores the job's embedding vector.
func (s *Store) SetJobEmbedding(_ context.Context, id uuid.UUID, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return types.NotFound("job", id)
	}
	s.jobEmbeddings[id] = append([]float32(nil), vec...)
	return nil
}

// GetJobEmbedding returns the stored vector or nil.
func (s *Store) GetJobEmbedding(_ context.Context, id uuid.UUID) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobEmbeddings[id], nil
}

// -----------------------------------------------------------------------------
// Candidates
// -----------------------------------------------------------------------------

// UpsertCandidate inserts a candidate or updates the existing one with the same handle. A nil
// enrichment or empty email keeps the stored value.
// On return c.ID holds the stored id.
func (s *Store) UpsertCandidate(_ context.Context, c *types.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	handle := strings.ToLower(c.Handle)
	if id, ok := s.candidateHandles[handle]; ok {
		existing := s.candidates[id]
		c.ID = id
		c.CreatedAt = existing.CreatedAt
		if c.Enrichment == nil {
			c.Enrichment = existing.Enrichment
		}
		if c.Email == "" {
			c.Email = existing.Email
		}
	} else {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.CreatedAt = now
		s.candidateHandles[handle] = c.ID
	}
	c.UpdatedAt = now
	s.candidates[c.ID] = *c
	return nil
}

// GetCandidate returns the candidate or nil.
func (s *Store) GetCandidate(_ context.Context, id uuid.UUID) (*types.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candidates[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// ListCandidates returns candidates newest first.
func (s *Store) ListCandidates(_ context.Context, limit, offset int) ([]types.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return page(out, limit, max(offset, 0)), nil
}

// GetCandidateByHandle returns the candidate with handle or nil.
func (s *Store) GetCandidateByHandle(_ context.Context, handle string) (*types.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.candidateHandles[strings.ToLower(handle)]
	if !ok {
		return nil, nil
	}
	c := s.candidates[id]
	return &c, nil
}

// UpdateCandidateEnrichment replaces the candidate's enrichment blob.
func (s *Store) UpdateCandidateEnrichment(_ context.Context, id uuid.UUID, e *types.Enrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok {
		return types.NotFound("candidate", id)
	}
	c.Enrichment = e
	c.UpdatedAt = s.now()
	s.candidates[id] = c
	return nil
}

// SetCandidateEmbedding stores the candidate's embedding vector.
func (s *Store) SetCandidateEmbedding(_ context.Context, id uuid.UUID, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.candidates[id]; !ok {
		return types.NotFound("candidate", id)
	}
	s.candEmbeddings[id] = append([]float32(nil), vec...)
	return nil
}

// GetCandidateEmbedding returns the stored vector or nil.
func (s *Store) GetCandidateEmbedding(_ context.Context, id uuid.UUID) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.candEmbeddings[id], nil
}

// NearestCandidates returns candidates ordered by cosine distance to vec.
func (s *Store) NearestCandidates(_ context.Context, vec []float32, limit int) ([]types.CandidateDistance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.CandidateDistance, 0, len(s.candEmbeddings))
	for id, emb := range s.candEmbeddings {
		out = append(out, types.CandidateDistance{Candidate: s.candidates[id], Distance: cosineDistance(vec, emb)})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Distance < out[k].Distance })
	return page(out, limit, 0), nil
}

// -----------------------------------------------------------------------------
// Job candidates
// -----------------------------------------------------------------------------

// GetJobCandidate returns the relationship row or nil.
func (s *Store) GetJobCandidate(_ context.Context, jobID, candidateID uuid.UUID) (*types.JobCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jc, ok := s.jobCandidates[pairKey{jobID, candidateID}]
	if !ok {
		return nil, nil
	}
	return &jc, nil
}

// UpsertJobCandidate inserts or replaces the (job, candidate) row.
func (s *Store) UpsertJobCandidate(_ context.Context, jc *types.JobCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{jc.JobID, jc.CandidateID}
	now := s.now()
	if existing, ok := s.jobCandidates[key]; ok {
		jc.CreatedAt = existing.CreatedAt
	} else {
		jc.CreatedAt = now
	}
	jc.UpdatedAt = now
	s.jobCandidates[key] = *jc
	return nil
}

// UpdateJobCandidateStage sets the stage of an existing row.
func (s *Store) UpdateJobCandidateStage(_ context.Context, jobID, candidateID uuid.UUID, stage types.PipelineStage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{jobID, candidateID}
	jc, ok := s.jobCandidates[key]
	if !ok {
		return types.NotFound("job candidate", jobID.String()+"/"+candidateID.String())
	}
	jc.Stage = stage
	jc.UpdatedAt = s.now()
	s.jobCandidates[key] = jc
	return nil
}

// ListJobCandidates returns the job's candidates by descending score, optionally by stage.
func (s *Store) ListJobCandidates(_ context.Context, jobID uuid.UUID, stage *types.PipelineStage) ([]types.JobCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.JobCandidate
	for key, jc := range s.jobCandidates {
		if key.a != jobID {
			continue
		}
		if stage != nil && jc.Stage != *stage {
			continue
		}
		out = append(out, jc)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Score() > out[k].Score() })
	return out, nil
}

// ListCandidateJobs returns every job relationship of a candidate, most recently updated first.
func (s *Store) ListCandidateJobs(_ context.Context, candidateID uuid.UUID) ([]types.JobCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.JobCandidate
	for key, jc := range s.jobCandidates {
		if key.b == candidateID {
			out = append(out, jc)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].UpdatedAt.After(out[k].UpdatedAt) })
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
