package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one in-flight pipeline.
type Entry struct {
	JobID     uuid.UUID `json:"job_id"`
	RunID     uuid.UUID `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
}

// Registry tracks the jobs that have a pipeline in flight. At most one entry exists per job.
type Registry struct {
	mu      sync.Mutex
	running map[uuid.UUID]Entry
	now     func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{running: make(map[uuid.UUID]Entry), now: time.Now}
}

// TryAcquire registers runID for jobID. When the job already has a run in flight it returns that
// entry and false.
func (r *Registry) TryAcquire(jobID, runID uuid.UUID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.running[jobID]; ok {
		return existing, false
	}
	e := Entry{JobID: jobID, RunID: runID, StartedAt: r.now().UTC()}
	r.running[jobID] = e
	return e, true
}

// Release removes the job's entry if it still belongs to runID. A run finishing after Remove
// does not evict a newer run for the same job.
func (r *Registry) Release(jobID, runID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.running[jobID]; ok && e.RunID == runID {
		delete(r.running, jobID)
	}
}

// Remove drops the job's entry regardless of run and reports whether one existed.
func (r *Registry) Remove(jobID uuid.UUID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.running[jobID]
	delete(r.running, jobID)
	return e, ok
}

// Get returns the job's entry.
func (r *Registry) Get(jobID uuid.UUID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.running[jobID]
	return e, ok
}

// List returns all entries, oldest first.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.running))
	for _, e := range r.running {
		out = append(out, e)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.Before(out[k].StartedAt) })
	return out
}
