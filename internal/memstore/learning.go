package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/jonathan/talent-sourcer/internal/types"
)

// GetActiveParams returns the active params for agent or nil.
func (s *Store) GetActiveParams(_ context.Context, agent string) (*types.LearningParams, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.params {
		if s.params[i].AgentName == agent && s.params[i].IsActive {
			return s.params[i].Clone(), nil
		}
	}
	return nil, nil
}

// ActivateParams appends p as the active version, deactivating the prior active row under the
// same lock. Versions must be unique per agent.
func (s *Store) ActivateParams(_ context.Context, p *types.LearningParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.params {
		if s.params[i].AgentName == p.AgentName && s.params[i].Version == p.Version {
			return fmt.Errorf("params version %d already exists for %s", p.Version, p.AgentName)
		}
	}
	for i := range s.params {
		if s.params[i].AgentName == p.AgentName {
			s.params[i].IsActive = false
		}
	}
	row := p.Clone()
	row.IsActive = true
	s.params = append(s.params, *row)
	return nil
}

// ListParamsHistory returns the agent's versions newest first.
func (s *Store) ListParamsHistory(_ context.Context, agent string, limit int) ([]types.LearningParams, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.LearningParams
	for i := range s.params {
		if s.params[i].AgentName == agent {
			out = append(out, *s.params[i].Clone())
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Version > out[k].Version })
	return page(out, limit, 0), nil
}

// ListActiveParams returns the active row of every agent.
func (s *Store) ListActiveParams(_ context.Context) ([]types.LearningParams, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.LearningParams
	for i := range s.params {
		if s.params[i].IsActive {
			out = append(out, *s.params[i].Clone())
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].AgentName < out[k].AgentName })
	return out, nil
}

// CreateOutcome appends a write-once outcome record.
func (s *Store) CreateOutcome(_ context.Context, o *types.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.outcomes {
		if existing.ID == o.ID {
			return fmt.Errorf("outcome %s already recorded", o.ID)
		}
	}
	s.outcomes = append(s.outcomes, *o)
	return nil
}

// ListOutcomes returns outcomes matching f, newest first.
func (s *Store) ListOutcomes(_ context.Context, f types.OutcomeFilter) ([]types.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Outcome
	for _, o := range s.outcomes {
		if f.JobID != nil && o.JobID != *f.JobID {
			continue
		}
		if f.CandidateID != nil && o.CandidateID != *f.CandidateID {
			continue
		}
		if f.Label != nil && o.Label != *f.Label {
			continue
		}
		if f.Since != nil && o.ReportedAt.Before(*f.Since) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].ReportedAt.After(out[k].ReportedAt) })
	return page(out, f.Limit, f.Offset), nil
}
