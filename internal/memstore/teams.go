package memstore

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/talent-sourcer/internal/types"
)

// CreateTeam stores a new team.
func (s *Store) CreateTeam(_ context.Context, t *types.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := s.now()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.teams[t.ID] = *t
	return nil
}

// GetTeam returns the team or nil.
func (s *Store) GetTeam(_ context.Context, id uuid.UUID) (*types.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// ListTeams returns teams by name, optionally only active ones.
func (s *Store) ListTeams(_ context.Context, activeOnly bool) ([]types.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Team, 0, len(s.teams))
	for _, t := range s.teams {
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out, nil
}

// UpdateTeam replaces a team's editable fields, optionally dropping its cached embedding.
func (s *Store) UpdateTeam(_ context.Context, t *types.Team, resetEmbedding bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.teams[t.ID]
	if !ok {
		return types.NotFound("team", t.ID)
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = s.now()
	s.teams[t.ID] = *t
	if resetEmbedding {
		delete(s.teamEmbeddings, t.ID)
	}
	return nil
}

// SetTeamEmbedding caches the team's profile embedding.
func (s *Store) SetTeamEmbedding(_ context.Context, id uuid.UUID, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[id]; !ok {
		return types.NotFound("team", id)
	}
	s.teamEmbeddings[id] = append([]float32(nil), vec...)
	return nil
}

// GetTeamEmbedding returns the cached vector or nil.
func (s *Store) GetTeamEmbedding(_ context.Context, id uuid.UUID) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.teamEmbeddings[id], nil
}

// UpsertTeamMatch inserts or replaces the match for (candidate, job, team). Notification and
// review state of an existing row is preserved.
func (s *Store) UpsertTeamMatch(_ context.Context, m *types.TeamMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, existing := range s.matches {
		if existing.CandidateID == m.CandidateID && existing.JobID == m.JobID && existing.TeamID == m.TeamID {
			m.ID = id
			m.CreatedAt = existing.CreatedAt
			m.ManagerNotified = existing.ManagerNotified
			m.NotifiedAt = existing.NotifiedAt
			if m.ManagerEmail == "" {
				m.ManagerEmail = existing.ManagerEmail
			}
			m.Status = existing.Status
			m.ReviewedBy = existing.ReviewedBy
			m.ReviewerNotes = existing.ReviewerNotes
			m.ReviewedAt = existing.ReviewedAt
			m.UpdatedAt = now
			s.matches[id] = *m
			return nil
		}
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = types.MatchPending
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	s.matches[m.ID] = *m
	return nil
}

// GetTeamMatch returns the match or nil.
func (s *Store) GetTeamMatch(_ context.Context, id uuid.UUID) (*types.TeamMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// ListTeamMatchesByCandidate returns the candidate's matches by descending final score.
func (s *Store) ListTeamMatchesByCandidate(_ context.Context, candidateID uuid.UUID) ([]types.TeamMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.TeamMatch
	for _, m := range s.matches {
		if m.CandidateID == candidateID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].FinalScore > out[k].FinalScore })
	return out, nil
}

// MarkMatchNotified records that the team manager was notified.
func (s *Store) MarkMatchNotified(_ context.Context, id uuid.UUID, email string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return types.NotFound("team match", id)
	}
	m.ManagerNotified = true
	m.ManagerEmail = email
	m.NotifiedAt = &at
	m.UpdatedAt = s.now()
	s.matches[id] = m
	return nil
}

// ReviewTeamMatch stamps a human review decision on a match.
func (s *Store) ReviewTeamMatch(_ context.Context, id uuid.UUID, status types.MatchStatus, reviewer, notes string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return types.NotFound("team match", id)
	}
	m.Status = status
	m.ReviewedBy = reviewer
	m.ReviewerNotes = notes
	m.ReviewedAt = &at
	m.UpdatedAt = s.now()
	s.matches[id] = m
	return nil
}

// ClaimNotification atomically records a (kind, key) delivery claim. It reports false when the
// claim already exists.
func (s *Store) ClaimNotification(_ context.Context, kind, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := kind + "|" + key
	if _, ok := s.claims[k]; ok {
		return false, nil
	}
	s.claims[k] = s.now()
	return true, nil
}

// ReleaseNotification removes a claim so a later attempt can deliver again.
func (s *Store) ReleaseNotification(_ context.Context, kind, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, kind+"|"+key)
	return nil
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
