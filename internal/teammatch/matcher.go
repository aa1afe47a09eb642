package teammatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/talent-sourcer/internal/adapter"
	"github.com/jonathan/talent-sourcer/internal/llm"
	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/notify"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// embedConcurrency bounds concurrent team embedding calls.
const embedConcurrency = 4

// DefaultCallTimeout bounds one embedding or notification call made while matching.
const DefaultCallTimeout = 30 * time.Second

// ErrNoActiveTeams is returned when there is nothing to match against.
var ErrNoActiveTeams = errors.New("no active teams available")

// Store is the persistence the matcher needs.
type Store interface {
	GetCandidate(ctx context.Context, id uuid.UUID) (*types.Candidate, error)
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	SetCandidateEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error
	GetTeam(ctx context.Context, id uuid.UUID) (*types.Team, error)
	ListTeams(ctx context.Context, activeOnly bool) ([]types.Team, error)
	UpdateTeam(ctx context.Context, t *types.Team, resetEmbedding bool) error
	GetTeamEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error)
	SetTeamEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error
	UpsertTeamMatch(ctx context.Context, m *types.TeamMatch) error
	GetTeamMatch(ctx context.Context, id uuid.UUID) (*types.TeamMatch, error)
	ListTeamMatchesByCandidate(ctx context.Context, candidateID uuid.UUID) ([]types.TeamMatch, error)
	MarkMatchNotified(ctx context.Context, id uuid.UUID, email string, at time.Time) error
	ReviewTeamMatch(ctx context.Context, id uuid.UUID, status types.MatchStatus, reviewer, notes string, at time.Time) error
	ClaimNotification(ctx context.Context, kind, key string) (bool, error)
	ReleaseNotification(ctx context.Context, kind, key string) error
}

// Matcher runs team matching for candidates.
type Matcher struct {
	store      Store
	embedder   llm.Embedder
	refiner    Refiner
	dispatcher notify.Dispatcher
	timeout    time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewMatcher creates a Matcher. Every embedding and notification call is bounded by timeout;
// zero uses DefaultCallTimeout.
func NewMatcher(store Store, embedder llm.Embedder, refiner Refiner, dispatcher notify.Dispatcher, timeout time.Duration, logger *zap.Logger) *Matcher {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Matcher{
		store:      store,
		embedder:   embedder,
		refiner:    refiner,
		dispatcher: dispatcher,
		timeout:    timeout,
		logger:     logging.WithFields(logger),
		now:        time.Now,
	}
}

func (m *Matcher) embed(ctx context.Context, operation, text string) ([]float32, error) {
	return adapter.Call(ctx, operation, m.timeout, func(ctx context.Context) ([]float32, error) {
		return m.embedder.Embed(ctx, text)
	})
}

// Match scores the candidate against every active team, persists one match per team the
// reasoning model judged, and notifies managers of matches that pass the threshold. Matches are
// returned by descending final score. Embedding and reasoning failures abort the match; a
// notification failure does not.
func (m *Matcher) Match(ctx context.Context, candidateID, jobID uuid.UUID) ([]types.TeamMatch, error) {
	log := m.logger.With(logging.CandidateID(candidateID), logging.JobID(jobID))

	cand, err := m.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate: %w", err)
	}
	if cand == nil {
		return nil, types.NotFound("candidate", candidateID)
	}
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, types.NotFound("job", jobID)
	}

	teams, err := m.store.ListTeams(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	if len(teams) == 0 {
		return nil, ErrNoActiveTeams
	}

	if m.embedder == nil {
		return nil, fmt.Errorf("team matching requires an embedding model")
	}
	candVec, err := m.embed(ctx, "embed candidate", CandidateText(cand))
	if err != nil {
		return nil, fmt.Errorf("failed to embed candidate: %w", err)
	}
	if err := m.store.SetCandidateEmbedding(ctx, cand.ID, candVec); err != nil {
		log.Warn("failed to store candidate embedding", zap.Error(err))
	}

	teamVecs, err := m.teamEmbeddings(ctx, teams)
	if err != nil {
		return nil, err
	}

	sims := make([]TeamSimilarity, len(teams))
	byID := make(map[uuid.UUID]TeamSimilarity, len(teams))
	for i := range teams {
		sims[i] = TeamSimilarity{Team: &teams[i], Similarity: CosineSimilarity(candVec, teamVecs[i])}
		byID[teams[i].ID] = sims[i]
	}

	if m.refiner == nil {
		return nil, ErrReasonerUnavailable
	}
	refinements, err := m.refiner.Refine(ctx, cand, sims)
	if err != nil {
		return nil, err
	}

	matches := make([]types.TeamMatch, 0, len(refinements))
	notified := 0
	for _, r := range refinements {
		sim, ok := byID[r.TeamID]
		if !ok {
			continue
		}
		match := Build(cand.ID, jobID, sim, r)
		if err := m.store.UpsertTeamMatch(ctx, &match); err != nil {
			return nil, fmt.Errorf("failed to save team match: %w", err)
		}
		if match.PassesThreshold && m.notify(ctx, cand, sim.Team, &match) {
			notified++
		}
		matches = append(matches, match)
	}

	sort.SliceStable(matches, func(i, k int) bool { return matches[i].FinalScore > matches[k].FinalScore })

	passing := 0
	for _, mt := range matches {
		if mt.PassesThreshold {
			passing++
		}
	}
	log.Info("team matching complete",
		zap.Int("teams", len(matches)),
		zap.Int("above_threshold", passing),
		zap.Int("managers_notified", notified))
	return matches, nil
}

// Build fuses one team's similarity and refinement into an unsaved TeamMatch.
func Build(candidateID, jobID uuid.UUID, sim TeamSimilarity, r Refinement) types.TeamMatch {
	similarity := ClampUnit(sim.Similarity)
	adjustment := ClampUnit(r.ReasoningAdjustment)
	final := Fuse(similarity, adjustment)
	return types.TeamMatch{
		CandidateID:         candidateID,
		JobID:               jobID,
		TeamID:              sim.Team.ID,
		TeamName:            sim.Team.Name,
		SimilarityScore:     similarity,
		ReasoningAdjustment: adjustment,
		FinalScore:          final,
		Recommendation:      Recommend(final),
		ModelRecommendation: r.Recommendation,
		PassesThreshold:     PassesThreshold(final),
		MatchReasoning:      r.Reasoning,
		Strengths:           r.Strengths,
		Concerns:            r.Concerns,
	}
}

// teamEmbeddings returns one vector per team, embedding and caching any that are missing.
func (m *Matcher) teamEmbeddings(ctx context.Context, teams []types.Team) ([][]float32, error) {
	vecs := make([][]float32, len(teams))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i := range teams {
		team := &teams[i]
		g.Go(func() error {
			cached, err := m.store.GetTeamEmbedding(gctx, team.ID)
			if err != nil {
				return fmt.Errorf("failed to load embedding for team %s: %w", team.Name, err)
			}
			if len(cached) > 0 {
				vecs[i] = cached
				return nil
			}
			vec, err := m.embed(gctx, "embed team", TeamText(team))
			if err != nil {
				return fmt.Errorf("failed to embed team %s: %w", team.Name, err)
			}
			if err := m.store.SetTeamEmbedding(gctx, team.ID, vec); err != nil {
				m.logger.Warn("failed to cache team embedding", logging.TeamID(team.ID), zap.Error(err))
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}

// notify alerts the team manager at most once per (candidate, team). It reports whether a
// message was delivered on this call.
func (m *Matcher) notify(ctx context.Context, cand *types.Candidate, team *types.Team, match *types.TeamMatch) bool {
	if m.dispatcher == nil {
		return false
	}
	log := m.logger.With(logging.CandidateID(cand.ID), logging.TeamID(team.ID))
	key := cand.ID.String() + ":" + team.ID.String()

	claimed, err := m.store.ClaimNotification(ctx, notify.KindTeamMatch, key)
	if err != nil {
		log.Warn("failed to claim manager notification", zap.Error(err))
		return false
	}
	if !claimed {
		log.Debug("manager already notified")
		return false
	}

	msg, err := notify.ManagerMatch(cand, team, match)
	if err == nil {
		_, err = adapter.Call(ctx, "notify manager", m.timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, m.dispatcher.Send(ctx, msg)
		})
	}
	if err != nil {
		log.Warn("manager notification failed", zap.Error(err))
		if relErr := m.store.ReleaseNotification(ctx, notify.KindTeamMatch, key); relErr != nil {
			log.Warn("failed to release notification claim", zap.Error(relErr))
		}
		return false
	}

	at := m.now()
	if err := m.store.MarkMatchNotified(ctx, match.ID, msg.To, at); err != nil {
		log.Warn("failed to record manager notification", zap.Error(err))
	}
	match.ManagerNotified = true
	match.ManagerEmail = msg.To
	match.NotifiedAt = &at
	log.Info("manager notified", zap.String("manager_email", msg.To), zap.Float64("final_score", match.FinalScore))
	return true
}

// UpdateTeam replaces the team's fields with update. The cached profile embedding is dropped
// when the embedded profile text changes.
func (m *Matcher) UpdateTeam(ctx context.Context, id uuid.UUID, update *types.Team) (*types.Team, error) {
	current, err := m.store.GetTeam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load team: %w", err)
	}
	if current == nil {
		return nil, types.NotFound("team", id)
	}
	update.ID = id
	stale := TeamText(current) != TeamText(update)
	if err := m.store.UpdateTeam(ctx, update, stale); err != nil {
		return nil, fmt.Errorf("failed to update team: %w", err)
	}
	m.logger.Info("team updated", logging.TeamID(id),
		zap.Bool("is_active", update.IsActive), zap.Bool("embedding_reset", stale))
	return update, nil
}

// Get returns a match by id.
func (m *Matcher) Get(ctx context.Context, id uuid.UUID) (*types.TeamMatch, error) {
	match, err := m.store.GetTeamMatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load team match: %w", err)
	}
	if match == nil {
		return nil, types.NotFound("team match", id)
	}
	return match, nil
}

// ForCandidate lists a candidate's matches by descending final score.
func (m *Matcher) ForCandidate(ctx context.Context, candidateID uuid.UUID) ([]types.TeamMatch, error) {
	return m.store.ListTeamMatchesByCandidate(ctx, candidateID)
}

// Approve records a reviewer's approval and moves the match to offered.
func (m *Matcher) Approve(ctx context.Context, id uuid.UUID, req *types.ApproveMatchRequest) (*types.TeamMatch, error) {
	if err := req.Validate(); err != nil {
		return nil, &types.ValidationError{Field: "reviewer_name", Message: err.Error()}
	}
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := m.store.ReviewTeamMatch(ctx, id, types.MatchOffered, req.ReviewerName, req.ReviewerNotes, m.now()); err != nil {
		return nil, fmt.Errorf("failed to approve team match: %w", err)
	}
	m.logger.Info("team match approved", zap.String("match_id", id.String()), zap.String("reviewer", req.ReviewerName))
	return m.Get(ctx, id)
}
