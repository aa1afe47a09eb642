package learning

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/jonathan/talent-sourcer/internal/routing"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// StagePrecision is the precision observed for one routed stage.
type StagePrecision struct {
	Precision float64 `json:"precision"`
	Count     int     `json:"count"`
}

// RecentOutcomes summarizes outcomes reported inside a time window.
type RecentOutcomes struct {
	Total                int     `json:"total"`
	Hired                int     `json:"hired"`
	AvgPerformance       float64 `json:"avg_performance_rating"`
	HireRate             float64 `json:"hire_rate"`
	NotApplicable        int     `json:"not_applicable"`
	CorrectlyPredicted   int     `json:"correctly_predicted"`
	IncorrectlyPredicted int     `json:"incorrectly_predicted"`
}

// Metrics is the learning report for one agent.
type Metrics struct {
	AgentName          string                    `json:"agent_name"`
	Version            int                       `json:"version"`
	Accuracy           float64                   `json:"accuracy"`
	TotalPredictions   int                       `json:"total_predictions"`
	CorrectPredictions int                       `json:"correct_predictions"`
	CurrentThresholds  routing.Thresholds        `json:"current_thresholds"`
	StagePrecision     map[string]StagePrecision `json:"stage_precision"`
	RecentOutcomes     RecentOutcomes            `json:"recent_outcomes"`
	Days               int                       `json:"days"`
	LastUpdated        time.Time                 `json:"last_updated"`
}

// OutcomeStats aggregates outcomes by label.
type OutcomeStats struct {
	Total    int                        `json:"total"`
	ByLabel  map[types.OutcomeLabel]int `json:"by_outcome"`
	Accuracy float64                    `json:"accuracy"`
	Judged   int                        `json:"judged"`
}

// Metrics reports precision per stage and the outcomes recorded in the last days days.
func (e *Engine) Metrics(ctx context.Context, agent string, days int) (*Metrics, error) {
	if days <= 0 {
		days = 30
	}
	params, err := e.ActiveParams(ctx, agent)
	if err != nil {
		return nil, err
	}
	since := e.now().Add(-time.Duration(days) * 24 * time.Hour)
	outcomes, err := e.Outcomes(ctx, types.OutcomeFilter{Since: &since})
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		AgentName:          agent,
		Version:            params.Version,
		Accuracy:           params.Accuracy,
		TotalPredictions:   params.TotalPredictions,
		CorrectPredictions: params.CorrectPredictions,
		CurrentThresholds:  routing.FromParams(params),
		StagePrecision:     make(map[string]StagePrecision, len(params.PrecisionByStage)),
		RecentOutcomes:     Summarize(outcomes),
		Days:               days,
		LastUpdated:        params.LastUpdatedAt,
	}
	for stage, c := range params.PrecisionByStage {
		m.StagePrecision[stage] = StagePrecision{Precision: c.Precision(), Count: c.TP + c.FP}
	}
	return m, nil
}

// Summarize computes totals, hire rate and average rating over outcomes.
func Summarize(outcomes []types.Outcome) RecentOutcomes {
	var r RecentOutcomes
	var ratingSum float64
	var rated int
	for _, o := range outcomes {
		r.Total++
		if o.Label == types.OutcomeHired {
			r.Hired++
		}
		if o.PerformanceRating != nil {
			ratingSum += *o.PerformanceRating
			rated++
		}
		switch o.AIWasCorrect {
		case types.Correct:
			r.CorrectlyPredicted++
		case types.Incorrect:
			r.IncorrectlyPredicted++
		default:
			r.NotApplicable++
		}
	}
	r.AvgPerformance = round2(ratingSum / float64(max(1, rated)))
	r.HireRate = round2(float64(r.Hired) / float64(max(1, r.Total)))
	return r
}

// Stats aggregates outcomes by label. Accuracy ignores NotApplicable outcomes.
func Stats(outcomes []types.Outcome) OutcomeStats {
	s := OutcomeStats{ByLabel: make(map[types.OutcomeLabel]int)}
	correct := 0
	for _, o := range outcomes {
		s.Total++
		s.ByLabel[o.Label]++
		if o.AIWasCorrect == types.NotApplicable {
			continue
		}
		s.Judged++
		if o.AIWasCorrect == types.Correct {
			correct++
		}
	}
	if s.Judged > 0 {
		s.Accuracy = float64(correct) / float64(s.Judged)
	}
	return s
}

// SortedStages returns the keys of a precision map in routing order, unknown keys last.
func SortedStages(m map[string]StagePrecision) []string {
	rank := map[string]int{}
	for i, s := range routing.AllStages() {
		rank[string(s)] = i
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := rank[keys[i]]
		rj, jok := rank[keys[j]]
		if iok != jok {
			return iok
		}
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
