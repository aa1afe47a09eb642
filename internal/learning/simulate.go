package learning

import (
	"math/rand"

	"github.com/jonathan/talent-sourcer/internal/routing"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// SimulationPoint is the learner's state after one synthetic outcome.
type SimulationPoint struct {
	Iteration  int                `json:"iteration"`
	Accuracy   float64            `json:"accuracy"`
	Label      types.OutcomeLabel `json:"outcome"`
	Predicted  float64            `json:"predicted_score"`
	Verdict    types.Correctness  `json:"ai_was_correct"`
	Thresholds routing.Thresholds `json:"thresholds"`
}

// Simulate runs the learner against synthetic candidates whose predicted score is their true
// quality plus gaussian noise. Nothing is persisted; rng makes runs reproducible.
func Simulate(iterations int, learningRate float64, rng *rand.Rand) []SimulationPoint {
	params := DefaultParams("simulation", learningRate)
	points := make([]SimulationPoint, 0, iterations)

	for i := 0; i < iterations; i++ {
		quality := rng.Float64() * 100
		predicted := clamp(quality+rng.NormFloat64()*10, 0, 100)
		label, rating := syntheticOutcome(quality, rng)

		params = Step(params, predicted, label, rating)
		params.Version++

		points = append(points, SimulationPoint{
			Iteration:  i + 1,
			Accuracy:   params.Accuracy,
			Label:      label,
			Predicted:  predicted,
			Verdict:    Judge(predicted, label, rating),
			Thresholds: routing.FromParams(params),
		})
	}
	return points
}

func syntheticOutcome(quality float64, rng *rand.Rand) (types.OutcomeLabel, *float64) {
	uniform := func(lo, hi float64) *float64 {
		v := lo + rng.Float64()*(hi-lo)
		return &v
	}
	switch {
	case quality >= 80:
		return types.OutcomeHired, uniform(4.0, 5.0)
	case quality >= 60:
		if rng.Intn(2) == 0 {
			return types.OutcomeHired, uniform(3.0, 4.5)
		}
		return types.OutcomeRejectedInterview, nil
	case quality >= 40:
		if rng.Intn(2) == 0 {
			return types.OutcomeRejectedScreen, nil
		}
		return types.OutcomeRejectedInterview, nil
	default:
		return types.OutcomeRejectedSourcing, nil
	}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
