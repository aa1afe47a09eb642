// Package teammatch ranks a candidate against internal teams by fusing embedding similarity with
// a model-supplied reasoning adjustment, persists the matches, and alerts managers of matches
// that clear the threshold.
package teammatch

import (
	"math"

	"github.com/jonathan/talent-sourcer/internal/types"
)

// Fusion weights and the notification gate.
const (
	SimilarityWeight = 0.7
	ReasoningWeight  = 0.3
	MatchThreshold   = 0.65
)

// Recommendation band floors.
const (
	strongFloor   = 0.80
	goodFloor     = 0.65
	possibleFloor = 0.50
)

// edgeTolerance absorbs float error when a fused score is compared with a band floor.
const edgeTolerance = 1e-9

func atLeast(score, floor float64) bool {
	return score >= floor-edgeTolerance
}

// CosineSimilarity returns dot(a,b)/(|a|*|b|). It is 0 when either vector has zero norm or the
// lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ClampUnit bounds v to [0,1]. NaN becomes 0.
func ClampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Fuse returns 0.7*similarity + 0.3*adjustment with both inputs clamped to [0,1].
func Fuse(similarity, adjustment float64) float64 {
	return ClampUnit(SimilarityWeight*ClampUnit(similarity) + ReasoningWeight*ClampUnit(adjustment))
}

// Recommend bands a fused score.
func Recommend(finalScore float64) types.Recommendation {
	switch {
	case atLeast(finalScore, strongFloor):
		return types.StrongMatch
	case atLeast(finalScore, goodFloor):
		return types.GoodMatch
	case atLeast(finalScore, possibleFloor):
		return types.PossibleMatch
	default:
		return types.NotRecommended
	}
}

// PassesThreshold reports whether a fused score triggers a manager notification.
func PassesThreshold(finalScore float64) bool {
	return atLeast(finalScore, MatchThreshold)
}
