package teammatch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/talent-sourcer/internal/types"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestClampUnit(t *testing.T) {
	assert.Equal(t, 0.0, ClampUnit(math.NaN()))
	assert.Equal(t, 0.0, ClampUnit(-0.2))
	assert.Equal(t, 1.0, ClampUnit(1.7))
	assert.Equal(t, 0.42, ClampUnit(0.42))
}

func TestFuse(t *testing.T) {
	assert.InDelta(t, 0.90, Fuse(0.9, 0.9), 1e-9)
	assert.InDelta(t, 0.7, Fuse(1, 0), 1e-9)
	assert.InDelta(t, 0.3, Fuse(0, 1), 1e-9)
	assert.InDelta(t, 1.0, Fuse(3, 2), 1e-9)
	assert.InDelta(t, 0.0, Fuse(-1, math.NaN()), 1e-9)
	// The stored score keeps full precision.
	assert.InDelta(t, 0.2827162, Fuse(0.123457, 0.654321), 1e-12)
}

func TestFuse_BandEdges(t *testing.T) {
	tests := []struct {
		similarity, adjustment float64
		want                   types.Recommendation
		passes                 bool
	}{
		{0.8, 0.8, types.StrongMatch, true},
		{0.65, 0.65, types.GoodMatch, true},
		{0.5, 0.5, types.PossibleMatch, false},
		{0.6, 0.7666666666, types.GoodMatch, true},
		{0.6, 0.7666, types.PossibleMatch, false},
	}
	for _, tt := range tests {
		f := Fuse(tt.similarity, tt.adjustment)
		assert.Equal(t, tt.want, Recommend(f), "fused %v", f)
		assert.Equal(t, tt.passes, PassesThreshold(f), "fused %v", f)
	}
}

func TestFuse_RangeProperty(t *testing.T) {
	for s := 0.0; s <= 1.0; s += 0.05 {
		for r := 0.0; r <= 1.0; r += 0.05 {
			f := Fuse(s, r)
			assert.GreaterOrEqual(t, f, 0.0)
			assert.LessOrEqual(t, f, 1.0)
			if f >= MatchThreshold {
				assert.True(t, PassesThreshold(f))
			}
		}
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		score float64
		want  types.Recommendation
	}{
		{0.95, types.StrongMatch},
		{0.80, types.StrongMatch},
		{0.79, types.GoodMatch},
		{0.65, types.GoodMatch},
		{0.64, types.PossibleMatch},
		{0.50, types.PossibleMatch},
		{0.49, types.NotRecommended},
		{0, types.NotRecommended},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Recommend(tt.score), "score %v", tt.score)
	}
}

func TestPassesThreshold(t *testing.T) {
	assert.True(t, PassesThreshold(0.65))
	assert.True(t, PassesThreshold(0.9))
	assert.False(t, PassesThreshold(0.6499))
}
