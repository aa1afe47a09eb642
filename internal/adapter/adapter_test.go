package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/talent-sourcer/internal/schemas"
	"github.com/jonathan/talent-sourcer/internal/types"
)

func TestCall_Success(t *testing.T) {
	v, err := Call(context.Background(), "score", time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestCall_Timeout(t *testing.T) {
	start := time.Now()
	_, err := Call(context.Background(), "score", 20*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(500 * time.Millisecond)
		return 1, nil
	})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Contains(t, err.Error(), "score timed out")
}

func TestCall_ContextAwareTimeout(t *testing.T) {
	_, err := Call(context.Background(), "embed", 20*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	assert.True(t, IsTimeout(err))
}

func TestCall_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Call(ctx, "embed", time.Second, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTimeout(err))
}

func TestCall_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Call(context.Background(), "x", time.Second, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{"plain", `{"compatibility_score": 81, "reasoning": "solid"}`, 81, false},
		{"fenced", "```json\n{\"compatibility_score\": 70, \"reasoning\": \"ok\"}\n```", 70, false},
		{"prose", `Sure! Here you go: {"compatibility_score": 65, "reasoning": "fine"} Thanks.`, 65, false},
		{"missing field", `{"compatibility_score": 65}`, 0, true},
		{"not json", `I cannot score this candidate.`, 0, true},
		{"empty", ``, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeJSON[types.Compatibility](schemas.Compatibility, tt.raw)
			if tt.wantErr {
				var me *MalformedError
				assert.ErrorAs(t, err, &me)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Score)
		})
	}
}

func TestDecodeJSON_ReExtraction(t *testing.T) {
	// The array-first cleanup picks the wrong payload; the object re-extraction recovers.
	raw := `Options [1, 2] -> {"compatibility_score": 77, "reasoning": "second pass"}`
	got, err := DecodeJSON[types.Compatibility](schemas.Compatibility, raw)
	require.NoError(t, err)
	assert.Equal(t, 77.0, got.Score)
}

func TestResultHelpers(t *testing.T) {
	assert.True(t, Ok(1).Usable())
	fb := Substitute(2, "stub", nil)
	assert.Equal(t, Fallback, fb.Kind)
	assert.True(t, fb.Usable())
	f := Fail[int]("down", errors.New("x"))
	assert.False(t, f.Usable())
	assert.Equal(t, "failure", f.Kind.String())
}
