package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFrozen builds a limiter whose clock only moves when the returned setter is called.
func newFrozen(t *testing.T, cfg *Config) (*Limiter, func(time.Time)) {
	t.Helper()
	l := NewLimiter(cfg)
	t.Cleanup(l.Stop)
	set := func(at time.Time) { l.now = func() time.Time { return at } }
	set(time.Now())
	return l, set
}

func TestLimiter_DefaultBucket(t *testing.T) {
	l, _ := newFrozen(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})

	for i := 1; i <= 10; i++ {
		allowed, info := l.Allow("10.0.0.1", "/jobs", "GET")
		require.True(t, allowed, "request %d", i)
		assert.Equal(t, 10, info.Limit)
		assert.Equal(t, 10-i, info.Remaining)
	}

	allowed, info := l.Allow("10.0.0.1", "/jobs", "GET")
	assert.False(t, allowed)
	assert.Zero(t, info.Remaining)
	assert.Positive(t, info.RetryAfter)
	assert.True(t, info.ResetTime.After(l.now()))

	// Buckets are per client.
	allowed, _ = l.Allow("10.0.0.2", "/jobs", "GET")
	assert.True(t, allowed)
}

func TestLimiter_Refill(t *testing.T) {
	l, set := newFrozen(t, &Config{Enabled: true, DefaultLimit: 60, DefaultWindow: time.Minute})
	start := time.Now()
	set(start)

	for i := 0; i < 60; i++ {
		l.Allow("10.0.0.1", "/jobs", "GET")
	}
	allowed, _ := l.Allow("10.0.0.1", "/jobs", "GET")
	require.False(t, allowed)

	// 60 per minute refills one token a second.
	set(start.Add(1100 * time.Millisecond))
	allowed, _ = l.Allow("10.0.0.1", "/jobs", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("10.0.0.1", "/jobs", "GET")
	assert.False(t, allowed)
}

func TestLimiter_AllowAndDenyLists(t *testing.T) {
	l, _ := newFrozen(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Allow:         []string{" 10.0.0.1 ", ""},
		Deny:          []string{"10.0.0.9"},
	})

	for i := 0; i < 50; i++ {
		allowed, info := l.Allow("10.0.0.1", "/jobs", "GET")
		require.True(t, allowed)
		assert.Zero(t, info.Limit)
	}

	allowed, _ := l.Allow("10.0.0.9", "/jobs", "GET")
	assert.False(t, allowed)
	allowed, _ = l.Allow("10.0.0.9", "/health", "GET")
	assert.True(t, allowed, "health stays reachable")
}

func TestLimiter_Disabled(t *testing.T) {
	l, _ := newFrozen(t, &Config{Enabled: false})
	for i := 0; i < 50; i++ {
		allowed, info := l.Allow("10.0.0.1", "/sourcing/start", "POST")
		require.True(t, allowed)
		assert.Zero(t, info.Limit)
	}
}

func TestLimiter_RuleOverridesDefault(t *testing.T) {
	l, _ := newFrozen(t, &Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		Rules:         []Rule{{Method: "POST", Path: "/sourcing/start", Limit: 5, Window: time.Hour}},
	})

	for i := 0; i < 5; i++ {
		allowed, info := l.Allow("10.0.0.1", "/sourcing/start", "POST")
		require.True(t, allowed)
		assert.Equal(t, 5, info.Limit)
	}
	allowed, _ := l.Allow("10.0.0.1", "/sourcing/start", "POST")
	assert.False(t, allowed)

	allowed, info := l.Allow("10.0.0.1", "/jobs", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 1000, info.Limit)
}

func TestLimiter_Burst(t *testing.T) {
	l, _ := newFrozen(t, &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		Rules:         []Rule{{Method: "POST", Path: "/teams/match", Limit: 10, Window: time.Minute, Burst: 5}},
	})

	for i := 0; i < 5; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/teams/match", "POST")
		require.True(t, allowed, "burst request %d", i+1)
	}
	allowed, _ := l.Allow("10.0.0.1", "/teams/match", "POST")
	assert.False(t, allowed)
}

func TestLimiter_HealthExempt(t *testing.T) {
	l, _ := newFrozen(t, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Hour})
	for i := 0; i < 20; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/health", "GET")
		require.True(t, allowed)
	}
	assert.Empty(t, l.buckets)
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newFrozen(t, &Config{Enabled: true, DefaultLimit: 100, DefaultWindow: time.Minute})

	var wg sync.WaitGroup
	var granted atomic.Int32
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := l.Allow("10.0.0.1", "/jobs", "GET"); allowed {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 100, granted.Load())
}

func TestLimiter_CleanupBuckets(t *testing.T) {
	l, set := newFrozen(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	start := time.Now()

	set(start)
	for i := 1; i <= 10; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i), "/jobs", "GET")
	}
	set(start.Add(30 * time.Minute))
	for i := 1; i <= 5; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i), "/jobs", "GET")
	}

	set(start.Add(90 * time.Minute))
	assert.Equal(t, 5, l.cleanupBuckets(time.Hour))
	assert.Len(t, l.buckets, 5)
}

func TestLimiter_StopTwice(t *testing.T) {
	l := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Second, CleanupInterval: time.Second})
	l.Stop()
	assert.NotPanics(t, l.Stop)
}

func TestNewLimiter_NilConfig(t *testing.T) {
	l, _ := newFrozen(t, nil)

	allowed, info := l.Allow("10.0.0.1", "/jobs", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 1000, info.Limit)

	_, info = l.Allow("10.0.0.1", "/sourcing/start", "POST")
	assert.Equal(t, 10, info.Limit)
}

func TestRuleFor(t *testing.T) {
	rules := []Rule{
		{Method: "POST", Path: "/teams/", Limit: 1},
		{Method: "POST", Path: "/teams/matches/", Limit: 2},
		{Method: "POST", Path: "/teams/match", Limit: 3},
		{Method: "PUT", Path: "/jobs/", Limit: 4},
	}

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"exact beats prefix", "POST", "/teams/match", 3},
		{"longest prefix", "POST", "/teams/matches/m1/approve", 2},
		{"short prefix", "POST", "/teams/t1", 1},
		{"nested", "PUT", "/jobs/j1/candidates/c1/stage", 4},
		{"method mismatch", "GET", "/teams/match", 0},
		{"prefix needs trailing segment", "PUT", "/jobs", 0},
		{"unknown", "GET", "/nowhere", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := ruleFor(rules, tt.method, tt.path)
			if tt.want == 0 {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, rule.Limit)
		})
	}
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()

	rule, ok := ruleFor(rules, "PUT", "/jobs/j1/candidates/c1/stage")
	require.True(t, ok)
	assert.Equal(t, "/jobs/", rule.Path)

	rule, ok = ruleFor(rules, "POST", "/sourcing/start/stream")
	require.True(t, ok)
	assert.Equal(t, 2, rule.capacity())

	_, ok = ruleFor(rules, "GET", "/jobs")
	assert.False(t, ok)
}
