package ratelimit

import (
	"strings"
	"time"
)

// Config holds rate limiting configuration. Allow lists clients that are never limited and Deny
// lists clients that are always refused.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Allow           []string
	Deny            []string
	Rules           []Rule
}

// Rule limits one method on a path. A Path ending in "/" covers every path below it.
type Rule struct {
	Method string
	Path   string
	Limit  int           // requests per Window
	Window time.Duration // refill period for Limit tokens
	Burst  int           // bucket size, Limit when zero
}

func (r Rule) covers(method, path string) bool {
	if r.Method != method {
		return false
	}
	if strings.HasSuffix(r.Path, "/") {
		return strings.HasPrefix(path, r.Path)
	}
	return r.Path == path
}

func (r Rule) capacity() int {
	if r.Burst > 0 {
		return r.Burst
	}
	return r.Limit
}

// DefaultConfig is used when the server is given no rate limit settings.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Rules:           DefaultRules(),
	}
}

// DefaultRules tightens the routes that call models or the search API and the write routes.
func DefaultRules() []Rule {
	return []Rule{
		{Method: "POST", Path: "/sourcing/start", Limit: 10, Window: time.Hour, Burst: 2},
		{Method: "POST", Path: "/sourcing/start/stream", Limit: 10, Window: time.Hour, Burst: 2},
		{Method: "POST", Path: "/teams/match", Limit: 30, Window: time.Hour, Burst: 5},
		{Method: "POST", Path: "/learning/simulate", Limit: 30, Window: time.Minute, Burst: 5},

		{Method: "POST", Path: "/jobs", Limit: 100, Window: time.Minute, Burst: 10},
		{Method: "PUT", Path: "/jobs/", Limit: 100, Window: time.Minute, Burst: 10},
		{Method: "POST", Path: "/teams", Limit: 100, Window: time.Minute, Burst: 10},
		{Method: "POST", Path: "/teams/matches/", Limit: 100, Window: time.Minute, Burst: 10},
		{Method: "POST", Path: "/learning/outcomes", Limit: 100, Window: time.Minute, Burst: 10},
		{Method: "PUT", Path: "/learning/params/", Limit: 20, Window: time.Minute, Burst: 5},
	}
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			set[item] = struct{}{}
		}
	}
	return set
}
