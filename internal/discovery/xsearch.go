package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jonathan/talent-sourcer/internal/adapter"
	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// DefaultBaseURL is the X API v2 root.
const DefaultBaseURL = "https://api.twitter.com/2"

// Search defaults.
const (
	DefaultMaxResults      = 10
	DefaultQueriesPerRun   = 3
	DefaultRequestsPerSec  = 1.0
	minUsersBeforeFallback = 5
	fallbackTopics         = 2
)

// SearchConfig configures a SignalSource.
type SearchConfig struct {
	BearerToken    string
	BaseURL        string
	MaxResults     int
	QueriesPerRun  int
	RequestsPerSec float64
	Timeout        time.Duration
}

// SignalSource finds profiles through the X recent search endpoint.
type SignalSource struct {
	cfg     SearchConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewSignalSource creates a SignalSource. Zero config fields take defaults.
func NewSignalSource(cfg SearchConfig, httpClient *http.Client, logger *zap.Logger) *SignalSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	// The endpoint rejects max_results outside 10..100.
	cfg.MaxResults = min(max(cfg.MaxResults, 10), 100)
	if cfg.QueriesPerRun <= 0 {
		cfg.QueriesPerRun = DefaultQueriesPerRun
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = DefaultRequestsPerSec
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &SignalSource{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		logger:  logging.WithFields(logger),
	}
}

// Configured reports whether a bearer token is set.
func (s *SignalSource) Configured() bool {
	return s != nil && s.cfg.BearerToken != ""
}

// Find searches the first queries of topics and returns one profile per handle. When fewer than
// five profiles turn up, broader queries built from the leading words of the first topics are tried.
// Search failures are logged and skipped, so the result may be empty.
func (s *SignalSource) Find(ctx context.Context, topics types.Topics) adapter.Result[[]types.DiscoveredProfile] {
	if !s.Configured() {
		return adapter.Substitute([]types.DiscoveredProfile{}, "no bearer token configured", nil)
	}
	if len(topics.SearchQueries) == 0 && len(topics.Topics) == 0 {
		return adapter.Fail[[]types.DiscoveredProfile]("nothing to search", ErrNoQueries)
	}

	acc := newAccumulator()
	queries := topics.SearchQueries
	if len(queries) > s.cfg.QueriesPerRun {
		queries = queries[:s.cfg.QueriesPerRun]
	}
	for _, q := range queries {
		s.searchInto(ctx, q, acc)
	}

	if acc.len() < minUsersBeforeFallback {
		for _, q := range FallbackQueries(topics.Topics) {
			s.searchInto(ctx, q, acc)
		}
	}
	return adapter.Ok(acc.profiles())
}

// FallbackQueries builds broader queries from the first two words of the first two topics.
func FallbackQueries(topics []string) []string {
	var out []string
	for i, t := range topics {
		if i >= fallbackTopics {
			break
		}
		words := strings.Fields(strings.ToLower(t))
		if len(words) == 0 {
			continue
		}
		out = append(out, strings.Join(words[:min(2, len(words))], " "))
	}
	return out
}

func (s *SignalSource) searchInto(ctx context.Context, query string, acc *accumulator) {
	posts, err := s.Search(ctx, query)
	if err != nil {
		s.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return
	}
	s.logger.Debug("search complete", zap.String("query", query), zap.Int("posts", len(posts)))
	for _, p := range posts {
		acc.add(p, query)
	}
}

// Post is one search hit with its author.
type Post struct {
	ID        string
	Text      string
	CreatedAt time.Time
	Likes     int
	Reposts   int
	Replies   int
	Author    Author
}

// Author is the profile behind a post.
type Author struct {
	Handle    string
	Name      string
	Bio       string
	URL       string
	Followers int
	Verified  bool
}

type searchResponse struct {
	Data []struct {
		ID            string    `json:"id"`
		Text          string    `json:"text"`
		AuthorID      string    `json:"author_id"`
		CreatedAt     time.Time `json:"created_at"`
		PublicMetrics struct {
			Likes   int `json:"like_count"`
			Reposts int `json:"retweet_count"`
			Replies int `json:"reply_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			Username      string `json:"username"`
			Description   string `json:"description"`
			URL           string `json:"url"`
			Verified      bool   `json:"verified"`
			PublicMetrics struct {
				Followers int `json:"followers_count"`
			} `json:"public_metrics"`
		} `json:"users"`
	} `json:"includes"`
}

// Search runs one recent-search query, excluding reposts.
func (s *SignalSource) Search(ctx context.Context, query string) ([]Post, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", query+" -is:retweet")
	params.Set("max_results", strconv.Itoa(s.cfg.MaxResults))
	params.Set("expansions", "author_id")
	params.Set("tweet.fields", "created_at,public_metrics,author_id")
	params.Set("user.fields", "username,name,description,public_metrics,verified,url")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/tweets/search/recent?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.BearerToken)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d: %s", resp.StatusCode, logging.TruncateForLog(string(body), 200))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	authors := make(map[string]Author, len(sr.Includes.Users))
	for _, u := range sr.Includes.Users {
		authors[u.ID] = Author{
			Handle:    u.Username,
			Name:      u.Name,
			Bio:       u.Description,
			URL:       u.URL,
			Followers: u.PublicMetrics.Followers,
			Verified:  u.Verified,
		}
	}

	posts := make([]Post, 0, len(sr.Data))
	for _, d := range sr.Data {
		author, ok := authors[d.AuthorID]
		if !ok {
			continue
		}
		posts = append(posts, Post{
			ID:        d.ID,
			Text:      d.Text,
			CreatedAt: d.CreatedAt,
			Likes:     d.PublicMetrics.Likes,
			Reposts:   d.PublicMetrics.Reposts,
			Replies:   d.PublicMetrics.Replies,
			Author:    author,
		})
	}
	return posts, nil
}

// accumulator dedupes profiles by handle while preserving first-seen order.
type accumulator struct {
	order []string
	byKey map[string]*types.DiscoveredProfile
}

func newAccumulator() *accumulator {
	return &accumulator{byKey: make(map[string]*types.DiscoveredProfile)}
}

func (a *accumulator) add(p Post, query string) {
	key := strings.ToLower(p.Author.Handle)
	if key == "" {
		return
	}
	prof, ok := a.byKey[key]
	if !ok {
		prof = &types.DiscoveredProfile{
			Handle:      p.Author.Handle,
			Name:        p.Author.Name,
			Bio:         p.Author.Bio,
			HomepageURL: p.Author.URL,
			Followers:   p.Author.Followers,
			Verified:    p.Author.Verified,
		}
		a.byKey[key] = prof
		a.order = append(a.order, key)
	}
	prof.Signals = append(prof.Signals, types.Signal{
		Kind:       "post",
		Text:       p.Text,
		Query:      query,
		Likes:      p.Likes,
		Reposts:    p.Reposts,
		Replies:    p.Replies,
		PostedAt:   p.CreatedAt,
		ExternalID: p.ID,
	})
}

func (a *accumulator) len() int { return len(a.order) }

func (a *accumulator) profiles() []types.DiscoveredProfile {
	out := make([]types.DiscoveredProfile, 0, len(a.order))
	for _, k := range a.order {
		out = append(out, *a.byKey[k])
	}
	return out
}
