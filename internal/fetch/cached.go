package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/logging"
)

// DefaultCacheTTL is how long a fetched page is reused.
const DefaultCacheTTL = 24 * time.Hour

// DefaultFailureBackoff is how long a failed URL is skipped before it is retried.
const DefaultFailureBackoff = 15 * time.Minute

// Page is the extracted text of a fetched URL.
type Page struct {
	URL       string
	Text      string
	Platform  Platform
	Rendered  bool // text came from the headless browser
	FromCache bool
	FetchedAt time.Time
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	CacheTTL       time.Duration
	FailureBackoff time.Duration
	UseBrowser     bool
	BrowserTimeout time.Duration
	Options        *Options
}

// DefaultFetcherConfig returns sensible defaults.
func DefaultFetcherConfig() *FetcherConfig {
	return &FetcherConfig{
		CacheTTL:       DefaultCacheTTL,
		FailureBackoff: DefaultFailureBackoff,
		BrowserTimeout: 30 * time.Second,
		Options:        DefaultOptions(),
	}
}

type cacheEntry struct {
	page     *Page
	failedAt time.Time
	err      error
}

// Fetcher fetches pages and extracts their main text, caching results in memory and backing off
// from URLs that recently failed.
type Fetcher struct {
	cfg    *FetcherConfig
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry

	// render is swapped in tests to avoid launching a browser.
	render func(ctx context.Context, rawURL string, opts RenderOptions) (string, error)
}

// NewFetcher creates a Fetcher. Zero config fields take defaults.
func NewFetcher(cfg *FetcherConfig, logger *zap.Logger) *Fetcher {
	def := DefaultFetcherConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.Options == nil {
		cfg.Options = def.Options
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.BrowserTimeout == 0 {
		cfg.BrowserTimeout = def.BrowserTimeout
	}
	return &Fetcher{
		cfg:    cfg,
		logger: logging.WithFields(logger),
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
		render: Render,
	}
}

// Fetch returns the main text of urlStr using the selectors of its platform. With browser
// rendering enabled, a job posting whose HTTP text is too short is rendered headlessly and
// re-extracted.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*Page, error) {
	if p, err, ok := f.cached(urlStr); ok {
		return p, err
	}

	page, err := f.fetch(ctx, urlStr)
	f.mu.Lock()
	if err != nil {
		f.cache[urlStr] = cacheEntry{failedAt: f.now(), err: err}
	} else {
		f.cache[urlStr] = cacheEntry{page: page}
	}
	f.mu.Unlock()
	return page, err
}

// Text is Fetch returning only the extracted text.
func (f *Fetcher) Text(ctx context.Context, urlStr string) (string, error) {
	p, err := f.Fetch(ctx, urlStr)
	if err != nil {
		return "", err
	}
	return p.Text, nil
}

// Invalidate drops any cached page or failure for urlStr.
func (f *Fetcher) Invalidate(urlStr string) {
	f.mu.Lock()
	delete(f.cache, urlStr)
	f.mu.Unlock()
}

func (f *Fetcher) cached(urlStr string) (*Page, error, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.cache[urlStr]
	if !ok {
		return nil, nil, false
	}
	now := f.now()
	if e.err != nil {
		if now.Sub(e.failedAt) < f.cfg.FailureBackoff {
			return nil, &Error{URL: urlStr, Message: "skipped after recent failure", Cause: e.err}, true
		}
		delete(f.cache, urlStr)
		return nil, nil, false
	}
	if now.Sub(e.page.FetchedAt) >= f.cfg.CacheTTL {
		delete(f.cache, urlStr)
		return nil, nil, false
	}
	hit := *e.page
	hit.FromCache = true
	return &hit, nil, true
}

func (f *Fetcher) fetch(ctx context.Context, urlStr string) (*Page, error) {
	platform := DetectPlatform(urlStr)
	sel := SelectorsFor(platform)

	result, err := Get(ctx, urlStr, f.cfg.Options)
	if err != nil {
		return nil, err
	}
	if result.Truncated {
		f.logger.Debug("page body truncated", zap.String("url", urlStr))
	}

	text, err := ExtractMainText(result.HTML, sel)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", urlStr, err)
	}

	page := &Page{URL: urlStr, Text: text, Platform: platform, FetchedAt: f.now()}
	if !f.cfg.UseBrowser || !NeedsRendering(platform, text) {
		return page, nil
	}

	f.logger.Debug("page text too short, rendering with browser",
		zap.String("url", urlStr), zap.String("platform", string(platform)), zap.Int("chars", len(text)))

	html, err := f.render(ctx, urlStr, RenderOptions{Timeout: f.cfg.BrowserTimeout, Logger: f.logger})
	if err != nil {
		f.logger.Warn("browser rendering failed, keeping HTTP text", zap.String("url", urlStr), zap.Error(err))
		return page, nil
	}
	rendered, err := ExtractMainText(html, sel)
	if err == nil && len(rendered) > len(text) {
		page.Text = rendered
		page.Rendered = true
	}
	return page, nil
}
