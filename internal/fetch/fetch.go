// Package fetch retrieves web pages and extracts their readable text. Job ingestion uses it for
// posting URLs and enrichment uses it for candidate homepages.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultTimeout bounds a single HTTP fetch.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxBytes caps how much of a response body is read.
	DefaultMaxBytes = 4 << 20
	// DefaultUserAgent identifies the fetcher to the sites it reads.
	DefaultUserAgent = "Mozilla/5.0 (compatible; TalentSourcer/1.0)"
)

// alwaysNoise is removed before any selector runs.
const alwaysNoise = "script, style, noscript, template, svg, nav, header, footer, aside, iframe, .ad, .ads, .popup"

// Result is a fetched response body.
type Result struct {
	URL         string
	HTML        string
	ContentType string
	StatusCode  int
	Truncated   bool
}

// Error reports why a URL could not be fetched.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Options configures Get. Zero fields take defaults.
type Options struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Headers   map[string]string
	Client    *http.Client
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{Timeout: DefaultTimeout, MaxBytes: DefaultMaxBytes, UserAgent: DefaultUserAgent}
}

func (o *Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Get downloads rawURL. Only http(s) URLs serving HTML or plain text are accepted; any other
// status than 2xx is an error carrying the partial Result.
func Get(ctx context.Context, rawURL string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &Error{URL: rawURL, Message: "invalid URL", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "failed to create request", Cause: err}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := opts.client().Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	limit := opts.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "failed to read body", Cause: err}
	}
	res := &Result{
		URL:         rawURL,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}
	if int64(len(body)) > limit {
		body = body[:limit]
		res.Truncated = true
	}
	res.HTML = string(body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, &Error{URL: rawURL, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	if !readableType(res.ContentType) {
		return res, &Error{URL: rawURL, Message: fmt.Sprintf("unsupported content type %q", res.ContentType)}
	}
	return res, nil
}

func readableType(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "text/plain" || mt == "application/xhtml+xml"
}

// Selectors drives ExtractMainText. Content selectors are tried in order and the first match
// wins; noise selectors are removed beforehand.
type Selectors struct {
	Content []string
	Noise   []string
}

// ExtractMainText returns the readable text of the first content match in html, or of the body
// when nothing matches.
func ExtractMainText(html string, sel Selectors) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(alwaysNoise).Remove()
	if len(sel.Noise) > 0 {
		doc.Find(strings.Join(sel.Noise, ", ")).Remove()
	}

	root := doc.Find("body")
	for _, s := range sel.Content {
		if m := doc.Find(s); m.Length() > 0 && strings.TrimSpace(m.First().Text()) != "" {
			root = m.First()
			break
		}
	}

	// Block elements end a line so paragraphs and list items stay separate.
	root.Find("br").ReplaceWithHtml("\n")
	root.Find("p, li, h1, h2, h3, h4, h5, h6, div, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return normalizeText(root.Text()), nil
}

// normalizeText collapses runs of spaces inside lines and drops blank lines.
func normalizeText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
