package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/talent-sourcer/internal/fetch"
)

var (
	// ErrFetchFailed is returned when a posting URL could not be fetched.
	ErrFetchFailed = errors.New("failed to fetch job posting")
	// ErrEmptyPosting is returned when a fetched page has no usable text.
	ErrEmptyPosting = errors.New("job posting has no text")
)

// PageFetcher fetches the main text of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// IngestFromURL fetches a job posting, cleans its text and records where it came from. Platform
// detection and headless rendering happen inside the fetcher.
func IngestFromURL(ctx context.Context, fetcher PageFetcher, urlStr string) (string, *Source, error) {
	page, err := fetcher.Fetch(ctx, urlStr)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	cleaned := CleanText(page.Text)
	if cleaned == "" {
		return "", nil, fmt.Errorf("%w: %s", ErrEmptyPosting, urlStr)
	}

	src := newSource(SourceURL, urlStr, cleaned)
	src.Platform = string(page.Platform)
	src.Rendered = page.Rendered
	return cleaned, src, nil
}
