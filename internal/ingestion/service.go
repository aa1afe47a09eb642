package ingestion

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/adapter"
	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// JobStore persists new jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job *types.Job) error
}

// Service creates jobs from pasted text or posting URLs.
type Service struct {
	store     JobStore
	fetcher   PageFetcher
	extractor *Extractor
	logger    *zap.Logger
}

// NewService creates a Service. fetcher may be nil, in which case URL requests are rejected.
// A nil extractor behaves like one without a model.
func NewService(store JobStore, fetcher PageFetcher, extractor *Extractor, logger *zap.Logger) *Service {
	if extractor == nil {
		extractor = NewExtractor(nil, 0, logger)
	}
	return &Service{store: store, fetcher: fetcher, extractor: extractor, logger: logging.WithFields(logger)}
}

// CreateJob builds and stores a job. Explicit title, description and requirements win over what
// is fetched or extracted.
func (s *Service) CreateJob(ctx context.Context, req *types.CreateJobRequest) (*types.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, &types.ValidationError{Field: "job", Message: err.Error()}
	}

	description := CleanText(req.Description)
	if req.URL != "" && description == "" {
		if s.fetcher == nil {
			return nil, &types.ValidationError{Field: "url", Message: "posting URLs are not supported without a fetcher"}
		}
		text, src, err := IngestFromURL(ctx, s.fetcher, req.URL)
		if err != nil {
			return nil, err
		}
		s.logger.Info("fetched job posting", zap.String("url", req.URL),
			zap.String("platform", src.Platform), zap.Bool("rendered", src.Rendered),
			zap.String("digest", src.ShortDigest()), zap.Int("chars", len(text)))
		description = text
	}

	job := &types.Job{
		Title:        strings.TrimSpace(req.Title),
		Description:  description,
		Requirements: trimAll(req.Requirements),
		SourceURL:    req.URL,
	}

	if job.Title == "" || len(job.Requirements) == 0 {
		res := s.extractor.Extract(ctx, description)
		if res.Kind != adapter.Success {
			s.logger.Info("requirements taken from posting bullets", zap.String("reason", res.Reason))
		}
		if job.Title == "" {
			job.Title = strings.TrimSpace(res.Value.Title)
		}
		if len(job.Requirements) == 0 {
			job.Requirements = trimAll(res.Value.Requirements)
		}
	}
	if job.Title == "" {
		return nil, &types.ValidationError{Field: "title", Message: "could not determine a title for the job"}
	}
	if job.Requirements == nil {
		job.Requirements = []string{}
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	s.logger.Info("job created", logging.JobID(job.ID), zap.String("title", job.Title),
		zap.Int("requirements", len(job.Requirements)))
	return job, nil
}

func trimAll(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
