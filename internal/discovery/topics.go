// Package discovery turns a job into search topics and finds public profiles posting about them.
package discovery

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/adapter"
	"github.com/jonathan/talent-sourcer/internal/llm"
	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/prompts"
	"github.com/jonathan/talent-sourcer/internal/schemas"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// StubTopics is returned when no model is configured.
func StubTopics() types.Topics {
	return types.Topics{
		Topics:        []string{"machine learning", "python programming", "backend engineering"},
		SearchQueries: []string{"LLM inference optimization", "PyTorch performance tuning", "distributed training setup"},
		Stub:          true,
	}
}

// TopicDiscoverer derives search topics and queries from a job description.
type TopicDiscoverer struct {
	client  llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewTopicDiscoverer creates a TopicDiscoverer. A nil client yields stub topics.
func NewTopicDiscoverer(client llm.Client, timeout time.Duration, logger *zap.Logger) *TopicDiscoverer {
	return &TopicDiscoverer{client: client, timeout: timeout, logger: logging.WithFields(logger)}
}

// Discover returns topics for the job. Model errors and malformed replies produce the stub.
func (d *TopicDiscoverer) Discover(ctx context.Context, job *types.Job) adapter.Result[types.Topics] {
	if d.client == nil {
		return adapter.Substitute(StubTopics(), "no model configured", nil)
	}

	prompt, err := prompts.Render("discovery.json", "discover-topics", map[string]string{
		"JobTitle":       job.Title,
		"JobDescription": job.Description,
	})
	if err != nil {
		return adapter.Fail[types.Topics]("prompt unavailable", err)
	}

	raw, err := adapter.Call(ctx, "topic discovery", d.timeout, func(ctx context.Context) (string, error) {
		return d.client.GenerateJSON(ctx, prompt, llm.TierLite)
	})
	if err != nil {
		d.logger.Warn("topic discovery failed, using stub topics", logging.JobID(job.ID), zap.Error(err))
		return adapter.Substitute(StubTopics(), "model call failed", err)
	}

	topics, err := adapter.DecodeJSON[types.Topics](schemas.Topics, raw)
	if err != nil {
		d.logger.Warn("malformed topic response, using stub topics", logging.JobID(job.ID), zap.Error(err))
		return adapter.Substitute(StubTopics(), "malformed model response", err)
	}
	return adapter.Ok(topics)
}

// ErrNoQueries is returned when a search is requested without topics or queries.
var ErrNoQueries = errors.New("no topics or search queries to search for")
