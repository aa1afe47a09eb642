// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/jonathan/talent-sourcer/internal/llm"
)

// Client replays canned responses. Respond, when set, takes precedence over Response.
type Client struct {
	Response string
	Err      error
	Respond  func(prompt string) (string, error)
	Delay    func(ctx context.Context) error

	mu      sync.Mutex
	prompts []string
}

var _ llm.Client = (*Client)(nil)

// GenerateContent returns the scripted response.
func (c *Client) GenerateContent(ctx context.Context, prompt string, _ llm.ModelTier) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()

	if c.Delay != nil {
		if err := c.Delay(ctx); err != nil {
			return "", err
		}
	}
	if c.Respond != nil {
		return c.Respond(prompt)
	}
	return c.Response, c.Err
}

// GenerateJSON returns the scripted response.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return c.GenerateContent(ctx, prompt, tier)
}

// GetModel returns a fixed model name.
func (c *Client) GetModel(llm.ModelTier) string { return "fake-model" }

// Provider returns ProviderGemini.
func (c *Client) Provider() llm.Provider { return llm.ProviderGemini }

// Close is a no-op.
func (c *Client) Close() error { return nil }

// Prompts returns every prompt received so far.
func (c *Client) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// Calls returns the number of generate calls.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

// Embedder returns vectors from a lookup keyed by exact text, or Default.
type Embedder struct {
	Vectors map[string][]float32
	Default []float32
	Err     error

	mu    sync.Mutex
	calls int
}

// Embed returns the scripted vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	if v, ok := e.Vectors[text]; ok {
		return v, nil
	}
	return e.Default, nil
}

// Calls returns the number of Embed calls.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
