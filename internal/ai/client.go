// Package ai holds the HTTP client for the hosted text generation backend
// used for chat reply suggestions.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type generateRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type generateResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Client calls the text generation API. It implements the generator port the
// suggestion service depends on.
type Client struct {
	http      *resty.Client
	maxTokens int
}

// Option adjusts client construction.
type Option func(*Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.SetTimeout(timeout)
		}
	}
}

// WithMaxTokens bounds the length of generated text.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// NewClient builds a client for the given endpoint. The API key is sent as a
// bearer token on every request.
func NewClient(endpoint, apiKey string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("ai: endpoint is required")
	}

	httpClient := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)
	if apiKey != "" {
		httpClient.SetAuthToken(apiKey)
	}

	client := &Client{http: httpClient, maxTokens: 256}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// GenerateText submits a prompt and returns the generated completion.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.http == nil {
		return "", fmt.Errorf("ai: client not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("ai: prompt is required")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(generateRequest{Prompt: prompt, MaxTokens: c.maxTokens}).
		SetResult(&generateResponse{}).
		SetError(&errorResponse{}).
		Post("/v1/generate")
	if err != nil {
		return "", fmt.Errorf("ai: generate request: %w", err)
	}
	if resp.IsError() {
		if apiErr, ok := resp.Error().(*errorResponse); ok && apiErr.Message != "" {
			return "", fmt.Errorf("ai: generate failed: %s (status %d)", apiErr.Message, resp.StatusCode())
		}
		return "", fmt.Errorf("ai: generate failed with status %d", resp.StatusCode())
	}

	result, ok := resp.Result().(*generateResponse)
	if !ok || result == nil {
		return "", fmt.Errorf("ai: malformed generate response")
	}
	return result.Text, nil
}
