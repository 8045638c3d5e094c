// Package llm defines the completion client used by pipeline nodes,
// with an OpenAI-compatible implementation and a retrying wrapper.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	wferrors "github.com/waveflow-io/waveflow/pkg/waveflow/errors"
)

// ErrEmptyResponse indicates the model returned no content. It is
// transient: models occasionally emit empty completions under load.
var ErrEmptyResponse = wferrors.Transient(errors.New("llm: empty response"))

// Request configures one completion call.
type Request struct {
	// Node names the pipeline step making the call, for log
	// attribution only.
	Node string `json:"node,omitempty"`

	// System is the system prompt. Optional.
	System string `json:"system,omitempty"`

	// Prompt is the user message.
	Prompt string `json:"prompt"`

	// JSON requests a structured JSON response from the model.
	JSON bool `json:"json,omitempty"`

	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
}

// Response is the output of a completion call.
type Response struct {
	Content      string        `json:"content"`
	Model        string        `json:"model"`
	FinishReason string        `json:"finish_reason"`
	Usage        TokenUsage    `json:"usage"`
	Duration     time.Duration `json:"duration"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Client is a completion backend.
//
// Implementations must be safe for concurrent use: fan-out waves issue
// completion calls from several goroutines at once.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// retryingClient wraps a Client with transient-error retry.
type retryingClient struct {
	inner Client
	cfg   wferrors.RetryConfig
}

// NewRetrying wraps a client so transient failures and empty responses
// are retried with backoff. Permanent errors pass through immediately.
func NewRetrying(inner Client, cfg wferrors.RetryConfig) Client {
	return &retryingClient{inner: inner, cfg: cfg}
}

func (c *retryingClient) Complete(ctx context.Context, req Request) (*Response, error) {
	res := wferrors.WithRetryContext(ctx, c.cfg, func(ctx context.Context) (*Response, error) {
		resp, err := c.inner.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(resp.Content) == "" {
			return nil, ErrEmptyResponse
		}
		return resp, nil
	})
	if res.Err != nil {
		return nil, fmt.Errorf("complete after %d attempts: %w", res.Attempts, res.Err)
	}
	return res.Value, nil
}

// DecodeJSON parses a model response into v. Models sometimes wrap JSON
// in markdown fences despite instructions, so fences are stripped first.
func DecodeJSON(content string, v any) error {
	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = stripFence(cleaned)
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("decode JSON response: %w", err)
	}
	return nil
}

// ExtractCode returns the body of the first fenced code block with the
// given language tag, or the whole content if no such fence exists.
func ExtractCode(content, lang string) string {
	marker := "```" + lang
	start := strings.Index(content, marker)
	if start < 0 {
		return strings.TrimSpace(content)
	}
	rest := content[start+len(marker):]
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func stripFence(s string) string {
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
