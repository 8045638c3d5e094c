package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	wferrors "github.com/waveflow-io/waveflow/pkg/waveflow/errors"
)

// OpenAI implements Client against any OpenAI-compatible chat API.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// OpenAIOption configures the OpenAI client.
type OpenAIOption func(*openai.ClientConfig, *OpenAI)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(cfg *openai.ClientConfig, _ *OpenAI) {
		if url != "" {
			cfg.BaseURL = url
		}
	}
}

// WithModel sets the default model for requests that don't name one.
func WithModel(model string) OpenAIOption {
	return func(_ *openai.ClientConfig, c *OpenAI) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(cfg *openai.ClientConfig, _ *OpenAI) {
		if hc != nil {
			cfg.HTTPClient = hc
		}
	}
}

// WithTimeout sets a per-call deadline. Default: 5 minutes.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(_ *openai.ClientConfig, c *OpenAI) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewOpenAI creates a client for an OpenAI-compatible API.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	c := &OpenAI{
		model:   openai.GPT4oMini,
		timeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg, c)
	}
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

// Complete implements Client.
func (c *OpenAI) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classifyAPIError(req.Node, err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	return &Response{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Usage: TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Duration: time.Since(start),
	}, nil
}

// classifyAPIError maps API failures onto retry categories: rate limits
// and server errors retry, auth and bad-request errors do not.
func classifyAPIError(node string, err error) error {
	wrapped := err
	if node != "" {
		wrapped = fmt.Errorf("node %s: %w", node, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return wferrors.Transient(wrapped)
		case apiErr.HTTPStatusCode >= 500:
			return wferrors.Transient(wrapped)
		case apiErr.HTTPStatusCode == http.StatusUnauthorized,
			apiErr.HTTPStatusCode == http.StatusForbidden,
			apiErr.HTTPStatusCode == http.StatusBadRequest:
			return wferrors.Permanent(wrapped)
		}
	}
	// Network-level failures fall through to heuristic categorization.
	return wrapped
}

var _ Client = (*OpenAI)(nil)
