// Package groq is a classify.Backend for Groq's OpenAI-compatible chat completions API.
package groq

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/shpitdev/leadscraper/internal/classify"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama3-8b-8192"
)

// Config configures a Backend. Only APIKey is required.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the API base URL. Useful for proxies/testing.
	BaseURL string

	HTTPClient *http.Client
}

// Backend sends prompts to a Groq chat model.
type Backend struct {
	client *openai.Client
	model  string
}

// New returns a Backend for cfg. It fails without an API key.
func New(cfg Config) (*Backend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	oc := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	oc.BaseURL = DefaultBaseURL
	if strings.TrimSpace(cfg.BaseURL) != "" {
		oc.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return &Backend{client: openai.NewClientWithConfig(oc), model: model}, nil
}

func (b *Backend) Model() string { return b.model }

// Complete sends prompt as a single user message and returns the first choice.
// A 429 response is reported as classify.ErrRateLimited.
func (b *Backend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		// go-openai drops a zero temperature from the payload.
		Temperature: math.SmallestNonzeroFloat32,
		MaxTokens:   classify.MaxTokens,
	})
	if err != nil {
		return "", classifyErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", classify.ErrEmptyResponse
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", classify.ErrEmptyResponse
	}
	return content, nil
}

func classifyErr(err error) error {
	if statusCode(err) == http.StatusTooManyRequests {
		return classify.RateLimited(err)
	}
	return fmt.Errorf("groq: %w", err)
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
