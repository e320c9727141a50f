// Package classify answers short natural-language questions about a company from the
// text of its website, using a hosted completion model.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shpitdev/leadscraper/internal/extract"
	"github.com/shpitdev/leadscraper/pkg/pipeline/core"
	"github.com/shpitdev/leadscraper/pkg/pipeline/worker"
)

// Unknown is the answer recorded whenever a classification cannot be completed.
const Unknown = "Unknown"

// MaxPageChars is how much page text is embedded in a prompt.
const MaxPageChars = 3000

// DefaultTimeout bounds one completion request.
const DefaultTimeout = 30 * time.Second

// Completion settings shared by every backend.
const (
	Temperature = 0
	MaxTokens   = 50
)

// The three attributes recorded for each lead.
const (
	BusinessTypeQuestion = "Is this company B2B or B2C?"
	OutsourcingQuestion  = "Does this company offer outsourcing?"
	IndustryQuestion     = "Which industry does this company belong to?"
)

var (
	// ErrRateLimited marks a 429 from the completion backend.
	ErrRateLimited = errors.New("completion backend rate limited")
	// ErrEmptyResponse marks a 200 response without usable message content.
	ErrEmptyResponse = errors.New("completion response has no content")
)

// RateLimited wraps a backend 429 so the classifier retries it.
func RateLimited(err error) error {
	return &core.TransientError{Err: fmt.Errorf("%w: %w", ErrRateLimited, err)}
}

// IsRateLimited reports whether err came from a 429.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// Backend sends one single-turn prompt to a completion endpoint and returns the raw
// message text. Backends return RateLimited errors for 429 and plain errors otherwise.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, prompt string) (string, error)

func (f BackendFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// RetryPolicy bounds how long a rate-limited question keeps being retried.
type RetryPolicy struct {
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// JitterFrac spreads backoff sleeps by +/- this fraction. Zero keeps them exact.
	JitterFrac float64

	// Timeout bounds one completion request. A request that runs out of time is
	// not retried. Zero means no per-request limit.
	Timeout time.Duration

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, sleep time.Duration)
}

// DefaultRetryPolicy starts at the classic two second pause and doubles up to 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     5,
		BackoffInitial: 2 * time.Second,
		BackoffMax:     30 * time.Second,
		Timeout:        DefaultTimeout,
	}
}

// Classifier asks a Backend questions about page text.
type Classifier struct {
	backend Backend
	retry   RetryPolicy
}

// New returns a Classifier that sends every question to backend under retry.
func New(backend Backend, retry RetryPolicy) *Classifier {
	return &Classifier{backend: backend, retry: retry}
}

// Classify returns the model's trimmed answer to question about pageText.
//
// The answer is always usable: on any failure it is Unknown and err says why.
// Rate limiting is retried with capped exponential backoff; nothing else is retried.
func (c *Classifier) Classify(ctx context.Context, pageText, question string) (string, error) {
	prompt := BuildPrompt(pageText, question)
	out, err := worker.Retry(ctx, func(reqCtx context.Context) (string, error) {
		return c.backend.Complete(reqCtx, prompt)
	}, worker.Options{
		MaxRetries:        c.retry.MaxRetries,
		RequestTimeout:    c.retry.Timeout,
		BackoffInitial:    c.retry.BackoffInitial,
		BackoffMax:        c.retry.BackoffMax,
		BackoffJitterFrac: c.retry.JitterFrac,
		ShouldRetry:       IsRateLimited,
		OnRetry:           c.retry.OnRetry,
	})
	if err != nil {
		return Unknown, err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return Unknown, ErrEmptyResponse
	}
	return out, nil
}

// BuildPrompt embeds at most MaxPageChars characters of page text and the question.
func BuildPrompt(pageText, question string) string {
	return "You are an intelligent classifier. Based on the following website content, " +
		"please answer the following question briefly.\n\n" +
		"---\nWebsite Content:\n" + extract.Truncate(pageText, MaxPageChars) + "\n---\n\n" +
		"Question:\n" + question
}
