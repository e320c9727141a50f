// Package fetch retrieves raw page content for candidate lead sites.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Mozilla/5.0"

	// DefaultMaxBytes caps how much of a response body is kept.
	DefaultMaxBytes int64 = 5 << 20
)

var (
	// ErrStatus is returned for any response other than 200 OK.
	ErrStatus = errors.New("unexpected status")
	// ErrEmpty is returned when a 200 response carries no body.
	ErrEmpty = errors.New("empty body")
)

// StatusError reports a non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Config controls the fetcher. Zero values fall back to the defaults above.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64

	// Client overrides the HTTP client (tests). Timeout is still applied per request.
	Client *http.Client
}

// Fetcher issues a single GET per URL: no retries and no redirects beyond net/http defaults.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	maxBytes  int64
}

// New returns a Fetcher with cfg's zero fields set to their defaults.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{
		client:    client,
		timeout:   cfg.Timeout,
		userAgent: strings.TrimSpace(cfg.UserAgent),
		maxBytes:  cfg.MaxBytes,
	}
}

// Fetch returns the decoded body of url when the server answers 200 OK.
// Any other status, a timeout, a transport failure or an empty body is an error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, f.maxBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("fetch %s: decode: %w", url, err)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("fetch %s: read body: %w", url, err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("fetch %s: %w", url, ErrEmpty)
	}
	return string(b), nil
}
