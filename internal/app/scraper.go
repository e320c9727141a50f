package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shpitdev/leadscraper/internal/classify"
	"github.com/shpitdev/leadscraper/internal/classify/gemini"
	"github.com/shpitdev/leadscraper/internal/classify/groq"
	"github.com/shpitdev/leadscraper/internal/config"
	"github.com/shpitdev/leadscraper/internal/fetch"
	"github.com/shpitdev/leadscraper/internal/metrics"
	"github.com/shpitdev/leadscraper/internal/pipeline"
	"github.com/shpitdev/leadscraper/internal/search"
	"github.com/shpitdev/leadscraper/pkg/pipeline/redact"
)

// Scraper runs the lead pipeline for one configuration. It is safe for
// sequential reuse across runs; each run gets its own run ID.
type Scraper struct {
	cfg      config.Config
	searcher search.Searcher
	fetcher  pipeline.Fetcher
	backend  classify.Backend
	model    string
	metrics  *metrics.Metrics
	logger   *log.Logger
}

// Option customizes a Scraper.
type Option func(*Scraper)

// WithSearcher replaces the configured DuckDuckGo backend.
func WithSearcher(s search.Searcher) Option { return func(sc *Scraper) { sc.searcher = s } }

// WithFetcher replaces the HTTP page fetcher.
func WithFetcher(f pipeline.Fetcher) Option { return func(sc *Scraper) { sc.fetcher = f } }

// WithMetrics records run counters on m.
func WithMetrics(m *metrics.Metrics) Option { return func(sc *Scraper) { sc.metrics = m } }

// WithLogger sends run logs to l instead of stdout.
func WithLogger(l *log.Logger) Option { return func(sc *Scraper) { sc.logger = l } }

// NewScraper wires a Scraper around a completion backend.
func NewScraper(cfg config.Config, backend classify.Backend, model string, opts ...Option) (*Scraper, error) {
	s := &Scraper{cfg: cfg, backend: backend, model: model}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	if s.searcher == nil {
		ddg, err := search.NewDuckDuckGo(search.DuckDuckGoConfig{
			BaseURL:   cfg.Search.BaseURL,
			UserAgent: cfg.Fetch.UserAgent,
		})
		if err != nil {
			return nil, err
		}
		s.searcher = ddg
	}
	if s.fetcher == nil {
		s.fetcher = fetch.New(fetch.Config{
			Timeout:   cfg.Fetch.Timeout,
			UserAgent: cfg.Fetch.UserAgent,
			MaxBytes:  cfg.Fetch.MaxBytes,
		})
	}
	return s, nil
}

// NewBackend builds the completion backend for cfg's provider.
func NewBackend(ctx context.Context, cfg config.Config, apiKey string) (classify.Backend, string, error) {
	switch cfg.Classifier.Provider {
	case config.ProviderGemini:
		b, err := gemini.New(ctx, gemini.Config{
			APIKey:  apiKey,
			Model:   cfg.Classifier.Model,
			BaseURL: cfg.Classifier.BaseURL,
		})
		if err != nil {
			return nil, "", err
		}
		return b, b.Model(), nil
	case config.ProviderGroq, "":
		b, err := groq.New(groq.Config{
			APIKey:  apiKey,
			Model:   cfg.Classifier.Model,
			BaseURL: cfg.Classifier.BaseURL,
		})
		if err != nil {
			return nil, "", err
		}
		return b, b.Model(), nil
	default:
		return nil, "", fmt.Errorf("unknown classifier provider %q", cfg.Classifier.Provider)
	}
}

// OutputDir is where result files are written.
func (s *Scraper) OutputDir() string { return s.cfg.Output.Dir }

// Run discovers, scrapes and classifies leads for query and writes them to the
// output directory.
func (s *Scraper) Run(ctx context.Context, query string, pages int) (pipeline.Result, error) {
	runID := uuid.NewString()
	logf := func(format string, args ...any) {
		prefix := make([]any, 0, len(args)+1)
		prefix = append(prefix, runID)
		prefix = append(prefix, args...)
		s.logger.Printf("run=%s "+format, prefix...)
	}
	runStart := time.Now()
	logf(
		"run start: query=%q pages=%d provider=%s model=%s region=%s safeSearch=%s maxRetries=%d timeout=%s pacing=%s fetchRateLimitRPS=%g",
		query,
		pages,
		s.cfg.Classifier.Provider,
		s.model,
		s.cfg.Search.Region,
		s.cfg.Search.SafeSearch,
		s.cfg.Classifier.MaxRetries,
		s.cfg.Classifier.Timeout,
		s.cfg.Classifier.Pacing,
		s.cfg.Fetch.RateLimitRPS,
	)

	classifier := classify.New(s.backend, classify.RetryPolicy{
		MaxRetries:     s.cfg.Classifier.MaxRetries,
		BackoffInitial: s.cfg.Classifier.BackoffInitial,
		BackoffMax:     s.cfg.Classifier.BackoffMax,
		JitterFrac:     s.cfg.Classifier.BackoffJitter,
		Timeout:        s.cfg.Classifier.Timeout,
		OnRetry: func(attempt int, err error, sleep time.Duration) {
			logf("classify retry: attempt=%d sleep=%s error=%q", attempt, sleep, redact.Secrets(err.Error()))
		},
	})
	traced := newTracedClassifier(classifier, s.logger, runID, s.cfg.Classifier.MaxRetries, s.metrics)

	pacing := s.cfg.Classifier.Pacing
	if pacing <= 0 {
		pacing = -1
	}
	p := &pipeline.Pipeline{
		Discoverer: search.Discoverer{
			Searcher:   s.searcher,
			Region:     s.cfg.Search.Region,
			SafeSearch: s.cfg.Search.SafeSearch,
		},
		Fetcher:    s.fetcher,
		Classifier: traced,
		Options: pipeline.Options{
			Pacing:            pacing,
			FetchRateLimitRPS: s.cfg.Fetch.RateLimitRPS,
			OutputDir:         s.cfg.Output.Dir,
			OnDiscover: func(urls []string) {
				logf("discovered %d urls", len(urls))
				if s.metrics != nil {
					s.metrics.URLsDiscovered.Add(float64(len(urls)))
				}
			},
			OnSkip: func(skip pipeline.Skip) {
				reason := skipReason(skip.Err)
				logf("url skipped: url=%q reason=%s error=%q", skip.URL, reason, redact.Secrets(skip.Err.Error()))
				if s.metrics != nil {
					s.metrics.URLsSkipped.WithLabelValues(reason).Inc()
				}
			},
		},
	}

	res, err := p.Run(ctx, query, pages)
	s.record(res, err)
	if err != nil {
		logf("run failed: duration=%s error=%q", time.Since(runStart).Round(time.Millisecond), redact.Secrets(err.Error()))
		return res, err
	}
	logf(
		"run complete: file=%s leads=%d skipped=%d duration=%s",
		res.File,
		len(res.Leads),
		len(res.Skipped),
		time.Since(runStart).Round(time.Millisecond),
	)
	return res, nil
}

func (s *Scraper) record(res pipeline.Result, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Leads.Add(float64(len(res.Leads)))
	switch {
	case err != nil:
		s.metrics.Runs.WithLabelValues(metrics.OutcomeError).Inc()
	case len(res.Leads) == 0:
		s.metrics.Runs.WithLabelValues(metrics.OutcomeNoLeads).Inc()
	default:
		s.metrics.Runs.WithLabelValues(metrics.OutcomeOK).Inc()
	}
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrNoEmail):
		return "no_email"
	case errors.Is(err, pipeline.ErrNoContent):
		return "no_content"
	default:
		return "error"
	}
}

// tracedClassifier logs every classifier question and its outcome.
type tracedClassifier struct {
	next       pipeline.Classifier
	logger     *log.Logger
	runID      string
	maxRetries int
	metrics    *metrics.Metrics

	mu    sync.Mutex
	calls int
}

func newTracedClassifier(next pipeline.Classifier, logger *log.Logger, runID string, maxRetries int, m *metrics.Metrics) *tracedClassifier {
	return &tracedClassifier{
		next:       next,
		logger:     logger,
		runID:      runID,
		maxRetries: maxRetries,
		metrics:    m,
	}
}

func (t *tracedClassifier) Classify(ctx context.Context, pageText, question string) (string, error) {
	call := t.nextCall()
	t.logger.Printf(
		"run=%s classify request: call=%d question=%q pageChars=%d maxRetries=%d",
		t.runID,
		call,
		question,
		len([]rune(pageText)),
		t.maxRetries,
	)

	start := time.Now()
	answer, err := t.next.Classify(ctx, pageText, question)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		outcome := "error"
		switch {
		case classify.IsRateLimited(err):
			outcome = "rate_limited"
		case errors.Is(err, classify.ErrEmptyResponse):
			outcome = "empty"
		}
		t.count(outcome)
		t.logger.Printf(
			"run=%s classify response: call=%d question=%q duration=%s status=%s answer=%q error=%q",
			t.runID,
			call,
			question,
			elapsed,
			outcome,
			answer,
			redact.Secrets(err.Error()),
		)
		return answer, err
	}

	t.count("ok")
	t.logger.Printf(
		"run=%s classify response: call=%d question=%q duration=%s status=ok answer=%q",
		t.runID,
		call,
		question,
		elapsed,
		strings.TrimSpace(answer),
	)
	return answer, nil
}

func (t *tracedClassifier) nextCall() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return t.calls
}

func (t *tracedClassifier) count(outcome string) {
	if t.metrics != nil {
		t.metrics.ClassifierCalls.WithLabelValues(outcome).Inc()
	}
}
