// Package pipeline turns a search query into a persisted list of classified leads.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shpitdev/leadscraper/internal/classify"
	"github.com/shpitdev/leadscraper/internal/extract"
	"github.com/shpitdev/leadscraper/pkg/pipeline/core"
	"github.com/shpitdev/leadscraper/pkg/pipeline/worker"
)

// DefaultPacing is the pause after every classifier call.
const DefaultPacing = 500 * time.Millisecond

var (
	// ErrEmptyQuery rejects a blank search query before any work starts.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrNoContent marks a URL skipped because fetching it produced nothing usable.
	ErrNoContent = errors.New("no content")
	// ErrNoEmail marks a URL skipped because its page contains no email address.
	ErrNoEmail = errors.New("no email found")
)

// Discoverer returns candidate URLs for a query.
type Discoverer interface {
	Discover(ctx context.Context, query string, pageBound int) ([]string, error)
}

// Fetcher returns the raw body of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Classifier answers a question about page text. It returns classify.Unknown
// alongside any error.
type Classifier interface {
	Classify(ctx context.Context, pageText, question string) (string, error)
}

// Options tunes a Pipeline. The zero value is usable.
type Options struct {
	// Pacing is the pause after each classifier call. Zero uses DefaultPacing;
	// negative disables pacing.
	Pacing time.Duration

	// FetchRateLimitRPS spaces successive page fetches. Set to <=0 to disable.
	FetchRateLimitRPS float64

	// OutputDir receives the result file. Empty means the working directory.
	OutputDir string

	// OnDiscover, when set, receives the discovery set before any URL is visited.
	OnDiscover func(urls []string)
	// OnSkip, when set, is called as soon as a URL is skipped.
	OnSkip func(Skip)
}

// Skip records a discovered URL that produced no lead.
type Skip struct {
	URL string
	Err error
}

// Result is the outcome of one query.
type Result struct {
	Query      string
	Discovered []string
	Leads      []Lead
	Skipped    []Skip

	// File is the persisted file name; empty until Run stores the leads.
	File string
}

// Pipeline runs one query at a time through discovery, fetching and
// classification. All three collaborators are required.
type Pipeline struct {
	Discoverer Discoverer
	Fetcher    Fetcher
	Classifier Classifier
	Options    Options
}

// Run collects leads for query and persists all of them in one write.
// An interrupted or failed run writes nothing.
func (p *Pipeline) Run(ctx context.Context, query string, pageBound int) (Result, error) {
	res, err := p.Collect(ctx, query, pageBound)
	if err != nil {
		return res, err
	}
	name, err := Store(ctx, p.Options.OutputDir, query, res.Leads)
	if err != nil {
		return res, err
	}
	res.File = name
	return res, nil
}

// Collect discovers URLs for query and turns every page with an email into a Lead,
// in discovery order. Discovery errors and cancellation are returned; per-URL
// failures are reported in Result.Skipped.
func (p *Pipeline) Collect(ctx context.Context, query string, pageBound int) (Result, error) {
	res := Result{Query: query}
	if strings.TrimSpace(query) == "" {
		return res, ErrEmptyQuery
	}
	if p.Discoverer == nil || p.Fetcher == nil || p.Classifier == nil {
		return res, errors.New("pipeline requires a discoverer, fetcher and classifier")
	}

	urls, err := p.Discoverer.Discover(ctx, query, pageBound)
	if err != nil {
		return res, fmt.Errorf("discover: %w", err)
	}
	res.Discovered = urls
	if p.Options.OnDiscover != nil {
		p.Options.OnDiscover(urls)
	}

	var process core.Processor[string, Lead] = core.ProcessFunc[string, Lead](p.lead)
	var leads []Lead
	var skipped []Skip
	_, err = worker.ProcessAllWithCallback(ctx, urls, process.Process, func(item worker.Result[string, Lead]) error {
		if item.Err == nil {
			leads = append(leads, item.Output)
			return nil
		}
		skip := Skip{URL: item.Input, Err: item.Err}
		skipped = append(skipped, skip)
		if p.Options.OnSkip != nil {
			p.Options.OnSkip(skip)
		}
		return nil
	}, worker.Options{
		RateLimitRPS: p.Options.FetchRateLimitRPS,
	})
	if err != nil {
		return res, err
	}
	res.Leads, res.Skipped = leads, skipped
	return res, nil
}

func (p *Pipeline) lead(ctx context.Context, url string) (Lead, error) {
	page, err := p.Fetcher.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return Lead{}, ctx.Err()
		}
		return Lead{}, fmt.Errorf("%w: %w", ErrNoContent, err)
	}
	if page == "" {
		return Lead{}, ErrNoContent
	}

	emails := extract.Emails(page)
	if len(emails) == 0 {
		return Lead{}, ErrNoEmail
	}

	text := extract.Text(page)
	answers := make([]string, 0, 3)
	for _, q := range []string{classify.BusinessTypeQuestion, classify.OutsourcingQuestion, classify.IndustryQuestion} {
		// A failed classification is already Unknown; callers that care about
		// the cause wrap the Classifier.
		answer, _ := p.Classifier.Classify(ctx, text, q)
		if answer == "" {
			answer = classify.Unknown
		}
		answers = append(answers, answer)
		if err := worker.Sleep(ctx, p.pacing()); err != nil {
			return Lead{}, err
		}
	}

	return Lead{
		URL:          url,
		Email:        emails[0],
		BusinessType: answers[0],
		Outsourcing:  answers[1],
		Industry:     answers[2],
	}, nil
}

func (p *Pipeline) pacing() time.Duration {
	switch {
	case p.Options.Pacing < 0:
		return 0
	case p.Options.Pacing == 0:
		return DefaultPacing
	default:
		return p.Options.Pacing
	}
}
