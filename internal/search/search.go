// Package search discovers candidate company URLs for a free-text query.
package search

import (
	"context"
	"regexp"
	"strings"
)

// ResultsPerPage is how many results one requested page stands for.
const ResultsPerPage = 10

// Result is one search hit. Either field may be empty.
type Result struct {
	Href  string
	Title string
	Body  string
}

// Query parameterizes a backend search.
type Query struct {
	Text       string
	Region     string
	SafeSearch string
	MaxResults int
}

// Searcher is a web search backend.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, error)
}

var snippetURLRe = regexp.MustCompile(`https?://[^\s]+`)

// Discoverer turns a query into a discovery set of URLs.
type Discoverer struct {
	Searcher   Searcher
	Region     string
	SafeSearch string
}

// Discover searches for query asking for pageBound*ResultsPerPage results and returns the
// distinct URLs in first-seen order. A result contributes its direct link when present;
// otherwise every http(s) URL found in its snippet. Backend failures are returned as-is.
func (d Discoverer) Discover(ctx context.Context, query string, pageBound int) ([]string, error) {
	if pageBound < 1 {
		pageBound = 1
	}
	results, err := d.Searcher.Search(ctx, Query{
		Text:       query,
		Region:     d.Region,
		SafeSearch: d.SafeSearch,
		MaxResults: pageBound * ResultsPerPage,
	})
	if err != nil {
		return nil, err
	}
	return URLs(results), nil
}

// URLs collects the discovery set from raw results.
func URLs(results []Result) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(results))
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	for _, r := range results {
		if href := strings.TrimSpace(r.Href); href != "" {
			add(href)
			continue
		}
		if strings.Contains(r.Body, "http") {
			for _, m := range snippetURLRe.FindAllString(r.Body, -1) {
				add(m)
			}
		}
	}
	return out
}
