package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"
	DefaultRegion        = "in-en"
	DefaultSafeSearch    = "moderate"
)

// DuckDuckGo searches the JavaScript-free DuckDuckGo endpoint and scrapes result blocks.
type DuckDuckGo struct {
	baseURL   *url.URL
	userAgent string
	http      *http.Client
}

// DuckDuckGoConfig configures the backend. BaseURL is for proxies and tests.
type DuckDuckGoConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

func NewDuckDuckGo(cfg DuckDuckGoConfig) (*DuckDuckGo, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultDuckDuckGoURL
	}
	u, err := parseBaseURL(raw)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "Mozilla/5.0"
	}
	return &DuckDuckGo{
		baseURL:   u,
		userAgent: ua,
		http:      &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse search base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("search base URL must include a host (got %q)", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// SafeSearchParam maps a safe-search level to DuckDuckGo's kp value.
func SafeSearchParam(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "strict", "on":
		return "1"
	case "off":
		return "-2"
	default:
		return "-1"
	}
}

// Search pages through results until MaxResults are collected or a page comes back empty.
func (d *DuckDuckGo) Search(ctx context.Context, q Query) ([]Result, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, nil
	}
	max := q.MaxResults
	if max <= 0 {
		max = ResultsPerPage
	}
	region := strings.TrimSpace(q.Region)
	if region == "" {
		region = DefaultRegion
	}

	var out []Result
	for offset := 0; len(out) < max; {
		page, err := d.page(ctx, text, region, SafeSearchParam(q.SafeSearch), offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		out = append(out, page...)
		offset += len(page)
	}
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (d *DuckDuckGo) page(ctx context.Context, text, region, kp string, offset int) ([]Result, error) {
	v := url.Values{}
	v.Set("q", text)
	v.Set("kl", region)
	v.Set("kp", kp)
	if offset > 0 {
		v.Set("s", strconv.Itoa(offset))
		v.Set("dc", strconv.Itoa(offset+1))
	}
	u := *d.baseURL
	u.RawQuery = v.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", text, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, newHTTPError("search", resp, b)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}
	return parseResults(doc), nil
}

// parseResults reads organic result blocks: <div class="result"> with an
// <a class="result__a"> link and a .result__snippet. Ads are skipped.
func parseResults(doc *goquery.Document) []Result {
	var out []Result
	doc.Find("div.result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		link := s.Find("a.result__a").First()
		href, _ := link.Attr("href")
		r := Result{
			Href:  decodeRedirect(strings.TrimSpace(href)),
			Title: collapse(link.Text()),
			Body:  collapse(s.Find(".result__snippet").First().Text()),
		}
		if r.Href == "" && r.Body == "" && r.Title == "" {
			return
		}
		out = append(out, r)
	})
	return out
}

// decodeRedirect unwraps DuckDuckGo's /l/?uddg=<urlencoded> tracking links.
func decodeRedirect(href string) string {
	if href == "" || href == "#" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if uddg := u.Query().Get("uddg"); uddg != "" {
		return uddg
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
