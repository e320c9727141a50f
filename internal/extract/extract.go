// Package extract pulls contact emails and readable text out of fetched pages.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var emailRe = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)

// Emails returns the distinct email-shaped substrings of raw in first-seen order.
// Matching is case-sensitive and literal: no lowercasing and no false-positive filtering.
func Emails(raw string) []string {
	matches := emailRe.FindAllString(raw, -1)
	if len(matches) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Text derives human-readable text from an HTML document: script and style bodies are
// dropped, text nodes are joined by a single space and whitespace runs collapse.
func Text(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return CleanText(page)
	}
	doc.Find("script, style, noscript, template").Remove()

	var parts []string
	doc.Contents().Each(func(_ int, s *goquery.Selection) {
		collectText(s, &parts)
	})
	return strings.Join(parts, " ")
}

func collectText(s *goquery.Selection, parts *[]string) {
	for _, n := range s.Nodes {
		if n.Type == html.TextNode {
			if t := CleanText(n.Data); t != "" {
				*parts = append(*parts, t)
			}
		}
	}
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		collectText(c, parts)
	})
}

// CleanText collapses whitespace runs (including non-breaking spaces) to single spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns at most n characters (runes) of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
