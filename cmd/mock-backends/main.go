package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/shpitdev/leadscraper/internal/classify"
	"github.com/shpitdev/leadscraper/pkg/mockbackends"
)

func main() {
	addr := defaultString("MOCK_BACKENDS_ADDR", ":8090")
	token := defaultString("MOCK_BACKENDS_TOKEN", "")

	fs := flag.NewFlagSet("mock-backends", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address (env: MOCK_BACKENDS_ADDR)")
	fs.StringVar(&token, "token", token, "Require this bearer token on completions (env: MOCK_BACKENDS_TOKEN)")
	rateLimited := fs.Int("rate-limit-first", 0, "Answer the first N completion requests with 429")
	_ = fs.Parse(os.Args[1:])

	srv := mockbackends.New()
	srv.RequireBearerToken(token)
	srv.RateLimitNext(*rateLimited)
	seedDemo(srv)

	_, _ = fmt.Fprintf(os.Stdout, "mock-backends listening on %s (search=%s completions=%s sites=%s)\n",
		addr, mockbackends.SearchPath, mockbackends.CompletionsPath, mockbackends.SitesPrefix)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// seedDemo publishes a handful of company sites and canned classifier answers.
func seedDemo(srv *mockbackends.Server) {
	srv.AddSite("acme-accounting", `<html><body><h1>Acme Accounting</h1>
<p>Bookkeeping, payroll and audit services for small businesses.</p>
<p>Contact: hello@acme-accounting.test</p></body></html>`)
	srv.AddSite("ledgerly", `<html><body><h1>Ledgerly</h1>
<p>Outsourced finance teams for startups. Email partners@ledgerly.test or sales@ledgerly.test.</p></body></html>`)
	srv.AddSite("quiet-co", `<html><body><h1>Quiet Co</h1><p>Call us, we do not do email.</p></body></html>`)

	srv.SetSearchResults(
		mockbackends.Hit{Path: "acme-accounting", Title: "Acme Accounting", Snippet: "Bookkeeping and payroll."},
		mockbackends.Hit{Path: "ledgerly", Title: "Ledgerly", Snippet: "Outsourced finance teams."},
		mockbackends.Hit{Path: "quiet-co", Title: "Quiet Co", Snippet: "No email here."},
	)

	srv.SetAnswer(classify.BusinessTypeQuestion, "B2B")
	srv.SetAnswer(classify.OutsourcingQuestion, "Yes, they offer outsourced accounting.")
	srv.SetAnswer(classify.IndustryQuestion, "Accounting and finance")
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
