package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shpitdev/leadscraper/internal/app"
	"github.com/shpitdev/leadscraper/internal/config"
	"github.com/shpitdev/leadscraper/internal/metrics"
	"github.com/shpitdev/leadscraper/internal/pipeline"
)

type stubRunner struct {
	dir   string
	leads []pipeline.Lead
	err   error

	calls int
	query string
	pages int
}

func (s *stubRunner) Run(ctx context.Context, query string, pages int) (pipeline.Result, error) {
	s.calls++
	s.query, s.pages = query, pages
	if s.err != nil {
		return pipeline.Result{}, s.err
	}
	name, err := pipeline.Store(ctx, s.dir, query, s.leads)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.Result{Query: query, Leads: s.leads, File: name}, nil
}

func newTestServer(t *testing.T, d app.ServerDeps) *httptest.Server {
	t.Helper()
	if d.Logger == nil {
		d.Logger = log.New(io.Discard, "", 0)
	}
	ts := httptest.NewServer(app.NewServer(d))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(b)
}

func postForm(t *testing.T, u string, form url.Values) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(t, req)
}

func get(t *testing.T, u string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return do(t, req)
}

var sampleLeads = []pipeline.Lead{
	{URL: "https://a.test", Email: "info@a.test", BusinessType: "B2B", Outsourcing: "Yes", Industry: "Finance"},
	{URL: "https://b.test", Email: "hi@b.test", BusinessType: "Mostly B2C <retail>", Outsourcing: "No", Industry: "Retail"},
}

func TestServer_IndexListsResultFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := pipeline.Store(context.Background(), dir, "old query", sampleLeads); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ts := newTestServer(t, app.ServerDeps{Runner: &stubRunner{dir: dir}, OutputDir: dir})

	resp, body := get(t, ts.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "old_query_leads.csv") || strings.Contains(body, "notes.txt") {
		t.Fatalf("unexpected file list:\n%s", body)
	}
	if !strings.Contains(body, `min="1" max="10" value="3"`) {
		t.Fatalf("expected page slider 1-10 defaulting to 3:\n%s", body)
	}

	if resp, _ := get(t, ts.URL+"/nope"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", resp.StatusCode)
	}
}

func TestServer_RunRendersLeadsAndDownload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := &stubRunner{dir: dir, leads: sampleLeads}
	ts := newTestServer(t, app.ServerDeps{Runner: runner, OutputDir: dir})

	resp, body := postForm(t, ts.URL+"/run", url.Values{"query": {"accounting firms"}, "pages": {"42"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d:\n%s", resp.StatusCode, body)
	}
	if runner.query != "accounting firms" || runner.pages != app.MaxPages {
		t.Fatalf("unexpected run args: query=%q pages=%d", runner.query, runner.pages)
	}
	for _, want := range []string{"Saved to accounting_firms_leads.csv", "info@a.test", "Mostly B2C &lt;retail&gt;", "/download?file=accounting_firms_leads.csv"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}

	resp, csvBody := get(t, ts.URL+"/download?file=accounting_firms_leads.csv")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, `attachment; filename="accounting_firms_leads.csv"`) {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if !strings.HasPrefix(csvBody, "URL,Email,B2B/B2C,Outsourcing?,Industry\n") {
		t.Fatalf("unexpected csv:\n%s", csvBody)
	}
}

func TestServer_RunWarningsAndErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		deps       func(dir string) app.ServerDeps
		query      string
		wantStatus int
		wantBody   string
		wantCalls  int
	}{
		{
			name: "missing_api_key",
			deps: func(dir string) app.ServerDeps {
				return app.ServerDeps{RunnerErr: config.ErrMissingAPIKey, OutputDir: dir}
			},
			query:      "accounting firms",
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "API key is not configured",
		},
		{
			name:       "blank_query",
			deps:       func(dir string) app.ServerDeps { return app.ServerDeps{Runner: &stubRunner{dir: dir}, OutputDir: dir} },
			query:      "   ",
			wantStatus: http.StatusBadRequest,
			wantBody:   "Please enter a query.",
		},
		{
			name:       "no_leads",
			deps:       func(dir string) app.ServerDeps { return app.ServerDeps{Runner: &stubRunner{dir: dir}, OutputDir: dir} },
			query:      "nothing here",
			wantStatus: http.StatusOK,
			wantBody:   "No leads found. Try another query.",
			wantCalls:  1,
		},
		{
			name: "run_failure_redacted",
			deps: func(dir string) app.ServerDeps {
				return app.ServerDeps{Runner: &stubRunner{dir: dir, err: errors.New("search failed: Authorization: Bearer sekrit")}, OutputDir: dir}
			},
			query:      "accounting firms",
			wantStatus: http.StatusBadGateway,
			wantBody:   "Bearer &lt;redacted&gt;",
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			d := tt.deps(dir)
			ts := newTestServer(t, d)
			resp, body := postForm(t, ts.URL+"/run", url.Values{"query": {tt.query}, "pages": {"2"}})
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d:\n%s", tt.wantStatus, resp.StatusCode, body)
			}
			if !strings.Contains(body, tt.wantBody) {
				t.Fatalf("body missing %q:\n%s", tt.wantBody, body)
			}
			if strings.Contains(body, "sekrit") {
				t.Fatalf("secret leaked into page")
			}
			if r, ok := d.Runner.(*stubRunner); ok && r.calls != tt.wantCalls {
				t.Fatalf("expected %d runs, got %d", tt.wantCalls, r.calls)
			}

			// The session stays usable after any outcome.
			if resp, _ := get(t, ts.URL+"/"); resp.StatusCode != http.StatusOK {
				t.Fatalf("index unavailable after run: %d", resp.StatusCode)
			}
		})
	}
}

func TestServer_DownloadRejectsTraversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ts := newTestServer(t, app.ServerDeps{Runner: &stubRunner{dir: dir}, OutputDir: dir})

	for _, name := range []string{"../secret_leads.csv", "..%2Fsecret_leads.csv", "config.yaml", ""} {
		resp, _ := get(t, ts.URL+"/download?file="+name)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("file=%q: expected 400, got %d", name, resp.StatusCode)
		}
	}
	if resp, _ := get(t, ts.URL+"/download?file=absent_leads.csv"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing file, got %d", resp.StatusCode)
	}
}

func TestServer_ExploreStoredFileWithFilter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := pipeline.Store(context.Background(), dir, "acme", sampleLeads); err != nil {
		t.Fatalf("Store: %v", err)
	}
	ts := newTestServer(t, app.ServerDeps{Runner: &stubRunner{dir: dir}, OutputDir: dir})

	resp, body := get(t, ts.URL+"/explore?file=acme_leads.csv&type=B2C")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d:\n%s", resp.StatusCode, body)
	}
	for _, want := range []string{"File loaded successfully!", "Total B2B: <strong>1</strong>", "Total B2C: <strong>1</strong>", "Industry vs Business Type", "b.test"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "<td>https://a.test</td>") {
		t.Fatalf("B2C filter should hide the B2B row:\n%s", body)
	}

	if resp, _ := get(t, ts.URL+"/explore?file=acme_leads.csv&type=B2G"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown filter, got %d", resp.StatusCode)
	}
}

func TestServer_ExploreUpload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ts := newTestServer(t, app.ServerDeps{Runner: &stubRunner{dir: dir}, OutputDir: dir})

	upload := func(content string) (*http.Response, string) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "upload.csv")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = io.WriteString(fw, content)
		if err := mw.Close(); err != nil {
			t.Fatalf("close multipart: %v", err)
		}
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/explore", &buf)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return do(t, req)
	}

	srcDir := t.TempDir()
	name, err := pipeline.Store(context.Background(), srcDir, "sample", sampleLeads)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	content, err := os.ReadFile(filepath.Join(srcDir, name))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	resp, body := upload(string(content))
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "upload.csv") || !strings.Contains(body, "a.test") {
		t.Fatalf("unexpected upload response %d:\n%s", resp.StatusCode, body)
	}

	resp, body = upload("name,email\nx,y\n")
	if resp.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(body, "missing required column") {
		t.Fatalf("expected schema error, got %d:\n%s", resp.StatusCode, body)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.Leads.Add(4)
	ts := newTestServer(t, app.ServerDeps{Metrics: m, OutputDir: t.TempDir()})

	if resp, body := get(t, ts.URL+"/healthz"); resp.StatusCode != http.StatusOK || body != "ok\n" {
		t.Fatalf("unexpected healthz %d %q", resp.StatusCode, body)
	}
	if _, body := get(t, ts.URL+"/metrics"); !strings.Contains(body, "leadscraper_leads_total 4") {
		t.Fatalf("metrics missing counter:\n%s", body)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/run", nil)
	if resp, _ := do(t, req); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
