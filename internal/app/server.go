package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shpitdev/leadscraper/internal/explore"
	"github.com/shpitdev/leadscraper/internal/metrics"
	"github.com/shpitdev/leadscraper/internal/pipeline"
	"github.com/shpitdev/leadscraper/internal/version"
	"github.com/shpitdev/leadscraper/pkg/pipeline/io/local"
	"github.com/shpitdev/leadscraper/pkg/pipeline/redact"
)

// Page-count slider bounds.
const (
	MinPages     = 1
	MaxPages     = 10
	DefaultPages = 3
)

const maxUploadBytes = 10 << 20

// Runner runs one query end to end. *Scraper implements it.
type Runner interface {
	Run(ctx context.Context, query string, pages int) (pipeline.Result, error)
}

// ServerDeps wires the interactive HTTP surface.
type ServerDeps struct {
	// Runner is nil when the scraper cannot be built; RunnerErr says why and is
	// shown instead of running.
	Runner    Runner
	RunnerErr error

	OutputDir string
	Metrics   *metrics.Metrics
	Logger    *log.Logger
}

type server struct {
	d    ServerDeps
	tmpl *template.Template

	// One run at a time; the pipeline is strictly sequential.
	runMu sync.Mutex
}

// NewServer returns the handler for the interactive surface.
func NewServer(d ServerDeps) http.Handler {
	if d.Logger == nil {
		d.Logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	if strings.TrimSpace(d.OutputDir) == "" {
		d.OutputDir = "."
	}
	s := &server{d: d, tmpl: template.Must(template.New("page").Funcs(templateFuncs).Parse(pageTemplate))}

	mux := http.NewServeMux()
	mux.HandleFunc("/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: s.index,
	}))
	mux.HandleFunc("/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: s.run,
	}))
	mux.HandleFunc("/download", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: s.download,
	}))
	mux.HandleFunc("/explore", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  s.exploreFile,
		http.MethodPost: s.exploreUpload,
	}))
	mux.HandleFunc("/healthz", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: s.healthz,
	}))
	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics.Handler())
	}
	return logRequests(d.Logger, mux)
}

func methodMux(m map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := m[r.Method]; ok {
			h(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type pageData struct {
	Version string
	Query   string
	Pages   int

	Error   string
	Warning string
	Success string

	File    string
	Leads   []pipeline.Lead
	Files   []string
	Explore *exploreView
}

type exploreView struct {
	Source        string
	Stored        bool
	Filter        string
	Filters       []string
	Rows          []explore.Row
	Summary       []explore.ColumnSummary
	Totals        explore.Totals
	BusinessTypes []explore.Count
	Outsourcing   []explore.Count
	Industries    []explore.Count
	Domains       []explore.Count
	CrossTab      explore.CrossTab
}

func (s *server) newPage() pageData {
	p := pageData{Version: version.Current, Pages: DefaultPages}
	files, err := local.ListFiles(s.d.OutputDir, pipeline.FileSuffix)
	if err != nil {
		s.d.Logger.Printf("list result files: %s", redact.Secrets(err.Error()))
	}
	p.Files = files
	return p
}

func (s *server) render(w http.ResponseWriter, status int, p pageData) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, p); err != nil {
		s.d.Logger.Printf("render page: %v", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *server) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.render(w, http.StatusOK, s.newPage())
}

func (s *server) run(w http.ResponseWriter, r *http.Request) {
	p := s.newPage()
	p.Query = r.FormValue("query")
	p.Pages = clampPages(r.FormValue("pages"))

	if s.d.Runner == nil {
		msg := "The completion backend is not configured."
		if s.d.RunnerErr != nil {
			msg = redact.Secrets(s.d.RunnerErr.Error())
		}
		p.Error = msg
		s.render(w, http.StatusServiceUnavailable, p)
		return
	}
	if strings.TrimSpace(p.Query) == "" {
		p.Warning = "Please enter a query."
		s.render(w, http.StatusBadRequest, p)
		return
	}

	s.runMu.Lock()
	res, err := s.d.Runner.Run(r.Context(), p.Query, p.Pages)
	s.runMu.Unlock()
	if err != nil {
		p.Error = "Run failed: " + redact.Secrets(err.Error())
		s.render(w, http.StatusBadGateway, p)
		return
	}

	p.Files = s.newPage().Files
	p.File = res.File
	if len(res.Leads) == 0 {
		p.Warning = "No leads found. Try another query."
		s.render(w, http.StatusOK, p)
		return
	}
	p.Leads = res.Leads
	p.Success = fmt.Sprintf("Scraping complete. Saved to %s", res.File)
	s.render(w, http.StatusOK, p)
}

func (s *server) download(w http.ResponseWriter, r *http.Request) {
	path, name, err := s.resultPath(r.URL.Query().Get("file"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "open failed", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		http.Error(w, "stat failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, st.ModTime(), f)
}

func (s *server) exploreFile(w http.ResponseWriter, r *http.Request) {
	p := s.newPage()
	name := r.URL.Query().Get("file")
	if name == "" {
		p.Warning = "Please upload a file or select one from the list above."
		s.render(w, http.StatusOK, p)
		return
	}
	path, name, err := s.resultPath(name)
	if err != nil {
		p.Error = err.Error()
		s.render(w, http.StatusBadRequest, p)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		p.Error = fmt.Sprintf("cannot open %s", name)
		s.render(w, http.StatusNotFound, p)
		return
	}
	defer f.Close()
	s.renderExplore(w, p, name, true, f, r.URL.Query().Get("type"))
}

func (s *server) exploreUpload(w http.ResponseWriter, r *http.Request) {
	p := s.newPage()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		p.Error = "Upload a CSV file."
		s.render(w, http.StatusBadRequest, p)
		return
	}
	defer file.Close()
	s.renderExplore(w, p, filepath.Base(hdr.Filename), false, file, r.FormValue("type"))
}

func (s *server) renderExplore(w http.ResponseWriter, p pageData, source string, stored bool, r io.Reader, filter string) {
	d, err := explore.Load(r)
	if err != nil {
		p.Error = redact.Secrets(err.Error())
		s.render(w, http.StatusUnprocessableEntity, p)
		return
	}
	if filter == "" {
		filter = explore.All
	}
	filtered, err := d.Filter(filter)
	if err != nil {
		p.Error = err.Error()
		s.render(w, http.StatusBadRequest, p)
		return
	}

	v := &exploreView{
		Source:   source,
		Stored:   stored,
		Filter:   filter,
		Filters:  []string{explore.All, explore.B2B, explore.B2C},
		Rows:     filtered.Rows,
		Summary:  d.Summary(),
		Totals:   d.Totals(),
		Domains:  d.TopDomains(explore.DefaultTopDomains),
		CrossTab: d.CrossTab(),
	}
	v.BusinessTypes, _ = d.ValueCounts(pipeline.ColBusinessType)
	v.Outsourcing, _ = d.ValueCounts(pipeline.ColOutsourcing)
	v.Industries, _ = d.ValueCounts(pipeline.ColIndustry)

	p.Explore = v
	p.Success = "File loaded successfully!"
	s.render(w, http.StatusOK, p)
}

func (s *server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

// resultPath resolves a result file name inside the output directory. Only bare
// *_leads.csv names are accepted.
func (s *server) resultPath(name string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == ".." {
		return "", "", fmt.Errorf("invalid file name %q", name)
	}
	if !strings.HasSuffix(name, pipeline.FileSuffix) {
		return "", "", fmt.Errorf("not a result file: %q", name)
	}
	return filepath.Join(s.d.OutputDir, name), name, nil
}

func clampPages(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultPages
	}
	if n < MinPages {
		return MinPages
	}
	if n > MaxPages {
		return MaxPages
	}
	return n
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Printf("http request: method=%s path=%s status=%d duration=%s", r.Method, r.URL.Path, sw.status, time.Since(start).Round(time.Millisecond))
	})
}
