// Package mockbackends fakes the remote services the scraper talks to: a
// DuckDuckGo-shaped HTML search page, an OpenAI-compatible chat completions
// endpoint, and static company sites.
package mockbackends

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Route prefixes served by Handler.
const (
	SearchPath      = "/html/"
	CompletionsPath = "/openai/v1/chat/completions"
	SitesPrefix     = "/sites/"
)

// DefaultPageSize is how many results one search page holds.
const DefaultPageSize = 10

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
	Query  string
}

// Hit is one search result. Path is served by this server under SitesPrefix;
// URL is used verbatim when set. Hits with neither carry only a snippet.
type Hit struct {
	Path    string
	URL     string
	Title   string
	Snippet string
}

// Server implements the mock endpoints.
type Server struct {
	mu    sync.Mutex
	calls []Call

	hits     []Hit
	pageSize int
	sites    map[string]string

	answers       map[string]string
	defaultAnswer string
	rateLimited   int
	prompts       []string

	expectedAuthorization string
}

// New constructs an empty mock server.
func New() *Server {
	return &Server{
		pageSize:      DefaultPageSize,
		sites:         make(map[string]string),
		answers:       make(map[string]string),
		defaultAnswer: "Unknown",
	}
}

// RequireBearerToken enforces that completion requests carry the token.
// If token is empty, authorization is not enforced.
func (s *Server) RequireBearerToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token = strings.TrimSpace(token)
	if token == "" {
		s.expectedAuthorization = ""
		return
	}
	s.expectedAuthorization = "Bearer " + token
}

// AddSite serves html at SitesPrefix+name.
func (s *Server) AddSite(name, html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[strings.TrimPrefix(name, "/")] = html
}

// SetSearchResults replaces the result list returned for every query.
func (s *Server) SetSearchResults(hits ...Hit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = append([]Hit(nil), hits...)
}

// SetPageSize changes how many results one search page holds.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.pageSize = n
	}
}

// SetAnswer makes prompts ending in question answer with answer.
func (s *Server) SetAnswer(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[question] = answer
}

// SetDefaultAnswer is returned for questions without a SetAnswer entry.
func (s *Server) SetDefaultAnswer(answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultAnswer = answer
}

// RateLimitNext makes the next n completion requests fail with 429.
func (s *Server) RateLimitNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimited = n
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(SearchPath, s.handleSearch)
	mux.HandleFunc(CompletionsPath, s.handleCompletions)
	mux.HandleFunc(SitesPrefix, s.handleSite)
	return mux
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsTo counts calls whose path starts with prefix.
func (s *Server) CallsTo(prefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// Prompts returns the user messages received by the completions endpoint.
func (s *Server) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}

func (s *Server) recordCall(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery})
}

type resultView struct {
	Href    string
	Title   string
	Snippet string
}

var searchPage = template.Must(template.New("search").Parse(`<!doctype html>
<html><body><div id="links" class="results">
{{range .}}<div class="result results_links web-result">
<h2 class="result__title"><a rel="nofollow" class="result__a" href="{{.Href}}">{{.Title}}</a></h2>
<a class="result__snippet" href="{{.Href}}">{{.Snippet}}</a>
</div>
{{else}}<div class="no-results">No results.</div>
{{end}}</div></body></html>
`))

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(r.FormValue("q")) == "" {
		http.Error(w, "missing q", http.StatusBadRequest)
		return
	}
	offset, _ := strconv.Atoi(r.FormValue("s"))
	if offset < 0 {
		offset = 0
	}

	s.mu.Lock()
	hits := s.hits
	size := s.pageSize
	s.mu.Unlock()

	base := "http://" + r.Host
	var views []resultView
	for i := offset; i < len(hits) && i < offset+size; i++ {
		h := hits[i]
		target := h.URL
		if target == "" && h.Path != "" {
			target = base + SitesPrefix + strings.TrimPrefix(h.Path, "/")
		}
		v := resultView{Title: h.Title, Snippet: h.Snippet}
		if target != "" {
			v.Href = "//duckduckgo.com/l/?uddg=" + url.QueryEscape(target) + "&rut=mock"
		}
		views = append(views, v)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := searchPage.Execute(w, views); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type chatRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	expected := s.expectedAuthorization
	s.mu.Unlock()
	if expected != "" && r.Header.Get("Authorization") != expected {
		writeAPIError(w, http.StatusUnauthorized, "invalid_api_key", "Invalid API Key")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_request_error", "invalid json: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeAPIError(w, http.StatusBadRequest, "invalid_request_error", "messages is required")
		return
	}
	prompt := req.Messages[len(req.Messages)-1].Content

	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	if s.rateLimited > 0 {
		s.rateLimited--
		s.mu.Unlock()
		writeAPIError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit reached, please retry")
		return
	}
	answer := s.defaultAnswer
	question := prompt
	if i := strings.LastIndex(prompt, "Question:\n"); i >= 0 {
		question = strings.TrimSpace(prompt[i+len("Question:\n"):])
	}
	if a, ok := s.answers[question]; ok {
		answer = a
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   req.Model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": answer},
			"finish_reason": "stop",
		}},
	})
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    code,
			"code":    code,
		},
	})
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	name := strings.TrimPrefix(r.URL.Path, SitesPrefix)

	s.mu.Lock()
	body, ok := s.sites[name]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, body)
}
