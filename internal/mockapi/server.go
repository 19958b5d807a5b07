package mockapi

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"sync"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
	// Query is the search query for Custom Search calls.
	Query string
	// Prompt is the concatenated text parts for Gemini calls.
	Prompt string
	// Temperature is the requested sampling temperature for Gemini calls, if any.
	Temperature *float64
	// Grounded reports whether a Gemini call enabled the GoogleSearch tool.
	Grounded bool
}

// Server implements the subset of the Custom Search JSON API and the Gemini
// generateContent API used by the enricher.
type Server struct {
	mu    sync.Mutex
	calls []Call

	apiKey string

	snippets     map[string][]string
	searchStatus int

	modelReply  func(prompt string) string
	modelStatus int
	modelBlock  string
}

func New() *Server {
	return &Server{snippets: make(map[string][]string)}
}

// RequireAPIKey rejects calls that do not carry key. Empty disables the check.
func (s *Server) RequireAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = strings.TrimSpace(key)
}

// SetSnippets configures the search result snippets returned for query.
func (s *Server) SetSnippets(query string, snippets ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snippets[query] = snippets
}

// FailSearch makes every search call fail with status. Zero restores normal behavior.
func (s *Server) FailSearch(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchStatus = status
}

// SetModelReply overrides the model's text reply.
func (s *Server) SetModelReply(fn func(prompt string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelReply = fn
}

// FailModel makes every model call fail with status. Zero restores normal behavior.
func (s *Server) FailModel(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelStatus = status
}

// BlockModel makes every model call return a candidate with no content and
// the given finish reason, e.g. "SAFETY". Empty restores normal behavior.
func (s *Server) BlockModel(finishReason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelBlock = finishReason
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/customsearch/v1", s.handleSearch)
	mux.HandleFunc("/", s.handleGenerate)
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

func (s *Server) recordCall(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func (s *Server) authorize(w http.ResponseWriter, got string) bool {
	s.mu.Lock()
	expected := s.apiKey
	s.mu.Unlock()

	if expected == "" || got == expected {
		return true
	}
	writeError(w, http.StatusForbidden, "API key not valid. Please pass a valid API key.")
	return false
}

type searchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	s.recordCall(Call{Method: r.Method, Path: r.URL.Path, Query: query})
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.authorize(w, r.URL.Query().Get("key")) {
		return
	}

	s.mu.Lock()
	status := s.searchStatus
	snippets := s.snippets[query]
	s.mu.Unlock()

	if status != 0 {
		writeError(w, status, http.StatusText(status))
		return
	}

	items := make([]searchItem, 0, len(snippets))
	for i, snip := range snippets {
		items = append(items, searchItem{
			Title:   query,
			Link:    "https://search.example.test/" + strings.ReplaceAll(query, " ", "-") + "/" + string(rune('a'+i)),
			Snippet: snip,
		})
	}
	body := map[string]any{"kind": "customsearch#search"}
	if len(items) > 0 {
		body["items"] = items
	}
	writeJSON(w, http.StatusOK, body)
}

type generateRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig *struct {
		Temperature *float64 `json:"temperature"`
	} `json:"generationConfig"`
	Tools []map[string]json.RawMessage `json:"tools"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, ":generateContent") {
		http.NotFound(w, r)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	var parts []string
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			parts = append(parts, p.Text)
		}
	}
	call := Call{Method: r.Method, Path: r.URL.Path, Prompt: strings.Join(parts, "\n")}
	if req.GenerationConfig != nil {
		call.Temperature = req.GenerationConfig.Temperature
	}
	for _, tool := range req.Tools {
		if _, ok := tool["googleSearch"]; ok {
			call.Grounded = true
		}
	}
	s.recordCall(call)

	key := r.Header.Get("x-goog-api-key")
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	if !s.authorize(w, key) {
		return
	}

	s.mu.Lock()
	status := s.modelStatus
	reply := s.modelReply
	block := s.modelBlock
	s.mu.Unlock()

	if status != 0 {
		writeError(w, status, http.StatusText(status))
		return
	}
	if block != "" {
		writeJSON(w, http.StatusOK, map[string]any{"candidates": []any{map[string]any{"finishReason": block}}})
		return
	}

	candidate := map[string]any{"finishReason": "STOP"}
	var text string
	switch {
	case reply != nil:
		text = reply(call.Prompt)
	case call.Grounded:
		var uris []map[string]any
		text, uris = s.groundedSummary(call.Prompt)
		candidate["groundingMetadata"] = map[string]any{
			"webSearchQueries": []string{searchedQuery(call.Prompt)},
			"groundingChunks":  uris,
		}
	default:
		text = judgeReply(call.Prompt)
	}
	candidate["content"] = map[string]any{
		"role":  "model",
		"parts": []map[string]any{{"text": text}},
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": []any{candidate}})
}

var (
	searchForRe = regexp.MustCompile(`(?m)^Query: (.+)$`)
	contextRe   = regexp.MustCompile(`(?s)Context:\n(.*)\n\nQuestion:`)
	featureRe   = regexp.MustCompile(`feature called "([^"]*)"`)
)

func searchedQuery(prompt string) string {
	m := searchForRe.FindStringSubmatch(prompt)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func (s *Server) groundedSummary(prompt string) (string, []map[string]any) {
	query := searchedQuery(prompt)
	s.mu.Lock()
	snippets := s.snippets[query]
	s.mu.Unlock()

	chunks := make([]map[string]any, 0, len(snippets))
	for i := range snippets {
		chunks = append(chunks, map[string]any{
			"web": map[string]any{"uri": "https://search.example.test/" + strings.ReplaceAll(query, " ", "-") + "/" + string(rune('a'+i))},
		})
	}
	return strings.Join(snippets, " "), chunks
}

// judgeReply answers "Yes" when the feature name appears in the context.
func judgeReply(prompt string) string {
	ctxMatch := contextRe.FindStringSubmatch(prompt)
	featMatch := featureRe.FindStringSubmatch(prompt)
	if ctxMatch == nil || featMatch == nil {
		return "No"
	}
	if strings.Contains(strings.ToLower(ctxMatch[1]), strings.ToLower(featMatch[1])) {
		return "Yes"
	}
	return "No"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": msg,
			"status":  strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_")),
		},
	})
}
