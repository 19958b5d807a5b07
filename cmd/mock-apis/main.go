package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/palantir/palantir-compute-module-feature-matrix/internal/mockapi"
)

// mock-apis serves fake Custom Search and Gemini endpoints so the enricher can
// run offline:
//
//	enricher run --competitor Acme --search-base-url http://localhost:8080 --gemini-base-url http://localhost:8080
func main() {
	addr := defaultString("MOCK_APIS_ADDR", ":8080")
	apiKey := defaultString("MOCK_APIS_KEY", "")
	snippetsPath := defaultString("MOCK_APIS_SNIPPETS", "")

	fs := flag.NewFlagSet("mock-apis", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&apiKey, "api-key", apiKey, "Require this API key on every request (empty accepts any)")
	fs.StringVar(&snippetsPath, "snippets", snippetsPath, "File of '<query>\\t<snippet>' lines returned as search results")
	_ = fs.Parse(os.Args[1:])

	srv := mockapi.New()
	if apiKey != "" {
		srv.RequireAPIKey(apiKey)
	}
	if snippetsPath != "" {
		n, err := loadSnippets(srv, snippetsPath)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "load snippets: %v\n", err)
			os.Exit(1)
		}
		_, _ = fmt.Fprintf(os.Stdout, "loaded snippets for %d queries from %s\n", n, snippetsPath)
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-apis listening on %s\n", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func loadSnippets(srv *mockapi.Server, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	byQuery := make(map[string][]string)
	var order []string
	for i, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		query, snippet, ok := strings.Cut(line, "\t")
		if !ok {
			return 0, fmt.Errorf("%s:%d: expected '<query>\\t<snippet>'", path, i+1)
		}
		query = strings.TrimSpace(query)
		if _, seen := byQuery[query]; !seen {
			order = append(order, query)
		}
		byQuery[query] = append(byQuery[query], strings.TrimSpace(snippet))
	}
	for _, q := range order {
		srv.SetSnippets(q, byQuery[q]...)
	}
	return len(order), nil
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
