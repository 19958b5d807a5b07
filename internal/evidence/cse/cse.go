// Package cse searches the web with the Google Custom Search JSON API.
package cse

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/palantir/palantir-compute-module-feature-matrix/internal/enrich"
	"github.com/palantir/palantir-compute-module-feature-matrix/internal/evidence"
)

// MaxResults is the largest page size the API accepts.
const MaxResults = 10

type Config struct {
	APIKey   string
	EngineID string

	// NumResults is how many result snippets to join. Defaults to MaxResults.
	NumResults int

	// BaseURL overrides the API endpoint. Useful for proxies/testing.
	BaseURL string
}

type Searcher struct {
	svc      *customsearch.Service
	engineID string
	num      int64
}

// New builds a searcher. Missing credentials are not an error here: every
// Search call reports enrich.ErrMissingCredential instead.
func New(ctx context.Context, cfg Config) (*Searcher, error) {
	num := cfg.NumResults
	if num <= 0 || num > MaxResults {
		num = MaxResults
	}
	s := &Searcher{engineID: strings.TrimSpace(cfg.EngineID), num: int64(num)}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return s, nil
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithEndpoint(base))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("custom search client: %w", err)
	}
	s.svc = svc
	return s, nil
}

// Search returns the result snippets for query joined by single spaces.
func (s *Searcher) Search(ctx context.Context, query string) (evidence.Result, error) {
	if s.svc == nil {
		return evidence.Result{}, fmt.Errorf("custom search: GOOGLE_API_KEY: %w", enrich.ErrMissingCredential)
	}
	if s.engineID == "" {
		return evidence.Result{}, fmt.Errorf("custom search: GOOGLE_CSE_ID: %w", enrich.ErrMissingCredential)
	}

	res, err := s.svc.Cse.List().Context(ctx).Q(query).Cx(s.engineID).Num(s.num).Do()
	if err != nil {
		return evidence.Result{}, fmt.Errorf("custom search: %w", err)
	}

	out := evidence.Result{Queries: []string{query}}
	var snippets []string
	for _, item := range res.Items {
		if item == nil {
			continue
		}
		if item.Snippet != "" {
			snippets = append(snippets, item.Snippet)
		}
		if item.Link != "" {
			out.Sources = append(out.Sources, item.Link)
		}
	}
	if len(res.Items) == 0 {
		out.Text = evidence.NoGoodResult
		return out, nil
	}
	out.Text = strings.Join(snippets, " ")
	return out, nil
}
