// Package evidence turns a search query into free-text evidence for the judge.
package evidence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/palantir/palantir-compute-module-feature-matrix/internal/enrich"
	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/redact"
)

const (
	// NoResults replaces the evidence when the search call fails.
	NoResults = "No search results found or error occurred."
	// NoGoodResult is the evidence for a search that succeeded with zero hits.
	NoGoodResult = "No good Google Search Result was found"
)

// Result is what a search backend found for one query.
type Result struct {
	Text string

	// Optional audit fields.
	Sources []string
	Queries []string
}

// Searcher performs a single web search.
type Searcher interface {
	Search(ctx context.Context, query string) (Result, error)
}

// Fetcher wraps a Searcher so that a failed search never reaches the caller.
type Fetcher struct {
	searcher Searcher
	logger   *zap.Logger
}

func NewFetcher(searcher Searcher, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{searcher: searcher, logger: logger}
}

// Fetch returns the search evidence for query, or NoResults with the
// classified failure when the search fails.
func (f *Fetcher) Fetch(ctx context.Context, query string) enrich.Outcome {
	start := time.Now()
	res, err := f.searcher.Search(ctx, query)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		out := enrich.Degraded(NoResults, err)
		f.logger.Warn("error during search",
			zap.String("query", query),
			zap.Stringer("failure", out.Failure),
			zap.Duration("duration", elapsed),
			zap.String("error", redact.Secrets(err.Error())),
		)
		return out
	}

	f.logger.Debug("search response",
		zap.String("query", query),
		zap.Duration("duration", elapsed),
		zap.Int("evidence_bytes", len(res.Text)),
		zap.Strings("sources", res.Sources),
		zap.Strings("web_search_queries", res.Queries),
	)
	return enrich.Succeeded(res.Text)
}
