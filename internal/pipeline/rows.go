package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/palantir/palantir-compute-module-feature-matrix/internal/enrich"
	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/core"
	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/worker"
)

// DefaultFeatureColumn is the input column holding the feature name.
const DefaultFeatureColumn = "Features"

// ErrNoCompetitor is returned when no competitor column name was given.
var ErrNoCompetitor = errors.New("competitor name is required")

type Options struct {
	// Competitor names both the search subject and the output column.
	Competitor    string
	FeatureColumn string

	Workers        int
	RateLimitRPS   float64
	RequestTimeout time.Duration
}

// MissingFieldError aborts a run when a row has no feature column.
type MissingFieldError struct {
	Row   int
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("row %d: missing required field %q", e.Row, e.Field)
}

// Fetcher returns search evidence for a query and never fails.
type Fetcher interface {
	Fetch(ctx context.Context, query string) enrich.Outcome
}

// Judge classifies a feature against evidence and never fails.
type Judge interface {
	Judge(ctx context.Context, evidence, feature string) enrich.Outcome
}

// Summary describes a completed run.
type Summary struct {
	Rows           int
	SearchFailures int
	JudgeFailures  int
	Duration       time.Duration
}

// Query builds the web search query for a competitor feature.
func Query(competitor, feature string) string {
	return competitor + " " + feature
}

type task struct {
	row     int
	rec     core.Record
	feature string
}

type verdict struct {
	evidence       enrich.Outcome
	classification enrich.Outcome
}

// EnrichRecords reads every record from src, classifies its feature for
// opts.Competitor, and writes the record with the classification added under
// the competitor column to sink, in input order.
//
// Search and model failures degrade the row to sentinel values and never stop
// the run. A record without the feature column stops the run with a
// *MissingFieldError; records before it have already been written.
func EnrichRecords(
	ctx context.Context,
	src core.Source,
	sink core.Sink,
	fetcher Fetcher,
	judge Judge,
	opts Options,
	logger *zap.Logger,
) (Summary, error) {
	if opts.Competitor == "" {
		return Summary{}, ErrNoCompetitor
	}
	if opts.FeatureColumn == "" {
		opts.FeatureColumn = DefaultFeatureColumn
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	start := time.Now()
	var summary Summary
	read := 0

	next := func(ctx context.Context) (task, error) {
		rec, err := src.Next(ctx)
		if err != nil {
			return task{}, err
		}
		read++
		feature, ok := rec.Get(opts.FeatureColumn)
		if !ok {
			return task{}, &MissingFieldError{Row: read, Field: opts.FeatureColumn}
		}
		logger.Info("processing feature", zap.Int("row", read), zap.String("feature", feature))
		return task{row: read, rec: rec, feature: feature}, nil
	}

	process := func(ctx context.Context, t task) verdict {
		query := Query(opts.Competitor, t.feature)
		logger.Info("searching", zap.Int("row", t.row), zap.String("query", query))
		ev := fetcher.Fetch(ctx, query)
		cls := judge.Judge(ctx, ev.Text, t.feature)
		if cls.OK() {
			logger.Info("model response", zap.Int("row", t.row), zap.String("response", cls.Text))
		}
		return verdict{evidence: ev, classification: cls}
	}

	emit := func(t task, v verdict) error {
		t.rec.Set(opts.Competitor, v.classification.Text)
		if err := sink.Write(ctx, t.rec); err != nil {
			return fmt.Errorf("write row %d: %w", t.row, err)
		}
		summary.Rows++
		if !v.evidence.OK() {
			summary.SearchFailures++
		}
		if !v.classification.OK() {
			summary.JudgeFailures++
		}
		logger.Info(t.feature+" : "+v.classification.Text,
			zap.Int("row", t.row),
			zap.String("competitor", opts.Competitor),
		)
		return nil
	}

	err := worker.Stream(ctx, next, process, emit, worker.Options{
		Workers:        opts.Workers,
		RequestTimeout: opts.RequestTimeout,
		RateLimitRPS:   opts.RateLimitRPS,
	})
	summary.Duration = time.Since(start).Round(time.Millisecond)
	if err != nil {
		return summary, err
	}
	return summary, nil
}
