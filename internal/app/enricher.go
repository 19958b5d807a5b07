// Package app wires configuration, backends, and local files into a run.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/palantir/palantir-compute-module-feature-matrix/internal/config"
	"github.com/palantir/palantir-compute-module-feature-matrix/internal/enrich/gemini"
	"github.com/palantir/palantir-compute-module-feature-matrix/internal/evidence"
	"github.com/palantir/palantir-compute-module-feature-matrix/internal/evidence/cse"
	"github.com/palantir/palantir-compute-module-feature-matrix/internal/judge"
	"github.com/palantir/palantir-compute-module-feature-matrix/internal/pipeline"
	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/io/local"
)

// Collaborators are the per-run search and judgment services.
type Collaborators struct {
	Fetcher *evidence.Fetcher
	Judge   *judge.Judge
}

// NewCollaborators builds the configured search backend and the Gemini judge.
// Missing credentials do not fail here; each call degrades instead.
func NewCollaborators(ctx context.Context, cfg config.Config, logger *zap.Logger) (Collaborators, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	model, err := gemini.New(ctx, gemini.Config{
		APIKey:  cfg.Model.APIKey,
		Model:   cfg.Model.Name,
		BaseURL: cfg.Model.BaseURL,
	})
	if err != nil {
		return Collaborators{}, fmt.Errorf("gemini client: %w", err)
	}

	var searcher evidence.Searcher
	switch cfg.Search.Backend {
	case config.BackendGemini:
		searcher = model
	case config.BackendCSE, "":
		s, err := cse.New(ctx, cse.Config{
			APIKey:     cfg.Search.APIKey,
			EngineID:   cfg.Search.EngineID,
			NumResults: cfg.Search.NumResults,
			BaseURL:    cfg.Search.BaseURL,
		})
		if err != nil {
			return Collaborators{}, err
		}
		searcher = s
	default:
		return Collaborators{}, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.Search.Backend)
	}

	return Collaborators{
		Fetcher: evidence.NewFetcher(newTracedSearcher(searcher, cfg.Search.Backend, logger), logger),
		Judge: judge.New(newTracedModel(model, logger), judge.Options{
			Temperature: cfg.Model.Temperature,
			Strict:      cfg.Model.Strict,
		}, logger),
	}, nil
}

// PipelineOptions extracts the orchestrator settings from cfg.
func PipelineOptions(cfg config.Config) pipeline.Options {
	return pipeline.Options{
		Competitor:     cfg.Competitor,
		FeatureColumn:  cfg.FeatureColumn,
		Workers:        cfg.Workers,
		RateLimitRPS:   cfg.RateLimitRPS,
		RequestTimeout: cfg.RequestTimeout,
	}
}

// Run executes one enrichment of cfg.Input into cfg.Output under a fresh run id.
func Run(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run", uuid.NewString()))

	c, err := NewCollaborators(ctx, cfg, logger)
	if err != nil {
		return pipeline.Summary{}, err
	}
	return RunLocal(ctx, cfg.Input, cfg.Output, PipelineOptions(cfg), c.Fetcher, c.Judge, logger)
}

// RunLocal enriches the CSV at inputPath into a new CSV at outputPath.
//
// Both files are opened before the first row is processed. Rows written
// before a fatal error stay in the output file.
func RunLocal(
	ctx context.Context,
	inputPath, outputPath string,
	opts pipeline.Options,
	fetcher pipeline.Fetcher,
	j pipeline.Judge,
	logger *zap.Logger,
) (pipeline.Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Competitor == "" {
		return pipeline.Summary{}, pipeline.ErrNoCompetitor
	}

	inF, err := os.Open(inputPath)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer func() {
		_ = inF.Close()
	}()

	outF, err := os.Create(outputPath)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer func() {
		_ = outF.Close()
	}()

	reader := local.NewReader(inF)
	outSchema := reader.Schema().WithColumn(opts.Competitor)
	writer, err := local.NewWriter(outF, outSchema)
	if err != nil {
		return pipeline.Summary{}, err
	}

	logger.Info("run start",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.String("competitor", opts.Competitor),
		zap.Stringer("schema", outSchema),
		zap.Int("workers", opts.Workers),
		zap.Float64("rate_limit_rps", opts.RateLimitRPS),
		zap.Duration("request_timeout", opts.RequestTimeout),
	)

	summary, err := pipeline.EnrichRecords(ctx, reader, writer, fetcher, j, opts, logger)
	if err != nil {
		logger.Error("run failed",
			zap.Int("rows", summary.Rows),
			zap.Duration("duration", summary.Duration),
			zap.Error(err),
		)
		return summary, err
	}
	if err := outF.Close(); err != nil {
		return summary, err
	}

	logger.Info("run complete",
		zap.Int("rows", summary.Rows),
		zap.Int("search_failures", summary.SearchFailures),
		zap.Int("judge_failures", summary.JudgeFailures),
		zap.Duration("duration", summary.Duration.Round(time.Millisecond)),
	)
	return summary, nil
}
