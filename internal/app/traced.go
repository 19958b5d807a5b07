package app

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/palantir/palantir-compute-module-feature-matrix/internal/evidence"
	"github.com/palantir/palantir-compute-module-feature-matrix/internal/judge"
	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/redact"
)

// tracedSearcher logs every search request and response at debug level.
type tracedSearcher struct {
	next    evidence.Searcher
	backend string
	logger  *zap.Logger
	calls   atomic.Int64
}

func newTracedSearcher(next evidence.Searcher, backend string, logger *zap.Logger) *tracedSearcher {
	return &tracedSearcher{next: next, backend: backend, logger: logger}
}

func (t *tracedSearcher) Search(ctx context.Context, query string) (evidence.Result, error) {
	call := t.calls.Add(1)
	t.logger.Debug("search request",
		zap.Int64("call", call),
		zap.String("backend", t.backend),
		zap.String("query", query),
		zap.String("deadline_in", deadlineIn(ctx)),
	)

	start := time.Now()
	res, err := t.next.Search(ctx, query)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		t.logger.Debug("search response",
			zap.Int64("call", call),
			zap.String("status", "error"),
			zap.Duration("duration", elapsed),
			zap.String("error", redact.Secrets(err.Error())),
		)
		return res, err
	}
	t.logger.Debug("search response",
		zap.Int64("call", call),
		zap.String("status", "ok"),
		zap.Duration("duration", elapsed),
		zap.String("text", res.Text),
	)
	return res, nil
}

// tracedModel logs every completion request and response at debug level.
type tracedModel struct {
	next   judge.Model
	logger *zap.Logger
	calls  atomic.Int64
}

func newTracedModel(next judge.Model, logger *zap.Logger) *tracedModel {
	return &tracedModel{next: next, logger: logger}
}

func (t *tracedModel) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	call := t.calls.Add(1)
	t.logger.Debug("model request",
		zap.Int64("call", call),
		zap.Float32("temperature", temperature),
		zap.Int("prompt_bytes", len(prompt)),
		zap.String("deadline_in", deadlineIn(ctx)),
	)

	start := time.Now()
	out, err := t.next.Generate(ctx, prompt, temperature)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		t.logger.Debug("model response",
			zap.Int64("call", call),
			zap.String("status", "error"),
			zap.Duration("duration", elapsed),
			zap.String("error", redact.Secrets(err.Error())),
		)
		return out, err
	}
	t.logger.Debug("model response",
		zap.Int64("call", call),
		zap.String("status", "ok"),
		zap.Duration("duration", elapsed),
		zap.String("text", out),
	)
	return out, nil
}

func deadlineIn(ctx context.Context) string {
	if d, ok := ctx.Deadline(); ok {
		return time.Until(d).Round(time.Millisecond).String()
	}
	return "none"
}
