// Package processor is a minimal column enricher built on the pipeline kit.
package processor

import (
	"context"
	"strings"

	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/core"
	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/worker"
)

// Processor fills Column with the upper-cased value of From.
type Processor struct {
	From   string
	Column string
}

func (p Processor) Process(_ context.Context, rec core.Record) string {
	v, _ := rec.Get(p.From)
	return strings.ToUpper(strings.TrimSpace(v))
}

// Run copies every record from src to sink with Column filled in.
func (p Processor) Run(ctx context.Context, src core.Source, sink core.Sink, workers int) error {
	return worker.Stream(ctx, src.Next, p.Process, func(rec core.Record, v string) error {
		rec.Set(p.Column, v)
		return sink.Write(ctx, rec)
	}, worker.Options{Workers: workers})
}
