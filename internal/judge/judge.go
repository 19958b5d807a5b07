// Package judge asks a language model whether a competitor has a feature,
// given search evidence about that competitor.
package judge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/palantir/palantir-compute-module-feature-matrix/internal/enrich"
	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/redact"
)

// Sentinel is the classification recorded when the model call fails.
const Sentinel = "Error"

// DefaultTemperature is the sampling temperature used unless configured otherwise.
const DefaultTemperature float32 = 0.7

const promptTemplate = `You are given some context information about a competitor's features and offerings:

Context:
{context}

Question:
Does the competitor have the feature called "{feature_name}"?
Answer with a single word: "Yes" or "No" (no extra text).`

// RenderPrompt substitutes evidence and feature into the fixed question template.
// Placeholders inside the substituted values are left alone.
func RenderPrompt(evidence, feature string) string {
	return strings.NewReplacer(
		"{context}", evidence,
		"{feature_name}", feature,
	).Replace(promptTemplate)
}

// Model runs a single text completion.
type Model interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

type Options struct {
	Temperature float32

	// Strict canonicalizes answers to "Yes"/"No" and turns anything else into
	// Sentinel. When false the trimmed model output is passed through as-is.
	Strict bool
}

type Judge struct {
	model  Model
	opts   Options
	logger *zap.Logger
}

func New(model Model, opts Options, logger *zap.Logger) *Judge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Judge{model: model, opts: opts, logger: logger}
}

// Judge classifies feature against evidence. It never fails: a failed model
// call yields Sentinel together with the classified failure.
func (j *Judge) Judge(ctx context.Context, evidence, feature string) enrich.Outcome {
	prompt := RenderPrompt(evidence, feature)

	start := time.Now()
	raw, err := j.model.Generate(ctx, prompt, j.opts.Temperature)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		return j.degrade(feature, elapsed, err)
	}

	answer := strings.TrimSpace(raw)
	if j.opts.Strict {
		canon, ok := Canonical(answer)
		if !ok {
			return j.degrade(feature, elapsed, fmt.Errorf("%w: want Yes or No, got %q", enrich.ErrMalformedResponse, answer))
		}
		answer = canon
	}
	return enrich.Succeeded(answer)
}

func (j *Judge) degrade(feature string, elapsed time.Duration, err error) enrich.Outcome {
	out := enrich.Degraded(Sentinel, err)
	j.logger.Warn("error with model",
		zap.String("feature", feature),
		zap.Stringer("failure", out.Failure),
		zap.Duration("duration", elapsed),
		zap.String("error", redact.Secrets(err.Error())),
	)
	return out
}

// Canonical maps a case-insensitive yes/no answer, optionally ending in a
// period, onto "Yes" or "No".
func Canonical(answer string) (string, bool) {
	a := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(answer), "."))
	switch a {
	case "yes":
		return "Yes", true
	case "no":
		return "No", true
	default:
		return "", false
	}
}
