package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/palantir/palantir-compute-module-feature-matrix/internal/enrich"
	"github.com/palantir/palantir-compute-module-feature-matrix/internal/evidence"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

// Client calls Gemini both as the judgment model and as a grounded web searcher.
type Client struct {
	client *genai.Client
	model  string
}

// New builds a client. A missing API key is not an error here: every call
// reports enrich.ErrMissingCredential instead.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}
	c := &Client{model: strings.TrimSpace(cfg.Model)}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return c, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	c.client = client
	return c, nil
}

func (c *Client) Model() string {
	return c.model
}

// Generate runs one completion for prompt at the given sampling temperature
// and returns the raw response text.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("gemini: GEMINI_API_KEY: %w", enrich.ErrMissingCredential)
	}
	resp, err := c.client.Models.GenerateContent(
		ctx,
		c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:    genai.Ptr(temperature),
			CandidateCount: 1,
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: %w: no candidates", enrich.ErrMalformedResponse)
	}
	cand := resp.Candidates[0]
	if cand == nil {
		return "", fmt.Errorf("gemini: %w: nil candidate", enrich.ErrMalformedResponse)
	}
	var text string
	if cand.Content != nil {
		text = resp.Text()
	}
	// A candidate cut off before STOP (safety, recitation, max tokens) may carry no text.
	if strings.TrimSpace(text) == "" && cand.FinishReason != genai.FinishReasonStop {
		return "", fmt.Errorf("gemini: %w: empty response, finish reason %q", enrich.ErrMalformedResponse, cand.FinishReason)
	}
	return text, nil
}

// Search asks Gemini to run a Google Search for query and summarize the results.
func (c *Client) Search(ctx context.Context, query string) (evidence.Result, error) {
	if c.client == nil {
		return evidence.Result{}, fmt.Errorf("gemini search: GEMINI_API_KEY: %w", enrich.ErrMissingCredential)
	}
	resp, err := c.client.Models.GenerateContent(
		ctx,
		c.model,
		genai.Text(buildSearchPrompt(query)),
		&genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
			CandidateCount: 1,
		},
	)
	if err != nil {
		return evidence.Result{}, fmt.Errorf("gemini search: %w", err)
	}

	out := evidence.Result{
		Text:    strings.TrimSpace(resp.Text()),
		Sources: extractSources(resp),
		Queries: extractWebSearchQueries(resp),
	}
	if out.Text == "" {
		out.Text = evidence.NoGoodResult
	}
	return out, nil
}

func buildSearchPrompt(query string) string {
	return strings.TrimSpace(`
You are a web research tool. Use Google Search to look up the query below and summarize what the top results say in one short paragraph of plain text.

Rules:
- Mention concrete product capabilities when the results name them.
- Do not answer from memory; only report what the results say.
- If nothing relevant is found, return an empty response.

Query: ` + query + `
`)
}

func extractSources(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	c := resp.Candidates[0]
	if c.GroundingMetadata == nil {
		return nil
	}

	var out []string
	for _, chunk := range c.GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		out = append(out, chunk.Web.URI)
	}
	return dedupePreserveOrder(out)
}

func extractWebSearchQueries(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	c := resp.Candidates[0]
	if c.GroundingMetadata == nil {
		return nil
	}
	return dedupePreserveOrder(c.GroundingMetadata.WebSearchQueries)
}

func dedupePreserveOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
