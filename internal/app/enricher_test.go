package app_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/palantir/palantir-compute-module-feature-matrix/internal/app"
	"github.com/palantir/palantir-compute-module-feature-matrix/internal/config"
	"github.com/palantir/palantir-compute-module-feature-matrix/internal/enrich"
	"github.com/palantir/palantir-compute-module-feature-matrix/internal/mockapi"
	"github.com/palantir/palantir-compute-module-feature-matrix/internal/pipeline"
)

type fixedFetcher string

func (f fixedFetcher) Fetch(context.Context, string) enrich.Outcome {
	return enrich.Succeeded(string(f))
}

type fixedJudge string

func (j fixedJudge) Judge(context.Context, string, string) enrich.Outcome {
	return enrich.Succeeded(string(j))
}

func writeInput(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "input.csv")
	if err := os.WriteFile(in, []byte(body), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return in, filepath.Join(dir, "output.csv")
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return string(b)
}

func TestRunLocal(t *testing.T) {
	t.Parallel()

	in, out := writeInput(t, "Features,OtherCol\nSingle Sign-On,foo\n")
	summary, err := app.RunLocal(context.Background(), in, out,
		pipeline.Options{Competitor: "CyberArk"},
		fixedFetcher("CyberArk supports SSO via SAML."), fixedJudge("Yes"),
		zaptest.NewLogger(t),
	)
	if err != nil {
		t.Fatalf("RunLocal: %v", err)
	}
	if summary.Rows != 1 {
		t.Fatalf("Rows=%d, want 1", summary.Rows)
	}
	want := "Features,OtherCol,CyberArk\r\nSingle Sign-On,foo,Yes\r\n"
	if diff := cmp.Diff(want, readOutput(t, out)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunLocal_EmptyInput(t *testing.T) {
	t.Parallel()

	in, out := writeInput(t, "")
	if _, err := app.RunLocal(context.Background(), in, out,
		pipeline.Options{Competitor: "CyberArk"}, fixedFetcher("x"), fixedJudge("Yes"), nil,
	); err != nil {
		t.Fatalf("RunLocal: %v", err)
	}
	if got := readOutput(t, out); got != "CyberArk\r\n" {
		t.Fatalf("output=%q, want only the competitor header", got)
	}
}

func TestRunLocal_MissingFeatureKeepsEarlierRows(t *testing.T) {
	t.Parallel()

	in, out := writeInput(t, "Features,Notes\nSSO,a\nMFA,b\n")
	_, err := app.RunLocal(context.Background(), in, out,
		pipeline.Options{Competitor: "CyberArk", FeatureColumn: "Notes2"},
		fixedFetcher("x"), fixedJudge("Yes"), nil,
	)
	var missing *pipeline.MissingFieldError
	if !errors.As(err, &missing) || missing.Row != 1 {
		t.Fatalf("expected MissingFieldError at row 1, got %v", err)
	}
	if got := readOutput(t, out); got != "Features,Notes,CyberArk\r\n" {
		t.Fatalf("output=%q, want header only", got)
	}
}

func TestRunLocal_MissingInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "output.csv")
	_, err := app.RunLocal(context.Background(), filepath.Join(dir, "missing.csv"), out,
		pipeline.Options{Competitor: "CyberArk"}, fixedFetcher("x"), fixedJudge("Yes"), nil,
	)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if _, statErr := os.Stat(out); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("output should not be created when input is missing: %v", statErr)
	}
}

func newMockConfig(t *testing.T, srv *mockapi.Server, backend string) config.Config {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg := config.Defaults()
	cfg.Competitor = "Okta"
	cfg.Search.Backend = backend
	cfg.Search.APIKey = "test-key"
	cfg.Search.EngineID = "engine"
	cfg.Search.BaseURL = ts.URL
	cfg.Model.APIKey = "test-key"
	cfg.Model.Name = "gemini-test"
	cfg.Model.BaseURL = ts.URL
	return cfg
}

func TestRun_AgainstMockAPIs(t *testing.T) {
	t.Parallel()

	for _, backend := range []string{config.BackendCSE, config.BackendGemini} {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			srv := mockapi.New()
			srv.RequireAPIKey("test-key")
			srv.SetSnippets("Okta Single Sign-On", "Okta offers Single Sign-On for every app.")

			cfg := newMockConfig(t, srv, backend)
			cfg.Workers = 2
			cfg.Input, cfg.Output = writeInput(t, "Features,Notes\nSingle Sign-On,core\nMainframe Support,\n")

			summary, err := app.Run(context.Background(), cfg, zaptest.NewLogger(t))
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if summary.Rows != 2 || summary.SearchFailures != 0 || summary.JudgeFailures != 0 {
				t.Fatalf("unexpected summary: %+v", summary)
			}
			want := "Features,Notes,Okta\r\nSingle Sign-On,core,Yes\r\nMainframe Support,,No\r\n"
			if diff := cmp.Diff(want, readOutput(t, cfg.Output)); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}

			var judged int
			for _, c := range srv.Calls() {
				if strings.Contains(c.Prompt, `feature called "`) {
					judged++
					if c.Temperature == nil || float32(*c.Temperature) != 0.7 {
						t.Fatalf("unexpected temperature: %v", c.Temperature)
					}
				}
			}
			if judged != 2 {
				t.Fatalf("expected 2 judgment calls, got %d", judged)
			}
		})
	}
}

func TestRun_MissingCredentialsDegrade(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Competitor = "Okta"
	cfg.Input, cfg.Output = writeInput(t, "Features\nSSO\nMFA\n")

	summary, err := app.Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Rows != 2 || summary.SearchFailures != 2 || summary.JudgeFailures != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if got, want := readOutput(t, cfg.Output), "Features,Okta\r\nSSO,Error\r\nMFA,Error\r\n"; got != want {
		t.Fatalf("output=%q, want %q", got, want)
	}
}

func TestNewCollaborators_UnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Search.Backend = "bing"
	if _, err := app.NewCollaborators(context.Background(), cfg, nil); !errors.Is(err, config.ErrInvalidBackend) {
		t.Fatalf("expected ErrInvalidBackend, got %v", err)
	}
}

func TestRun_BlockedModelReplyIsError(t *testing.T) {
	t.Parallel()

	srv := mockapi.New()
	srv.BlockModel("SAFETY")
	cfg := newMockConfig(t, srv, config.BackendCSE)
	cfg.Input, cfg.Output = writeInput(t, "Features\nSSO\n")

	summary, err := app.Run(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.JudgeFailures != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if got, want := readOutput(t, cfg.Output), "Features,Okta\r\nSSO,Error\r\n"; got != want {
		t.Fatalf("output=%q, want %q", got, want)
	}
}
