package enrich

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

type tempNetErr struct{}

func (tempNetErr) Error() string   { return "temp net err" }
func (tempNetErr) Timeout() bool   { return false }
func (tempNetErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want FailureKind
	}{
		{name: "nil", in: nil, want: FailureNone},
		{name: "missing_credential", in: fmt.Errorf("search: %w", ErrMissingCredential), want: FailureCredentials},
		{name: "malformed", in: fmt.Errorf("gemini: %w", ErrMalformedResponse), want: FailureMalformed},
		{name: "canceled", in: context.Canceled, want: FailureCanceled},
		{name: "deadline", in: context.DeadlineExceeded, want: FailureNetwork},
		{name: "genai_429", in: genai.APIError{Code: 429}, want: FailureQuota},
		{name: "genai_403", in: genai.APIError{Code: 403}, want: FailureCredentials},
		{name: "genai_500", in: genai.APIError{Code: 500}, want: FailureUpstream},
		{name: "googleapi_429", in: &googleapi.Error{Code: 429}, want: FailureQuota},
		{name: "wrapped_googleapi_401", in: fmt.Errorf("cse: %w", &googleapi.Error{Code: 401}), want: FailureCredentials},
		{name: "net", in: tempNetErr{}, want: FailureNetwork},
		{name: "other", in: errors.New("boom"), want: FailureUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.in); got != tt.want {
				t.Fatalf("Classify(%v)=%s want=%s", tt.in, got, tt.want)
			}
		})
	}
}

func TestDegraded(t *testing.T) {
	err := errors.New("boom")
	out := Degraded("Error", err)
	if out.OK() || out.Text != "Error" || !errors.Is(out.Err, err) {
		t.Fatalf("unexpected outcome: %#v", out)
	}
	if !Succeeded("Yes").OK() {
		t.Fatalf("expected success outcome to be OK")
	}
}
