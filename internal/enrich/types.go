package enrich

import (
	"context"
	"errors"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// ErrMissingCredential is returned by collaborators whose API credential was not configured.
var ErrMissingCredential = errors.New("missing API credential")

// ErrMalformedResponse marks an upstream response that could not be interpreted.
var ErrMalformedResponse = errors.New("malformed response")

// FailureKind enumerates why a search or model call degraded to a sentinel.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureCredentials
	FailureQuota
	FailureNetwork
	FailureUpstream
	FailureMalformed
	FailureCanceled
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureCredentials:
		return "credentials"
	case FailureQuota:
		return "quota"
	case FailureNetwork:
		return "network"
	case FailureUpstream:
		return "upstream"
	case FailureMalformed:
		return "malformed"
	case FailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Outcome is the total result of a fallible collaborator call: either the real
// text, or a sentinel text together with the failure that produced it.
type Outcome struct {
	Text    string
	Failure FailureKind
	Err     error
}

// OK reports whether the outcome carries real data.
func (o Outcome) OK() bool {
	return o.Failure == FailureNone
}

// Succeeded wraps real data.
func Succeeded(text string) Outcome {
	return Outcome{Text: text}
}

// Degraded substitutes sentinel for the failed call's result.
func Degraded(sentinel string, err error) Outcome {
	return Outcome{Text: sentinel, Failure: Classify(err), Err: err}
}

// Classify maps an error from the search or model APIs onto a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, ErrMissingCredential) {
		return FailureCredentials
	}
	if errors.Is(err, ErrMalformedResponse) {
		return FailureMalformed
	}
	if errors.Is(err, context.Canceled) {
		return FailureCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureNetwork
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return classifyStatus(gErr.Code)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return FailureNetwork
	}
	return FailureUpstream
}

func classifyStatus(code int) FailureKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return FailureCredentials
	case code == http.StatusTooManyRequests:
		return FailureQuota
	default:
		return FailureUpstream
	}
}
