// Package redact strips credentials from strings before they reach logs.
package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>" (JWTs and opaque tokens).
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Common key=value formats that sometimes leak in error strings.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b((google|gemini)[_-]?)?api[_-]?key\b\s*[:=]\s*[^\s"'&]+`)

	// Query parameters carrying keys, as in "...customsearch/v1?key=AIza...&cx=...".
	keyParamRe = regexp.MustCompile(`([?&](key|api_key)=)[^\s"'&]+`)

	// Google API keys in any position.
	googleKeyRe = regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{20,}`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = keyParamRe.ReplaceAllString(out, "${1}<redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = googleKeyRe.ReplaceAllString(out, "<redacted>")
	return strings.TrimSpace(out)
}
