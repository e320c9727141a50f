package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>" (JWTs and opaque tokens).
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Common key=value formats that sometimes leak in error strings.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b((groq|gemini|openai)[_-]?)?api[_-]?key\b\s*[:=]\s*[^\s"']+`)

	// Groq keys are prefixed "gsk_"; they show up verbatim in some upstream error bodies.
	groqKeyRe = regexp.MustCompile(`\bgsk_[A-Za-z0-9]{8,}\b`)

	// Google API keys travel as ?key=... on Gemini REST URLs.
	queryKeyRe = regexp.MustCompile(`([?&]key=)[^&\s"']+`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = groqKeyRe.ReplaceAllString(out, "<redacted_key>")
	out = queryKeyRe.ReplaceAllString(out, "${1}<redacted>")
	return strings.TrimSpace(out)
}
