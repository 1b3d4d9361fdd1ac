package logging

import (
	"regexp"
	"strings"
)

// RedactPattern is a custom redaction rule.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Redactor strips provider credentials from log output.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternProviderKey = "provider_key"
	PatternGoogleKey   = "google_key"
	PatternBearerToken = "bearer_token"
	PatternKeyHeader   = "key_header"
)

// The order matters: key headers and bearer tokens are rewritten before the
// bare key patterns run over what is left.
var defaultPatterns = []RedactPattern{
	{
		Name:        PatternKeyHeader,
		Pattern:     `(?i)(x-goog-api-key|x-api-key)(["']?\s*[:=]\s*["']?)[^\s"',}]+`,
		Replacement: "$1$2***",
	},
	{
		Name:        PatternBearerToken,
		Pattern:     `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`,
		Replacement: "Bearer ***",
	},
	{
		// sk-..., sk-ant-... and sk-or-... keys
		Name:        PatternProviderKey,
		Pattern:     `sk-[a-zA-Z0-9_\-]{8,}`,
		Replacement: "sk-***",
	},
	{
		Name:        PatternGoogleKey,
		Pattern:     `AIza[0-9A-Za-z_\-]{20,}`,
		Replacement: "AIza***",
	},
}

var sensitiveKeys = []string{
	"api_key", "apikey", "api-key",
	"secret", "token", "password",
	"authorization", "credential",
}

// NewRedactor creates a Redactor with the built-in patterns followed by
// custom. Invalid custom patterns are skipped.
func NewRedactor(custom []RedactPattern) *Redactor {
	r := &Redactor{}
	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.Name,
			regex:       regexp.MustCompile(p.Pattern),
			replacement: p.Replacement,
		})
	}

	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}
	return r
}

// RedactString replaces every credential found in value.
func (r *Redactor) RedactString(value string) string {
	if r == nil || value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// IsSensitiveKey reports whether a field name holds a secret, either exactly
// or as a suffix (openai_api_key). Values under such keys keep only a prefix.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if lower == s || strings.HasSuffix(lower, "_"+s) || strings.HasSuffix(lower, "-"+s) {
			return true
		}
	}
	return false
}

// RedactAPIKey masks a credential, keeping a short prefix for identification.
func RedactAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 4 {
		return "***"
	}
	return apiKey[:4] + "***"
}
