package providers

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ValidateMessage checks the message and model preconditions shared by the
// client and the request engine.
func ValidateMessage(message, model string) error {
	if strings.TrimSpace(message) == "" {
		return ValidationError("Message cannot be empty")
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return ValidationError("Message is too long (max 32,000 characters)")
	}
	if strings.TrimSpace(model) == "" {
		return ValidationError("Model must be specified")
	}
	return nil
}

// KeyValidationError describes why a credential was rejected.
type KeyValidationError struct {
	Provider Provider
	Message  string
}

// Error implements the error interface.
func (e *KeyValidationError) Error() string {
	return e.Message
}

// ValidateAPIKey checks the shape of a provider credential. It never
// contacts the provider.
func ValidateAPIKey(p Provider, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return &KeyValidationError{Provider: p, Message: "API key is required"}
	}

	switch p {
	case OpenAI:
		if !strings.HasPrefix(key, "sk-") || len(key) < 40 {
			return &KeyValidationError{Provider: p, Message: "Invalid OpenAI API key format"}
		}
	case Anthropic:
		if !strings.HasPrefix(key, "sk-ant-") {
			return &KeyValidationError{Provider: p, Message: "Invalid Anthropic API key format"}
		}
	case Google:
		if len(key) < 20 {
			return &KeyValidationError{Provider: p, Message: "Invalid Google AI API key format"}
		}
	case OpenRouter:
		if !strings.HasPrefix(key, "sk-or-") {
			return &KeyValidationError{Provider: p, Message: "Invalid OpenRouter API key format"}
		}
	case Cloudflare:
		// any non-empty token
	default:
		return &KeyValidationError{Provider: p, Message: fmt.Sprintf("Unknown provider: %s", p)}
	}
	return nil
}

// ValidateGatewayURL accepts an empty override or an absolute http(s) URL.
func ValidateGatewayURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid gateway URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid gateway URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid gateway URL %q: missing host", raw)
	}
	return nil
}
