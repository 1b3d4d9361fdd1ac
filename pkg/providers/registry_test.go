package providers

import (
	"errors"
	"net/http"
	"testing"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"openai", OpenAI, false},
		{" Anthropic ", Anthropic, false},
		{"GOOGLE", Google, false},
		{"openrouter", OpenRouter, false},
		{"cloudflare", Cloudflare, false},
		{"azure", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProvider(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProvider(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseProvider(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	infos := Registry()
	if len(infos) != 5 {
		t.Fatalf("expected 5 providers, got %d", len(infos))
	}

	google, err := Lookup(Google)
	if err != nil {
		t.Fatalf("Lookup(google) error = %v", err)
	}
	if !google.HasCapability(CapabilityVision) {
		t.Error("expected google to advertise vision")
	}

	cf, _ := Lookup(Cloudflare)
	if cf.RequiresKey {
		t.Error("expected cloudflare not to require a key")
	}

	for _, p := range []Provider{OpenAI, Anthropic, Google, OpenRouter} {
		info, _ := Lookup(p)
		if !info.RequiresKey {
			t.Errorf("expected %s to require a key", p)
		}
	}

	if _, err := Lookup("nope"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestDefaultModel(t *testing.T) {
	tests := map[Provider]string{
		OpenAI:     "gpt-3.5-turbo-0125",
		Anthropic:  "claude-3-sonnet-20240229",
		Google:     "gemini-1.5-pro",
		OpenRouter: "auto",
		Cloudflare: "@cf/meta/llama-2-7b-chat-int8",
	}
	for p, want := range tests {
		if got := DefaultModel(p); got != want {
			t.Errorf("DefaultModel(%s) = %q, want %q", p, got, want)
		}
	}
}

func TestSelectBestModel(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		models   []Model
		want     string
	}{
		{"openai catalog", OpenAI, StaticModels(OpenAI), "gpt-4-0125-preview"},
		{"openai fallback", OpenAI, []Model{{ID: "gpt-4"}, {ID: "gpt-3.5-turbo-0125"}}, "gpt-3.5-turbo-0125"},
		{"openai first", OpenAI, []Model{{ID: "gpt-4"}, {ID: "gpt-4-32k"}}, "gpt-4"},
		{"anthropic catalog", Anthropic, StaticModels(Anthropic), "claude-3-opus-20240229"},
		{"anthropic sonnet", Anthropic, []Model{{ID: "claude-2.1"}, {ID: "claude-3-sonnet-20240229"}}, "claude-3-sonnet-20240229"},
		{"google catalog", Google, StaticModels(Google), "gemini-1.5-pro"},
		{"openrouter auto", OpenRouter, StaticModels(OpenRouter), "auto"},
		{"openrouter no auto", OpenRouter, []Model{{ID: "google/gemini-pro"}, {ID: "anthropic/claude-3-opus"}}, "anthropic/claude-3-opus"},
		{"cloudflare first", Cloudflare, StaticModels(Cloudflare), "@cf/meta/llama-2-7b-chat-int8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectBestModel(tt.provider, tt.models)
			if !ok {
				t.Fatal("expected a model")
			}
			if got.ID != tt.want {
				t.Errorf("SelectBestModel() = %q, want %q", got.ID, tt.want)
			}
		})
	}

	if _, ok := SelectBestModel(OpenAI, nil); ok {
		t.Error("expected no model from an empty list")
	}
}

func TestStaticModels(t *testing.T) {
	models := StaticModels(OpenRouter)
	if !models[0].IsAuto {
		t.Error("expected the openrouter catalog to start with the auto model")
	}
	for _, m := range models {
		if m.Provider != OpenRouter {
			t.Errorf("model %s has provider %q", m.ID, m.Provider)
		}
	}

	models[0].Capabilities[0] = "mutated"
	if StaticModels(OpenRouter)[0].Capabilities[0] == "mutated" {
		t.Error("StaticModels must return a copy")
	}

	for _, p := range []Provider{OpenAI, Anthropic, Google, Cloudflare} {
		for _, m := range StaticModels(p) {
			if m.IsAuto {
				t.Errorf("unexpected auto model %s for %s", m.ID, p)
			}
		}
	}
}

func TestModelDisplayName(t *testing.T) {
	tests := map[string]string{
		"anthropic/claude-3-opus-20240229": "Claude 3 Opus",
		"gpt-3.5-turbo":                    "Gpt 3.5 Turbo",
		"@cf/meta/llama-2-7b-chat-int8":    "Llama 2 7B Chat Int8",
		"mistralai/mixtral-8x7b-instruct":  "Mixtral 8x7B Instruct",
		"gemini_pro":                       "Gemini Pro",
	}
	for in, want := range tests {
		if got := ModelDisplayName(in); got != want {
			t.Errorf("ModelDisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		key      string
		valid    bool
	}{
		{"empty", OpenAI, "", false},
		{"openai ok", OpenAI, "sk-0123456789abcdefghijklmnopqrstuvwxyzABCD", true},
		{"openai short", OpenAI, "sk-short", false},
		{"openai prefix", OpenAI, "pk-0123456789abcdefghijklmnopqrstuvwxyzABCD", false},
		{"anthropic ok", Anthropic, "sk-ant-api03-xyz", true},
		{"anthropic prefix", Anthropic, "sk-xyz", false},
		{"google ok", Google, "AIzaSyA-0123456789abcdef", true},
		{"google short", Google, "AIza", false},
		{"openrouter ok", OpenRouter, "sk-or-v1-abc", true},
		{"openrouter prefix", OpenRouter, "sk-abc", false},
		{"cloudflare any", Cloudflare, "token", true},
		{"unknown", Provider("x"), "key", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.provider, tt.key)
			if (err == nil) != tt.valid {
				t.Errorf("ValidateAPIKey(%s, %q) = %v, valid %v", tt.provider, tt.key, err, tt.valid)
			}
		})
	}

	if err := ValidateAPIKey(OpenAI, ""); err == nil || err.Error() != "API key is required" {
		t.Errorf("unexpected message for empty key: %v", err)
	}
}

func TestValidateGatewayURL(t *testing.T) {
	valid := []string{"", "https://gateway.ai.cloudflare.com/v1/acct/gw/openai", "http://localhost:8787"}
	for _, u := range valid {
		if err := ValidateGatewayURL(u); err != nil {
			t.Errorf("ValidateGatewayURL(%q) = %v", u, err)
		}
	}
	invalid := []string{"not a url", "ftp://host", "https://"}
	for _, u := range invalid {
		if err := ValidateGatewayURL(u); err == nil {
			t.Errorf("expected ValidateGatewayURL(%q) to fail", u)
		}
	}
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		want      error
		retryable bool
	}{
		{http.StatusBadRequest, ErrValidation, false},
		{http.StatusUnauthorized, ErrAuth, false},
		{http.StatusForbidden, ErrForbidden, false},
		{http.StatusNotFound, ErrNotFound, false},
		{http.StatusTooManyRequests, ErrRateLimit, false},
		{http.StatusInternalServerError, ErrServer, true},
		{http.StatusBadGateway, ErrServer, true},
		{http.StatusGatewayTimeout, ErrServer, true},
	}

	for _, tt := range tests {
		err := HTTPError(OpenAI, tt.status, "", "")
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: expected %v", tt.status, tt.want)
		}
		if IsRetryable(err) != tt.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tt.status, IsRetryable(err), tt.retryable)
		}
		if err.Message == "" {
			t.Errorf("status %d: expected a default message", tt.status)
		}
	}

	if !IsRetryable(NetworkError(OpenAI, errors.New("dial tcp: refused"))) {
		t.Error("expected network errors to be retryable")
	}
	if IsRetryable(CancelledError(nil)) {
		t.Error("cancelled errors must not be retryable")
	}
	if errors.Is(ValidationError("x"), ErrAuth) {
		t.Error("kinds must not cross-match")
	}
	if IsUpstreamFailure(ValidationError("x")) || !IsUpstreamFailure(HTTPError(OpenAI, 502, "", "")) {
		t.Error("unexpected upstream failure classification")
	}
}
