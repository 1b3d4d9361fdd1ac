package providers

import (
	"regexp"
	"strings"
)

// AutoModelID is the model id meaning "pick the best model at send time".
const AutoModelID = "auto"

// Model describes one addressable model.
type Model struct {
	ID            string       `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	Provider      Provider     `json:"provider" yaml:"provider"`
	Capabilities  []Capability `json:"capabilities" yaml:"capabilities"`
	ContextLength int          `json:"context_length" yaml:"context_length"`
	Description   string       `json:"description,omitempty" yaml:"description,omitempty"`
	IsAuto        bool         `json:"is_auto,omitempty" yaml:"is_auto,omitempty"`
}

var (
	chatCode         = []Capability{CapabilityChat, CapabilityCode}
	chatCodeAnalysis = []Capability{CapabilityChat, CapabilityCode, CapabilityAnalysis}
	chatVision       = []Capability{CapabilityChat, CapabilityVision}
	chatCodeVision   = []Capability{CapabilityChat, CapabilityCode, CapabilityAnalysis, CapabilityVision}
)

var staticModels = map[Provider][]Model{
	OpenAI: {
		{ID: "gpt-4-1106-preview", Name: "GPT-4 Turbo", Capabilities: chatCodeAnalysis, ContextLength: 128000, Description: "Most capable GPT-4 model with a 128K context window"},
		{ID: "gpt-4-0125-preview", Name: "GPT-4 Turbo (0125)", Capabilities: chatCodeAnalysis, ContextLength: 128000, Description: "Latest GPT-4 Turbo with reduced laziness"},
		{ID: "gpt-4-vision-preview", Name: "GPT-4 Vision", Capabilities: chatCodeVision, ContextLength: 128000, Description: "GPT-4 with image understanding"},
		{ID: "gpt-4", Name: "GPT-4", Capabilities: chatCodeAnalysis, ContextLength: 8192},
		{ID: "gpt-4-32k", Name: "GPT-4 32K", Capabilities: chatCodeAnalysis, ContextLength: 32768},
		{ID: "gpt-3.5-turbo-0125", Name: "GPT-3.5 Turbo (0125)", Capabilities: chatCode, ContextLength: 16385, Description: "Fast and inexpensive model for most tasks"},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Capabilities: chatCode, ContextLength: 16385},
	},
	Anthropic: {
		{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", Capabilities: chatCodeVision, ContextLength: 200000, Description: "Most powerful Claude model for complex tasks"},
		{ID: "claude-3-sonnet-20240229", Name: "Claude 3 Sonnet", Capabilities: chatCodeVision, ContextLength: 200000, Description: "Balance of intelligence and speed"},
		{ID: "claude-3-haiku-20240307", Name: "Claude 3 Haiku", Capabilities: chatCodeVision, ContextLength: 200000, Description: "Fastest and most compact Claude model"},
		{ID: "claude-2.1", Name: "Claude 2.1", Capabilities: chatCodeAnalysis, ContextLength: 200000},
	},
	Google: {
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Capabilities: chatCodeAnalysis, ContextLength: 1000000, Description: "Mid-size multimodal model with a very long context"},
		{ID: "gemini-1.5-pro-vision", Name: "Gemini 1.5 Pro Vision", Capabilities: chatCodeVision, ContextLength: 1000000},
		{ID: "gemini-pro", Name: "Gemini Pro", Capabilities: chatCodeAnalysis, ContextLength: 32000},
		{ID: "gemini-pro-vision", Name: "Gemini Pro Vision", Capabilities: chatVision, ContextLength: 16000},
	},
	OpenRouter: {
		{ID: AutoModelID, Name: "Auto (Best Available)", Capabilities: chatCodeAnalysis, ContextLength: 32768, Description: "Routes to the best available model", IsAuto: true},
		{ID: "openai/gpt-4-turbo-preview", Name: "GPT-4 Turbo", Capabilities: chatCodeAnalysis, ContextLength: 128000},
		{ID: "anthropic/claude-3-opus", Name: "Claude 3 Opus", Capabilities: chatCodeVision, ContextLength: 200000},
		{ID: "anthropic/claude-3-sonnet", Name: "Claude 3 Sonnet", Capabilities: chatCodeVision, ContextLength: 200000},
		{ID: "google/gemini-pro", Name: "Gemini Pro", Capabilities: chatCodeAnalysis, ContextLength: 32000},
		{ID: "mistralai/mixtral-8x7b-instruct", Name: "Mixtral 8x7B Instruct", Capabilities: chatCode, ContextLength: 32768},
	},
	Cloudflare: {
		{ID: "@cf/meta/llama-2-7b-chat-int8", Name: "Llama 2 7B Chat Int8", Capabilities: chatCode, ContextLength: 4096},
		{ID: "@cf/mistral/mistral-7b-instruct-v0.1", Name: "Mistral 7B Instruct V0.1", Capabilities: chatCode, ContextLength: 8192},
	},
}

var defaultModels = map[Provider]string{
	OpenAI:     "gpt-3.5-turbo-0125",
	Anthropic:  "claude-3-sonnet-20240229",
	Google:     "gemini-1.5-pro",
	OpenRouter: AutoModelID,
	Cloudflare: "@cf/meta/llama-2-7b-chat-int8",
}

// bestModelPreference lists id fragments in order of preference.
var bestModelPreference = map[Provider][]string{
	OpenAI:     {"gpt-4-0125-preview", "gpt-3.5-turbo-0125"},
	Anthropic:  {"opus", "sonnet"},
	Google:     {"gemini-1.5-pro", "gemini-pro"},
	OpenRouter: {"gpt-4-turbo-preview", "claude-3-opus", "gemini-pro"},
}

// StaticModels returns a copy of the built-in catalog for p.
func StaticModels(p Provider) []Model {
	src := staticModels[p]
	out := make([]Model, len(src))
	for i, m := range src {
		m.Provider = p
		m.Capabilities = append([]Capability(nil), m.Capabilities...)
		out[i] = m
	}
	return out
}

// DefaultModel returns the model a new chat starts with.
func DefaultModel(p Provider) string {
	if id, ok := defaultModels[p]; ok {
		return id
	}
	return defaultModels[OpenAI]
}

// SelectBestModel picks the preferred model from models. Auto models win for
// providers that aggregate, then the provider's preference list, then the
// first entry. It returns false when models is empty.
func SelectBestModel(p Provider, models []Model) (Model, bool) {
	if len(models) == 0 {
		return Model{}, false
	}

	if p == OpenRouter {
		for _, m := range models {
			if m.IsAuto {
				return m, true
			}
		}
	}

	for _, fragment := range bestModelPreference[p] {
		for _, m := range models {
			if matchesPreference(p, m.ID, fragment) {
				return m, true
			}
		}
	}

	return models[0], true
}

func matchesPreference(p Provider, id, fragment string) bool {
	switch p {
	case OpenAI, Google:
		return id == fragment
	default:
		return strings.Contains(id, fragment)
	}
}

var (
	displayPrefixes = regexp.MustCompile(`^(@cf/|@hf/|meta/|mistral/)+`)
	trailingDate    = regexp.MustCompile(`\s*\d{8}$`)
	sizeToken       = regexp.MustCompile(`^\d[\d.x]*b$`)
)

// ModelDisplayName turns a model id into a human label, for example
// "anthropic/claude-3-opus-20240229" becomes "Claude 3 Opus".
func ModelDisplayName(id string) string {
	name := id
	name = displayPrefixes.ReplaceAllString(name, "")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, part := range parts {
		switch {
		case sizeToken.MatchString(part):
			parts[i] = part[:len(part)-1] + "B"
		case part != "":
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}

	name = strings.Join(parts, " ")
	name = trailingDate.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(name), " ")
}
