package openai

import (
	"encoding/json"
	"strings"

	"multimind-hq/relay/pkg/providers"
)

const (
	defaultMaxTokens   = 2048
	defaultTemperature = 0.7
)

// ChatRequest is the OpenAI chat completion request body.
type ChatRequest struct {
	Messages    []providers.ChatMessage `json:"messages"`
	Model       string                  `json:"model"`
	MaxTokens   int                     `json:"max_tokens"`
	Temperature float64                 `json:"temperature"`
}

// ModelList is the GET /models response.
type ModelList struct {
	Data []struct {
		ID      string `json:"id"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

// NewChatRequest builds the body shared by OpenAI-compatible endpoints.
func NewChatRequest(message, model string) *ChatRequest {
	return &ChatRequest{
		Messages:    []providers.ChatMessage{{Role: providers.RoleUser, Content: message}},
		Model:       model,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}
}

func transformModels(body []byte) ([]providers.Model, error) {
	var list ModelList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, providers.InvalidResponseError(providers.OpenAI, "Invalid models response from API")
	}

	models := make([]providers.Model, 0, len(list.Data))
	for _, m := range list.Data {
		if !strings.Contains(m.ID, "gpt") || strings.Contains(m.ID, "instruct") {
			continue
		}
		caps := []providers.Capability{providers.CapabilityChat, providers.CapabilityCode}
		if strings.Contains(m.ID, "gpt-4") {
			caps = append(caps, providers.CapabilityAnalysis)
		}
		models = append(models, providers.Model{
			ID:            m.ID,
			Name:          displayName(m.ID),
			Provider:      providers.OpenAI,
			Capabilities:  caps,
			ContextLength: contextLength(m.ID),
		})
	}
	return models, nil
}

// displayName title-cases the dash-separated id: "gpt-4-turbo" -> "Gpt 4 Turbo".
func displayName(id string) string {
	parts := strings.Split(id, "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

func contextLength(id string) int {
	switch {
	case strings.Contains(id, "32k"):
		return 32768
	case strings.Contains(id, "preview"), strings.Contains(id, "turbo") && strings.Contains(id, "gpt-4"):
		return 128000
	case strings.Contains(id, "gpt-4"):
		return 8192
	default:
		return 16385
	}
}
