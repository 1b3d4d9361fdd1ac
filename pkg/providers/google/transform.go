package google

import (
	"encoding/json"
	"slices"
	"strings"

	"multimind-hq/relay/pkg/providers"
)

// AutoModel is what "auto" resolves to.
const AutoModel = "gemini-1.0-pro"

const defaultContextLength = 32000

// Part is one piece of content.
type Part struct {
	Text string `json:"text"`
}

// Content is a role-tagged list of parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerationConfig holds the sampling parameters.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// GenerateRequest is the generateContent request body.
type GenerateRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

// APIError is the error object Gemini embeds in response bodies.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GenerateResponse is the generateContent response.
type GenerateResponse struct {
	Candidates []struct {
		Content      Content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *APIError `json:"error"`
}

// ModelList is the GET models response.
type ModelList struct {
	Models []struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		Description                string   `json:"description"`
		InputTokenLimit            int      `json:"inputTokenLimit"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

// NormalizeModel resolves "auto" and adds the "models/" prefix.
func NormalizeModel(model string) string {
	if model == providers.AutoModelID {
		model = AutoModel
	}
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func transformRequest(message string) *GenerateRequest {
	return &GenerateRequest{
		Contents: []Content{{
			Role:  providers.RoleUser,
			Parts: []Part{{Text: message}},
		}},
		GenerationConfig: GenerationConfig{
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 2048,
		},
	}
}

func decodeResponse(body []byte) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, providers.InvalidResponseError(providers.Google, "Invalid response format from API")
	}
	return &resp, nil
}

func transformResponse(body []byte) (*providers.Completion, error) {
	resp, err := decodeResponse(body)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, providers.InvalidResponseError(providers.Google, "Invalid response format from API")
	}
	text := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return nil, providers.InvalidResponseError(providers.Google, "Invalid response format from API")
	}

	completion := &providers.Completion{Response: text}
	if u := resp.UsageMetadata; u != nil {
		completion.Usage = &providers.TokenUsage{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.TotalTokenCount,
		}
	}
	return completion, nil
}

func transformModels(body []byte) ([]providers.Model, error) {
	var list ModelList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, providers.InvalidResponseError(providers.Google, "Invalid models response from API")
	}

	models := make([]providers.Model, 0, len(list.Models))
	for _, m := range list.Models {
		if !strings.Contains(m.Name, "gemini") || !slices.Contains(m.SupportedGenerationMethods, "generateContent") {
			continue
		}
		id := strings.TrimPrefix(m.Name, "models/")

		caps := []providers.Capability{providers.CapabilityChat, providers.CapabilityCode}
		if strings.Contains(id, "vision") {
			caps = append(caps, providers.CapabilityVision)
		}
		if strings.Contains(id, "pro") {
			caps = append(caps, providers.CapabilityAnalysis)
		}

		name := m.DisplayName
		if name == "" {
			name = providers.ModelDisplayName(id)
		}
		contextLength := m.InputTokenLimit
		if contextLength == 0 {
			contextLength = defaultContextLength
		}

		models = append(models, providers.Model{
			ID:            id,
			Name:          name,
			Provider:      providers.Google,
			Capabilities:  caps,
			ContextLength: contextLength,
			Description:   m.Description,
		})
	}
	return models, nil
}
