package openrouter

import (
	"encoding/json"
	"strings"

	"multimind-hq/relay/pkg/providers"
)

// AutoModel is what "auto" resolves to at send time.
const AutoModel = "mistralai/mixtral-8x7b-instruct"

const defaultContextLength = 4096

var excludedPatterns = []string{"broken", "debug", "test-", "deprecated"}

// ModelList is the GET /models response.
type ModelList struct {
	Data []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		ContextLength int    `json:"context_length"`
	} `json:"data"`
}

// ResolveModel maps "auto" to the concrete default.
func ResolveModel(model string) string {
	if model == providers.AutoModelID {
		return AutoModel
	}
	return model
}

func excluded(id string) bool {
	id = strings.ToLower(id)
	for _, pattern := range excludedPatterns {
		if strings.Contains(id, pattern) {
			return true
		}
	}
	return false
}

func transformModels(body []byte) ([]providers.Model, error) {
	var list ModelList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, providers.InvalidResponseError(providers.OpenRouter, "Invalid models response from API")
	}

	models := make([]providers.Model, 0, len(list.Data)+1)
	models = append(models, providers.Model{
		ID:            providers.AutoModelID,
		Name:          "Auto (Mixtral 8x7B)",
		Provider:      providers.OpenRouter,
		Capabilities:  []providers.Capability{providers.CapabilityChat, providers.CapabilityCode},
		ContextLength: 32768,
		Description:   "Automatically uses " + AutoModel,
		IsAuto:        true,
	})

	for _, m := range list.Data {
		if m.ID == "" || excluded(m.ID) {
			continue
		}
		name := m.Name
		if name == "" {
			name = providers.ModelDisplayName(m.ID)
		}
		contextLength := m.ContextLength
		if contextLength == 0 {
			contextLength = defaultContextLength
		}
		models = append(models, providers.Model{
			ID:            m.ID,
			Name:          name,
			Provider:      providers.OpenRouter,
			Capabilities:  []providers.Capability{providers.CapabilityChat, providers.CapabilityCode},
			ContextLength: contextLength,
			Description:   m.Description,
		})
	}
	return models, nil
}
