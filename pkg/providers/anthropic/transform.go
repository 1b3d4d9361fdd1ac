package anthropic

import (
	"encoding/json"
	"strings"

	"multimind-hq/relay/pkg/providers"
)

const defaultMaxTokens = 2048

// MessagesRequest is the Anthropic messages request body.
type MessagesRequest struct {
	Model     string                  `json:"model"`
	MaxTokens int                     `json:"max_tokens"`
	Messages  []providers.ChatMessage `json:"messages"`
}

// ContentBlock is one block of an Anthropic response.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage is Anthropic's token accounting.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// MessagesResponse is the native response. Content is nil when the body
// came from a gateway speaking another envelope.
type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      *Usage         `json:"usage"`
}

func transformRequest(message, model string) *MessagesRequest {
	return &MessagesRequest{
		Model:     model,
		MaxTokens: defaultMaxTokens,
		Messages:  []providers.ChatMessage{{Role: providers.RoleUser, Content: message}},
	}
}

// transformResponse maps a native response, falling back to the shared
// envelopes for gateway traffic.
func transformResponse(body []byte) (*providers.Completion, error) {
	var resp MessagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, providers.InvalidResponseError(providers.Anthropic, "Invalid response format from API")
	}

	if len(resp.Content) > 0 {
		var sb strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			return nil, providers.InvalidResponseError(providers.Anthropic, "Invalid response format from API")
		}

		completion := &providers.Completion{Response: text}
		if resp.Usage != nil {
			completion.Usage = &providers.TokenUsage{
				PromptTokens:     resp.Usage.InputTokens,
				CompletionTokens: resp.Usage.OutputTokens,
				TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			}
		}
		return completion, nil
	}

	return providers.ParseEnvelope(providers.Anthropic, body)
}
