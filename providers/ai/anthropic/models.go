package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/nickmccarty/aiassist/internal/utils"
	"github.com/nickmccarty/aiassist/providers/ai"
)

/*
	ANTHROPIC MESSAGES API - REQUEST TYPES
*/

// anthropicRequest represents the request body for Anthropic's Messages API.
// Unlike chat completions, the system prompt is a top-level field and
// max_tokens is mandatory on every request.
type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"` // Required by Anthropic on every request
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

// anthropicMessage represents a single message in the conversation. Roles
// are restricted to "user" and "assistant"; system content travels in the
// top-level System field instead.
type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

// anthropicContentBlock is a text content block. The API also accepts plain
// strings, but the block form matches what responses carry.
type anthropicContentBlock struct {
	Type string `json:"type"` // "text"
	Text string `json:"text"`
}

/*
	ANTHROPIC MESSAGES API - RESPONSE TYPES
*/

// anthropicResponse represents the response from Anthropic's Messages API.
type anthropicResponse struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"` // "message"
	Role         string                 `json:"role"` // "assistant"
	Content      []responseContentBlock `json:"content"`
	Model        string                 `json:"model"`
	StopReason   string                 `json:"stop_reason"`
	StopSequence string                 `json:"stop_sequence,omitempty"`
	Usage        anthropicUsage         `json:"usage"`
}

// responseContentBlock represents a content block in the response. Block
// types other than "text" are skipped during conversion for
// forward-compatibility.
type responseContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// anthropicUsage reports token consumption for a single request. Anthropic
// does not return a total; it is derived as input + output.
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// anthropicAPIError is the error object Anthropic returns both inside the
// non-2xx error envelope and inside SSE "error" events.
type anthropicAPIError struct {
	Type    string `json:"type"`    // e.g. "rate_limit_error", "overloaded_error"
	Message string `json:"message"` // Human-readable description
}

// apiErrorEnvelope is the body of a non-2xx Anthropic response:
// {"type": "error", "error": {"type": ..., "message": ...}}
type apiErrorEnvelope struct {
	Type  string            `json:"type"`
	Error anthropicAPIError `json:"error"`
}

/*
	CONVERSION FUNCTIONS
*/

// requestToAnthropic converts ai.ChatRequest to the Messages API format.
// System-role messages are folded into the top-level system field because
// the messages array only admits user and assistant turns.
func requestToAnthropic(request ai.ChatRequest) anthropicRequest {
	req := anthropicRequest{
		Model:       request.Model,
		System:      request.SystemPrompt,
		Temperature: utils.Ptr(request.Temperature),
		MaxTokens:   request.MaxTokens,
	}

	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}

	for _, msg := range request.Messages {
		if msg.Role == ai.RoleSystem {
			if req.System == "" {
				req.System = msg.Content
			} else {
				req.System += "\n" + msg.Content
			}
			continue
		}

		req.Messages = append(req.Messages, anthropicMessage{
			Role: string(msg.Role),
			Content: []anthropicContentBlock{
				{Type: "text", Text: msg.Content},
			},
		})
	}

	return req
}

// anthropicToGeneric converts an Anthropic response to ai.ChatResponse.
// Text blocks are concatenated; other block types are ignored.
func anthropicToGeneric(resp anthropicResponse) *ai.ChatResponse {
	var textParts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}

	return &ai.ChatResponse{
		Id:           resp.ID,
		Model:        resp.Model,
		Content:      strings.Join(textParts, "\n"),
		FinishReason: mapStopReason(resp.StopReason),
		Usage: &ai.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

// mapStopReason converts an Anthropic stop_reason value to the canonical
// finish_reason string used by ai.ChatResponse.
func mapStopReason(stopReason string) string {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "":
		return ""
	default:
		return "stop"
	}
}

// parseAPIError extracts the message and machine-readable type from an
// Anthropic error body. Both are empty when the body does not match the
// documented envelope.
func parseAPIError(body []byte) (message, errType string) {
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", ""
	}
	return envelope.Error.Message, envelope.Error.Type
}
