package ai

/*
	##### PROVIDER INPUT #####
*/

// ChatRequest represents a request to send a chat message
type ChatRequest struct {
	Model        string    `json:"model,omitempty"`         // Model name or identifier
	Messages     []Message `json:"messages"`                // All conversation messages except the system prompt
	SystemPrompt string    `json:"system_prompt,omitempty"` // Optional system prompt
	MaxTokens    int       `json:"max_tokens,omitempty"`    // Optional max tokens for the response
	Temperature  float64   `json:"temperature,omitempty"`   // Sampling temperature [0..2]. Higher => more random.
}

// Message represents a single message in a conversation
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content,omitempty"`
}

/*
	##### PROVIDER OUTPUT #####
*/

// Usage reports the token accounting of a single provider response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse represents the response from a chat completion
type ChatResponse struct {
	Id           string `json:"id"`
	Model        string `json:"model"`
	Created      int64  `json:"created"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// TotalTokens returns the total token count of the response, or 0 when the
// provider did not report usage.
func (r *ChatResponse) TotalTokens() int {
	if r == nil || r.Usage == nil {
		return 0
	}
	return r.Usage.TotalTokens
}

/*
	##### ENUMS #####
*/

// MessageRole represents the role of a message; compatible with string
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // System instructions/configuration
	RoleUser      MessageRole = "user"      // End-user message
	RoleAssistant MessageRole = "assistant" // Model response
)
