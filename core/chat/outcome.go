package chat

import "github.com/nickmccarty/aiassist/providers/ai"

// Outcome is the result of a single Generate call, discriminated by Success.
// Exactly one of the success fields (Content, TokensUsed, ModelUsed) or the
// failure fields (ErrorKind, ErrorMessage) is meaningful. Outcomes are
// constructed fresh per call and never persisted; the orchestrator projects
// a successful outcome into a stored exchange.
type Outcome struct {
	Success bool `json:"success"`

	// Success fields.
	Content    string `json:"content,omitempty"`
	TokensUsed int    `json:"tokens_used,omitempty"`
	ModelUsed  string `json:"model_used,omitempty"`
	FromCache  bool   `json:"from_cache,omitempty"`

	// Failure fields. ErrorMessage is safe to show to the user; diagnostic
	// detail goes to the log.
	ErrorKind    ai.ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`

	// Populated on both paths.
	ResponseTime float64 `json:"response_time_seconds"` // whole attempt loop, seconds
	AttemptCount int     `json:"attempt_count"`
	Provider     string  `json:"provider,omitempty"`
	RequestID    string  `json:"request_id,omitempty"`
}

// Statistics is a point-in-time snapshot of the client's usage counters,
// including the derived rate and average (both 0 when no requests were made,
// rounded to two decimals).
type Statistics struct {
	TotalRequests       int      `json:"total_requests"`
	SuccessfulRequests  int      `json:"successful_requests"`
	FailedRequests      int      `json:"failed_requests"`
	TotalTokensUsed     int      `json:"total_tokens_used"`
	TotalResponseTime   float64  `json:"total_response_time_seconds"`
	SuccessRatePercent  float64  `json:"success_rate_percent"`
	AverageResponseTime float64  `json:"average_response_time_seconds"`
	EstimatedCostUSD    float64  `json:"estimated_cost_usd"`
	CacheHits           int      `json:"cache_hits"`
	Model               string   `json:"model"`
	MaxRetries          int      `json:"max_retries"`
	Providers           []string `json:"providers"`
	ActiveProvider      string   `json:"active_provider"`
}
