// Package anthropic implements the ai.Provider interface on top of
// Anthropic's Messages API (/v1/messages), speaking raw HTTP without an SDK
// dependency. Requests authenticate with the x-api-key header and pin the
// wire format via anthropic-version.
//
// The main entry point is [NewAnthropicProvider], which reads
// ANTHROPIC_API_KEY and ANTHROPIC_API_BASE_URL from the environment. API
// failures are returned as [ai.ProviderError] values classified by kind so
// callers can decide whether to retry. Streaming is available through
// [AnthropicProvider.Stream].
package anthropic
