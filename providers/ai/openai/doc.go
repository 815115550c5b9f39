// Package openai implements the ai.Provider interface on top of the OpenAI
// chat completions API (/v1/chat/completions), speaking raw HTTP without an
// SDK dependency.
//
// The main entry point is [NewOpenAIProvider], which reads OPENAI_API_KEY and
// OPENAI_API_BASE_URL from the environment. Use [OpenAIProvider.WithAPIKey]
// and [OpenAIProvider.WithBaseURL] to override these values programmatically.
//
// API failures are returned as [ai.ProviderError] values classified by kind
// (rate limit, authentication, quota, invalid request, service error) so
// callers can decide whether to retry. Streaming is available through
// [OpenAIProvider.Stream], which returns an [ai.ChatStream] iterator over
// incremental SSE events.
package openai
