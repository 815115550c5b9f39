package ai

import (
	"context"
	"net/http"
)

// StreamProvider is an optional interface that providers can implement to
// support streaming (SSE-based) responses. Callers detect streaming support
// via type assertion: provider.(StreamProvider). If the provider does not
// implement this interface, callers should fall back to the synchronous
// Generate method.
type StreamProvider interface {
	Provider
	// Stream sends a chat request and returns a ChatStream that yields
	// incremental deltas as they arrive from the API. Pre-stream errors
	// (auth, bad request, network) are returned as a normal error.
	// Mid-stream errors are yielded through the iterator.
	Stream(ctx context.Context, request ChatRequest) (*ChatStream, error)
}

// Provider is the capability interface every AI backend must satisfy. It
// covers the full lifecycle of a single request: authentication, endpoint
// configuration, message dispatch, and response interpretation. Use
// [StreamProvider] in addition when the backend supports streaming.
type Provider interface {
	// Name returns the short identifier of the backend ("openai",
	// "anthropic"). It labels outcomes, logs, and statistics.
	Name() string

	// Generate sends a chat request and returns the completed response.
	// Failures are returned as *ProviderError values classified by
	// ErrorKind so callers can decide whether to retry; any other error
	// means the request never produced a classifiable provider reply.
	Generate(ctx context.Context, request ChatRequest) (*ChatResponse, error)

	// ValidateConfig reports human-readable configuration problems
	// (missing or malformed API key, unknown model). An empty slice
	// means the provider is ready to use.
	ValidateConfig() []string

	// WithAPIKey sets the API key used for authenticating requests.
	WithAPIKey(apiKey string) Provider

	// WithBaseURL overrides the default base URL for API requests.
	WithBaseURL(baseURL string) Provider

	// WithHttpClient sets the HTTP client used for outbound requests.
	WithHttpClient(httpClient *http.Client) Provider
}
