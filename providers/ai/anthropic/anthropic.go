package anthropic

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/nickmccarty/aiassist/internal/utils"
	"github.com/nickmccarty/aiassist/providers/ai"
)

const (
	// defaultBaseURL is the canonical base URL for Anthropic's Messages API.
	defaultBaseURL = "https://api.anthropic.com/v1"

	// messagesEndpoint is the path for the Messages API endpoint.
	messagesEndpoint = "/messages"

	// anthropicVersion is the required anthropic-version header value.
	// Anthropic uses this to version-lock response formats independently of the URL.
	anthropicVersion = "2023-06-01"

	// defaultMaxTokens is used when the request does not specify a limit.
	// Anthropic rejects requests without max_tokens.
	defaultMaxTokens = 4096

	// apiKeyPrefix is the expected prefix of Anthropic API keys.
	apiKeyPrefix = "sk-ant-"
)

// AnthropicProvider implements the Provider interface for Anthropic's
// Messages API.
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// Compile-time interface checks
var (
	_ ai.Provider       = (*AnthropicProvider)(nil)
	_ ai.StreamProvider = (*AnthropicProvider)(nil)
)

// NewAnthropicProvider returns an AnthropicProvider initialized from
// environment variables. It reads ANTHROPIC_API_KEY for authentication and
// ANTHROPIC_API_BASE_URL for the endpoint base. Use the With* builders to
// override these values after construction.
func NewAnthropicProvider() *AnthropicProvider {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	baseURL := os.Getenv("ANTHROPIC_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &AnthropicProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// Name implements the Provider interface
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// WithAPIKey sets the API key for the provider
func (p *AnthropicProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API
func (p *AnthropicProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient sets a custom HTTP client
func (p *AnthropicProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// ValidateConfig reports configuration problems that would make every
// request fail. It never performs network I/O.
func (p *AnthropicProvider) ValidateConfig() []string {
	var issues []string
	if p.apiKey == "" {
		issues = append(issues, "ANTHROPIC_API_KEY is not set")
	} else if !strings.HasPrefix(p.apiKey, apiKeyPrefix) {
		issues = append(issues, "Anthropic API key should start with 'sk-ant-'")
	}
	return issues
}

// buildHeaders constructs the HTTP headers required for every Anthropic
// request. x-api-key carries the credential (Anthropic does not use Bearer
// tokens) and anthropic-version pins the wire format.
func (p *AnthropicProvider) buildHeaders() []utils.HeaderOption {
	return []utils.HeaderOption{
		{Key: "x-api-key", Value: p.apiKey},
		{Key: "anthropic-version", Value: anthropicVersion},
	}
}

// Generate implements the Provider interface via the Messages API. Failures
// are returned as *ai.ProviderError values so callers can branch on the
// error kind.
func (p *AnthropicProvider) Generate(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, ai.NewProviderError(ai.KindAuthentication, "API key is not set")
	}

	// Empty apiKey argument so DoPostSync does not inject a Bearer token;
	// Anthropic authenticates via x-api-key instead.
	_, resp, err := utils.DoPostSync[anthropicResponse](
		ctx,
		p.client,
		p.baseURL+messagesEndpoint,
		"",
		requestToAnthropic(request),
		p.buildHeaders()...,
	)
	if err != nil {
		return nil, p.classifyError(err)
	}

	if resp == nil || len(resp.Content) == 0 {
		return nil, ai.NewProviderError(ai.KindUnknown, "empty response content")
	}

	result := anthropicToGeneric(*resp)

	// Anthropic usually echoes the model name; fall back to the request model
	// so callers always have a non-empty Model field.
	if result.Model == "" {
		result.Model = request.Model
	}

	return result, nil
}

// classifyError converts HTTP-layer failures into *ai.ProviderError values.
// Anthropic reports exhausted credit as a 400 invalid_request_error whose
// message names the credit balance; that is a quota problem, not a malformed
// request.
func (p *AnthropicProvider) classifyError(err error) error {
	var statusErr *utils.HTTPStatusError
	if errors.As(err, &statusErr) {
		kind := ai.ClassifyStatus(statusErr.StatusCode)
		message, _ := parseAPIError(statusErr.Body)
		if kind == ai.KindInvalidRequest && strings.Contains(message, "credit balance") {
			kind = ai.KindQuotaExceeded
		}
		if message == "" {
			message = http.StatusText(statusErr.StatusCode)
		}
		return &ai.ProviderError{Kind: kind, StatusCode: statusErr.StatusCode, Message: message, Err: err}
	}

	if errors.Is(err, context.Canceled) {
		return &ai.ProviderError{Kind: ai.KindUnknown, Message: "request canceled", Err: err}
	}

	var urlErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &urlErr) {
		return &ai.ProviderError{Kind: ai.KindServiceError, Message: "failed to reach the Anthropic API", Err: err}
	}

	return err
}

// kindFromStreamError maps an SSE "error" event type to an ErrorKind.
// Overload and api errors are transient; rate limits map to their own kind.
func kindFromStreamError(errType string) ai.ErrorKind {
	switch errType {
	case "overloaded_error", "api_error":
		return ai.KindServiceError
	case "rate_limit_error":
		return ai.KindRateLimit
	case "authentication_error":
		return ai.KindAuthentication
	case "invalid_request_error":
		return ai.KindInvalidRequest
	default:
		return ai.KindUnknown
	}
}
