package openai

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
	defaultBaseURL          = "https://api.openai.com/v1"
	chatCompletionsEndpoint = "/chat/completions"

	// apiKeyPrefix is the expected prefix of OpenAI API keys. A key without
	// it almost always means a copy/paste mistake, so ValidateConfig flags it.
	apiKeyPrefix = "sk-"
)

// OpenAIProvider implements the Provider interface for the OpenAI API
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// Compile-time interface checks
var (
	_ ai.Provider       = (*OpenAIProvider)(nil)
	_ ai.StreamProvider = (*OpenAIProvider)(nil)
)

// NewOpenAIProvider creates a new OpenAI provider instance with default
// values. The API key is read from OPENAI_API_KEY and the base URL from
// OPENAI_API_BASE_URL; both can be overridden via the With* builders.
func NewOpenAIProvider() *OpenAIProvider {
	apiKey := os.Getenv("OPENAI_API_KEY")
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// Name implements the Provider interface
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// WithAPIKey sets the API key for the provider
func (p *OpenAIProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API
func (p *OpenAIProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient sets a custom HTTP client
func (p *OpenAIProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// ValidateConfig reports configuration problems that would make every
// request fail. It never performs network I/O.
func (p *OpenAIProvider) ValidateConfig() []string {
	var issues []string
	if p.apiKey == "" {
		issues = append(issues, "OPENAI_API_KEY is not set")
	} else if !strings.HasPrefix(p.apiKey, apiKeyPrefix) {
		issues = append(issues, "OpenAI API key should start with 'sk-'")
	}
	return issues
}

// Generate implements the Provider interface via the chat completions
// endpoint. Failures are returned as *ai.ProviderError values so callers can
// branch on the error kind.
func (p *OpenAIProvider) Generate(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, ai.NewProviderError(ai.KindAuthentication, "API key is not set")
	}

	_, resp, err := utils.DoPostSync[chatCompletionResponse](ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, requestToChatCompletion(request))
	if err != nil {
		return nil, p.classifyError(err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return nil, ai.NewProviderError(ai.KindUnknown, "no choices in response")
	}

	return responseToGeneric(*resp), nil
}

// classifyError converts HTTP-layer failures into *ai.ProviderError values.
// A 429 whose payload names insufficient_quota is a quota problem, not a
// rate limit: backing off will not make it pass.
func (p *OpenAIProvider) classifyError(err error) error {
	var statusErr *utils.HTTPStatusError
	if errors.As(err, &statusErr) {
		kind := ai.ClassifyStatus(statusErr.StatusCode)
		message, code := parseAPIError(statusErr.Body)
		if statusErr.StatusCode == http.StatusTooManyRequests && code == "insufficient_quota" {
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
		return &ai.ProviderError{Kind: ai.KindServiceError, Message: "failed to reach the OpenAI API", Err: err}
	}

	return err
}
