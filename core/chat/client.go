package chat

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nickmccarty/aiassist/core/cost"
	"github.com/nickmccarty/aiassist/internal/utils"
	"github.com/nickmccarty/aiassist/providers/ai"
)

const (
	defaultModel        = "gpt-4o-mini"
	defaultMaxTokens    = 1000
	defaultTemperature  = 0.7
	defaultTimeout      = 30 * time.Second
	defaultMaxRetries   = 3
	defaultSystemPrompt = "You are a helpful AI assistant for a marketing consultant."

	// historyBudgetDivisor converts the response token budget into a rough
	// bound on trailing history messages. A tunable policy constant, not
	// real token accounting.
	historyBudgetDivisor = 100

	// maxRateLimitBackoff caps the exponential backoff after a rate-limit
	// response. Service-error backoff is uncapped.
	maxRateLimitBackoff = 60 * time.Second

	// retriesExhaustedMessage is the defensive fallback shown when the
	// attempt loop runs out without a definitive branch taken.
	retriesExhaustedMessage = "Maximum retry attempts exceeded"
)

// ErrNoProviders is returned by New when no provider was configured.
var ErrNoProviders = errors.New("at least one provider is required")

// counters holds the raw accumulating statistics, guarded by Client.mu.
type counters struct {
	totalRequests      int
	successfulRequests int
	failedRequests     int
	totalTokensUsed    int
	totalResponseTime  float64
	estimatedCostUSD   float64
	cacheHits          int
}

// Client executes chat generations against an ordered list of providers
// with retry, backoff, and fallback. Create one with [New]; all methods are
// safe for concurrent use.
type Client struct {
	providers    []ai.Provider
	model        string
	maxTokens    int
	temperature  float64
	timeout      time.Duration
	maxRetries   int
	systemPrompt string
	cache        Cache
	logger       *slog.Logger

	// sleep performs the context-aware backoff wait; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	active int // index of the provider currently serving requests
	stats  counters
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithProviders sets the ordered provider list. The first entry is the
// primary; the rest are fallbacks tried round-robin after non-retryable
// provider failures.
func WithProviders(providers ...ai.Provider) Option {
	return func(c *Client) { c.providers = providers }
}

// WithModel sets the model identifier sent with every request.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens bounds the response length. Also drives the history budget
// heuristic.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) Option {
	return func(c *Client) { c.temperature = temperature }
}

// WithTimeout sets the per-attempt deadline. Backoff sleeps between
// attempts do not count against it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithMaxRetries sets the retry budget: a value of 3 means at most 4
// attempts, shared across all providers.
func WithMaxRetries(maxRetries int) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
	}
}

// WithSystemPrompt sets the default system prompt, used when a call does
// not override it.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) {
		if prompt != "" {
			c.systemPrompt = prompt
		}
	}
}

// WithCache attaches a response cache consulted before the provider call.
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithLogger sets the logger for attempt diagnostics. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a Client. At least one provider must be supplied via
// [WithProviders]; everything else has working defaults.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		model:        defaultModel,
		maxTokens:    defaultMaxTokens,
		temperature:  defaultTemperature,
		timeout:      defaultTimeout,
		maxRetries:   defaultMaxRetries,
		systemPrompt: defaultSystemPrompt,
		logger:       slog.Default(),
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.providers) == 0 {
		return nil, ErrNoProviders
	}
	return c, nil
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff computes the exponential delay for a 0-indexed attempt, optionally
// capped.
func backoff(attempt int, limit time.Duration) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	if limit > 0 && d > limit {
		d = limit
	}
	return d
}

// buildMessages assembles the ordered message list for a request: the
// trailing history slice bounded by the token-budget heuristic, then the
// current user message last. The system prompt travels separately in the
// request.
func (c *Client) buildMessages(history []ai.Message, userMessage string) []ai.Message {
	budget := c.maxTokens / historyBudgetDivisor
	if len(history) > budget {
		history = history[len(history)-budget:]
	}

	messages := make([]ai.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: userMessage})
	return messages
}

// activeProvider returns the provider currently serving requests.
func (c *Client) activeProvider() ai.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.providers[c.active]
}

// switchProvider advances to the next provider round-robin. Returns false
// when there is nothing to switch to (single-provider setup).
func (c *Client) switchProvider() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.providers) <= 1 {
		return false
	}
	previous := c.providers[c.active].Name()
	c.active = (c.active + 1) % len(c.providers)
	c.logger.Warn("switching to fallback provider",
		"from", previous, "to", c.providers[c.active].Name())
	return true
}

// Generate runs the full request lifecycle for one user message: build the
// bounded message list, try the active provider up to maxRetries+1 times
// with categorized error handling, and return the result as an Outcome.
// It never returns an error or panics; failures are data.
//
// history carries prior turns as alternating user/assistant messages (see
// the conversation store's ProviderContext). systemPromptOverride replaces
// the configured system prompt for this call only; pass "" to keep it.
func (c *Client) Generate(ctx context.Context, userMessage string, history []ai.Message, systemPromptOverride string) Outcome {
	requestID := uuid.NewString()
	timer := utils.NewTimer()

	systemPrompt := c.systemPrompt
	if systemPromptOverride != "" {
		systemPrompt = systemPromptOverride
	}
	messages := c.buildMessages(history, userMessage)

	c.mu.Lock()
	c.stats.totalRequests++
	c.mu.Unlock()

	var cacheKey string
	if c.cache != nil {
		cacheKey = CacheKey(c.model, systemPrompt, messages)
		if cached, ok := c.cache.Get(cacheKey); ok {
			return c.recordCacheHit(cached, requestID, timer)
		}
	}

	request := ai.ChatRequest{
		Model:        c.model,
		Messages:     messages,
		SystemPrompt: systemPrompt,
		MaxTokens:    c.maxTokens,
		Temperature:  c.temperature,
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		provider := c.activeProvider()

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		response, err := provider.Generate(attemptCtx, request)
		cancel()

		if err == nil && response != nil {
			return c.recordSuccess(provider, response, attempt+1, requestID, cacheKey, timer)
		}
		if err == nil {
			err = ai.NewProviderError(ai.KindUnknown, "provider returned an empty response")
		}

		kind := ai.KindOf(err)
		lastAttempt := attempt == c.maxRetries
		c.logger.Warn("generation attempt failed",
			"request_id", requestID,
			"provider", provider.Name(),
			"attempt", attempt+1,
			"kind", string(kind),
			"error", err)

		switch kind {
		case ai.KindRateLimit:
			if lastAttempt {
				return c.recordFailure(provider, kind, kind.UserMessage(), attempt+1, requestID, timer)
			}
			if sleepErr := c.sleep(ctx, backoff(attempt, maxRateLimitBackoff)); sleepErr != nil {
				return c.recordFailure(provider, kind, kind.UserMessage(), attempt+1, requestID, timer)
			}

		case ai.KindServiceError:
			if c.switchProvider() {
				if lastAttempt {
					return c.recordFailure(provider, kind, kind.UserMessage(), attempt+1, requestID, timer)
				}
				continue
			}
			if lastAttempt {
				return c.recordFailure(provider, kind, kind.UserMessage(), attempt+1, requestID, timer)
			}
			if sleepErr := c.sleep(ctx, backoff(attempt, 0)); sleepErr != nil {
				return c.recordFailure(provider, kind, kind.UserMessage(), attempt+1, requestID, timer)
			}

		case ai.KindInvalidRequest:
			// A malformed request is provider-independent; never retried,
			// never switched.
			return c.recordFailure(provider, kind, kind.UserMessage(), attempt+1, requestID, timer)

		case ai.KindAuthentication, ai.KindQuotaExceeded:
			if c.switchProvider() {
				if lastAttempt {
					return c.recordFailure(provider, kind, kind.UserMessage(), attempt+1, requestID, timer)
				}
				continue
			}
			return c.recordFailure(provider, kind, kind.UserMessage(), attempt+1, requestID, timer)

		default:
			if c.switchProvider() {
				if lastAttempt {
					return c.recordFailure(provider, kind, kind.UserMessage(), attempt+1, requestID, timer)
				}
				continue
			}
			return c.recordFailure(provider, kind, kind.UserMessage(), attempt+1, requestID, timer)
		}
	}

	// Every branch above returns or continues; reaching this point means the
	// loop structure changed without updating the branches.
	return c.recordFailure(c.activeProvider(), ai.KindUnknown, retriesExhaustedMessage, c.maxRetries+1, requestID, timer)
}

// recordSuccess updates the counters, feeds the cache, and builds the
// success outcome.
func (c *Client) recordSuccess(provider ai.Provider, response *ai.ChatResponse, attempts int, requestID, cacheKey string, timer *utils.Timer) Outcome {
	elapsed := timer.ElapsedSeconds()
	tokens := response.TotalTokens()
	model := response.Model
	if model == "" {
		model = c.model
	}
	requestCost := cost.CalculateCost(model, response.Usage)

	c.mu.Lock()
	c.stats.successfulRequests++
	c.stats.totalTokensUsed += tokens
	c.stats.totalResponseTime += elapsed
	c.stats.estimatedCostUSD += requestCost
	c.mu.Unlock()

	if c.cache != nil && cacheKey != "" {
		c.cache.Put(cacheKey, CachedResponse{Content: response.Content, TokensUsed: tokens, ModelUsed: model})
	}

	c.logger.Info("generation succeeded",
		"request_id", requestID,
		"provider", provider.Name(),
		"model", model,
		"attempts", attempts,
		"tokens", tokens,
		"response_time_seconds", elapsed)

	return Outcome{
		Success:      true,
		Content:      response.Content,
		TokensUsed:   tokens,
		ModelUsed:    model,
		ResponseTime: elapsed,
		AttemptCount: attempts,
		Provider:     provider.Name(),
		RequestID:    requestID,
	}
}

// recordFailure updates the counters and builds the failure outcome with
// the fixed user-displayable message for the kind.
func (c *Client) recordFailure(provider ai.Provider, kind ai.ErrorKind, message string, attempts int, requestID string, timer *utils.Timer) Outcome {
	elapsed := timer.ElapsedSeconds()

	c.mu.Lock()
	c.stats.failedRequests++
	c.stats.totalResponseTime += elapsed
	c.mu.Unlock()

	return Outcome{
		Success:      false,
		ErrorKind:    kind,
		ErrorMessage: message,
		ResponseTime: elapsed,
		AttemptCount: attempts,
		Provider:     provider.Name(),
		RequestID:    requestID,
	}
}

// recordCacheHit counts the hit and replays the cached response as a fresh
// successful outcome. No new tokens or cost accrue.
func (c *Client) recordCacheHit(cached *CachedResponse, requestID string, timer *utils.Timer) Outcome {
	elapsed := timer.ElapsedSeconds()

	c.mu.Lock()
	c.stats.successfulRequests++
	c.stats.cacheHits++
	c.stats.totalResponseTime += elapsed
	c.mu.Unlock()

	c.logger.Debug("response served from cache", "request_id", requestID)

	return Outcome{
		Success:      true,
		Content:      cached.Content,
		TokensUsed:   cached.TokensUsed,
		ModelUsed:    cached.ModelUsed,
		FromCache:    true,
		ResponseTime: elapsed,
		AttemptCount: 1,
		RequestID:    requestID,
	}
}

// HealthCheck sends a minimal canned message through the normal Generate
// path and reports whether it succeeded. It counts against the usage
// statistics like any other request.
func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.Generate(ctx, "Hello", nil, "").Success
}

// round2 rounds to two decimals for the derived statistics.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Statistics returns a snapshot of the usage counters with the derived
// success rate and average response time.
func (c *Client) Statistics() Statistics {
	c.mu.Lock()
	stats := c.stats
	active := c.active
	c.mu.Unlock()

	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}

	snapshot := Statistics{
		TotalRequests:      stats.totalRequests,
		SuccessfulRequests: stats.successfulRequests,
		FailedRequests:     stats.failedRequests,
		TotalTokensUsed:    stats.totalTokensUsed,
		TotalResponseTime:  stats.totalResponseTime,
		EstimatedCostUSD:   stats.estimatedCostUSD,
		CacheHits:          stats.cacheHits,
		Model:              c.model,
		MaxRetries:         c.maxRetries,
		Providers:          names,
		ActiveProvider:     names[active],
	}
	if stats.totalRequests > 0 {
		snapshot.SuccessRatePercent = round2(float64(stats.successfulRequests) / float64(stats.totalRequests) * 100)
		snapshot.AverageResponseTime = round2(stats.totalResponseTime / float64(stats.totalRequests))
	}
	return snapshot
}

// ResetStatistics zeroes all usage counters. The active provider index is
// left alone.
func (c *Client) ResetStatistics() {
	c.mu.Lock()
	c.stats = counters{}
	c.mu.Unlock()
}

// ValidateProviders collects the configuration issues reported by every
// configured provider, prefixed with the provider name.
func (c *Client) ValidateProviders() []string {
	var issues []string
	for _, p := range c.providers {
		for _, issue := range p.ValidateConfig() {
			issues = append(issues, p.Name()+": "+issue)
		}
	}
	return issues
}
