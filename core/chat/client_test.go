package chat

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nickmccarty/aiassist/providers/ai"
)

// scriptStep is one provider reply: either a response or an error.
type scriptStep struct {
	response *ai.ChatResponse
	err      error
}

// scriptedProvider replays a fixed sequence of replies and records every
// request it receives. When the script runs out, the last step repeats.
type scriptedProvider struct {
	name   string
	script []scriptStep

	mu       sync.Mutex
	requests []ai.ChatRequest
}

var _ ai.Provider = (*scriptedProvider)(nil)

func (p *scriptedProvider) Name() string {
	if p.name == "" {
		return "scripted"
	}
	return p.name
}

func (p *scriptedProvider) Generate(_ context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, request)

	idx := len(p.requests) - 1
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	step := p.script[idx]
	return step.response, step.err
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *scriptedProvider) lastRequest() ai.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

func (p *scriptedProvider) ValidateConfig() []string                { return nil }
func (p *scriptedProvider) WithAPIKey(string) ai.Provider           { return p }
func (p *scriptedProvider) WithBaseURL(string) ai.Provider          { return p }
func (p *scriptedProvider) WithHttpClient(*http.Client) ai.Provider { return p }

// sleepRecorder captures backoff delays instead of actually waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// newTestClient wires a client around the given providers with instant
// backoff sleeps.
func newTestClient(t *testing.T, recorder *sleepRecorder, opts ...Option) *Client {
	t.Helper()
	client, err := New(opts...)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	if recorder != nil {
		client.sleep = recorder.sleep
	}
	return client
}

func success(content string, tokens int) scriptStep {
	return scriptStep{response: &ai.ChatResponse{
		Content: content,
		Model:   "gpt-4o-mini",
		Usage:   &ai.Usage{TotalTokens: tokens},
	}}
}

func failure(kind ai.ErrorKind) scriptStep {
	return scriptStep{err: &ai.ProviderError{Kind: kind, Message: string(kind)}}
}

func TestNew_RequiresProvider(t *testing.T) {
	if _, err := New(); err != ErrNoProviders {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestGenerate_Success(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{success("hi there", 42)}}
	client := newTestClient(t, nil, WithProviders(provider))

	outcome := client.Generate(context.Background(), "hello", nil, "")
	if !outcome.Success {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.Content != "hi there" || outcome.TokensUsed != 42 {
		t.Errorf("content/tokens wrong: %+v", outcome)
	}
	if outcome.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", outcome.AttemptCount)
	}
	if outcome.Provider != "scripted" {
		t.Errorf("Provider = %q, want scripted", outcome.Provider)
	}
	if outcome.RequestID == "" {
		t.Errorf("expected a request id")
	}
}

func TestGenerate_RateLimitExhaustsRetries(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{failure(ai.KindRateLimit)}}
	recorder := &sleepRecorder{}
	client := newTestClient(t, recorder, WithProviders(provider), WithMaxRetries(3))

	outcome := client.Generate(context.Background(), "hello", nil, "")
	if outcome.Success {
		t.Fatalf("expected failure, got %+v", outcome)
	}
	if outcome.ErrorKind != ai.KindRateLimit {
		t.Errorf("ErrorKind = %v, want rate_limit", outcome.ErrorKind)
	}
	if outcome.AttemptCount != 4 {
		t.Errorf("AttemptCount = %d, want 4 (1 + 3 retries)", outcome.AttemptCount)
	}
	if provider.calls() != 4 {
		t.Errorf("provider called %d times, want 4", provider.calls())
	}

	// Capped exponential backoff between attempts: 1s, 2s, 4s.
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	got := recorder.recorded()
	if len(got) != len(want) {
		t.Fatalf("sleeps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGenerate_RateLimitThenSuccess(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{failure(ai.KindRateLimit), success("recovered", 7)}}
	recorder := &sleepRecorder{}
	client := newTestClient(t, recorder, WithProviders(provider))

	outcome := client.Generate(context.Background(), "hello", nil, "")
	if !outcome.Success {
		t.Fatalf("expected success after one retry, got %+v", outcome)
	}
	if outcome.AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, want 2", outcome.AttemptCount)
	}

	got := recorder.recorded()
	if len(got) != 1 || got[0] != time.Second {
		t.Errorf("expected exactly one 1s backoff, got %v", got)
	}
}

func TestGenerate_RateLimitBackoffIsCapped(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{failure(ai.KindRateLimit)}}
	recorder := &sleepRecorder{}
	client := newTestClient(t, recorder, WithProviders(provider), WithMaxRetries(7))

	client.Generate(context.Background(), "hello", nil, "")

	got := recorder.recorded()
	if len(got) != 7 {
		t.Fatalf("expected 7 sleeps, got %v", got)
	}
	// 2^6 = 64s exceeds the 60s cap.
	if got[6] != 60*time.Second {
		t.Errorf("sleep 7 = %v, want capped 60s", got[6])
	}
	if got[5] != 32*time.Second {
		t.Errorf("sleep 6 = %v, want uncapped 32s", got[5])
	}
}

func TestGenerate_ServiceErrorBackoffUncapped(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{failure(ai.KindServiceError)}}
	recorder := &sleepRecorder{}
	client := newTestClient(t, recorder, WithProviders(provider), WithMaxRetries(7))

	outcome := client.Generate(context.Background(), "hello", nil, "")
	if outcome.ErrorKind != ai.KindServiceError {
		t.Fatalf("ErrorKind = %v, want service_error", outcome.ErrorKind)
	}

	got := recorder.recorded()
	if len(got) != 7 {
		t.Fatalf("expected 7 sleeps, got %v", got)
	}
	// Service-error backoff has no cap: 2^6 = 64s.
	if got[6] != 64*time.Second {
		t.Errorf("sleep 7 = %v, want 64s", got[6])
	}
}

func TestGenerate_AuthenticationFailsImmediately(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{failure(ai.KindAuthentication)}}
	recorder := &sleepRecorder{}
	client := newTestClient(t, recorder, WithProviders(provider), WithMaxRetries(10))

	outcome := client.Generate(context.Background(), "hello", nil, "")
	if outcome.Success || outcome.ErrorKind != ai.KindAuthentication {
		t.Fatalf("expected authentication failure, got %+v", outcome)
	}
	if outcome.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", outcome.AttemptCount)
	}
	if sleeps := recorder.recorded(); len(sleeps) != 0 {
		t.Errorf("expected zero sleeps, got %v", sleeps)
	}
	if provider.calls() != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls())
	}
}

func TestGenerate_NonRetryableKinds(t *testing.T) {
	for _, kind := range []ai.ErrorKind{ai.KindInvalidRequest, ai.KindAuthentication, ai.KindQuotaExceeded} {
		t.Run(string(kind), func(t *testing.T) {
			provider := &scriptedProvider{script: []scriptStep{failure(kind)}}
			client := newTestClient(t, &sleepRecorder{}, WithProviders(provider), WithMaxRetries(5))

			outcome := client.Generate(context.Background(), "hello", nil, "")
			if outcome.Success || outcome.ErrorKind != kind {
				t.Fatalf("expected %v failure, got %+v", kind, outcome)
			}
			if provider.calls() != 1 {
				t.Errorf("%v must not be retried, provider called %d times", kind, provider.calls())
			}
			if outcome.ErrorMessage == "" {
				t.Errorf("expected a user-displayable message")
			}
		})
	}
}

func TestGenerate_UnknownErrorNotRetried(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{{err: fmt.Errorf("wire exploded")}}}
	client := newTestClient(t, &sleepRecorder{}, WithProviders(provider), WithMaxRetries(5))

	outcome := client.Generate(context.Background(), "hello", nil, "")
	if outcome.Success || outcome.ErrorKind != ai.KindUnknown {
		t.Fatalf("expected unknown failure, got %+v", outcome)
	}
	if outcome.AttemptCount != 1 || provider.calls() != 1 {
		t.Errorf("unknown errors must fail the current attempt without retry")
	}
}

func TestGenerate_ServiceErrorSwitchesProvider(t *testing.T) {
	primary := &scriptedProvider{name: "primary", script: []scriptStep{failure(ai.KindServiceError)}}
	secondary := &scriptedProvider{name: "secondary", script: []scriptStep{success("from fallback", 5)}}
	recorder := &sleepRecorder{}
	client := newTestClient(t, recorder, WithProviders(primary, secondary))

	outcome := client.Generate(context.Background(), "hello", nil, "")
	if !outcome.Success {
		t.Fatalf("expected fallback success, got %+v", outcome)
	}
	if outcome.Provider != "secondary" {
		t.Errorf("Provider = %q, want secondary", outcome.Provider)
	}
	if outcome.AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, want 2 (shared budget)", outcome.AttemptCount)
	}
	// Switching replaces the backoff sleep.
	if sleeps := recorder.recorded(); len(sleeps) != 0 {
		t.Errorf("expected no sleeps when switching providers, got %v", sleeps)
	}
	if primary.calls() != 1 || secondary.calls() != 1 {
		t.Errorf("calls: primary=%d secondary=%d, want 1/1", primary.calls(), secondary.calls())
	}
}

func TestGenerate_AuthFailureSwitchesProviderWhenAvailable(t *testing.T) {
	primary := &scriptedProvider{name: "primary", script: []scriptStep{failure(ai.KindAuthentication)}}
	secondary := &scriptedProvider{name: "secondary", script: []scriptStep{success("authorized elsewhere", 3)}}
	client := newTestClient(t, &sleepRecorder{}, WithProviders(primary, secondary))

	outcome := client.Generate(context.Background(), "hello", nil, "")
	if !outcome.Success || outcome.Provider != "secondary" {
		t.Fatalf("expected fallback to take over, got %+v", outcome)
	}
}

func TestGenerate_InvalidRequestNeverSwitches(t *testing.T) {
	primary := &scriptedProvider{name: "primary", script: []scriptStep{failure(ai.KindInvalidRequest)}}
	secondary := &scriptedProvider{name: "secondary", script: []scriptStep{success("unused", 1)}}
	client := newTestClient(t, &sleepRecorder{}, WithProviders(primary, secondary))

	outcome := client.Generate(context.Background(), "hello", nil, "")
	if outcome.Success || outcome.ErrorKind != ai.KindInvalidRequest {
		t.Fatalf("expected invalid_request failure, got %+v", outcome)
	}
	if secondary.calls() != 0 {
		t.Errorf("a malformed request must not reach the fallback provider")
	}
}

func TestGenerate_HistoryTrimmedToBudget(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{success("ok", 1)}}
	// 500 max tokens => budget of 5 trailing history messages.
	client := newTestClient(t, nil, WithProviders(provider), WithMaxTokens(500))

	var history []ai.Message
	for i := 0; i < 20; i++ {
		role := ai.RoleUser
		if i%2 == 1 {
			role = ai.RoleAssistant
		}
		history = append(history, ai.Message{Role: role, Content: fmt.Sprintf("entry %d", i)})
	}

	client.Generate(context.Background(), "current question", history, "")

	request := provider.lastRequest()
	if len(request.Messages) != 6 {
		t.Fatalf("expected 5 history messages + user message, got %d", len(request.Messages))
	}
	if request.Messages[0].Content != "entry 15" {
		t.Errorf("expected trailing window, first history entry = %q", request.Messages[0].Content)
	}
	last := request.Messages[len(request.Messages)-1]
	if last.Role != ai.RoleUser || last.Content != "current question" {
		t.Errorf("user message must come last, got %+v", last)
	}
}

func TestGenerate_SystemPromptOverride(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{success("ok", 1)}}
	client := newTestClient(t, nil, WithProviders(provider), WithSystemPrompt("default prompt"))

	client.Generate(context.Background(), "hi", nil, "")
	if got := provider.lastRequest().SystemPrompt; got != "default prompt" {
		t.Errorf("SystemPrompt = %q, want default", got)
	}

	client.Generate(context.Background(), "hi", nil, "special prompt")
	if got := provider.lastRequest().SystemPrompt; got != "special prompt" {
		t.Errorf("SystemPrompt = %q, want override", got)
	}
}

func TestStatistics(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{
		success("a", 10),
		success("b", 20),
		success("c", 30),
		failure(ai.KindAuthentication),
	}}
	client := newTestClient(t, nil, WithProviders(provider))

	for i := 0; i < 4; i++ {
		client.Generate(context.Background(), "hello", nil, "")
	}

	stats := client.Statistics()
	if stats.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", stats.TotalRequests)
	}
	if stats.SuccessfulRequests != 3 {
		t.Errorf("SuccessfulRequests = %d, want 3", stats.SuccessfulRequests)
	}
	if stats.FailedRequests != 1 {
		t.Errorf("FailedRequests = %d, want 1", stats.FailedRequests)
	}
	if stats.TotalTokensUsed != 60 {
		t.Errorf("TotalTokensUsed = %d, want 60", stats.TotalTokensUsed)
	}
	if stats.SuccessRatePercent != 75.0 {
		t.Errorf("SuccessRatePercent = %v, want 75.0", stats.SuccessRatePercent)
	}
	if stats.ActiveProvider != "scripted" {
		t.Errorf("ActiveProvider = %q", stats.ActiveProvider)
	}
}

func TestStatistics_EmptyClientHasNoDerivedValues(t *testing.T) {
	client := newTestClient(t, nil, WithProviders(&scriptedProvider{script: []scriptStep{success("x", 1)}}))

	stats := client.Statistics()
	if stats.SuccessRatePercent != 0 || stats.AverageResponseTime != 0 {
		t.Errorf("derived statistics must be 0 with no requests, got %+v", stats)
	}
}

func TestResetStatistics(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{success("a", 10)}}
	client := newTestClient(t, nil, WithProviders(provider))

	client.Generate(context.Background(), "hello", nil, "")
	client.ResetStatistics()

	stats := client.Statistics()
	if stats.TotalRequests != 0 || stats.TotalTokensUsed != 0 || stats.SuccessRatePercent != 0 {
		t.Errorf("expected zeroed statistics, got %+v", stats)
	}
}

func TestHealthCheck(t *testing.T) {
	healthy := newTestClient(t, nil, WithProviders(&scriptedProvider{script: []scriptStep{success("pong", 1)}}))
	if !healthy.HealthCheck(context.Background()) {
		t.Errorf("expected healthy")
	}

	sick := newTestClient(t, &sleepRecorder{}, WithProviders(&scriptedProvider{script: []scriptStep{failure(ai.KindAuthentication)}}))
	if sick.HealthCheck(context.Background()) {
		t.Errorf("expected unhealthy")
	}
}

// mapCache is a trivial in-memory Cache for tests.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]CachedResponse
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]CachedResponse)}
}

func (m *mapCache) Get(key string) (*CachedResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return &entry, true
}

func (m *mapCache) Put(key string, response CachedResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = response
}

func TestGenerate_CacheHitSkipsProvider(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{success("expensive answer", 50)}}
	cache := newMapCache()
	client := newTestClient(t, nil, WithProviders(provider), WithCache(cache))

	first := client.Generate(context.Background(), "same question", nil, "")
	if !first.Success || first.FromCache {
		t.Fatalf("first call must hit the provider, got %+v", first)
	}

	second := client.Generate(context.Background(), "same question", nil, "")
	if !second.Success || !second.FromCache {
		t.Fatalf("second call must be served from cache, got %+v", second)
	}
	if second.Content != "expensive answer" {
		t.Errorf("cached content = %q", second.Content)
	}
	if provider.calls() != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls())
	}

	stats := client.Statistics()
	if stats.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", stats.CacheHits)
	}
	if stats.TotalRequests != 2 || stats.SuccessfulRequests != 2 {
		t.Errorf("cache hits still count as requests: %+v", stats)
	}
	// The replay adds no new tokens.
	if stats.TotalTokensUsed != 50 {
		t.Errorf("TotalTokensUsed = %d, want 50", stats.TotalTokensUsed)
	}
}

func TestGenerate_DifferentQuestionsMissCache(t *testing.T) {
	provider := &scriptedProvider{script: []scriptStep{success("answer", 5)}}
	client := newTestClient(t, nil, WithProviders(provider), WithCache(newMapCache()))

	client.Generate(context.Background(), "question one", nil, "")
	client.Generate(context.Background(), "question two", nil, "")

	if provider.calls() != 2 {
		t.Errorf("distinct questions must both reach the provider, calls = %d", provider.calls())
	}
}

func TestCacheKey_SensitiveToAllInputs(t *testing.T) {
	base := CacheKey("m", "s", []ai.Message{{Role: ai.RoleUser, Content: "hi"}})

	variants := []string{
		CacheKey("m2", "s", []ai.Message{{Role: ai.RoleUser, Content: "hi"}}),
		CacheKey("m", "s2", []ai.Message{{Role: ai.RoleUser, Content: "hi"}}),
		CacheKey("m", "s", []ai.Message{{Role: ai.RoleAssistant, Content: "hi"}}),
		CacheKey("m", "s", []ai.Message{{Role: ai.RoleUser, Content: "hi there"}}),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d produced the same key", i)
		}
	}

	same := CacheKey("m", "s", []ai.Message{{Role: ai.RoleUser, Content: "hi"}})
	if same != base {
		t.Errorf("identical inputs must produce identical keys")
	}
}

func TestGenerate_TimingWrapsWholeLoop(t *testing.T) {
	slow := &scriptedProvider{script: []scriptStep{failure(ai.KindRateLimit), success("done", 1)}}
	recorder := &sleepRecorder{}
	client := newTestClient(t, recorder, WithProviders(slow))

	outcome := client.Generate(context.Background(), "hello", nil, "")
	if !outcome.Success {
		t.Fatal("expected success")
	}
	if outcome.ResponseTime < 0 {
		t.Errorf("negative response time: %v", outcome.ResponseTime)
	}
}

func TestValidateProviders(t *testing.T) {
	client := newTestClient(t, nil, WithProviders(&scriptedProvider{script: []scriptStep{success("x", 1)}}))
	if issues := client.ValidateProviders(); len(issues) != 0 {
		t.Errorf("scripted provider reports no issues, got %v", issues)
	}
}
