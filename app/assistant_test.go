package app

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nickmccarty/aiassist/config"
	"github.com/nickmccarty/aiassist/core/chat"
	"github.com/nickmccarty/aiassist/core/history"
	"github.com/nickmccarty/aiassist/providers/ai"
)

// cannedProvider answers every request with a fixed response or error.
type cannedProvider struct {
	response *ai.ChatResponse
	err      error
}

var _ ai.Provider = (*cannedProvider)(nil)

func (p *cannedProvider) Name() string { return "canned" }
func (p *cannedProvider) Generate(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
	return p.response, p.err
}
func (p *cannedProvider) ValidateConfig() []string                { return nil }
func (p *cannedProvider) WithAPIKey(string) ai.Provider           { return p }
func (p *cannedProvider) WithBaseURL(string) ai.Provider          { return p }
func (p *cannedProvider) WithHttpClient(*http.Client) ai.Provider { return p }

// newTestAssistant builds a session around a canned provider with scripted
// stdin and captured stdout.
func newTestAssistant(t *testing.T, provider ai.Provider, input string) (*Assistant, *bytes.Buffer) {
	t.Helper()

	store, err := history.New(filepath.Join(t.TempDir(), "conversations.json"))
	if err != nil {
		t.Fatal(err)
	}
	client, err := chat.New(chat.WithProviders(provider), chat.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}

	out := &bytes.Buffer{}
	return &Assistant{
		aiCfg:  &config.AIConfig{Model: "gpt-4o-mini", Provider: "openai"},
		appCfg: &config.AppConfig{DataDirectory: t.TempDir()},
		client: client,
		store:  store,
		logger: slog.Default(),
		in:     strings.NewReader(input),
		out:    out,
	}, out
}

func TestRun_ChatTurnStoresExchange(t *testing.T) {
	provider := &cannedProvider{response: &ai.ChatResponse{
		Content: "Hi! How can I help?",
		Model:   "gpt-4o-mini",
		Usage:   &ai.Usage{TotalTokens: 8},
	}}
	assistant, out := newTestAssistant(t, provider, "hello there\n/quit\n")

	if err := assistant.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !strings.Contains(out.String(), "Hi! How can I help?") {
		t.Errorf("response not shown to the user: %q", out.String())
	}
	if assistant.store.Len() != 1 {
		t.Fatalf("expected 1 stored exchange, got %d", assistant.store.Len())
	}

	stored := assistant.store.RecentExchanges(1)[0]
	if stored.User != "hello there" || stored.Assistant != "Hi! How can I help?" {
		t.Errorf("stored exchange wrong: %+v", stored)
	}
	if stored.TokensUsed != 8 || stored.ModelUsed != "gpt-4o-mini" {
		t.Errorf("provenance fields missing: %+v", stored)
	}
	if stored.Metadata["provider"] != "canned" {
		t.Errorf("metadata should name the provider, got %v", stored.Metadata)
	}
}

func TestRun_FailedOutcomeNotStored(t *testing.T) {
	provider := &cannedProvider{err: &ai.ProviderError{Kind: ai.KindAuthentication, Message: "bad key"}}
	assistant, out := newTestAssistant(t, provider, "hello\n/quit\n")

	if err := assistant.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(out.String(), "Sorry, I encountered an error:") {
		t.Errorf("failure must be shown as a short message: %q", out.String())
	}
	if !strings.Contains(out.String(), "Authentication failed") {
		t.Errorf("expected the categorized message, got %q", out.String())
	}
	if assistant.store.Len() != 0 {
		t.Errorf("failed outcomes must never be stored, got %d exchanges", assistant.store.Len())
	}
}

func TestRun_EOFExitsCleanly(t *testing.T) {
	provider := &cannedProvider{response: &ai.ChatResponse{Content: "ok"}}
	assistant, out := newTestAssistant(t, provider, "")

	if err := assistant.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Goodbye!") {
		t.Errorf("expected a goodbye line on EOF")
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	provider := &cannedProvider{response: &ai.ChatResponse{Content: "ok"}}
	assistant, out := newTestAssistant(t, provider, "/frobnicate\n/quit\n")

	if err := assistant.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "/help") {
		t.Errorf("unknown command should hint at /help: %q", out.String())
	}
}

func TestDispatch_HelpAndStats(t *testing.T) {
	provider := &cannedProvider{response: &ai.ChatResponse{
		Content: "answer", Usage: &ai.Usage{TotalTokens: 5},
	}}
	assistant, out := newTestAssistant(t, provider, "question\n/help\n/stats\n/quit\n")

	if err := assistant.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	text := out.String()
	if !strings.Contains(text, "/export") {
		t.Errorf("help output incomplete: %q", text)
	}
	if !strings.Contains(text, "Request statistics") || !strings.Contains(text, "Conversation statistics") {
		t.Errorf("stats output incomplete: %q", text)
	}
	if !strings.Contains(text, "1 total, 1 ok, 0 failed") {
		t.Errorf("expected request counters in stats: %q", text)
	}
}

func TestDispatch_HistoryAndSearch(t *testing.T) {
	provider := &cannedProvider{response: &ai.ChatResponse{Content: "the capital of France is Paris"}}
	assistant, out := newTestAssistant(t, provider,
		"what is the capital of France?\n/history\n/search paris\n/search nosuchterm\n/quit\n")

	if err := assistant.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	text := out.String()
	if strings.Count(text, "capital of France") < 2 {
		t.Errorf("history should replay the exchange: %q", text)
	}
	if !strings.Contains(text, "1 match(es)") {
		t.Errorf("search should find the exchange case-insensitively: %q", text)
	}
	if !strings.Contains(text, "No matches.") {
		t.Errorf("missing no-match message: %q", text)
	}
}

func TestDispatch_ExportAndClear(t *testing.T) {
	provider := &cannedProvider{response: &ai.ChatResponse{Content: "something"}}
	assistant, out := newTestAssistant(t, provider, "say something\n/export json\n/clear\n/export json\n/quit\n")

	if err := assistant.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	text := out.String()
	if !strings.Contains(text, "Exported to ") {
		t.Errorf("expected export confirmation: %q", text)
	}
	if !strings.Contains(text, "cleared") {
		t.Errorf("expected clear confirmation: %q", text)
	}
	// The second export runs against an empty store.
	if !strings.Contains(text, "Nothing to export.") {
		t.Errorf("expected empty-export message: %q", text)
	}
	if assistant.store.Len() != 0 {
		t.Errorf("store not cleared")
	}
}

func TestDispatch_HealthCheck(t *testing.T) {
	healthy := &cannedProvider{response: &ai.ChatResponse{Content: "pong"}}
	assistant, out := newTestAssistant(t, healthy, "/health\n/quit\n")
	if err := assistant.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "reachable") {
		t.Errorf("expected healthy report: %q", out.String())
	}

	sick := &cannedProvider{err: &ai.ProviderError{Kind: ai.KindServiceError, Message: "down"}}
	assistant, out = newTestAssistant(t, sick, "/health\n/quit\n")
	if err := assistant.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "not responding") {
		t.Errorf("expected unhealthy report: %q", out.String())
	}
}

func TestNew_WiresConfiguredProviders(t *testing.T) {
	aiCfg := &config.AIConfig{
		Provider:          "openai",
		FallbackProviders: []string{"anthropic"},
		Model:             "gpt-4o-mini",
		MaxTokens:         1000,
		Temperature:       0.7,
		Timeout:           config.DefaultTimeout,
		MaxRetries:        2,
		SystemPrompt:      "test prompt",
	}
	appCfg := &config.AppConfig{
		DataDirectory:      t.TempDir(),
		ConversationFile:   "conversations.json",
		MaxHistoryContext:  10,
		AutoSave:           true,
		BackupOnCorruption: true,
		CacheEnabled:       true,
		CacheFile:          "cache.db",
		CacheTTL:           config.DefaultCacheTTL,
	}

	assistant, err := New(aiCfg, appCfg, slog.Default(), WithBanner(false))
	if err != nil {
		t.Fatalf("wiring failed: %v", err)
	}
	defer assistant.Close()

	stats := assistant.client.Statistics()
	if len(stats.Providers) != 2 || stats.Providers[0] != "openai" || stats.Providers[1] != "anthropic" {
		t.Errorf("providers = %v, want [openai anthropic]", stats.Providers)
	}
	if assistant.cache == nil {
		t.Errorf("expected the response cache to be wired")
	}
	if assistant.store.Path() != appCfg.ConversationPath() {
		t.Errorf("store path = %q, want %q", assistant.store.Path(), appCfg.ConversationPath())
	}
}
