package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nickmccarty/aiassist/cache"
	"github.com/nickmccarty/aiassist/config"
	"github.com/nickmccarty/aiassist/core/chat"
	"github.com/nickmccarty/aiassist/core/history"
	"github.com/nickmccarty/aiassist/providers/ai"
	"github.com/nickmccarty/aiassist/providers/ai/anthropic"
	"github.com/nickmccarty/aiassist/providers/ai/openai"
)

// Terminal styles for the interactive loop.
var (
	bannerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1).Border(lipgloss.RoundedBorder())
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	answerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headlineStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Assistant is one interactive session: configuration, conversation store,
// request client, and optional response cache, driving a line-based REPL.
type Assistant struct {
	aiCfg  *config.AIConfig
	appCfg *config.AppConfig
	client *chat.Client
	store  *history.Store
	cache  *cache.ResponseCache
	logger *slog.Logger

	in     io.Reader
	out    io.Writer
	banner bool
}

// Option adjusts an Assistant at construction.
type Option func(*Assistant)

// WithIO redirects the session's input and output, used by tests.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *Assistant) {
		a.in = in
		a.out = out
	}
}

// WithBanner toggles the startup banner.
func WithBanner(enabled bool) Option {
	return func(a *Assistant) { a.banner = enabled }
}

// providerByName constructs a configured provider. Unknown names were
// rejected by config validation already.
func providerByName(name string, aiCfg *config.AIConfig) ai.Provider {
	switch name {
	case "anthropic":
		p := anthropic.NewAnthropicProvider()
		if aiCfg.AnthropicAPIKey != "" {
			p.WithAPIKey(aiCfg.AnthropicAPIKey)
		}
		return p
	default:
		p := openai.NewOpenAIProvider()
		if aiCfg.APIKey != "" {
			p.WithAPIKey(aiCfg.APIKey)
		}
		return p
	}
}

// New wires a full session from configuration. A cache that fails to open
// degrades to cache-off with a warning; a store that cannot create its data
// directory is fatal.
func New(aiCfg *config.AIConfig, appCfg *config.AppConfig, logger *slog.Logger, opts ...Option) (*Assistant, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Assistant{
		aiCfg:  aiCfg,
		appCfg: appCfg,
		logger: logger,
		in:     os.Stdin,
		out:    os.Stdout,
		banner: true,
	}
	for _, opt := range opts {
		opt(a)
	}

	store, err := history.New(appCfg.ConversationPath(),
		history.WithAutoSave(appCfg.AutoSave),
		history.WithMaxContext(appCfg.MaxHistoryContext),
		history.WithBackupOnCorruption(appCfg.BackupOnCorruption),
		history.WithRepair(appCfg.RepairCorruptFiles),
		history.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}
	a.store = store

	clientOpts := []chat.Option{
		chat.WithModel(aiCfg.Model),
		chat.WithMaxTokens(aiCfg.MaxTokens),
		chat.WithTemperature(aiCfg.Temperature),
		chat.WithTimeout(aiCfg.Timeout),
		chat.WithMaxRetries(aiCfg.MaxRetries),
		chat.WithSystemPrompt(aiCfg.SystemPrompt),
		chat.WithLogger(logger),
	}

	providers := []ai.Provider{providerByName(aiCfg.Provider, aiCfg)}
	for _, name := range aiCfg.FallbackProviders {
		providers = append(providers, providerByName(name, aiCfg))
	}
	clientOpts = append(clientOpts, chat.WithProviders(providers...))

	if appCfg.CacheEnabled {
		responseCache, err := cache.Open(appCfg.CachePath(),
			cache.WithTTL(appCfg.CacheTTL),
			cache.WithLogger(logger),
		)
		if err != nil {
			logger.Warn("response cache unavailable, continuing without it", "error", err)
		} else {
			a.cache = responseCache
			clientOpts = append(clientOpts, chat.WithCache(responseCache))
		}
	}

	client, err := chat.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build request client: %w", err)
	}
	a.client = client

	return a, nil
}

// Close releases the session's resources.
func (a *Assistant) Close() error {
	if a.cache != nil {
		return a.cache.Close()
	}
	return nil
}

func (a *Assistant) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *Assistant) println(s string) {
	fmt.Fprintln(a.out, s)
}

// Run drives the interactive loop until /quit, EOF, or a context
// cancellation between turns.
func (a *Assistant) Run(ctx context.Context) error {
	if a.banner {
		a.println(bannerStyle.Render(fmt.Sprintf(
			"AI Assistant\nmodel: %s  provider: %s\ntype /help for commands", a.aiCfg.Model, a.aiCfg.Provider)))
	}
	if issues := a.client.ValidateProviders(); len(issues) > 0 {
		for _, issue := range issues {
			a.println(errorStyle.Render("Warning: " + issue))
		}
	}

	scanner := bufio.NewScanner(a.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		if ctx.Err() != nil {
			break
		}
		a.printf("%s ", promptStyle.Render("You:"))
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := a.dispatch(ctx, line); quit {
				break
			}
			continue
		}

		a.chatTurn(ctx, line)
	}

	a.println(infoStyle.Render("Goodbye!"))
	return scanner.Err()
}

// chatTurn runs one full orchestrated exchange: context out of the store,
// generation through the client, successful result back into the store.
// Failures are displayed and never stored.
func (a *Assistant) chatTurn(ctx context.Context, userText string) {
	contextMessages := a.store.ProviderContext(0)
	outcome := a.client.Generate(ctx, userText, contextMessages, "")

	if !outcome.Success {
		a.println(errorStyle.Render("Sorry, I encountered an error: " + outcome.ErrorMessage))
		return
	}

	a.println(answerStyle.Render("AI: " + outcome.Content))
	a.recordExchange(userText, outcome)
}

// recordExchange appends a successful outcome to the store with its
// provenance in the metadata.
func (a *Assistant) recordExchange(userText string, outcome chat.Outcome) {
	metadata := map[string]any{
		"attempt_count": outcome.AttemptCount,
		"provider":      outcome.Provider,
		"request_id":    outcome.RequestID,
	}
	if outcome.FromCache {
		metadata["from_cache"] = true
	}
	a.store.AddExchange(userText, outcome.Content,
		history.WithTokens(outcome.TokensUsed),
		history.WithModel(outcome.ModelUsed),
		history.WithResponseTime(secondsToDuration(outcome.ResponseTime)),
		history.WithMetadata(metadata),
	)
}
