package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nickmccarty/aiassist/internal/credential"
)

// Defaults, overridable per environment variable.
const (
	DefaultProvider      = "openai"
	DefaultModel         = "gpt-4o-mini"
	DefaultMaxTokens     = 1000
	DefaultTemperature   = 0.7
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultSystemPrompt  = "You are a helpful AI assistant for a marketing consultant."
	DefaultDataDirectory = "data"
	DefaultConversation  = "conversations.json"
	DefaultMaxHistory    = 20
	DefaultCacheFile     = "response_cache.db"
	DefaultCacheTTL      = 24 * time.Hour
	DefaultLogFile       = "ai_assistant.log"
)

// Validation bounds.
const (
	MinMaxTokens   = 1
	MaxMaxTokens   = 4096
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinTimeout     = 1 * time.Second
	MaxTimeout     = 300 * time.Second
	MinMaxRetries  = 0
	MaxMaxRetries  = 10
)

// AIConfig holds everything the request client needs. Built once by
// [LoadAIConfig] and passed down by reference; never mutated afterwards.
type AIConfig struct {
	Provider          string
	FallbackProviders []string
	Model             string
	APIKey            string // OpenAI
	AnthropicAPIKey   string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
	MaxRetries        int
	SystemPrompt      string
}

// AppConfig holds storage, cache, and logging settings.
type AppConfig struct {
	DataDirectory      string
	ConversationFile   string
	MaxHistoryContext  int
	AutoSave           bool
	BackupOnCorruption bool
	RepairCorruptFiles bool
	CacheEnabled       bool
	CacheFile          string
	CacheTTL           time.Duration
	LogLevel           string
	LogFormat          string
	LogFile            string
}

// ConversationPath returns the full path of the conversation file.
func (c *AppConfig) ConversationPath() string {
	return filepath.Join(c.DataDirectory, c.ConversationFile)
}

// CachePath returns the full path of the response cache database.
func (c *AppConfig) CachePath() string {
	return filepath.Join(c.DataDirectory, c.CacheFile)
}

// LogPath returns the full path of the log file.
func (c *AppConfig) LogPath() string {
	return filepath.Join(c.DataDirectory, c.LogFile)
}

// envString returns the trimmed value of name, or fallback when unset or
// blank.
func envString(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

// envInt parses an integer variable, reporting the variable name on
// failure.
func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

// envFloat parses a float variable, reporting the variable name on failure.
func envFloat(name string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", name, raw)
	}
	return v, nil
}

// envBool parses a boolean variable. Accepts the strconv.ParseBool forms
// plus yes/no and on/off.
func envBool(name string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback, nil
	}
	switch raw {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", name, raw)
	}
	return v, nil
}

// resolveKey returns the API key for envName, falling back to the OS
// keyring entry. Keyring failures are logged at debug level and degrade to
// an empty key; a missing key is a validation concern for the provider, not
// a config load failure.
func resolveKey(envName, keyringName string) string {
	if key := strings.TrimSpace(os.Getenv(envName)); key != "" {
		return key
	}
	key, err := credential.Get(keyringName)
	if err != nil {
		slog.Debug("keyring lookup failed", "credential", keyringName, "error", err)
		return ""
	}
	return key
}

// knownProviders lists the provider names this binary can construct.
var knownProviders = map[string]bool{"openai": true, "anthropic": true}

// LoadAIConfig builds and validates an AIConfig from the environment.
func LoadAIConfig() (*AIConfig, error) {
	cfg := &AIConfig{
		Provider:        strings.ToLower(envString("AI_PROVIDER", DefaultProvider)),
		Model:           envString("AI_MODEL", DefaultModel),
		APIKey:          resolveKey("OPENAI_API_KEY", credential.OpenAIAPIKey),
		AnthropicAPIKey: resolveKey("ANTHROPIC_API_KEY", credential.AnthropicAPIKey),
		SystemPrompt:    envString("SYSTEM_PROMPT", DefaultSystemPrompt),
	}

	if raw := envString("AI_FALLBACK_PROVIDERS", ""); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" || name == cfg.Provider {
				continue
			}
			cfg.FallbackProviders = append(cfg.FallbackProviders, name)
		}
	}

	var err error
	if cfg.MaxTokens, err = envInt("MAX_TOKENS", DefaultMaxTokens); err != nil {
		return nil, err
	}
	if cfg.Temperature, err = envFloat("TEMPERATURE", DefaultTemperature); err != nil {
		return nil, err
	}
	timeoutSeconds, err := envInt("AI_TIMEOUT", int(DefaultTimeout/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.Timeout = time.Duration(timeoutSeconds) * time.Second
	if cfg.MaxRetries, err = envInt("AI_MAX_RETRIES", DefaultMaxRetries); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AIConfig) validate() error {
	if !knownProviders[c.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of openai, anthropic; got %q", c.Provider)
	}
	for _, name := range c.FallbackProviders {
		if !knownProviders[name] {
			return fmt.Errorf("AI_FALLBACK_PROVIDERS contains unknown provider %q", name)
		}
	}
	if c.MaxTokens < MinMaxTokens || c.MaxTokens > MaxMaxTokens {
		return fmt.Errorf("MAX_TOKENS must be in [%d, %d], got %d", MinMaxTokens, MaxMaxTokens, c.MaxTokens)
	}
	if c.Temperature < MinTemperature || c.Temperature > MaxTemperature {
		return fmt.Errorf("TEMPERATURE must be in [%.1f, %.1f], got %g", MinTemperature, MaxTemperature, c.Temperature)
	}
	if c.Timeout < MinTimeout || c.Timeout > MaxTimeout {
		return fmt.Errorf("AI_TIMEOUT must be in [%d, %d] seconds, got %d",
			int(MinTimeout/time.Second), int(MaxTimeout/time.Second), int(c.Timeout/time.Second))
	}
	if c.MaxRetries < MinMaxRetries || c.MaxRetries > MaxMaxRetries {
		return fmt.Errorf("AI_MAX_RETRIES must be in [%d, %d], got %d", MinMaxRetries, MaxMaxRetries, c.MaxRetries)
	}
	return nil
}

// LoadAppConfig builds and validates an AppConfig from the environment.
func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		DataDirectory:    envString("DATA_DIRECTORY", DefaultDataDirectory),
		ConversationFile: envString("CONVERSATION_FILE", DefaultConversation),
		CacheFile:        envString("CACHE_FILE", DefaultCacheFile),
		LogLevel:         envString("LOG_LEVEL", "INFO"),
		LogFormat:        envString("LOG_FORMAT", "text"),
		LogFile:          envString("LOG_FILE", DefaultLogFile),
	}

	var err error
	if cfg.MaxHistoryContext, err = envInt("MAX_HISTORY_CONTEXT", DefaultMaxHistory); err != nil {
		return nil, err
	}
	if cfg.AutoSave, err = envBool("AUTO_SAVE", true); err != nil {
		return nil, err
	}
	if cfg.BackupOnCorruption, err = envBool("BACKUP_ON_CORRUPTION", true); err != nil {
		return nil, err
	}
	if cfg.RepairCorruptFiles, err = envBool("REPAIR_CORRUPT_FILES", false); err != nil {
		return nil, err
	}
	if cfg.CacheEnabled, err = envBool("CACHE_ENABLED", false); err != nil {
		return nil, err
	}
	ttlHours, err := envInt("CACHE_TTL_HOURS", int(DefaultCacheTTL/time.Hour))
	if err != nil {
		return nil, err
	}
	cfg.CacheTTL = time.Duration(ttlHours) * time.Hour

	if cfg.MaxHistoryContext < 0 {
		return nil, fmt.Errorf("MAX_HISTORY_CONTEXT must be >= 0, got %d", cfg.MaxHistoryContext)
	}
	if ttlHours <= 0 {
		return nil, fmt.Errorf("CACHE_TTL_HOURS must be > 0, got %d", ttlHours)
	}
	return cfg, nil
}
