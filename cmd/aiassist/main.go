// Command aiassist is an interactive AI chat assistant with persistent
// conversation history.
//
// Configuration comes from environment variables, optionally loaded from a
// .env file. API keys can be stored once in the OS keyring with
// --set-openai-key / --set-anthropic-key instead of living in the
// environment.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/nickmccarty/aiassist/app"
	"github.com/nickmccarty/aiassist/config"
	"github.com/nickmccarty/aiassist/internal/credential"
	"github.com/nickmccarty/aiassist/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

type options struct {
	EnvFile         string `long:"env-file" description:"Path to a .env file to load" default:".env"`
	LogLevel        string `long:"log-level" description:"Override LOG_LEVEL (DEBUG, INFO, WARN, ERROR)"`
	NoBanner        bool   `long:"no-banner" description:"Suppress the startup banner"`
	SetOpenAIKey    string `long:"set-openai-key" description:"Store an OpenAI API key in the OS keyring and exit" value-name:"KEY"`
	SetAnthropicKey string `long:"set-anthropic-key" description:"Store an Anthropic API key in the OS keyring and exit" value-name:"KEY"`
	Version         bool   `long:"version" description:"Print the version and exit"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return nil
		}
		return err
	}

	if opts.Version {
		fmt.Println("aiassist", version)
		return nil
	}

	if opts.SetOpenAIKey != "" {
		if err := credential.Set(credential.OpenAIAPIKey, opts.SetOpenAIKey); err != nil {
			return err
		}
		fmt.Println("OpenAI API key stored in the OS keyring.")
		return nil
	}
	if opts.SetAnthropicKey != "" {
		if err := credential.Set(credential.AnthropicAPIKey, opts.SetAnthropicKey); err != nil {
			return err
		}
		fmt.Println("Anthropic API key stored in the OS keyring.")
		return nil
	}

	// A missing .env file is fine; explicit settings simply come from the
	// environment.
	if err := godotenv.Load(opts.EnvFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", opts.EnvFile, err)
	}

	appCfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}
	aiCfg, err := config.LoadAIConfig()
	if err != nil {
		return err
	}

	level := appCfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, closeLog := logging.New(logging.Options{
		Level:  level,
		Format: appCfg.LogFormat,
		File:   appCfg.LogPath(),
	})
	defer func() {
		if err := closeLog(); err != nil {
			fmt.Fprintln(os.Stderr, "Warning: failed to close log file:", err)
		}
	}()
	slog.SetDefault(logger)

	assistant, err := app.New(aiCfg, appCfg, logger, app.WithBanner(!opts.NoBanner))
	if err != nil {
		return err
	}
	defer func() {
		if err := assistant.Close(); err != nil {
			logger.Warn("failed to close assistant resources", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return assistant.Run(ctx)
}
