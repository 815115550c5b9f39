// Package config builds the application's immutable configuration from
// environment variables, validating every value at construction so bad
// settings fail fast with an error naming the variable and its legal
// range. Two structs split the concerns: [AIConfig] for everything the
// request client needs and [AppConfig] for storage, caching, and logging.
//
// API keys resolve from the environment first, then from the OS keyring,
// so keys stored once with --set-openai-key survive across shells.
package config
