// Package credential stores API keys in the operating system keyring so
// they do not have to live in shell profiles or .env files. Lookup is
// best-effort: a platform without a usable keyring backend reports an
// error, and callers fall back to environment variables.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// serviceName groups this application's entries in the OS keyring.
const serviceName = "aiassist"

// Well-known credential names.
const (
	OpenAIAPIKey    = "openai_api_key"
	AnthropicAPIKey = "anthropic_api_key"
)

func open() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{ServiceName: serviceName})
	if err != nil {
		return nil, fmt.Errorf("failed to open OS keyring: %w", err)
	}
	return ring, nil
}

// Get returns the stored credential, or "" with a nil error when it was
// never stored. A non-nil error means the keyring itself is unavailable.
func Get(name string) (string, error) {
	ring, err := open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential %q: %w", name, err)
	}
	return string(item.Data), nil
}

// Set stores (or replaces) a credential.
func Set(name, value string) error {
	ring, err := open()
	if err != nil {
		return err
	}

	if err := ring.Set(keyring.Item{Key: name, Data: []byte(value)}); err != nil {
		return fmt.Errorf("failed to store credential %q: %w", name, err)
	}
	return nil
}
