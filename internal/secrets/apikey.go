package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shpitdev/leadscraper/internal/config"
	"github.com/zalando/go-keyring"
)

// KeyringService groups the app's secrets in the OS keychain.
const KeyringService = "leadscraper"

// APIKey returns the completion-backend credential for provider: the provider's
// environment variable first, then the OS keyring. It returns config.ErrMissingAPIKey
// when neither has one.
func APIKey(provider string) (string, error) {
	envName := config.APIKeyEnv(provider)
	if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
		return v, nil
	}

	key, err := keyring.Get(KeyringService, provider)
	if err == nil && strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key), nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: set %s (keyring lookup failed: %v)", config.ErrMissingAPIKey, envName, err)
	}
	return "", fmt.Errorf("%w: set %s or store it with `leadscraper key set --provider %s`", config.ErrMissingAPIKey, envName, provider)
}

func SetAPIKey(provider, key string) error {
	if strings.TrimSpace(provider) == "" {
		return errors.New("provider is empty")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("api key is empty")
	}
	return keyring.Set(KeyringService, provider, strings.TrimSpace(key))
}

func DeleteAPIKey(provider string) error {
	if strings.TrimSpace(provider) == "" {
		return errors.New("provider is empty")
	}
	return keyring.Delete(KeyringService, provider)
}
