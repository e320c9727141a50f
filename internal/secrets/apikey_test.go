package secrets_test

import (
	"errors"
	"testing"

	"github.com/shpitdev/leadscraper/internal/config"
	"github.com/shpitdev/leadscraper/internal/secrets"
	"github.com/zalando/go-keyring"
)

func TestAPIKey_EnvironmentWins(t *testing.T) {
	keyring.MockInit()
	t.Setenv("GROQ_API_KEY", " gsk_from_env ")
	if err := secrets.SetAPIKey(config.ProviderGroq, "gsk_from_keyring"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	got, err := secrets.APIKey(config.ProviderGroq)
	if err != nil {
		t.Fatalf("APIKey: %v", err)
	}
	if got != "gsk_from_env" {
		t.Fatalf("expected env key, got %q", got)
	}
}

func TestAPIKey_KeyringFallback(t *testing.T) {
	keyring.MockInit()
	t.Setenv("GEMINI_API_KEY", "")
	if err := secrets.SetAPIKey(config.ProviderGemini, "gemini-key"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	got, err := secrets.APIKey(config.ProviderGemini)
	if err != nil {
		t.Fatalf("APIKey: %v", err)
	}
	if got != "gemini-key" {
		t.Fatalf("expected keyring key, got %q", got)
	}

	if err := secrets.DeleteAPIKey(config.ProviderGemini); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
	if _, err := secrets.APIKey(config.ProviderGemini); !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey after delete, got %v", err)
	}
}

func TestAPIKey_Missing(t *testing.T) {
	keyring.MockInit()
	t.Setenv("GROQ_API_KEY", "")

	_, err := secrets.APIKey(config.ProviderGroq)
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestAPIKey_KeyringError(t *testing.T) {
	keyring.MockInitWithError(errors.New("no dbus session"))
	t.Setenv("GROQ_API_KEY", "")

	_, err := secrets.APIKey(config.ProviderGroq)
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSetAPIKey_RejectsEmpty(t *testing.T) {
	keyring.MockInit()
	if err := secrets.SetAPIKey(config.ProviderGroq, "  "); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if err := secrets.SetAPIKey("", "k"); err == nil {
		t.Fatalf("expected error for empty provider")
	}
}
