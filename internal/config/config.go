package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PathEnv names the config file when --config is not given.
const PathEnv = "LEADSCRAPER_CONFIG"

// Classifier providers.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// ErrMissingAPIKey means no completion-backend credential was found.
var ErrMissingAPIKey = errors.New("completion backend API key is not configured")

type Config struct {
	Search struct {
		BaseURL    string `yaml:"base_url"`
		Region     string `yaml:"region"`
		SafeSearch string `yaml:"safe_search"`
	} `yaml:"search"`

	Fetch struct {
		Timeout      time.Duration `yaml:"timeout"`
		UserAgent    string        `yaml:"user_agent"`
		MaxBytes     int64         `yaml:"max_bytes"`
		RateLimitRPS float64       `yaml:"rate_limit_rps"`
	} `yaml:"fetch"`

	Classifier struct {
		Provider       string        `yaml:"provider"`
		Model          string        `yaml:"model"`
		BaseURL        string        `yaml:"base_url"`
		MaxRetries     int           `yaml:"max_retries"`
		BackoffInitial time.Duration `yaml:"backoff_initial"`
		BackoffMax     time.Duration `yaml:"backoff_max"`
		BackoffJitter  float64       `yaml:"backoff_jitter"`
		Timeout        time.Duration `yaml:"timeout"`
		Pacing         time.Duration `yaml:"pacing"`
	} `yaml:"classifier"`

	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`

	Serve struct {
		Addr string `yaml:"addr"`
	} `yaml:"serve"`
}

// Default returns the built-in settings.
func Default() Config {
	var cfg Config
	cfg.Search.Region = "in-en"
	cfg.Search.SafeSearch = "moderate"
	cfg.Fetch.Timeout = 10 * time.Second
	cfg.Fetch.UserAgent = "Mozilla/5.0"
	cfg.Fetch.MaxBytes = 5 << 20
	cfg.Classifier.Provider = ProviderGroq
	cfg.Classifier.MaxRetries = 5
	cfg.Classifier.BackoffInitial = 2 * time.Second
	cfg.Classifier.BackoffMax = 30 * time.Second
	cfg.Classifier.Timeout = 30 * time.Second
	cfg.Classifier.Pacing = 500 * time.Millisecond
	cfg.Output.Dir = "."
	cfg.Serve.Addr = ":8501"
	return cfg
}

// Load reads a YAML file over Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables on cfg.
func ApplyEnv(cfg Config) (Config, error) {
	var err error
	cfg.Search.BaseURL = envString("SEARCH_BASE_URL", cfg.Search.BaseURL)
	cfg.Search.Region = envString("SEARCH_REGION", cfg.Search.Region)
	cfg.Search.SafeSearch = envString("SEARCH_SAFESEARCH", cfg.Search.SafeSearch)
	if cfg.Fetch.Timeout, err = envDuration("FETCH_TIMEOUT", cfg.Fetch.Timeout); err != nil {
		return cfg, err
	}
	if cfg.Fetch.RateLimitRPS, err = envFloat("FETCH_RATE_LIMIT_RPS", cfg.Fetch.RateLimitRPS); err != nil {
		return cfg, err
	}
	cfg.Classifier.Provider = envString("CLASSIFIER_PROVIDER", cfg.Classifier.Provider)
	cfg.Classifier.Model = envString("CLASSIFIER_MODEL", cfg.Classifier.Model)
	cfg.Classifier.BaseURL = envString("CLASSIFIER_BASE_URL", cfg.Classifier.BaseURL)
	if cfg.Classifier.MaxRetries, err = envInt("CLASSIFIER_MAX_RETRIES", cfg.Classifier.MaxRetries); err != nil {
		return cfg, err
	}
	if cfg.Classifier.BackoffJitter, err = envFloat("CLASSIFIER_BACKOFF_JITTER", cfg.Classifier.BackoffJitter); err != nil {
		return cfg, err
	}
	if cfg.Classifier.Timeout, err = envDuration("CLASSIFIER_TIMEOUT", cfg.Classifier.Timeout); err != nil {
		return cfg, err
	}
	if cfg.Classifier.Pacing, err = envDuration("CLASSIFIER_PACING", cfg.Classifier.Pacing); err != nil {
		return cfg, err
	}
	cfg.Output.Dir = envString("OUTPUT_DIR", cfg.Output.Dir)
	cfg.Serve.Addr = envString("SERVE_ADDR", cfg.Serve.Addr)
	return cfg, nil
}

// APIKeyEnv names the environment variable holding provider's credential.
func APIKeyEnv(provider string) string {
	if provider == ProviderGemini {
		return "GEMINI_API_KEY"
	}
	return "GROQ_API_KEY"
}

func envString(varName, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		return v
	}
	return fallback
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
