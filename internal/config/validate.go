package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Validation struct {
	Errors   []string
	Warnings []string
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err joins all validation errors, or returns nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("invalid config: %s", strings.Join(v.Errors, "; "))
}

// NormalizeAndValidate returns a normalized copy of cfg and what is wrong with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	out.Search.Region = strings.TrimSpace(out.Search.Region)
	out.Search.SafeSearch = strings.ToLower(strings.TrimSpace(out.Search.SafeSearch))
	out.Classifier.Provider = strings.ToLower(strings.TrimSpace(out.Classifier.Provider))
	out.Classifier.Model = strings.TrimSpace(out.Classifier.Model)
	out.Classifier.BaseURL = strings.TrimSpace(out.Classifier.BaseURL)
	out.Output.Dir = strings.TrimSpace(out.Output.Dir)
	if out.Output.Dir == "" {
		out.Output.Dir = "."
	}

	if out.Search.Region == "" {
		res.addWarn("search.region is empty; results will not be localized")
	}
	switch out.Search.SafeSearch {
	case "strict", "moderate", "off":
	default:
		res.addErr("search.safe_search must be one of strict, moderate, off (got %q)", out.Search.SafeSearch)
	}
	checkURL(&res, "search.base_url", out.Search.BaseURL)

	if out.Fetch.Timeout <= 0 {
		res.addErr("fetch.timeout must be > 0")
	}
	if out.Fetch.MaxBytes <= 0 {
		res.addErr("fetch.max_bytes must be > 0")
	}
	if out.Fetch.RateLimitRPS < 0 {
		res.addErr("fetch.rate_limit_rps must be >= 0")
	}

	switch out.Classifier.Provider {
	case ProviderGroq, ProviderGemini:
	default:
		res.addErr("classifier.provider must be %s or %s (got %q)", ProviderGroq, ProviderGemini, out.Classifier.Provider)
	}
	checkURL(&res, "classifier.base_url", out.Classifier.BaseURL)
	if out.Classifier.MaxRetries < 0 {
		res.addErr("classifier.max_retries must be >= 0")
	} else if out.Classifier.MaxRetries == 0 {
		res.addWarn("classifier.max_retries is 0; any rate limit yields Unknown")
	}
	if out.Classifier.BackoffInitial <= 0 || out.Classifier.BackoffMax <= 0 {
		res.addErr("classifier.backoff_initial and classifier.backoff_max must be > 0")
	} else if out.Classifier.BackoffMax < out.Classifier.BackoffInitial {
		res.addWarn("classifier.backoff_max (%s) is below backoff_initial (%s); using backoff_initial", out.Classifier.BackoffMax, out.Classifier.BackoffInitial)
		out.Classifier.BackoffMax = out.Classifier.BackoffInitial
	}
	if out.Classifier.BackoffJitter < 0 || out.Classifier.BackoffJitter >= 1 {
		res.addErr("classifier.backoff_jitter must be in [0, 1)")
	}
	if out.Classifier.Timeout <= 0 {
		res.addErr("classifier.timeout must be > 0")
	}
	if out.Classifier.Pacing < 0 {
		res.addErr("classifier.pacing must be >= 0")
	} else if out.Classifier.Pacing < 100*time.Millisecond {
		res.addWarn("classifier.pacing is very low (%s) and may cause rate limits", out.Classifier.Pacing)
	}

	if strings.TrimSpace(out.Serve.Addr) == "" {
		res.addErr("serve.addr is required")
	}
	return out, res
}

func checkURL(res *Validation, field, raw string) {
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		res.addErr("%s must be an absolute http(s) URL (got %q)", field, raw)
	}
}
