package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/encoding/htmlindex"
)

// Validate checks a normalized, defaulted configuration.
//
// A missing or nonexistent input folder is not an error: the scan
// cycle skips silently until the folder appears.
func Validate(cfg *Config) error {
	if cfg.Version != CurrentVersion {
		return fmt.Errorf("unsupported configuration version: %q (expected %s)", cfg.Version, CurrentVersion)
	}
	if !doublestar.ValidatePattern(cfg.Input.Pattern) {
		return fmt.Errorf("input.pattern: invalid glob %q", cfg.Input.Pattern)
	}
	if cfg.Input.Encoding != DefaultEncoding {
		if _, err := htmlindex.Get(cfg.Input.Encoding); err != nil {
			return fmt.Errorf("input.encoding: unknown encoding %q", cfg.Input.Encoding)
		}
	}
	switch cfg.Input.Timezone {
	case "", "Local", "local":
	default:
		if _, err := time.LoadLocation(cfg.Input.Timezone); err != nil {
			return fmt.Errorf("input.timezone: %w", err)
		}
	}
	if err := validateBackend(&cfg.Backend); err != nil {
		return err
	}
	for name, v := range map[string]string{"scan.interval": cfg.Scan.Interval, "backend.timeout": cfg.Backend.Timeout} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func validateBackend(b *BackendConfig) error {
	if b.RateLimit < 0 {
		return errors.New("backend.rate_limit cannot be negative")
	}
	if b.Retry.MaxRetries < 0 {
		return errors.New("backend.retry.max_retries cannot be negative")
	}
	for name, v := range map[string]string{"backend.retry.initial_delay": b.Retry.InitialDelay, "backend.retry.max_delay": b.Retry.MaxDelay} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if b.URL == "" {
		if b.Token != "" {
			return errors.New("backend.url is required when backend.token is set")
		}
		return nil
	}
	u, err := url.Parse(b.URL)
	if err != nil {
		return fmt.Errorf("backend.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.url: unsupported scheme %q", u.Scheme)
	}
	return nil
}
