package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix      = "SMARTBIZ_"
	envConfigFile  = "SMARTBIZ_CONFIG"
	envDotenvFile  = "SMARTBIZ_ENV_FILE"
	defaultEnvFile = ".env"
)

// Load builds a Config by layering defaults, optional file, .env and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SMARTBIZ_CONFIG is set
//  3. .env file (SMARTBIZ_ENV_FILE, default ".env"); never overrides variables already set
//  4. env (prefix SMARTBIZ_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	if err := loadDotenv(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// SMARTBIZ_BACKEND_URL -> backend_url (flat keys, underscores preserved).
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotenv exports variables from the .env file that are not already set.
func loadDotenv() error {
	path := os.Getenv(envDotenvFile)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	// A missing default file is normal; a missing explicit one is not.
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Validate fills derived defaults and checks invariants Load relies on.
// An empty AssistantURL becomes BackendURL.
func (c *Config) Validate() error {
	c.normalize()
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	for _, u := range []struct{ name, raw string }{
		{"backend_url", c.BackendURL},
		{"assistant_url", c.AssistantURL},
		{"recommender_url", c.RecommenderURL},
	} {
		if err := validateBaseURL(u.raw); err != nil {
			return fmt.Errorf("%w: %s %w", ErrInvalidConfig, u.name, err)
		}
	}
	if c.BackendTimeoutMS <= 0 {
		return fmt.Errorf("%w: backend_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	}
	if c.SessionTTLMinutes < 0 {
		return fmt.Errorf("%w: session_ttl_minutes must not be negative", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.SessionCookie) == "" {
		return fmt.Errorf("%w: session_cookie must not be empty", ErrInvalidConfig)
	}
	for _, n := range []struct{ name, value string }{
		{"metrics_namespace", c.MetricsNamespace},
		{"metrics_subsystem", c.MetricsSubsystem},
	} {
		if !metricNamePattern.MatchString(n.value) {
			return fmt.Errorf("%w: %s must match %s", ErrInvalidConfig, n.name, metricNamePattern)
		}
	}
	return nil
}

var metricNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`) //nolint:gochecknoglobals // compiled once

func (c *Config) normalize() {
	if strings.TrimSpace(c.AssistantURL) == "" {
		c.AssistantURL = c.BackendURL
	}
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must be an absolute http(s) URL")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}
