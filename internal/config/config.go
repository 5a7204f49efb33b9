// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults; Load(ctx) layers overrides on top.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped with this package's sentinel errors.
package config

import "time"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// BackendURL is the base URL of the analytics backend serving forecasting,
	// segmentation, churn and anomaly detection.
	BackendURL string `koanf:"backend_url"`

	// AssistantURL is the base URL of the chat assistant. Empty means BackendURL.
	AssistantURL string `koanf:"assistant_url"`

	// RecommenderURL is the base URL of the product recommender.
	RecommenderURL string `koanf:"recommender_url"`

	// BackendTimeoutMS bounds every backend call.
	BackendTimeoutMS int `koanf:"backend_timeout_ms"`

	// MaxUploadBytes caps the size of an uploaded CSV file.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// SessionTTLMinutes expires sessions idle for longer; 0 disables expiry.
	SessionTTLMinutes int `koanf:"session_ttl_minutes"`

	// SessionCookie names the cookie carrying the session id.
	SessionCookie string `koanf:"session_cookie"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// Environment is attached to every metric as the "env" label when set.
	Environment string `koanf:"environment"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		BackendURL:        "http://localhost:8000",
		RecommenderURL:    "http://localhost:5000",
		BackendTimeoutMS:  60_000,
		MaxUploadBytes:    5 << 20,
		SessionTTLMinutes: 120,
		SessionCookie:     "sbiq_session",
		MetricsNamespace:  "smartbiz",
		MetricsSubsystem:  "gateway",
	}
}

// BackendTimeout returns BackendTimeoutMS as a duration.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutMS) * time.Millisecond
}

// MetricsLabels returns the constant labels for every metric.
func (c *Config) MetricsLabels() map[string]string {
	if c.Environment == "" {
		return nil
	}
	return map[string]string{"env": c.Environment}
}

// SessionTTL returns SessionTTLMinutes as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}
