// Package config loads service configuration from a YAML file with
// ${VAR} environment expansion, then applies defaults and validates.
package config

import (
	"crypto/subtle"
	"time"
)

// Config is the root configuration for the trade service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DBConfig        `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Feed      FeedConfig      `yaml:"feed"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// TrustProxyHeaders enables client-IP extraction from X-Forwarded-For /
	// X-Real-IP. Leave off unless a trusted proxy fronts the service.
	TrustProxyHeaders bool          `yaml:"trust_proxy_headers"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// DBConfig configures the Postgres connection pool. With Enabled false the
// service runs on the in-memory store (development only).
type DBConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// PolicyLimits carries the two per-window request budgets of one policy.
type PolicyLimits struct {
	IP        int `yaml:"ip"`
	Principal int `yaml:"principal"`
}

// RateLimitConfig configures the fixed-window rate limiter. The zero value
// is enabled; set Disabled to switch the limiter off entirely.
type RateLimitConfig struct {
	Disabled      bool `yaml:"disabled"`
	WindowSeconds int  `yaml:"window_seconds"`
	MaxKeys       int  `yaml:"max_keys"`

	Default PolicyLimits `yaml:"default"`
	Auth    PolicyLimits `yaml:"auth"`
	Ingest  PolicyLimits `yaml:"ingest"`
	Health  PolicyLimits `yaml:"health"`
}

// IngestConfig configures the write-path guard for /api/ingest.
type IngestConfig struct {
	// Secret and PreviousSecret are both accepted, so secrets can rotate
	// without a producer-coordinated cutover.
	Secret         string `yaml:"secret"`
	PreviousSecret string `yaml:"previous_secret"`

	MaxItems            int  `yaml:"max_items"`
	MaxRawBytes         int  `yaml:"max_raw_bytes"`
	RejectUnknownFields bool `yaml:"reject_unknown_fields"`
}

// FeedConfig configures the websocket trade feed.
type FeedConfig struct {
	Disabled   bool `yaml:"disabled"`
	BufferSize int  `yaml:"buffer_size"`
}

// Secrets returns the configured ingest secrets, current first. Empty when
// ingestion is unconfigured.
func (c IngestConfig) Secrets() []string {
	var out []string
	if c.Secret != "" {
		out = append(out, c.Secret)
	}
	if c.PreviousSecret != "" {
		out = append(out, c.PreviousSecret)
	}
	return out
}

// MatchesSecret reports whether candidate equals one of the configured
// secrets, compared in constant time.
func (c IngestConfig) MatchesSecret(candidate string) bool {
	if candidate == "" {
		return false
	}
	matched := false
	for _, s := range c.Secrets() {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(s)) == 1 {
			matched = true
		}
	}
	return matched
}
