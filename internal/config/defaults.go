package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAddr            = ":8000"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultWindowSeconds = 60
	DefaultMaxKeys       = 50_000

	DefaultIngestMaxItems    = 5000
	DefaultIngestMaxRawBytes = 50_000
	// MinIngestMaxRawBytes is the floor for the raw-payload cap; anything
	// smaller would truncate ordinary filings.
	MinIngestMaxRawBytes = 1000

	DefaultFeedBufferSize = 256
)

// Default per-window request budgets, per policy.
var (
	DefaultLimitsDefault = PolicyLimits{IP: 120, Principal: 240}
	DefaultLimitsAuth    = PolicyLimits{IP: 10, Principal: 20}
	DefaultLimitsIngest  = PolicyLimits{IP: 60, Principal: 600}
	DefaultLimitsHealth  = PolicyLimits{IP: 60, Principal: 120}
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Rate limit defaults
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = DefaultWindowSeconds
	}
	if c.RateLimit.MaxKeys == 0 {
		c.RateLimit.MaxKeys = DefaultMaxKeys
	}
	applyPolicyDefaults(&c.RateLimit.Default, DefaultLimitsDefault)
	applyPolicyDefaults(&c.RateLimit.Auth, DefaultLimitsAuth)
	applyPolicyDefaults(&c.RateLimit.Ingest, DefaultLimitsIngest)
	applyPolicyDefaults(&c.RateLimit.Health, DefaultLimitsHealth)

	// Ingest defaults
	if c.Ingest.MaxItems == 0 {
		c.Ingest.MaxItems = DefaultIngestMaxItems
	}
	if c.Ingest.MaxRawBytes == 0 {
		c.Ingest.MaxRawBytes = DefaultIngestMaxRawBytes
	}
	if c.Ingest.MaxRawBytes < MinIngestMaxRawBytes {
		c.Ingest.MaxRawBytes = MinIngestMaxRawBytes
	}

	// Feed defaults
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = DefaultFeedBufferSize
	}
}

func applyPolicyDefaults(p *PolicyLimits, def PolicyLimits) {
	// A limit of 0 is meaningful ("block everything"), so only an entirely
	// unset policy picks up defaults.
	if p.IP == 0 && p.Principal == 0 {
		*p = def
	}
}
