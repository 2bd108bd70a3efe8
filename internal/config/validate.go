package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	if c.Database.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.RateLimit.WindowSeconds < 1 {
		return errors.New("rate_limit.window_seconds must be >= 1")
	}
	if c.RateLimit.MaxKeys < 1 {
		return errors.New("rate_limit.max_keys must be >= 1")
	}
	for name, p := range map[string]PolicyLimits{
		"default": c.RateLimit.Default,
		"auth":    c.RateLimit.Auth,
		"ingest":  c.RateLimit.Ingest,
		"health":  c.RateLimit.Health,
	} {
		if p.IP < 0 || p.Principal < 0 {
			return fmt.Errorf("rate_limit.%s limits must be >= 0", name)
		}
	}

	if c.Ingest.MaxItems < 1 {
		return errors.New("ingest.max_items must be >= 1")
	}
	if c.Ingest.MaxRawBytes < MinIngestMaxRawBytes {
		return fmt.Errorf("ingest.max_raw_bytes must be >= %d", MinIngestMaxRawBytes)
	}

	if c.Feed.BufferSize < 1 {
		return errors.New("feed.buffer_size must be >= 1")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, db.Port)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
