package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
server:
  addr: ":9000"
  trust_proxy_headers: true
database:
  enabled: true
  host: localhost
  name: trades
  user: app
  password: secret
ingest:
  secret: topsecret
  max_items: 100
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":9000")
	}
	if !cfg.Server.TrustProxyHeaders {
		t.Error("Server.TrustProxyHeaders = false, want true")
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "localhost")
	}
	if cfg.Ingest.Secret != "topsecret" {
		t.Errorf("Ingest.Secret = %q, want %q", cfg.Ingest.Secret, "topsecret")
	}
	if cfg.Ingest.MaxItems != 100 {
		t.Errorf("Ingest.MaxItems = %d, want 100", cfg.Ingest.MaxItems)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_INGEST_SECRET", "secret123")

	yaml := `
ingest:
  secret: ${TEST_INGEST_SECRET}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Ingest.Secret != "secret123" {
		t.Errorf("Ingest.Secret = %q, want %q", cfg.Ingest.Secret, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "server:\n  addr: \":8000\"\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.RateLimit.WindowSeconds != DefaultWindowSeconds {
		t.Errorf("RateLimit.WindowSeconds = %d, want %d", cfg.RateLimit.WindowSeconds, DefaultWindowSeconds)
	}
	if cfg.RateLimit.MaxKeys != DefaultMaxKeys {
		t.Errorf("RateLimit.MaxKeys = %d, want %d", cfg.RateLimit.MaxKeys, DefaultMaxKeys)
	}
	if cfg.RateLimit.Ingest != DefaultLimitsIngest {
		t.Errorf("RateLimit.Ingest = %+v, want %+v", cfg.RateLimit.Ingest, DefaultLimitsIngest)
	}
	if cfg.Ingest.MaxItems != DefaultIngestMaxItems {
		t.Errorf("Ingest.MaxItems = %d, want %d", cfg.Ingest.MaxItems, DefaultIngestMaxItems)
	}
	if cfg.Ingest.MaxRawBytes != DefaultIngestMaxRawBytes {
		t.Errorf("Ingest.MaxRawBytes = %d, want %d", cfg.Ingest.MaxRawBytes, DefaultIngestMaxRawBytes)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Feed.BufferSize != DefaultFeedBufferSize {
		t.Errorf("Feed.BufferSize = %d, want %d", cfg.Feed.BufferSize, DefaultFeedBufferSize)
	}
}

func TestMaxRawBytesFloor(t *testing.T) {
	path := writeTempFile(t, "ingest:\n  max_raw_bytes: 10\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.Ingest.MaxRawBytes != MinIngestMaxRawBytes {
		t.Errorf("Ingest.MaxRawBytes = %d, want floor %d", cfg.Ingest.MaxRawBytes, MinIngestMaxRawBytes)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"zero window", func(c *Config) { c.RateLimit.WindowSeconds = -1 }, true},
		{"db enabled without host", func(c *Config) { c.Database.Enabled = true }, true},
		{"negative limit", func(c *Config) { c.RateLimit.Ingest.IP = -1 }, true},
		{"zero max items", func(c *Config) { c.Ingest.MaxItems = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSecretsRotation(t *testing.T) {
	c := IngestConfig{Secret: "new", PreviousSecret: "old"}

	if got := c.Secrets(); len(got) != 2 || got[0] != "new" || got[1] != "old" {
		t.Errorf("Secrets() = %v, want [new old]", got)
	}
	if !c.MatchesSecret("new") {
		t.Error("MatchesSecret(new) = false, want true")
	}
	if !c.MatchesSecret("old") {
		t.Error("MatchesSecret(old) = false, want true")
	}
	if c.MatchesSecret("stale") {
		t.Error("MatchesSecret(stale) = true, want false")
	}
	if c.MatchesSecret("") {
		t.Error("MatchesSecret(\"\") = true, want false")
	}

	none := IngestConfig{}
	if len(none.Secrets()) != 0 {
		t.Errorf("Secrets() on empty config = %v, want none", none.Secrets())
	}
	if none.MatchesSecret("anything") {
		t.Error("MatchesSecret on unconfigured secrets = true, want false")
	}
}
