package ratelimit

import (
	"strings"

	"github.com/stijnvankasteren/insider-trading-app/internal/config"
)

// Policy carries the per-window budgets for one request category.
type Policy struct {
	Name           string
	IPLimit        int
	PrincipalLimit int
}

// PolicyForPath maps a request path to its rate-limit policy. Ingestion and
// auth endpoints get tight budgets; everything else shares "default".
func PolicyForPath(cfg config.RateLimitConfig, path string) Policy {
	if strings.HasPrefix(path, "/api/ingest") {
		return Policy{Name: "ingest", IPLimit: cfg.Ingest.IP, PrincipalLimit: cfg.Ingest.Principal}
	}
	switch path {
	case "/login", "/signup", "/subscribe":
		return Policy{Name: "auth", IPLimit: cfg.Auth.IP, PrincipalLimit: cfg.Auth.Principal}
	case "/api/health":
		return Policy{Name: "health", IPLimit: cfg.Health.IP, PrincipalLimit: cfg.Health.Principal}
	}
	return Policy{Name: "default", IPLimit: cfg.Default.IP, PrincipalLimit: cfg.Default.Principal}
}
