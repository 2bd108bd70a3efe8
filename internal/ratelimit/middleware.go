package ratelimit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/stijnvankasteren/insider-trading-app/internal/config"
)

// hashSalt keys the HMAC used for counter-map keys. It does not need to be
// secret, only stable: raw IPs and principals never sit in memory as map
// keys.
var hashSalt = []byte("rate-limit")

// Blocked describes a rejected request; it is what the 429 body carries.
type Blocked struct {
	Detail            string `json:"detail"`
	Policy            string `json:"policy"`
	LimitKind         string `json:"limit_kind"`
	Limit             int    `json:"limit"`
	WindowSeconds     int    `json:"window_seconds"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// Guard enforces rate limits as HTTP middleware.
type Guard struct {
	cfg        config.RateLimitConfig
	ingest     config.IngestConfig
	trustProxy bool
	limiter    *FixedWindowLimiter
	logger     *slog.Logger

	// sessionPrincipal resolves an authenticated user for the principal
	// dimension. Session handling lives outside this service; the hook is
	// how it plugs in.
	sessionPrincipal func(*http.Request) (string, bool)
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithSessionPrincipal installs a session-identity resolver.
func WithSessionPrincipal(fn func(*http.Request) (string, bool)) GuardOption {
	return func(g *Guard) { g.sessionPrincipal = fn }
}

// WithLogger sets the guard's logger.
func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) { g.logger = logger }
}

// NewGuard creates the rate-limiting middleware. trustProxy controls
// whether forwarded-IP headers are honored.
func NewGuard(cfg config.RateLimitConfig, ingest config.IngestConfig, trustProxy bool, opts ...GuardOption) *Guard {
	g := &Guard{
		cfg:        cfg,
		ingest:     ingest,
		trustProxy: trustProxy,
		limiter:    NewFixedWindowLimiter(cfg.WindowSeconds, cfg.MaxKeys),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Middleware applies both the IP and (when available) principal checks to
// every request. Static assets are exempt: page loads burst on CSS/images
// and would trip the default policy.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.cfg.Disabled || strings.HasPrefix(r.URL.Path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}

		policy := PolicyForPath(g.cfg, r.URL.Path)

		ip := g.clientIP(r)
		ipKey := policy.Name + ":ip:" + hashIdentity(ip)
		if retryAfter := g.limiter.Hit(ipKey, policy.IPLimit); retryAfter > 0 {
			g.block(w, r, policy, "ip", policy.IPLimit, retryAfter)
			return
		}

		if principal, ok := g.principal(r); ok {
			principalKey := policy.Name + ":principal:" + hashIdentity(principal)
			if retryAfter := g.limiter.Hit(principalKey, policy.PrincipalLimit); retryAfter > 0 {
				g.block(w, r, policy, "principal", policy.PrincipalLimit, retryAfter)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the caller's IP. Forwarded headers are honored only
// when proxy trust is on, and only for syntactically valid IP literals;
// everything else falls back to the socket peer.
func (g *Guard) clientIP(r *http.Request) string {
	if g.trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			// Left-most entry is the original client.
			candidate := strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
			if ip := net.ParseIP(candidate); ip != nil {
				return ip.String()
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			if ip := net.ParseIP(realIP); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = strings.Trim(r.RemoteAddr, "[]")
	}
	if host == "" {
		return "unknown"
	}
	return host
}

// principal resolves the second limiting dimension: a session user when the
// installed hook finds one, else the hash of a *valid* ingest secret. An
// unrecognized secret yields no principal, so garbage headers cannot mint
// unbounded buckets.
func (g *Guard) principal(r *http.Request) (string, bool) {
	if g.sessionPrincipal != nil {
		if user, ok := g.sessionPrincipal(r); ok && user != "" {
			return "user:" + user, true
		}
	}

	secret := r.Header.Get("X-Ingest-Secret")
	if secret == "" || !g.ingest.MatchesSecret(secret) {
		return "", false
	}
	digest := sha256.Sum256([]byte(secret))
	return "ingest:" + hex.EncodeToString(digest[:])[:16], true
}

func hashIdentity(identity string) string {
	mac := hmac.New(sha256.New, hashSalt)
	mac.Write([]byte(identity))
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *Guard) block(w http.ResponseWriter, r *http.Request, policy Policy, kind string, limit, retryAfter int) {
	g.logger.Debug("rate limit exceeded",
		"policy", policy.Name,
		"limit_kind", kind,
		"limit", limit,
		"retry_after", retryAfter,
	)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	accept := strings.ToLower(r.Header.Get("Accept"))
	wantsHTML := strings.Contains(accept, "text/html") && !strings.HasPrefix(r.URL.Path, "/api")
	if wantsHTML {
		// Browser navigation: the important part is a stable 429 with
		// Retry-After, so keep the page minimal.
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprintf(w,
			"<!doctype html><html><head><title>Too Many Requests</title>"+
				"<meta charset='utf-8'></head><body>"+
				"<h1>Too many requests</h1>"+
				"<p>Please retry in %d seconds.</p>"+
				"</body></html>", retryAfter)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(Blocked{
		Detail:            "Rate limit exceeded",
		Policy:            policy.Name,
		LimitKind:         kind,
		Limit:             limit,
		WindowSeconds:     g.limiter.WindowSeconds(),
		RetryAfterSeconds: retryAfter,
	})
}
