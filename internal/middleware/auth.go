// Package middleware provides HTTP middleware for the gatherd server:
// bearer-token authentication against a bcrypt-hashed API key, and
// structured request logging with request IDs.
package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const keyHashCost = bcrypt.DefaultCost

// HashAPIKey returns a salted bcrypt hash for an API key, suitable for the
// API_KEY_BCRYPT_HASH configuration value.
func HashAPIKey(apiKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), keyHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// APIKeyMatchesHash compares an API key against its stored bcrypt hash.
func APIKeyMatchesHash(expectedHash, apiKey string) bool {
	return bcrypt.CompareHashAndPassword([]byte(expectedHash), []byte(apiKey)) == nil
}

// AuthOption configures optional auth middleware parameters.
type AuthOption func(*authConfig)

type authConfig struct {
	onFailure   func()
	rateLimiter *RateLimiter
}

// WithOnAuthFailure registers a callback invoked on every authentication
// failure (e.g. to increment a Prometheus counter).
func WithOnAuthFailure(fn func()) AuthOption {
	return func(c *authConfig) { c.onFailure = fn }
}

// WithRateLimiter attaches a per-IP rate limiter that throttles repeated
// authentication failures.
func WithRateLimiter(rl *RateLimiter) AuthOption {
	return func(c *authConfig) { c.rateLimiter = rl }
}

// BearerAuth enforces bearer-token auth for HTTP handlers against a single
// bcrypt key hash. An empty hash disables authentication.
func BearerAuth(keyBcryptHash string, opts ...AuthOption) func(http.Handler) http.Handler {
	cfg := authConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	return func(next http.Handler) http.Handler {
		if keyBcryptHash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The limiter gate runs before the bcrypt comparison; an IP
			// past its failure budget never reaches the expensive check.
			var ip string
			if cfg.rateLimiter != nil {
				ip = ExtractIP(r.RemoteAddr)
				if !cfg.rateLimiter.Allow(ip) {
					http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
					return
				}
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok || !APIKeyMatchesHash(keyBcryptHash, token) {
				if cfg.onFailure != nil {
					cfg.onFailure()
				}
				if cfg.rateLimiter != nil {
					cfg.rateLimiter.RecordFailure(ip)
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="gatherd"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if header == "" || !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
