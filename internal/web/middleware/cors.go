package middleware

import (
	"net/http"
	"net/url"
	"os"
	"strings"
)

// originSet is the allow-list of cross-origin callers, read once at startup
// from CONSENT_ALLOWED_ORIGINS (comma-separated origins).
type originSet map[string]struct{}

func loadAllowedOrigins() originSet {
	origins := make(originSet)
	for o := range strings.SplitSeq(os.Getenv("CONSENT_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = struct{}{}
		}
	}
	return origins
}

// isLocalhostOrigin reports whether the origin's host is localhost on any
// port. The host is parsed, not prefix-matched, so lookalike domains such as
// localhost.example.com do not qualify.
func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return u.Hostname() == "localhost" || u.Hostname() == "127.0.0.1"
}

// allows checks whether a request origin should receive CORS headers.
// Localhost origins are always permitted for development.
func (s originSet) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if isLocalhostOrigin(origin) {
		return true
	}
	_, ok := s[origin]
	return ok
}

// CORS returns middleware that answers cross-origin requests for allowed
// callers and short-circuits preflights.
func CORS() func(http.Handler) http.Handler {
	allowed := loadAllowedOrigins()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); allowed.allows(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders returns middleware with headers for a JSON/media API that
// never serves HTML: scripts and framing are refused outright.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}
