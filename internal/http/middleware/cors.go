package middleware

import (
	"net/http"
	"strings"

	"github.com/wolfman30/mortgage-leads/internal/http/respond"
	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

const (
	corsAllowedHeaders = "Content-Type, Authorization, Idempotency-Key, X-Admin-Secret, X-Request-ID"
	corsAllowedMethods = "GET, POST, OPTIONS"
	corsExposedHeaders = "RateLimit-Limit, RateLimit-Remaining, RateLimit-Reset, Retry-After"
)

// CORS provides an allowlist-based CORS middleware with credentials.
// If allowedOrigins contains "*", any Origin is echoed back. Requests without
// an Origin header and same-origin requests pass through; any other origin is
// rejected with 403.
func CORS(allowedOrigins []string, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	allowAny := false
	allow := map[string]struct{}{}
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if origin == "*" {
			allowAny = true
			continue
		}
		allow[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" || isSameOrigin(r, origin) {
				next.ServeHTTP(w, r)
				return
			}
			if !allowAny && !isAllowedOrigin(allow, origin) {
				logger.Warn("cors origin rejected", "origin", origin, "path", r.URL.Path)
				respond.Error(w, http.StatusForbidden, "Not allowed by CORS")
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Expose-Headers", corsExposedHeaders)

			// Handle preflight requests.
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isAllowedOrigin(allow map[string]struct{}, origin string) bool {
	_, ok := allow[origin]
	return ok
}

func isSameOrigin(r *http.Request, origin string) bool {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return strings.EqualFold(origin, scheme+"://"+r.Host)
}
