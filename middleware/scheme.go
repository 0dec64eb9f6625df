package middleware

import (
	"net/http"
	"strings"

	"github.com/upb/tracking-bridge/identity"
)

// DefaultTrustedHeader carries a caller id asserted by a trusted front end
const DefaultTrustedHeader = "X-Tracker-User-Id"

// SelectScheme picks how a request is authenticated. An Authorization header
// wins over the trusted header; neither means anonymous.
func SelectScheme(r *http.Request, trustedHeader string) identity.Scheme {
	if strings.TrimSpace(r.Header.Get("Authorization")) != "" {
		return identity.SchemeBearer
	}
	if trustedHeader != "" && strings.TrimSpace(r.Header.Get(trustedHeader)) != "" {
		return identity.SchemeTrustedHeader
	}
	return identity.SchemeAnonymous
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
