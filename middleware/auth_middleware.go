package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/identity"
	"github.com/upb/tracking-bridge/utils"
)

var errMalformedAuthorization = errors.New("authorization header is not a bearer credential")

// TokenValidator verifies a bearer credential
type TokenValidator interface {
	Verify(ctx context.Context, token string) (*identity.Identity, error)
}

// SchemeObserver counts the schemes selected per request
type SchemeObserver interface {
	ObserveScheme(scheme string)
}

// AuthMiddleware resolves the caller identity once per request and guards
// protected routes.
type AuthMiddleware struct {
	validator     TokenValidator
	trustedHeader string
	admins        identity.AdminList
	observer      SchemeObserver
	logger        *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. An empty trustedHeader
// disables the trusted header scheme; observer may be nil.
func NewAuthMiddleware(validator TokenValidator, trustedHeader string, admins identity.AdminList, observer SchemeObserver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator:     validator,
		trustedHeader: trustedHeader,
		admins:        admins,
		observer:      observer,
		logger:        logger,
	}
}

// Authenticate selects the scheme and attaches the resolved identity with
// normalized claims. It never rejects: failed bearer verification leaves the
// request anonymous.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)
		scheme := SelectScheme(r, m.trustedHeader)

		var id *identity.Identity
		switch scheme {
		case identity.SchemeBearer:
			verified, err := m.verifyBearer(ctx, r)
			if err != nil {
				m.logger.Warn("bearer credential rejected",
					zap.String("request_id", requestID),
					zap.Error(err))
				scheme = identity.SchemeAnonymous
				break
			}
			id = verified
		case identity.SchemeTrustedHeader:
			subject := strings.TrimSpace(r.Header.Get(m.trustedHeader))
			id = identity.New(subject, subject, identity.ResolveRole(m.admins.Contains(subject)), identity.SchemeTrustedHeader)
		}

		if id != nil {
			id.Claims = identity.NormalizeClaims(id.Claims)
			ctx = WithIdentity(ctx, id)
			m.logger.Debug("request authenticated",
				zap.String("request_id", requestID),
				zap.String("scheme", string(scheme)),
				zap.String("sub", id.Subject))
		}
		if m.observer != nil {
			m.observer.ObserveScheme(string(scheme))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) verifyBearer(ctx context.Context, r *http.Request) (*identity.Identity, error) {
	token := extractBearerToken(r)
	if token == "" {
		return nil, errMalformedAuthorization
	}
	return m.validator.Verify(ctx, token)
}

// RequireAuth rejects anonymous requests. Must run after Authenticate.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentity(r.Context()) == nil {
			m.logger.Debug("anonymous request to protected route",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers without the Admin role
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		id := GetIdentity(ctx)
		if id == nil {
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}
		if !id.IsAdmin() {
			m.logger.Warn("insufficient permissions",
				zap.String("request_id", requestID),
				zap.String("sub", id.Subject),
				zap.String("role", id.Role.Name))
			_ = utils.WriteForbidden(w, "Insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}
