package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/upb/tracking-bridge/identity"
)

// Context key type to avoid collisions
type contextKey string

// IdentityKey is the context key for the authenticated identity
const IdentityKey contextKey = "identity"

// GetRequestIDFromContext returns the id assigned by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetIdentity returns the authenticated identity, or nil for anonymous requests
func GetIdentity(ctx context.Context) *identity.Identity {
	if id, ok := ctx.Value(IdentityKey).(*identity.Identity); ok {
		return id
	}
	return nil
}

// WithIdentity adds an identity to the context
func WithIdentity(ctx context.Context, id *identity.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}
