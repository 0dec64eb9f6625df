// Package session keeps vendor session tokens server-side, keyed by the local
// identity that obtained them.
package session

import (
	"context"
	"time"
)

// DefaultTTL bounds how long a vendor token is reused after login
const DefaultTTL = 8 * time.Hour

// Entry is one live vendor session
type Entry struct {
	Owner     string
	Token     string
	ExpiresAt time.Time
}

// Store holds at most one vendor token per owner. A Put overwrites any
// previous entry; expired entries are reported as absent.
type Store interface {
	Put(ctx context.Context, owner, token string, ttl time.Duration) error
	Get(ctx context.Context, owner string) (string, bool, error)
	Remove(ctx context.Context, owner string) error
	Ping(ctx context.Context) error
}
