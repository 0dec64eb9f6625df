// Package ratelimit throttles vendor logins by counting recent failed
// attempts recorded in login_audits.
package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/services"
)

// Scope is the login attribute a failure window is counted over
type Scope string

const (
	ScopeUsername Scope = "username"
	ScopeClientIP Scope = "client_ip"
)

// DefaultCountedReason is the audit failure reason of a credential rejection
const DefaultCountedReason = "upstream_rejected"

// Config holds the per-scope failure limits. A zero limit disables the scope.
// Only failures recorded with CountedReason are counted.
type Config struct {
	MaxFailuresPerUser int
	MaxFailuresPerIP   int
	Window             time.Duration
	CountedReason      string
}

// Result represents the result of a login limit check
type Result struct {
	Allowed         bool
	Remaining       int
	ResetAt         time.Time
	ViolatedScope   Scope
	ViolationReason string
}

// LoginLimiter applies a sliding window over rejected logins stored in PostgreSQL
type LoginLimiter struct {
	db     *sql.DB
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewLoginLimiter creates a new LoginLimiter
func NewLoginLimiter(db *sql.DB, cfg Config, logger *zap.Logger) *LoginLimiter {
	if cfg.CountedReason == "" {
		cfg.CountedReason = DefaultCountedReason
	}
	return &LoginLimiter{
		db:     db,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Enabled reports whether any scope is limited
func (l *LoginLimiter) Enabled() bool {
	return l.cfg.Window > 0 && (l.cfg.MaxFailuresPerUser > 0 || l.cfg.MaxFailuresPerIP > 0)
}

// CheckLimit checks the username window first, then the client IP window
func (l *LoginLimiter) CheckLimit(ctx context.Context, username, clientIP string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}

	now := l.now().UTC()
	result := &Result{Allowed: true, Remaining: -1}

	checks := []struct {
		scope Scope
		value string
		limit int
	}{
		{ScopeUsername, username, l.cfg.MaxFailuresPerUser},
		{ScopeClientIP, clientIP, l.cfg.MaxFailuresPerIP},
	}

	for _, c := range checks {
		if c.limit <= 0 || c.value == "" {
			continue
		}
		allowed, remaining, resetAt, err := l.checkWindow(ctx, c.scope, c.value, now, c.limit)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s window: %w", c.scope, err)
		}
		if !allowed {
			return &Result{
				Allowed:         false,
				ResetAt:         resetAt,
				ViolatedScope:   c.scope,
				ViolationReason: fmt.Sprintf("exceeded %d failed logins per %s by %s", c.limit, l.cfg.Window, c.scope),
			}, nil
		}
		if result.Remaining < 0 || remaining < result.Remaining {
			result.Remaining = remaining
		}
	}

	return result, nil
}

// Allow returns a rate-limited domain error when the caller must wait.
// Lookup failures are logged and the login proceeds.
func (l *LoginLimiter) Allow(ctx context.Context, username, clientIP string) error {
	result, err := l.CheckLimit(ctx, username, clientIP)
	if err != nil {
		l.logger.Warn("login limit check failed, allowing attempt",
			zap.String("username", username),
			zap.Error(err))
		return nil
	}
	if result.Allowed {
		return nil
	}

	l.logger.Warn("login throttled",
		zap.String("username", username),
		zap.String("client_ip", clientIP),
		zap.String("scope", string(result.ViolatedScope)),
		zap.Time("reset_at", result.ResetAt))
	return services.NewRateLimitedError(string(result.ViolatedScope), result.ResetAt.Sub(l.now()))
}

// checkWindow counts rejected logins for one scope inside the window. When
// the limit is reached, resetAt is the moment the limit-th most recent
// rejection leaves the window.
func (l *LoginLimiter) checkWindow(ctx context.Context, scope Scope, value string, now time.Time, limit int) (allowed bool, remaining int, resetAt time.Time, err error) {
	filter, err := failureFilter(scope)
	if err != nil {
		return false, 0, time.Time{}, err
	}
	windowStart := now.Add(-l.cfg.Window)

	countQuery := `
		SELECT COUNT(*)
		FROM login_audits
		WHERE ` + filter

	var count int
	if err := l.db.QueryRowContext(ctx, countQuery, value, l.cfg.CountedReason, windowStart).Scan(&count); err != nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to count login failures: %w", err)
	}

	if count < limit {
		return true, limit - count, time.Time{}, nil
	}

	pivotQuery := `
		SELECT created_at
		FROM login_audits
		WHERE ` + filter + `
		ORDER BY created_at DESC
		OFFSET $4 LIMIT 1`

	var pivot time.Time
	if err := l.db.QueryRowContext(ctx, pivotQuery, value, l.cfg.CountedReason, windowStart, limit-1).Scan(&pivot); err != nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to find window reset: %w", err)
	}

	return false, 0, pivot.Add(l.cfg.Window), nil
}

// failureFilter selects the counted failures of a scope: $1 is the scope
// value, $2 the failure reason and $3 the window start. Username windows
// restart after the user's latest successful login.
func failureFilter(scope Scope) (string, error) {
	column, err := scopeColumn(scope)
	if err != nil {
		return "", err
	}
	filter := column + ` = $1
		  AND succeeded = FALSE
		  AND failure_reason = $2
		  AND created_at >= $3`
	if scope == ScopeUsername {
		filter += `
		  AND created_at > COALESCE((
			SELECT MAX(s.created_at)
			FROM login_audits s
			WHERE s.username = $1 AND s.succeeded = TRUE
		  ), '-infinity'::timestamptz)`
	}
	return filter, nil
}

func scopeColumn(scope Scope) (string, error) {
	switch scope {
	case ScopeUsername:
		return "username", nil
	case ScopeClientIP:
		return "client_ip", nil
	default:
		return "", fmt.Errorf("unknown login limit scope %q", scope)
	}
}
