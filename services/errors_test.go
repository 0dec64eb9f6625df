package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeGateway, "vendor unreachable", baseErr)

	assert.Equal(t, ErrorTypeGateway, domainErr.Type)
	assert.Equal(t, "vendor unreachable", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeGateway,
				Message: "vendor unreachable",
				Err:     errors.New("dial tcp: timeout"),
			},
			wantMsg: "gateway_fault: vendor unreachable (dial tcp: timeout)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeSessionExpired,
				Message: "vendor session expired",
			},
			wantMsg: "session_expired: vendor session expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_UnwrapAndIs(t *testing.T) {
	baseErr := errors.New("connection refused")
	domainErr := WrapGateway("vendor unreachable", baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
	assert.True(t, errors.Is(domainErr, ErrVendorUnreachable))
	assert.True(t, errors.Is(domainErr, baseErr))
	assert.False(t, errors.Is(domainErr, ErrSessionExpired))
	assert.False(t, errors.Is(ErrSessionExpired, errors.New("plain")))
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewValidationError("path is required").WithDetail("field", "path")

	assert.Equal(t, "path", err.Details["field"])
	assert.Equal(t, "path", GetErrorDetails(err)["field"])
	assert.Nil(t, GetErrorDetails(errors.New("plain")))
}

func TestErrorTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found", ErrUserNotFound, IsNotFoundError, true},
		{"wrapped not found", fmt.Errorf("lookup: %w", ErrUserNotFound), IsNotFoundError, true},
		{"validation", ErrPathRequired, IsValidationError, true},
		{"validation is not gateway", ErrPathRequired, IsGatewayError, false},
		{"unauthorized", ErrInvalidToken, IsUnauthorizedError, true},
		{"session expired", ErrSessionExpired, IsSessionExpiredError, true},
		{"session expired is not unauthorized", ErrSessionExpired, IsUnauthorizedError, false},
		{"forbidden", ErrForbidden, IsForbiddenError, true},
		{"gateway", ErrVendorTokenNotFound, IsGatewayError, true},
		{"internal", ErrDatabaseError, IsInternalError, true},
		{"plain error", errors.New("plain"), IsInternalError, false},
		{"nil error", nil, IsNotFoundError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeGateway, GetErrorType(ErrVendorNotJSON))
	assert.Equal(t, ErrorTypeSessionExpired, GetErrorType(fmt.Errorf("proxy: %w", ErrSessionExpired)))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
}

func TestUpstreamError(t *testing.T) {
	upstream := &UpstreamError{StatusCode: 403, ContentType: "application/json", Body: []byte(`{"ret":0}`)}
	wrapped := fmt.Errorf("login: %w", upstream)

	got, ok := AsUpstreamError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 403, got.StatusCode)
	assert.Equal(t, `{"ret":0}`, string(got.Body))
	assert.Equal(t, "vendor responded with status 403", upstream.Error())

	_, ok = AsUpstreamError(ErrInternal)
	assert.False(t, ok)
}

func TestWrapInternal(t *testing.T) {
	baseErr := errors.New("database connection failed")
	wrapped := WrapInternal("failed to persist login", baseErr)

	assert.True(t, IsInternalError(wrapped))
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}

func TestNewRateLimitedError(t *testing.T) {
	err := NewRateLimitedError("username", 1500*time.Millisecond)

	assert.True(t, IsRateLimitedError(err))
	assert.True(t, errors.Is(err, ErrTooManyAttempts))
	assert.Equal(t, "username", err.Details["reason"])
	assert.Equal(t, 2, err.Details["retryAfterSeconds"])

	assert.Equal(t, 1, NewRateLimitedError("ip", 0).Details["retryAfterSeconds"])
}
