package services

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeUnauthorized   ErrorType = "unauthorized"
	ErrorTypeSessionExpired ErrorType = "session_expired"
	ErrorTypeForbidden      ErrorType = "forbidden"
	ErrorTypeRateLimited    ErrorType = "rate_limited"
	ErrorTypeGateway        ErrorType = "gateway_fault"
	ErrorTypeInternal       ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// UpstreamError carries a non-success vendor response that must reach the
// caller unchanged.
type UpstreamError struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("vendor responded with status %d", e.StatusCode)
}

// Domain error variables

var (
	ErrUserNotFound = NewDomainError(ErrorTypeNotFound, "user not found", nil)

	ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrPathRequired = NewDomainError(ErrorTypeValidation, "path is required", nil)
	ErrMissingLogin = NewDomainError(ErrorTypeValidation, "username and password are required", nil)

	ErrUnauthorized   = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidToken   = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)
	ErrSessionExpired = NewDomainError(ErrorTypeSessionExpired, "vendor session expired", nil)

	ErrForbidden = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)

	ErrTooManyAttempts = NewDomainError(ErrorTypeRateLimited, "too many failed login attempts", nil)

	ErrVendorUnreachable   = NewDomainError(ErrorTypeGateway, "vendor unreachable", nil)
	ErrVendorNotJSON       = NewDomainError(ErrorTypeGateway, "vendor response is not JSON", nil)
	ErrVendorTokenNotFound = NewDomainError(ErrorTypeGateway, "vendor token not found in response", nil)

	ErrInternal      = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError = NewDomainError(ErrorTypeInternal, "database error", nil)
)

// Error type checking helper functions

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool { return hasType(err, ErrorTypeNotFound) }

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool { return hasType(err, ErrorTypeValidation) }

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool { return hasType(err, ErrorTypeUnauthorized) }

// IsSessionExpiredError reports a missing or expired vendor session
func IsSessionExpiredError(err error) bool { return hasType(err, ErrorTypeSessionExpired) }

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool { return hasType(err, ErrorTypeForbidden) }

// IsRateLimitedError checks if an error is a throttled login
func IsRateLimitedError(err error) bool { return hasType(err, ErrorTypeRateLimited) }

// IsGatewayError checks if an error is a vendor gateway fault
func IsGatewayError(err error) bool { return hasType(err, ErrorTypeGateway) }

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool { return hasType(err, ErrorTypeInternal) }

// AsUpstreamError extracts an UpstreamError from the chain
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream, true
	}
	return nil, false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapGateway wraps a vendor-side fault
func WrapGateway(message string, err error) *DomainError {
	return NewDomainError(ErrorTypeGateway, message, err)
}

// NewRateLimitedError reports a throttled login that may be retried after
// retryAfter.
func NewRateLimitedError(reason string, retryAfter time.Duration) *DomainError {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return NewDomainError(ErrorTypeRateLimited, ErrTooManyAttempts.Message, nil).
		WithDetail("reason", reason).
		WithDetail("retryAfterSeconds", seconds)
}

// NewValidationError builds a validation error with a caller-facing message
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, nil)
}
