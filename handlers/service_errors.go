package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/services"
	"github.com/upb/tracking-bridge/utils"
)

// HandleServiceError maps domain errors to HTTP responses. Vendor rejections
// are relayed with the vendor's own status and body.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	if upstream, ok := services.AsUpstreamError(err); ok {
		if err := utils.WriteRaw(w, upstream.StatusCode, upstream.ContentType, upstream.Body); err != nil {
			logger.Error("failed to relay vendor response", zap.Error(err))
		}
		return
	}

	details := services.GetErrorDetails(err)
	message := errorMessage(err)

	var writeErr error
	switch {
	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, message, details)

	case services.IsSessionExpiredError(err):
		writeErr = utils.WriteSessionExpired(w)

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, message)

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, message)

	case services.IsRateLimitedError(err):
		retryAfter, _ := details["retryAfterSeconds"].(int)
		writeErr = utils.WriteTooManyRequests(w, message, retryAfter)

	case services.IsGatewayError(err):
		logger.Warn("vendor gateway fault", zap.Error(err))
		writeErr = utils.WriteBadGateway(w, message)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// errorMessage returns the caller-facing message without the wrapped cause
func errorMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
