package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/tracking-bridge/services"
	"github.com/upb/tracking-bridge/utils"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
		expectedDetail string
	}{
		{
			name:           "not found error",
			err:            services.ErrUserNotFound,
			expectedStatus: http.StatusNotFound,
			expectedError:  "not_found",
			expectedDetail: "user not found",
		},
		{
			name:           "validation error",
			err:            services.ErrPathRequired,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "validation_error",
			expectedDetail: "path is required",
		},
		{
			name:           "unauthorized error",
			err:            services.ErrUnauthorized,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "unauthorized",
		},
		{
			name:           "session expired",
			err:            services.ErrSessionExpired,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "session_expired",
		},
		{
			name:           "forbidden error",
			err:            services.ErrForbidden,
			expectedStatus: http.StatusForbidden,
			expectedError:  "forbidden",
		},
		{
			name:           "gateway fault hides wrapped cause",
			err:            services.WrapGateway("vendor unreachable", errors.New("dial tcp 10.0.0.1:80")),
			expectedStatus: http.StatusBadGateway,
			expectedError:  "gateway_fault",
			expectedDetail: "vendor unreachable",
		},
		{
			name:           "internal error",
			err:            services.WrapInternal("boom", errors.New("db")),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
			expectedDetail: "An internal error occurred",
		},
		{
			name:           "unknown error",
			err:            errors.New("mystery"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedError, response.Error)
			if tt.expectedDetail != "" {
				assert.Equal(t, tt.expectedDetail, response.Detail)
			}
		})
	}
}

func TestHandleServiceError_UpstreamPassthrough(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, &services.UpstreamError{
		StatusCode:  http.StatusForbidden,
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte("account locked"),
	}, zap.NewNop())

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "account locked", w.Body.String())
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, nil, zap.NewNop())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestHandleValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	HandleValidationError(w, &utils.ValidationError{
		Message: "Validation failed",
		Fields:  map[string]string{"Username": "Username is required"},
	}, zap.NewNop())

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "validation_error", response.Error)
	assert.Equal(t, "Username is required", response.Fields["Username"])
}

func TestHandleServiceError_RateLimited(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, services.NewRateLimitedError("username", 42*time.Second), zap.NewNop())

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get("Retry-After"))

	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "rate_limited", response.Error)
	assert.Equal(t, "too many failed login attempts", response.Detail)
}
