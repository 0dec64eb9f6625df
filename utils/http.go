package utils

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorResponse is the error body shared by every endpoint
type ErrorResponse struct {
	Error  string                 `json:"error"`
	Detail string                 `json:"detail,omitempty"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteRaw writes an already-encoded body. An empty content type falls back
// to application/json.
func WriteRaw(w http.ResponseWriter, status int, contentType string, body []byte) error {
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}

// WriteOK writes a 200 OK response
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteBadRequest writes a 400 Bad Request response with error details
func WriteBadRequest(w http.ResponseWriter, detail string, fields map[string]interface{}) error {
	return WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:  "validation_error",
		Detail: detail,
		Fields: fields,
	})
}

// WriteUnauthorized writes a 401 Unauthorized response
func WriteUnauthorized(w http.ResponseWriter, detail string) error {
	return WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:  "unauthorized",
		Detail: detail,
	})
}

// WriteSessionExpired writes the 401 returned when no vendor session is held
func WriteSessionExpired(w http.ResponseWriter) error {
	return WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:  "session_expired",
		Detail: "Vendor session expired",
	})
}

// WriteForbidden writes a 403 Forbidden response
func WriteForbidden(w http.ResponseWriter, detail string) error {
	if detail == "" {
		detail = "Access forbidden"
	}
	return WriteJSON(w, http.StatusForbidden, ErrorResponse{
		Error:  "forbidden",
		Detail: detail,
	})
}

// WriteNotFound writes a 404 Not Found response
func WriteNotFound(w http.ResponseWriter, detail string) error {
	if detail == "" {
		detail = "Resource not found"
	}
	return WriteJSON(w, http.StatusNotFound, ErrorResponse{
		Error:  "not_found",
		Detail: detail,
	})
}

// WriteTooManyRequests writes a 429 with a Retry-After header when
// retryAfterSeconds is positive
func WriteTooManyRequests(w http.ResponseWriter, detail string, retryAfterSeconds int) error {
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	return WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:  "rate_limited",
		Detail: detail,
	})
}

// WriteBadGateway writes a 502 for vendor faults
func WriteBadGateway(w http.ResponseWriter, detail string) error {
	return WriteJSON(w, http.StatusBadGateway, ErrorResponse{
		Error:  "gateway_fault",
		Detail: detail,
	})
}

// WriteInternalServerError writes a 500 Internal Server Error response
func WriteInternalServerError(w http.ResponseWriter, detail string) error {
	if detail == "" {
		detail = "Internal server error"
	}
	return WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:  "internal_error",
		Detail: detail,
	})
}
