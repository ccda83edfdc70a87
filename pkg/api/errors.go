package api

import "net/http"

// APIError represents an error with an associated HTTP status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// Common error constructors

// ErrBadRequest returns a 400 Bad Request error.
func ErrBadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, message)
}

// ErrNotFound returns a 404 Not Found error.
func ErrNotFound(message string) *APIError {
	return NewAPIError(http.StatusNotFound, message)
}

// ErrPayloadTooLarge returns a 413 Payload Too Large error.
func ErrPayloadTooLarge(message string) *APIError {
	return NewAPIError(http.StatusRequestEntityTooLarge, message)
}

// ErrInternalServer returns a 500 Internal Server Error.
func ErrInternalServer(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, message)
}

// ErrBadGateway returns a 502 Bad Gateway error.
func ErrBadGateway(message string) *APIError {
	return NewAPIError(http.StatusBadGateway, message)
}

// ErrServiceUnavailable returns a 503 Service Unavailable error.
func ErrServiceUnavailable(message string) *APIError {
	return NewAPIError(http.StatusServiceUnavailable, message)
}

// ErrGatewayTimeout returns a 504 Gateway Timeout error.
func ErrGatewayTimeout(message string) *APIError {
	return NewAPIError(http.StatusGatewayTimeout, message)
}

// Specific error messages for common cases

// ErrInvalidJSON returns a 400 error for invalid JSON.
func ErrInvalidJSON() *APIError {
	return ErrBadRequest("invalid JSON in request body")
}

// MaxRequestBodySize is the maximum allowed request body size (256MB).
const MaxRequestBodySize = 256 * 1024 * 1024
