package apperr

import (
	"fmt"
	"net/http"
)

const (
	CodeValidation        = "VALIDATION"
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeConflict          = "CONFLICT"
	CodeTooLarge          = "PAYLOAD_TOO_LARGE"
	CodeRateLimited       = "RATE_LIMITED"
	CodeUnavailable       = "UNAVAILABLE"
	CodeInternal          = "INTERNAL"
)

// APIError is propagated up to the error writer so that every handler
// reports failures with the same envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Response is the JSON error envelope.
type Response struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *APIError) Response() Response {
	return Response{Message: e.Message, Code: e.Code}
}

// New constructs a new APIError.
func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func Internal() *APIError {
	return New(http.StatusInternalServerError, CodeInternal, "internal server error")
}
