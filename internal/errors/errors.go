package errors

import (
	"net/http"
	"strconv"
	"time"
)

// ErrorCode represents a standardized error code. The first three digits
// are the HTTP status.
type ErrorCode string

const (
	// Request errors (400xx)
	ErrInvalidRequest   ErrorCode = "40001"
	ErrValidationFailed ErrorCode = "40002"
	ErrInvalidOperation ErrorCode = "40003"
	ErrRequestResolved  ErrorCode = "40004"
	ErrAlreadyExists    ErrorCode = "40005"

	// Authentication errors (401xx)
	ErrUnauthorized ErrorCode = "40101"
	ErrTokenExpired ErrorCode = "40102"

	// Authorization errors (403xx)
	ErrForbidden          ErrorCode = "40301"
	ErrPreconditionFailed ErrorCode = "40302"

	// Resource errors (404xx)
	ErrNotFound        ErrorCode = "40400"
	ErrSkillNotFound   ErrorCode = "40401"
	ErrRequestNotFound ErrorCode = "40402"

	// Concurrency errors (409xx)
	ErrConflict ErrorCode = "40901"

	// Rate limit errors (429xx)
	ErrRateLimited ErrorCode = "42901"

	// Server errors (500xx)
	ErrInternalServer     ErrorCode = "50001"
	ErrServiceUnavailable ErrorCode = "50301"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
	Timestamp  time.Time `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// WithDetails returns a copy of the error carrying details
func (e *APIError) WithDetails(details any) *APIError {
	out := *e
	out.Details = details
	out.Timestamp = time.Now().UTC()
	return &out
}

// WithMessage returns a copy of the error with a different message
func (e *APIError) WithMessage(message string) *APIError {
	out := *e
	out.Message = message
	out.Timestamp = time.Now().UTC()
	return &out
}

// ErrorBody is the "error" object of an error response
type ErrorBody struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp string    `json:"timestamp"`
	Path      string    `json:"path"`
	Method    string    `json:"method"`
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Error         ErrorBody `json:"error"`
	RequestID     string    `json:"request_id"`
	CorrelationID string    `json:"correlation_id"`
}

// NewErrorResponse builds the response body for err
func NewErrorResponse(err *APIError, requestID, correlationID, path, method string) *ErrorResponse {
	ts := err.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &ErrorResponse{
		Error: ErrorBody{
			Code:      err.Code,
			Message:   err.Message,
			Details:   err.Details,
			Timestamp: ts.Format(time.RFC3339),
			Path:      path,
			Method:    method,
		},
		RequestID:     requestID,
		CorrelationID: correlationID,
	}
}

// GetHTTPStatusFromCode returns the HTTP status encoded in code
func GetHTTPStatusFromCode(code ErrorCode) int {
	if len(code) < 3 {
		return http.StatusInternalServerError
	}
	status, err := strconv.Atoi(string(code[:3]))
	if err != nil || http.StatusText(status) == "" {
		return http.StatusInternalServerError
	}
	return status
}

// IsClientError reports a 4xx error
func IsClientError(err *APIError) bool {
	return err.HTTPStatus >= 400 && err.HTTPStatus < 500
}

// IsServerError reports a 5xx error
func IsServerError(err *APIError) bool {
	return err.HTTPStatus >= 500 && err.HTTPStatus < 600
}

// IsRetryable reports whether the same call may succeed later
func IsRetryable(err *APIError) bool {
	switch err.Code {
	case ErrConflict, ErrRateLimited, ErrServiceUnavailable:
		return true
	}
	return false
}

func newError(code ErrorCode, message string) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		HTTPStatus: GetHTTPStatusFromCode(code),
	}
}

// Common errors
var (
	ErrUnauthorizedError        = newError(ErrUnauthorized, "Authentication required")
	ErrTokenExpiredError        = newError(ErrTokenExpired, "Token has expired")
	ErrForbiddenError           = newError(ErrForbidden, "Access denied")
	ErrNotFoundError            = newError(ErrNotFound, "Resource not found")
	ErrSkillNotFoundError       = newError(ErrSkillNotFound, "Skill not found")
	ErrRequestNotFoundError     = newError(ErrRequestNotFound, "Request not found")
	ErrSelfRequestError         = newError(ErrInvalidOperation, "You cannot request your own skill")
	ErrRequestResolvedError     = newError(ErrRequestResolved, "Request has already been resolved")
	ErrFeedbackExistsError      = newError(ErrAlreadyExists, "Feedback already submitted")
	ErrFeedbackNotEligibleError = newError(ErrPreconditionFailed, "Only accepted learners can leave feedback")
	ErrConflictError            = newError(ErrConflict, "Skill was modified concurrently, please retry")
	ErrRateLimitedError         = newError(ErrRateLimited, "Rate limit exceeded")
	ErrInternalServerError      = newError(ErrInternalServer, "Internal server error")
	ErrServiceUnavailableError  = newError(ErrServiceUnavailable, "Service temporarily unavailable")
)

// NewValidationError creates a validation error with details
func NewValidationError(details any) *APIError {
	return newError(ErrValidationFailed, "Validation failed").WithDetails(details)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return newError(ErrInvalidRequest, message)
}

// NewRateLimitError creates a rate limit error with the retry delay
func NewRateLimitError(retryAfterSeconds int64) *APIError {
	return ErrRateLimitedError.WithDetails(map[string]int64{
		"retry_after_seconds": retryAfterSeconds,
	})
}
