package errors

import (
	"net/http"
)

// Error codes carried by APIError
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeInternalServer     = "INTERNAL_SERVER_ERROR"
	CodeMetricsUnavailable = "METRICS_UNAVAILABLE"
	CodeInvalidJSON        = "INVALID_JSON"
	CodeMissingContentType = "MISSING_CONTENT_TYPE"
	CodeUnsupportedMedia   = "UNSUPPORTED_MEDIA_TYPE"
)

// problemTypes maps error codes to problem type URIs; unlisted codes are
// answered as TypeInternal.
var problemTypes = map[string]string{
	CodeInvalidRequest:     TypeValidation,
	CodeInvalidJSON:        TypeValidation,
	CodeMissingContentType: TypeValidation,
	CodeUnsupportedMedia:   TypeValidation,
	CodeValidationFailed:   TypeValidation,
	CodeNotFound:           TypeNotFound,
	CodeMetricsUnavailable: TypeNotFound,
	CodePayloadTooLarge:    TypePayloadTooLarge,
	CodeRateLimitExceeded:  TypeRateLimit,
}

// APIError is a transport-level failure with a fixed status and code
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// ProblemType returns the problem type URI for the error code
func (e *APIError) ProblemType() string {
	if t, ok := problemTypes[e.ErrorCode]; ok {
		return t
	}
	return TypeInternal
}

// WithDetails returns a copy of e carrying details
func (e *APIError) WithDetails(details interface{}) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

// ValidationError is one request field that failed validation
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the details payload of CodeValidationFailed
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return New(statusCode, errorCode, message).WithDetails(details)
}

var (
	ErrInvalidRequest    = New(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format")
	ErrValidationFailed  = New(http.StatusBadRequest, CodeValidationFailed, "Request validation failed")
	ErrNotFound          = New(http.StatusNotFound, CodeNotFound, "Resource not found")
	ErrPayloadTooLarge   = New(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Request body exceeds maximum allowed size")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")
	ErrInternalServer    = New(http.StatusInternalServerError, CodeInternalServer, "Internal server error")
)

// InvalidRequestWithError reports an undecodable body, with the decoder's
// message as details
func InvalidRequestWithError(err error) *APIError {
	return ErrInvalidRequest.WithDetails(err.Error())
}

// NewValidationErrors reports the request fields that failed validation
func NewValidationErrors(errors []ValidationError) *APIError {
	return ErrValidationFailed.WithDetails(ValidationErrors{Errors: errors})
}
