package errors

import (
	"errors"
	"log/slog"
	"sort"
)

// ErrorType classifies an AppError. The same values are used as Issue kinds.
type ErrorType string

const (
	ErrTypeParse       ErrorType = "PARSE"
	ErrTypeValidation  ErrorType = "VALIDATION"
	ErrTypeComputation ErrorType = "COMPUTATION"
	ErrTypeConfig      ErrorType = "CONFIG"
	ErrTypeNotFound    ErrorType = "NOT_FOUND"
	ErrTypeStorage     ErrorType = "STORAGE"
)

// AppError is an error of a known type, optionally wrapping its cause.
// Context holds structured attributes that end up in the log line.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	msg := "[" + string(e.Type) + "] " + e.Message
	if e.Cause == nil {
		return msg
	}
	return msg + ": " + e.Cause.Error()
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithContext records key=value on the error and returns it
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = map[string]interface{}{}
	}
	e.Context[key] = value
	return e
}

// LogAttrs returns the type and context as slog attributes, keys sorted
func (e *AppError) LogAttrs() []slog.Attr {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys)+1)
	attrs = append(attrs, slog.String("error_type", string(e.Type)))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.Context[k]))
	}
	return attrs
}

// TypeOf returns the type of the first AppError in err's chain, or "" if
// there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// NewAppError creates an AppError of the given type
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{Type: errType, Message: message, Cause: cause}
}

// NewParseError creates a formula syntax error
func NewParseError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParse, message, cause)
}

// NewAppValidationError creates a semantic error without a cause
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError reports that resource (a file, sheet, question) is missing
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, resource+" not found", nil)
}

func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewStorageError creates a file or workbook access error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}
