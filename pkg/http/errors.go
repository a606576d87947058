package http

import (
	"fmt"
	"net/http"
)

// AppError is an error that knows its HTTP status and stable client-facing code.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Retryable reports whether the client may retry the same request later.
func (e *AppError) Retryable() bool {
	return e.Status == http.StatusServiceUnavailable || e.Status == http.StatusTooManyRequests
}

func NewAppError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// WithParam attaches one piece of structured context, e.g. the recommendation id.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func BadRequestError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, "ERR_BAD_REQUEST", message)
}

func NotFoundError(message string) *AppError {
	return NewAppError(http.StatusNotFound, "ERR_NOT_FOUND", message)
}

func ConflictError(message string) *AppError {
	return NewAppError(http.StatusConflict, "ERR_CONFLICT", message)
}

func UnprocessableError(message string) *AppError {
	return NewAppError(http.StatusUnprocessableEntity, "ERR_UNPROCESSABLE", message)
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, "ERR_RATE_LIMITED", message)
}

func ServiceUnavailableError(message string) *AppError {
	return NewAppError(http.StatusServiceUnavailable, "ERR_UNAVAILABLE", message)
}

func InternalError(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, "ERR_INTERNAL", message)
}
