package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a snaplabel error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"         // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"               // 404
	ErrDecode           ErrorCode = "DECODE_ERROR"            // 422
	ErrInference        ErrorCode = "INFERENCE_ERROR"         // 500
	ErrModelAcquisition ErrorCode = "MODEL_ACQUISITION_ERROR" // 503
	ErrInternal         ErrorCode = "INTERNAL"                // 500
)

// AppError represents a structured error with code, status, and details.
type AppError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *AppError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *AppError {
	return &AppError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing resource.
func NewNotFound(what string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", what),
		Details: map[string]any{"identifier": what},
	}
}

// NewDecode creates a 422 error for image bytes that cannot be decoded.
func NewDecode(err error) *AppError {
	msg := "image could not be decoded"
	if err != nil {
		msg = fmt.Sprintf("image could not be decoded: %v", err)
	}
	return &AppError{
		Code:    ErrDecode,
		Status:  422,
		Message: msg,
		cause:   err,
	}
}

// NewInference creates a 500 error for a failed predictor call.
func NewInference(err error) *AppError {
	msg := "inference failed"
	if err != nil {
		msg = fmt.Sprintf("inference failed: %v", err)
	}
	return &AppError{
		Code:    ErrInference,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// NewModelAcquisition creates a 503 error when the model cannot be downloaded or loaded.
func NewModelAcquisition(path string, err error) *AppError {
	msg := fmt.Sprintf("model could not be acquired from %s", path)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &AppError{
		Code:    ErrModelAcquisition,
		Status:  503,
		Message: msg,
		Details: map[string]any{"path": path},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *AppError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &AppError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var aErr *AppError
	if stderrors.As(err, &aErr) {
		return aErr.Code == code
	}
	return false
}

// From returns err as an *AppError, wrapping unknown errors as INTERNAL.
func From(err error) *AppError {
	var aErr *AppError
	if stderrors.As(err, &aErr) {
		return aErr
	}
	return NewInternal(err)
}
