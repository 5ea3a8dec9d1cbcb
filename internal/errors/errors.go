package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeAcquisitionDenied      ErrorType = "acquisition_denied"
	ErrorTypeAcquisitionUnavailable ErrorType = "acquisition_unavailable"
	ErrorTypeNotActive              ErrorType = "not_active"
	ErrorTypeNotFound               ErrorType = "not_found"
	ErrorTypeSelectionTooSmall      ErrorType = "selection_too_small"
	ErrorTypeAnalysisFailure        ErrorType = "analysis_failure"
	ErrorTypeBatchDispatchFailure   ErrorType = "batch_dispatch_failure"
	ErrorTypeValidation             ErrorType = "validation"
	ErrorTypeInternal               ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewAcquisitionDeniedError reports that the camera refused access (permission denied).
func NewAcquisitionDeniedError(message string, cause error) *AppError {
	return newAppError(ErrorTypeAcquisitionDenied, http.StatusForbidden, message, cause)
}

// NewAcquisitionUnavailableError reports that no usable camera feed could be acquired.
func NewAcquisitionUnavailableError(message string, cause error) *AppError {
	return newAppError(ErrorTypeAcquisitionUnavailable, http.StatusServiceUnavailable, message, cause)
}

// NewNotActiveError reports an operation that requires an active camera feed.
func NewNotActiveError(message string, cause error) *AppError {
	return newAppError(ErrorTypeNotActive, http.StatusConflict, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, cause)
}

// NewSelectionTooSmallError reports a degenerate crop selection.
func NewSelectionTooSmallError(message string, cause error) *AppError {
	return newAppError(ErrorTypeSelectionTooSmall, http.StatusUnprocessableEntity, message, cause)
}

// NewAnalysisFailureError wraps the failure of a single image analysis.
func NewAnalysisFailureError(message string, cause error) *AppError {
	return newAppError(ErrorTypeAnalysisFailure, http.StatusBadGateway, message, cause)
}

// NewBatchDispatchFailureError reports that a batch could not be attempted at all.
func NewBatchDispatchFailureError(message string, cause error) *AppError {
	return newAppError(ErrorTypeBatchDispatchFailure, http.StatusServiceUnavailable, message, cause)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// IsType checks if the error, or any error it wraps, is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
