package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Run-level errors: fail the document before or during processing
	ErrorInvalidProfile    ErrorCode = "INVALID_PROFILE"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorRasterizeFailed   ErrorCode = "RASTERIZE_FAILED"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"

	// Page-scoped errors: absorbed into metrics/status
	ErrorEngineFailed ErrorCode = "ENGINE_FAILED"
	ErrorTableFailed  ErrorCode = "TABLE_EXTRACTION_FAILED"

	// Collaborator errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	Document  string
	Page      int
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ProcessingError with the same code, so
// callers can branch with errors.Is against a code sentinel.
func (e *ProcessingError) Is(target error) bool {
	var pe *ProcessingError
	if !errors.As(target, &pe) {
		return false
	}
	return e.Code == pe.Code
}

// CodeOf extracts the error code from err, or empty string if err is not a
// ProcessingError.
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Factory functions for common errors

func NewInvalidProfileError(reason string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidProfile,
		Message:   fmt.Sprintf("invalid processing profile: %s", reason),
		Timestamp: time.Now(),
	}
}

func NewUnsupportedFormatError(document string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("unsupported input document: %s", document),
		Document:  document,
		Timestamp: time.Now(),
	}
}

func NewRasterizeError(document string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorRasterizeFailed,
		Message:   "failed to rasterize document pages",
		Document:  document,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewEngineError(document string, page int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineFailed,
		Message:   fmt.Sprintf("recognition engine failed on page %d", page),
		Document:  document,
		Page:      page,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewTableExtractionError(document string, page int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorTableFailed,
		Message:   fmt.Sprintf("table extraction failed on page %d", page),
		Document:  document,
		Page:      page,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewStorageError(document string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "failed to persist processing results",
		Document:  document,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.Document != "" {
		result["document"] = e.Document
	}
	if e.Page > 0 {
		result["page"] = e.Page
	}
	for k, v := range e.Details {
		result[k] = v
	}
	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
