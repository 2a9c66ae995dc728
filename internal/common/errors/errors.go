// Package errors provides standardized error handling for the verification pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeDocumentDownloadFailed ErrorCode = "DOCUMENT_DOWNLOAD_FAILED"
	ErrCodeExtractionFailed       ErrorCode = "EXTRACTION_FAILED"
	ErrCodeExtractionTimeout      ErrorCode = "EXTRACTION_TIMEOUT"
	ErrCodeExtractionParseFailed  ErrorCode = "EXTRACTION_PARSE_FAILED"

	ErrCodeApplicationNotFound ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeDocumentNotFound    ErrorCode = "DOCUMENT_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeVerdictPersistFailed     ErrorCode = "VERDICT_PERSIST_FAILED"

	ErrCodeVerificationFailed ErrorCode = "VERIFICATION_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewDocumentDownloadFailedError creates a retryable download error.
func NewDocumentDownloadFailedError(url string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentDownloadFailed,
		Message:   "Document download failed",
		Details:   fmt.Sprintf("url: %s, error: %s", url, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionFailedError creates a retryable extraction model error.
func NewExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionFailed,
		Message:   "OCR extraction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionTimeoutError creates a retryable extraction timeout error.
func NewExtractionTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionTimeout,
		Message:   "OCR extraction timeout",
		Details:   "model call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionParseFailedError creates a non-retryable parse error. The
// pipeline recovers from this locally by substituting an all-unknown record.
func NewExtractionParseFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionParseFailed,
		Message:   "Extraction output is not well-formed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationNotFoundError creates a non-retryable lookup error.
func NewApplicationNotFoundError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "Application not found",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDocumentNotFoundError creates a non-retryable lookup error.
func NewDocumentNotFoundError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentNotFound,
		Message:   "No documents uploaded for verification",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewVerdictPersistFailedError creates a retryable verdict storage error.
// Surfaced to callers distinctly from verification-logic errors.
func NewVerdictPersistFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVerdictPersistFailed,
		Message:   "Failed to store verification verdict",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewVerificationFailedError creates a non-retryable pipeline error.
func NewVerificationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVerificationFailed,
		Message:   "Verification process failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry Policy Mapping
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDocumentDownloadFailed,
		ErrCodeExtractionFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeVerdictPersistFailed:
		return 3 // Retryable technical errors

	case ErrCodeExtractionTimeout:
		return 2 // Partial retry for timeouts

	default:
		return 0 // Data-quality and lookup errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "DOWNLOAD"):
		return "EXTRACTION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "PERSIST"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	case strings.Contains(codeStr, "VERIFICATION"):
		return "VERIFICATION"
	default:
		return "OTHER"
	}
}
