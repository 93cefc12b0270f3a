package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidPrivacyLevel    = NewDomainError(ErrCodeValidation, "invalid privacy level")
	ErrInvalidProcessingState = NewDomainError(ErrCodeValidation, "invalid processing status")
	ErrEmptyTranscript        = NewDomainError(ErrCodeValidation, "no messages found in the export")
	ErrMissingRequiredField   = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrCategoryNotFound = NewDomainError(ErrCodeNotFound, "category not found")
	ErrEntityNotFound   = NewDomainError(ErrCodeNotFound, "entity not found")
)

// Operation errors
var (
	// ErrAlreadyProcessing is returned when a reprocess is requested while a
	// pipeline run is in flight; callers must wait for a terminal status.
	ErrAlreadyProcessing = NewDomainError(ErrCodeInvalidOperation, "document is already processing")

	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
