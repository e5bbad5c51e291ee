// Package errors provides the standardized error taxonomy shared by the HTTP API,
// the Zeebe workers and the domain services.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Domain errors surfaced synchronously to the caller.
const (
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrCodeInvalidState     ErrorCode = "INVALID_STATE"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeUnauthenticated  ErrorCode = "UNAUTHENTICATED"
)

// Technical errors.
const (
	ErrCodeStorage         ErrorCode = "STORAGE_ERROR"
	ErrCodeDeliveryFailure ErrorCode = "DELIVERY_FAILURE"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// pqUniqueViolation is the SQLSTATE Postgres reports for unique index violations.
const pqUniqueViolation = "23505"

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying driver or transport error, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity string, id interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("%s: %v", entity, id),
		Timestamp: time.Now().UTC(),
	}
}

// NewPermissionDeniedError reports a failed authority check.
func NewPermissionDeniedError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodePermissionDenied,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStateError reports an unmet precondition on a current status or membership.
func NewInvalidStateError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidState,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// NewConflictError reports a domain invariant that the action would violate.
func NewConflictError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConflict,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError reports malformed caller input.
func NewValidationError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnauthenticatedError reports a missing or invalid credential.
func NewUnauthenticatedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthenticated,
		Message:   "could not validate credentials",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageError wraps a persistence failure. Storage errors are retryable.
func NewStorageError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorage,
		Message:   fmt.Sprintf("storage operation %q failed", operation),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDeliveryFailureError wraps a failed push to one live connection.
func NewDeliveryFailureError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryFailure,
		Message:   fmt.Sprintf("delivery over %s failed", channel),
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// FromPQ maps a database error onto the taxonomy. Unique violations become
// conflicts, everything else is a storage error.
func FromPQ(operation string, err error, conflictMessage string) *StandardError {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		e := NewConflictError(conflictMessage)
		e.Details = pqErr.Constraint
		e.cause = err
		return e
	}
	return NewStorageError(operation, err)
}

// ==========================
// 4. Inspection Helpers
// ==========================

// CodeOf returns the ErrorCode carried by err, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// As, Is and Join forward to the standard library so callers need one errors import.
func As(err error, target any) bool { return stderrors.As(err, target) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func Join(errs ...error) error { return stderrors.Join(errs...) }

func New(text string) error { return stderrors.New(text) }

// HTTPStatus maps an ErrorCode onto a response status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodePermissionDenied:
		return http.StatusForbidden
	case ErrCodeInvalidState, ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 5. BPMN Mapping
// ==========================

// BPMNErrorMapping maps internal codes onto BPMN error codes caught by boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNotFound:         "LOAN_NOT_FOUND",
	ErrCodePermissionDenied: "LOAN_PERMISSION_DENIED",
	ErrCodeInvalidState:     "LOAN_INVALID_STATE",
	ErrCodeConflict:         "LOAN_CONFLICT",
	ErrCodeValidationFailed: "INPUT_VALIDATION_FAILED",
	ErrCodeStorage:          "STORAGE_ERROR",
}

// GetRetryCount returns how many times the engine should retry a job failing with code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStorage:
		return 3
	case ErrCodeInternal:
		return 1
	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts StandardError to BPMNError.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable && stdErr.Code != ErrCodeInternal {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: retries > 0,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "PERMISSION") || strings.Contains(codeStr, "UNAUTHENTICATED"):
		return "AUTH"
	case code == ErrCodeInvalidState || code == ErrCodeConflict || code == ErrCodeNotFound:
		return "DOMAIN"
	case strings.Contains(codeStr, "STORAGE"):
		return "DATABASE"
	case strings.Contains(codeStr, "DELIVERY"):
		return "DELIVERY"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
