// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Notification domain errors
const (
	ErrCodeEmptySelection        ErrorCode = "EMPTY_SELECTION"
	ErrCodeTemplateTooLong       ErrorCode = "TEMPLATE_TOO_LONG"
	ErrCodeTemplateInvalid       ErrorCode = "TEMPLATE_INVALID"
	ErrCodeFanoutWriteFailed     ErrorCode = "FANOUT_WRITE_FAILED"
	ErrCodeFanoutInProgress      ErrorCode = "FANOUT_IN_PROGRESS"
	ErrCodeReadStateConflict     ErrorCode = "READ_STATE_CONFLICT"
	ErrCodeAccessDenied          ErrorCode = "ACCESS_DENIED"
	ErrCodeRecordNotFound        ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeDeletePartial         ErrorCode = "DELETE_PARTIAL"
	ErrCodeInvalidTargetRule     ErrorCode = "INVALID_TARGET_RULE"
	ErrCodeInvalidPeriod         ErrorCode = "INVALID_PERIOD"
	ErrCodeInvalidCursor         ErrorCode = "INVALID_CURSOR"
	ErrCodeDirectoryLookupFailed ErrorCode = "DIRECTORY_LOOKUP_FAILED"
	ErrCodeInboxQueryFailed      ErrorCode = "INBOX_QUERY_FAILED"
)

// Infrastructure / boundary errors
const (
	ErrCodeInputValidationFailed ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeAuthenticationFailed  ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeSearchQueryFailed     ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchUnavailable     ErrorCode = "SEARCH_UNAVAILABLE"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
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

// WithMetadata returns the error with one extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
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

// New creates a StandardError whose retryability follows the retry table.
func New(code ErrorCode, message, details string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
	}
}

// NewInputValidationError creates a non-retryable job input error.
func NewInputValidationError(details string) *StandardError {
	return New(ErrCodeInputValidationFailed, "Job input failed validation", details)
}

// NewAuthenticationError creates a non-retryable caller identity error.
func NewAuthenticationError(details string) *StandardError {
	return New(ErrCodeAuthenticationFailed, "Caller could not be authenticated", details)
}

// NewSearchQueryFailedError creates a retryable Elasticsearch error.
func NewSearchQueryFailedError(err error) *StandardError {
	return New(ErrCodeSearchQueryFailed, "Audit search failed", err.Error())
}

var codeMessages = map[ErrorCode]string{
	ErrCodeEmptySelection:        "Targeting rule resolved to no recipients",
	ErrCodeTemplateTooLong:       "Message template exceeds length limits",
	ErrCodeTemplateInvalid:       "Message template is invalid",
	ErrCodeFanoutWriteFailed:     "Fan-out batch could not be committed",
	ErrCodeFanoutInProgress:      "A send with this batch id is already in progress",
	ErrCodeReadStateConflict:     "Notification no longer exists",
	ErrCodeAccessDenied:          "Caller is not allowed to perform this operation",
	ErrCodeRecordNotFound:        "Notification not found",
	ErrCodeDeletePartial:         "Bulk delete stopped before completion",
	ErrCodeInvalidTargetRule:     "Targeting rule is invalid",
	ErrCodeInvalidPeriod:         "Billing period is invalid",
	ErrCodeInvalidCursor:         "Pagination cursor is invalid",
	ErrCodeDirectoryLookupFailed: "Recipient directory lookup failed",
	ErrCodeInboxQueryFailed:      "Inbox query failed",
	ErrCodeSearchQueryFailed:     "Audit search failed",
	ErrCodeSearchUnavailable:     "Audit search is not configured",
}

// FromError normalizes any error to a StandardError. Sentinels created with errors.New("CODE")
// anywhere in the chain are recognized by their code, which is how the notification core
// reports failures.
func FromError(err error) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	if code, ok := findCode(err); ok {
		msg := codeMessages[code]
		return New(code, msg, err.Error())
	}

	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// findCode walks the wrap chain (including joined errors) looking for a known code.
func findCode(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	if _, known := codeMessages[ErrorCode(err.Error())]; known {
		return ErrorCode(err.Error()), true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if code, ok := findCode(inner); ok {
				return code, true
			}
		}
	case interface{ Unwrap() error }:
		return findCode(x.Unwrap())
	}
	return "", false
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. Codes are identical except
// where a process model groups several failures under one boundary event.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeEmptySelection:        "EMPTY_SELECTION",
	ErrCodeTemplateTooLong:       "TEMPLATE_REJECTED",
	ErrCodeTemplateInvalid:       "TEMPLATE_REJECTED",
	ErrCodeFanoutWriteFailed:     "FANOUT_WRITE_FAILED",
	ErrCodeFanoutInProgress:      "FANOUT_IN_PROGRESS",
	ErrCodeReadStateConflict:     "READ_STATE_CONFLICT",
	ErrCodeAccessDenied:          "ACCESS_DENIED",
	ErrCodeRecordNotFound:        "RECORD_NOT_FOUND",
	ErrCodeDeletePartial:         "DELETE_PARTIAL",
	ErrCodeInvalidTargetRule:     "INVALID_REQUEST",
	ErrCodeInvalidPeriod:         "INVALID_REQUEST",
	ErrCodeInvalidCursor:         "INVALID_REQUEST",
	ErrCodeInputValidationFailed: "INVALID_REQUEST",
	ErrCodeAuthenticationFailed:  "ACCESS_DENIED",
	ErrCodeDirectoryLookupFailed: "DIRECTORY_LOOKUP_FAILED",
	ErrCodeInboxQueryFailed:      "INBOX_QUERY_FAILED",
	ErrCodeSearchQueryFailed:     "SEARCH_QUERY_FAILED",
	ErrCodeSearchUnavailable:     "SEARCH_UNAVAILABLE",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDirectoryLookupFailed,
		ErrCodeInboxQueryFailed,
		ErrCodeDeletePartial,
		ErrCodeSearchQueryFailed:
		return 3

	case ErrCodeFanoutWriteFailed:
		// retries reuse the batch id (caller-supplied or job-derived) and skip committed recipients
		return 2

	case ErrCodeFanoutInProgress:
		return 1

	default:
		return 0 // business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	switch {
	case !stdErr.Retryable:
		retries = 0
	case retries == 0:
		// marked retryable at the call site, e.g. an identity provider outage
		retries = 1
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "ACCESS") || strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "FANOUT"):
		return "FANOUT"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "DIRECTORY") || strings.Contains(codeStr, "INBOX") ||
		strings.Contains(codeStr, "RECORD") || strings.Contains(codeStr, "DELETE") ||
		strings.Contains(codeStr, "READ_STATE"):
		return "STORAGE"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") ||
		strings.Contains(codeStr, "SELECTION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
