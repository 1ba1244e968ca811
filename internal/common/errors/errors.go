// Package errors provides standardized error handling for the notification dispatcher
// and its BPMN workflow integration.
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

const (
	// Caller errors
	ErrCodeUserNotFound         ErrorCode = "USER_NOT_FOUND"
	ErrCodeNotificationNotFound ErrorCode = "NOTIFICATION_NOT_FOUND"
	ErrCodeInvalidArgument      ErrorCode = "INVALID_ARGUMENT"
	ErrCodeInvalidTransition    ErrorCode = "INVALID_TRANSITION"

	// Delivery errors
	ErrCodeChannelDeliveryFailed ErrorCode = "CHANNEL_DELIVERY_FAILED"
	ErrCodeSweepRecordFailed     ErrorCode = "SWEEP_RECORD_FAILED"

	// Storage errors
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDatabaseUpdateFailed     ErrorCode = "DATABASE_UPDATE_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDuplicateNotification    ErrorCode = "DUPLICATE_NOTIFICATION"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

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
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// CodeOf returns the code of the first StandardError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
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

// NewUserNotFoundError creates a non-retryable lookup error.
func NewUserNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUserNotFound,
		Message:   "User not found",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationNotFoundError reports a notification id with no stored row.
func NewNotificationNotFoundError(notificationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationNotFound,
		Message:   "Notification not found",
		Details:   fmt.Sprintf("id: %s", notificationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidArgumentError creates a non-retryable validation error.
func NewInvalidArgumentError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidArgument,
		Message:   "Invalid argument",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError reports a rejected status change.
func NewInvalidTransitionError(notificationID, from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Invalid notification status transition",
		Details:   fmt.Sprintf("id: %s, from: %s, to: %s", notificationID, from, to),
		Retryable: false,
		Metadata:  map[string]interface{}{"notificationId": notificationID},
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelDeliveryFailedError wraps a single channel failure. It is only
// ever logged or recorded, never returned to a caller of Send.
func NewChannelDeliveryFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelDeliveryFailed,
		Message:   "Channel delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSweepRecordFailedError marks a due record whose processing raised an error.
func NewSweepRecordFailedError(notificationID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSweepRecordFailed,
		Message:   "Pending notification processing failed",
		Details:   fmt.Sprintf("id: %s, error: %s", notificationID, err.Error()),
		Retryable: false,
		Metadata:  map[string]interface{}{"notificationId": notificationID},
		Timestamp: time.Now().UTC(),
		cause:     err,
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
		cause:     err,
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDatabaseUpdateFailedError creates a retryable database update error.
func NewDatabaseUpdateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseUpdateFailed,
		Message:   "Database update operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDuplicateNotificationError reports an id collision on insert.
func NewDuplicateNotificationError(notificationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateNotification,
		Message:   "Notification already exists",
		Details:   fmt.Sprintf("id: %s", notificationID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeDatabaseUpdateFailed,
		ErrCodeQueryExecutionFailed:
		return 3

	case ErrCodeDuplicateNotification:
		return 1

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
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
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "CHANNEL") || strings.Contains(codeStr, "SWEEP"):
		return "DELIVERY"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "DUPLICATE"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// normalize ensures we always have a StandardError.
func normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}
