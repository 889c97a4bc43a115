// Package errors provides the standardized error taxonomy for the assessment workflow.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeConfig  ErrorCode = "CONFIG_ERROR"
	ErrCodeAuth    ErrorCode = "AUTH_ERROR"
	ErrCodeAPI     ErrorCode = "API_ERROR"
	ErrCodeUpload  ErrorCode = "UPLOAD_ERROR"
	ErrCodePoll    ErrorCode = "POLL_ERROR"
	ErrCodeTimeout ErrorCode = "TIMEOUT_ERROR"
)

// Sentinels for errors.Is matching. A *StandardError matches the sentinel of its code.
var (
	ErrConfig  = stderrors.New(string(ErrCodeConfig))
	ErrAuth    = stderrors.New(string(ErrCodeAuth))
	ErrAPI     = stderrors.New(string(ErrCodeAPI))
	ErrUpload  = stderrors.New(string(ErrCodeUpload))
	ErrPoll    = stderrors.New(string(ErrCodePoll))
	ErrTimeout = stderrors.New(string(ErrCodeTimeout))
)

var sentinels = map[ErrorCode]error{
	ErrCodeConfig:  ErrConfig,
	ErrCodeAuth:    ErrAuth,
	ErrCodeAPI:     ErrAPI,
	ErrCodeUpload:  ErrUpload,
	ErrCodePoll:    ErrPoll,
	ErrCodeTimeout: ErrTimeout,
}

// StandardError represents a structured application error.
type StandardError struct {
	Code       ErrorCode `json:"code"`
	Step       string    `json:"step,omitempty"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"statusCode,omitempty"`
	Retryable  bool      `json:"retryable"`
	Timestamp  time.Time `json:"timestamp"`
	Err        error     `json:"-"`
}

func (e *StandardError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Details)
	}
	if e.Step != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Code, e.Step, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *StandardError) Unwrap() error {
	return e.Err
}

// Is reports a match against the sentinel for e.Code.
func (e *StandardError) Is(target error) bool {
	return sentinels[e.Code] == target
}

// ==========================
// 2. Error Constructors
// ==========================

// NewConfigError creates a non-retryable configuration error.
func NewConfigError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfig,
		Message:   "Invalid configuration",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthenticationError creates a non-retryable authentication error.
func NewAuthenticationError(details string, statusCode int, err error) *StandardError {
	return &StandardError{
		Code:       ErrCodeAuth,
		Step:       "authenticate",
		Message:    "Authentication failed",
		Details:    details,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC(),
		Err:        err,
	}
}

// NewAPIError creates an error for a non-2xx or unusable API response.
func NewAPIError(step string, statusCode int, details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeAPI,
		Step:       step,
		Message:    "API request failed",
		Details:    details,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500 || statusCode == 429,
		Timestamp:  time.Now().UTC(),
	}
}

// NewTransportError creates a retryable error for a request that never got a response.
func NewTransportError(step string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAPI,
		Step:      step,
		Message:   "Request could not be completed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewUploadError creates an error for local recording problems.
func NewUploadError(details string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpload,
		Step:      "upload",
		Message:   "Recording cannot be uploaded",
		Details:   details,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewPollError creates an error for an assessment the server marked as failed.
func NewPollError(assessmentID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodePoll,
		Step:      "poll",
		Message:   "Assessment failed",
		Details:   fmt.Sprintf("assessmentId: %s, status: %s", assessmentID, status),
		Timestamp: time.Now().UTC(),
	}
}

// NewTimeoutError creates an error for an exhausted polling budget.
func NewTimeoutError(assessmentID string, attempts int, waited time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Step:      "poll",
		Message:   "Scores not ready",
		Details:   fmt.Sprintf("assessmentId: %s, attempts: %d, waited: %s", assessmentID, attempts, waited),
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// WithStep returns a copy of err's StandardError with Step set when it is empty.
// Errors that are not StandardErrors are returned unchanged.
func WithStep(err error, step string) error {
	var stdErr *StandardError
	if !stderrors.As(err, &stdErr) || stdErr.Step != "" {
		return err
	}
	cp := *stdErr
	cp.Step = step
	return &cp
}

// CodeOf returns the ErrorCode carried by err, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether err is a StandardError flagged as retryable.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Retryable
}
