// internal/common/errors/handler.go
package errors

import (
	"context"
	stderrors "errors"
	"time"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitCanceled = 130
)

// ErrorHandler turns workflow errors into a log entry and a process exit code.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err and returns the exit code the process should use.
func (h *ErrorHandler) Handle(err error) int {
	if err == nil {
		return ExitOK
	}

	if stderrors.Is(err, context.Canceled) {
		h.logger.Error("Run aborted", map[string]interface{}{
			"error": err.Error(),
		})
		return ExitCanceled
	}

	stdErr := h.normalizeError(err)
	h.logger.Error("Run failed", map[string]interface{}{
		"errorCode":  string(stdErr.Code),
		"step":       stdErr.Step,
		"message":    stdErr.Message,
		"details":    stdErr.Details,
		"statusCode": stdErr.StatusCode,
	})

	if stdErr.Code == ErrCodeConfig {
		return ExitUsage
	}
	return ExitFailure
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}
