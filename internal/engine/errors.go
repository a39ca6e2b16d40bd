package engine

import (
	"errors"
	"fmt"
	"log/slog"
)

// ExecError represents a failure while the worker processed a request.
//
// Fire-and-forget requests have no caller left to return an error to, so
// the worker hands ExecError to the ErrorHandler instead. It includes the
// request fields needed to investigate or replay the failed statement.
type ExecError struct {
	// RequestID identifies the failed request in logs.
	RequestID string

	// Kind is the request shape (write, query, commit, close).
	Kind RequestKind

	// Statement is the SQL text, empty for commit/close.
	Statement string

	// Params are the bound parameters.
	Params []any

	// Err is the underlying driver error.
	Err error
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("%s %s failed: %v (statement=%q)", e.Kind, e.RequestID, e.Err, e.Statement)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.RequestID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsExecError returns true if err wraps an ExecError.
// Uses errors.As to handle wrapped errors.
func IsExecError(err error) bool {
	var ee *ExecError
	return errors.As(err, &ee)
}

// ErrorHandler receives failures of requests nobody waits on.
// Called from the worker goroutine; it must not block for long and must
// not issue requests to the same client.
type ErrorHandler func(*ExecError)

// LogErrors returns an ErrorHandler writing one structured record per
// failure to logger.
func LogErrors(logger *slog.Logger) ErrorHandler {
	return func(e *ExecError) {
		logger.Error("request failed",
			"request_id", e.RequestID,
			"kind", e.Kind.String(),
			"statement", e.Statement,
			"params", e.Params,
			"error", e.Err,
		)
	}
}
