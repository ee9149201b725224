package errors

import "github.com/pkg/errors"

// value to be used with errors.Is() to determine if an error chain contains a
// submission error
var SubmissionError error = errors.New("Submission Error")

// value to be used with errors.Is() to determine if an error chain contains a
// poll timeout
var PollTimeoutError error = errors.New("Poll Timeout")

// value to be used with errors.Is() to determine if an error chain contains an
// execution error reported by the gateway
var ExecutionError error = errors.New("Execution Error")

// value to be used with errors.Is() to determine if an error chain contains an
// exhausted result fetch
var FetchRetryError error = errors.New("Fetch Retry Exhausted")

// Base interface for client errors
type GatewayError interface {
	// Descriptive message describing the error
	Error() string

	// Gateway session handle under which the error occurred. May be empty
	// when the session had not been established yet.
	SessionId() string

	// Operation handle of the statement that produced the error. May be
	// empty for errors raised before submission returned a handle.
	OperationId() string

	// Stack trace associated with the error. May be nil.
	StackTrace() errors.StackTrace

	// Underlying causative error. May be nil.
	Cause() error
}

// An error raised when the initial statement POST does not succeed. Fatal for
// that statement.
type StatementSubmissionError interface {
	GatewayError
}

// An error raised when an operation never reaches FINISHED or ERROR within
// its polling budget.
type StatementPollTimeoutError interface {
	GatewayError

	// The polling budget that elapsed, in seconds.
	TimeoutSeconds() float64
}

// Any error reported by the gateway after the statement was accepted. The
// gateway's message is surfaced verbatim.
type StatementExecutionError interface {
	GatewayError

	// Error message as returned by the gateway status endpoint.
	GatewayMessage() string
}
