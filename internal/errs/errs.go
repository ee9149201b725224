package errs

import (
	"fmt"

	"github.com/pkg/errors"
	fsqlerr "github.com/streamhouse/flinksql-go/errors"
)

// Error messages
const (
	ErrSessionCreate    = "failed to create gateway session"
	ErrStatementSubmit  = "failed to submit statement"
	ErrReadStatus       = "could not read operation status"
	ErrStatementFailed  = "statement execution failed"
	ErrResultFetch      = "failed to fetch result page"
	ErrResultUnobtained = "result page unobtainable after retries"
)

type gatewayError struct {
	err         error
	sessionId   string
	operationId string
	errType     string
}

var _ error = (*gatewayError)(nil)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func newGatewayError(msg string, err error, sessionId, operationId string) gatewayError {
	if err == nil {
		err = errors.New(msg)
	} else {
		err = errors.WithMessage(err, msg)
	}

	// add a stack trace unless the chain already carries one
	var st stackTracer
	if ok := errors.As(err, &st); !ok {
		err = errors.WithStack(err)
	}

	return gatewayError{
		err:         err,
		sessionId:   sessionId,
		operationId: operationId,
		errType:     "unknown",
	}
}

func (e gatewayError) Error() string {
	return fmt.Sprintf("flinksql: %s: %s", e.errType, e.err.Error())
}

func (e gatewayError) Cause() error {
	return e.err
}

func (e gatewayError) StackTrace() errors.StackTrace {
	var st stackTracer
	if ok := errors.As(e.err, &st); ok {
		return st.StackTrace()
	}

	return nil
}

func (e gatewayError) SessionId() string {
	return e.sessionId
}

func (e gatewayError) OperationId() string {
	return e.operationId
}

// submissionError covers failures of the initial statement POST, before the
// gateway handed back an operation handle.
type submissionError struct {
	gatewayError
}

var _ fsqlerr.StatementSubmissionError = (*submissionError)(nil)

func (e submissionError) Is(err error) bool {
	return err == fsqlerr.SubmissionError
}

func (e submissionError) Unwrap() error {
	return e.err
}

func NewSubmissionError(sessionId, msg string, err error) *submissionError {
	gwErr := newGatewayError(msg, err, sessionId, "")
	gwErr.errType = "submission error"
	return &submissionError{gatewayError: gwErr}
}

// pollTimeoutError is raised when an operation never reached a terminal
// status within the polling budget.
type pollTimeoutError struct {
	gatewayError
	timeoutSeconds float64
}

var _ fsqlerr.StatementPollTimeoutError = (*pollTimeoutError)(nil)

func (e pollTimeoutError) Is(err error) bool {
	return err == fsqlerr.PollTimeoutError
}

func (e pollTimeoutError) Unwrap() error {
	return e.err
}

func (e pollTimeoutError) TimeoutSeconds() float64 {
	return e.timeoutSeconds
}

func NewPollTimeoutError(sessionId, operationId string, timeoutSeconds float64) *pollTimeoutError {
	gwErr := newGatewayError(fmt.Sprintf("operation did not reach a terminal status within %gs", timeoutSeconds), nil, sessionId, operationId)
	gwErr.errType = "poll timeout"
	return &pollTimeoutError{gatewayError: gwErr, timeoutSeconds: timeoutSeconds}
}

// executionError carries the gateway-reported failure of an accepted
// statement. The gateway message is kept verbatim.
type executionError struct {
	gatewayError
	gatewayMessage string
}

var _ fsqlerr.StatementExecutionError = (*executionError)(nil)

func (e executionError) Is(err error) bool {
	return err == fsqlerr.ExecutionError
}

func (e executionError) Unwrap() error {
	return e.err
}

func (e executionError) GatewayMessage() string {
	return e.gatewayMessage
}

func NewExecutionError(sessionId, operationId, gatewayMessage string) *executionError {
	gwErr := newGatewayError(fmt.Sprintf("%s: %s", ErrStatementFailed, gatewayMessage), nil, sessionId, operationId)
	gwErr.errType = "execution error"
	return &executionError{gatewayError: gwErr, gatewayMessage: gatewayMessage}
}

// fetchRetryError is raised when the first result page could not be obtained
// within the bounded retry budget.
type fetchRetryError struct {
	gatewayError
}

func (e fetchRetryError) Is(err error) bool {
	return err == fsqlerr.FetchRetryError
}

func (e fetchRetryError) Unwrap() error {
	return e.err
}

func NewFetchRetryError(sessionId, operationId string, err error) *fetchRetryError {
	gwErr := newGatewayError(ErrResultUnobtained, err, sessionId, operationId)
	gwErr.errType = "fetch retry exhausted"
	return &fetchRetryError{gatewayError: gwErr}
}

// WrapErr wraps an error and adds a stack trace if not already present.
func WrapErr(err error, msg string) error {
	var st stackTracer
	if ok := errors.As(err, &st); ok {
		return errors.WithMessage(err, msg)
	}

	return errors.Wrap(err, msg)
}

// WrapErrf wraps an error with a formatted message, adding a stack trace if
// not already present.
func WrapErrf(err error, format string, args ...interface{}) error {
	var st stackTracer
	if ok := errors.As(err, &st); ok {
		return errors.WithMessagef(err, format, args...)
	}

	return errors.Wrapf(err, format, args...)
}
