// Package errs defines the classified error taxonomy shared by every
// component of the workflow engine. Nodes, the scheduler, the MCP pool, and
// the event store all return *errs.Error (or wrap one) instead of bare
// fmt.Errorf strings, so callers can branch on Class and Retryable without
// string matching.
package errs

import (
	"errors"
	"fmt"
)

// Class classifies a failure into one of the four buckets the scheduler uses
// to decide whether a node's failure can be retried.
type Class string

const (
	// Validation indicates malformed input, a schema mismatch, or any other
	// failure where the request itself is wrong. Always terminal.
	Validation Class = "validation"

	// Processing indicates the node ran but its logic failed (for example a
	// template rendered with a missing required variable). Terminal unless a
	// node explicitly marks the error retryable.
	Processing Class = "processing"

	// Transient indicates a failure that may succeed if retried: timeouts,
	// connection failures, pool exhaustion, an open circuit breaker, or a
	// lower-level transport error.
	Transient Class = "transient"

	// Protocol indicates a malformed or unexpected message at the MCP
	// transport or JSON-RPC layer. Always terminal; retrying will not change
	// how a peer frames its responses.
	Protocol Class = "protocol"
)

// TransientKind refines Transient errors so callers can distinguish why a
// retry might help without parsing messages.
type TransientKind string

const (
	// Timeout indicates an operation exceeded its deadline.
	Timeout TransientKind = "timeout"
	// Connection indicates a failure to establish or maintain a transport
	// connection.
	Connection TransientKind = "connection"
	// PoolExhausted indicates every connection in a pool was in use and the
	// caller's acquire deadline expired.
	PoolExhausted TransientKind = "pool_exhausted"
	// CircuitOpen indicates the circuit breaker for a server is open and is
	// failing fast instead of dispatching the call.
	CircuitOpen TransientKind = "circuit_open"
	// Transport indicates a lower-level I/O failure not covered by the more
	// specific kinds above.
	Transport TransientKind = "transport"
)

// Error is the structured failure type returned across package boundaries.
// It preserves a cause chain via Unwrap so errors.Is/errors.As work through
// retries and node-to-node propagation, while carrying the contextual fields
// the scheduler and event store need to classify and log a failure.
type Error struct {
	// Class is the coarse classification used for retry decisions.
	Class Class
	// Transient further refines a Transient-class error. Empty for other
	// classes.
	Transient TransientKind
	// Message is the human-readable summary of the failure.
	Message string
	// Node is the handle of the node that produced the error, when known.
	Node string
	// Server is the MCP server name involved in the failure, when known.
	Server string
	// Tool is the tool name involved in the failure, when known.
	Tool string
	// Attempt is the 1-based attempt number during which the failure
	// occurred.
	Attempt int
	// Retryable overrides the class's default retry eligibility. Nil means
	// "use the class default" (Transient retryable, others not).
	Retryable *bool
	// Cause links to the underlying error, enabling chains with
	// errors.Is/errors.As.
	Cause error
}

// New constructs an *Error with the given class and message.
func New(class Class, message string) *Error {
	if message == "" {
		message = string(class) + " error"
	}
	return &Error{Class: class, Message: message}
}

// Newf constructs an *Error with a formatted message.
func Newf(class Class, format string, args ...any) *Error {
	return New(class, fmt.Sprintf(format, args...))
}

// Wrap constructs an *Error that wraps cause, preserving its chain via
// Unwrap. If message is empty, cause's message is reused.
func Wrap(class Class, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Class: class, Message: message, Cause: cause}
}

// WrapTransient constructs a Transient-class *Error with the given kind,
// wrapping cause.
func WrapTransient(kind TransientKind, message string, cause error) *Error {
	e := Wrap(Transient, message, cause)
	e.Transient = kind
	return e
}

// NewTransient constructs a Transient-class *Error with the given kind and
// no underlying cause, for failures synthesized from a status code or
// protocol signal rather than a wrapped Go error.
func NewTransient(kind TransientKind, message string) *Error {
	e := New(Transient, message)
	e.Transient = kind
	return e
}

// WithNode returns a copy of e annotated with the producing node's handle.
func (e *Error) WithNode(node string) *Error {
	c := *e
	c.Node = node
	return &c
}

// WithServer returns a copy of e annotated with the MCP server name.
func (e *Error) WithServer(server string) *Error {
	c := *e
	c.Server = server
	return &c
}

// WithTool returns a copy of e annotated with the tool name.
func (e *Error) WithTool(tool string) *Error {
	c := *e
	c.Tool = tool
	return &c
}

// WithAttempt returns a copy of e annotated with the attempt number.
func (e *Error) WithAttempt(attempt int) *Error {
	c := *e
	c.Attempt = attempt
	return &c
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	switch {
	case e.Node != "" && e.Tool != "":
		return fmt.Sprintf("%s: node %s: tool %s: %s", e.Class, e.Node, e.Tool, msg)
	case e.Node != "":
		return fmt.Sprintf("%s: node %s: %s", e.Class, e.Node, msg)
	case e.Server != "":
		return fmt.Sprintf("%s: server %s: %s", e.Class, e.Server, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Class, msg)
	}
}

// Unwrap returns the underlying cause to support errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable reports whether the scheduler should retry the node that
// produced this error. Transient errors are retryable by default; all other
// classes are terminal by default. Retryable, when set, overrides the
// default.
func (e *Error) IsRetryable() bool {
	if e.Retryable != nil {
		return *e.Retryable
	}
	return e.Class == Transient
}

// Of returns the first *Error in err's chain, if any.
func Of(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ClassOf returns the Class of the first *Error in err's chain, or "" if err
// does not contain one.
func ClassOf(err error) Class {
	e, ok := Of(err)
	if !ok {
		return ""
	}
	return e.Class
}

// Retryable reports whether err (or an *Error in its chain) should be
// retried. A plain error with no classification is treated as terminal.
func Retryable(err error) bool {
	e, ok := Of(err)
	if !ok {
		return false
	}
	return e.IsRetryable()
}
