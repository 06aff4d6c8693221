// Package cronerr defines the error taxonomy shared by the cron service
// core. Every failure surfaced to a caller (gateway, CLI, or an embedding
// Go program) is one of these kinds, so the gateway can translate it to a
// stable HTTP status without inspecting error strings.
package cronerr

import "fmt"

// Kind classifies a cron-service failure.
type Kind string

const (
	// Protocol marks a missing or mistyped request field.
	Protocol Kind = "protocol"
	// NotImplemented marks an unknown trigger type or module argument.
	NotImplemented Kind = "not_implemented"
	// NotFound marks a reference to an entry id that doesn't exist.
	NotFound Kind = "not_found"
	// SemanticParse marks an out-of-range cronodate value, bad range/stride
	// syntax, or bad duration string.
	SemanticParse Kind = "semantic_parse"
	// DispatchFailure marks a refusal by the remote-exec façade.
	DispatchFailure Kind = "dispatch_failure"
	// ExecFailure marks a remote exec(2) failure reported back from the task.
	ExecFailure Kind = "exec_failure"
	// RuntimeFailure marks a task that exited nonzero or by signal.
	RuntimeFailure Kind = "runtime_failure"
	// Overflow marks a cronodate computation that found no match within
	// the two-year search bound.
	Overflow Kind = "overflow"
)

// Error is a classified cron-service failure.
type Error struct {
	Kind  Kind
	Msg   string
	Errno int // propagated errno-like code, when the collaborator gave one
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds a classified error around an existing cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// WithErrno attaches a propagated errno-like code (e.g. from exec(2) or the
// dispatch façade) and returns the receiver for chaining.
func (e *Error) WithErrno(errno int) *Error {
	e.Errno = errno
	return e
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if err == nil {
		return "", false
	}
	if ok := asError(err, &ce); ok {
		return ce.Kind, true
	}
	return "", false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
