// Package jobqueueerr defines the typed error kinds propagated across the
// supervisor's message surface.
package jobqueueerr

import "errors"

// Kind is one of the error kinds a caller can check for with errors.Is.
type Kind struct {
	name string
}

func (k Kind) Error() string { return k.name }

var (
	// NotFound: target job or queue does not exist.
	NotFound = Kind{"not found"}
	// Conflict: queue name already in use, or job cannot be retried in its current state.
	Conflict = Kind{"conflict"}
	// NotAccepting: queue is paused or draining.
	NotAccepting = Kind{"queue not accepting jobs"}
	// Full: pending set is at capacity.
	Full = Kind{"queue full"}
	// Backend: repository failure.
	Backend = Kind{"backend error"}
	// Timeout: reply from an actor was not received within the caller's bound.
	Timeout = Kind{"timeout"}
)

// wrapped associates a Kind with a descriptive message while remaining
// checkable with errors.Is(err, jobqueueerr.NotFound) etc.
type wrapped struct {
	kind Kind
	msg  string
	err  error
}

func (w *wrapped) Error() string {
	if w.err != nil {
		return w.msg + ": " + w.err.Error()
	}
	return w.msg
}

func (w *wrapped) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == w.kind
}

func (w *wrapped) Unwrap() error { return w.err }

// New creates an error of the given kind with a message.
func New(kind Kind, msg string) error {
	return &wrapped{kind: kind, msg: msg}
}

// Wrap creates an error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, msg string, err error) error {
	return &wrapped{kind: kind, msg: msg, err: err}
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}
