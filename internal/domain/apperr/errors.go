// Package apperr defines the error kinds shared by the registry, the event
// pipeline and the paginated reader, and the helpers used to tag errors with
// the operation that produced them.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Callers match them with errors.Is.
var (
	// ErrValidation marks malformed, missing or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced identifier that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks a store conflict or connectivity failure that
	// survived every retry the store layer was willing to make.
	ErrTransient = errors.New("transient store failure")
	// ErrAggregation marks a failed derived-statistics update. It is logged
	// and swallowed by the pipeline, never returned to callers.
	ErrAggregation = errors.New("aggregation failed")
)

// Error is an operation-scoped error carrying one of the sentinel kinds.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return e.Op
	}
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Message returns the human readable part of the error without the op prefix.
func (e *Error) Message() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return e.Op
}

// New returns an error of kind with a formatted message.
func New(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// NewKind returns a bare error of kind.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind tags err with kind. A nil err yields nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap adds op context to err and keeps whatever kind it already carries.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransient reports whether err is an exhausted transient store failure.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// Message extracts the caller-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
