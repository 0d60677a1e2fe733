// Package errors implements the content-processing core's error taxonomy:
// Transient, Permanent, Cancelled, NotFound and Conflict. The storage, task
// record, index, task and query packages wrap their own failures in a
// CoreError carrying one of these kinds, so the task pool and facade can
// decide uniformly how to react; invalid storage paths are a PathError.
package errors

import (
	"fmt"
	"time"
)

// Kind is the design-level error taxonomy from the error handling spec.
type Kind string

const (
	// Transient is a retry-safe I/O or network failure. The task pool marks
	// the task errored but leaves artifacts intact for the next run.
	Transient Kind = "transient"
	// Permanent is bad input, a parameter mismatch, or structurally invalid
	// model output. Dependents are cancelled.
	Permanent Kind = "permanent"
	// Cancelled is cooperative shutdown, not a failure; no run record is
	// written for it.
	Cancelled Kind = "cancelled"
	// NotFound is a missing artifact or record; it typically triggers a
	// re-run of the missing dependency instead of an error.
	NotFound Kind = "not_found"
	// Conflict is a duplicate (file_id, task_type) already in flight; the
	// new submission folds into the existing one.
	Conflict Kind = "conflict"
)

// CoreError is the error type that carries a Kind through the
// content-processing core. Operation names the call that failed; Underlying, when set,
// is available through errors.Unwrap/errors.Is/errors.As.
type CoreError struct {
	Kind       Kind
	Operation  string
	Underlying error
	Timestamp  time.Time
}

func New(kind Kind, op string, err error) *CoreError {
	return &CoreError{Kind: kind, Operation: op, Underlying: err, Timestamp: time.Now()}
}

func Transientf(op string, err error) *CoreError { return New(Transient, op, err) }
func Permanentf(op string, err error) *CoreError { return New(Permanent, op, err) }

func NewCancelled(op string) *CoreError {
	return &CoreError{Kind: Cancelled, Operation: op, Timestamp: time.Now()}
}

func NewNotFound(op, what string) *CoreError {
	return &CoreError{Kind: NotFound, Operation: op, Underlying: fmt.Errorf("%s not found", what), Timestamp: time.Now()}
}

func NewConflict(op, what string) *CoreError {
	return &CoreError{Kind: Conflict, Operation: op, Underlying: fmt.Errorf("%s already in flight", what), Timestamp: time.Now()}
}

func (e *CoreError) Error() string {
	if e.Underlying == nil {
		return fmt.Sprintf("%s: %s", e.Operation, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Operation, e.Kind, e.Underlying)
}

func (e *CoreError) Unwrap() error { return e.Underlying }

func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Is reports whether err carries the given Kind, whether directly or
// wrapped.
func Is(err error, kind Kind) bool {
	var ce *CoreError
	for err != nil {
		if c, ok := err.(*CoreError); ok {
			ce = c
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return ce != nil && ce.Kind == kind
}

func IsTransient(err error) bool { return Is(err, Transient) }
func IsPermanent(err error) bool { return Is(err, Permanent) }
func IsCancelled(err error) bool { return Is(err, Cancelled) }
func IsNotFound(err error) bool  { return Is(err, NotFound) }
func IsConflict(err error) bool  { return Is(err, Conflict) }

// PathError reports a blob-store path that is non-UTF8 or escapes the
// storage root.
type PathError struct {
	Path      string
	Operation string
	Reason    string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: invalid path %q: %s", e.Operation, e.Path, e.Reason)
}
