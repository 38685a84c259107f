package analytics

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches any ValidationError via errors.Is.
	ErrValidation = errors.New("analytics: validation failed")
	// ErrTransient matches any TransientError via errors.Is.
	ErrTransient = errors.New("analytics: transient failure")
	// ErrUnknownEnum indicates a value outside a closed enumeration.
	ErrUnknownEnum = errors.New("analytics: unknown enumeration value")
	// ErrInconsistentData marks stored rows that break a read-model invariant.
	ErrInconsistentData = errors.New("analytics: inconsistent stored data")
)

// ValidationError rejects malformed input before any data access.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("analytics: invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("analytics: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func invalidEnum(field string, err error) error {
	return &ValidationError{Field: field, Reason: "unknown value", Err: err}
}

// TransientError wraps a repository failure. The cause stays reachable
// through errors.Is and errors.As.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("analytics: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func transient(op string, err error) error {
	if err == nil {
		return nil
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	var tErr *TransientError
	if errors.As(err, &tErr) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}
