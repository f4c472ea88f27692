package taskgraph

import (
	"errors"
	"fmt"
)

// ErrAllocationFailed wraps any error returned by an [Allocator] method.
// It is the only recoverable error kind this package produces: everything
// else is a programming error, reported via panic when assertions are
// enabled (see assertf).
var ErrAllocationFailed = errors.New("taskgraph: allocation failed")

// wrapAllocErr wraps a non-nil allocator error with ErrAllocationFailed
// for errors.Is matching, leaving nil errors untouched.
func wrapAllocErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrAllocationFailed, err)
}

// assertionError is the panic value raised by assertf. It is a distinct
// type so that tests (and callers using recover) can distinguish a
// programming-error assertion from an arbitrary panic.
type assertionError struct {
	msg string
}

func (e *assertionError) Error() string { return e.msg }

// assertf panics with an *assertionError if cond is false and assertions
// are enabled. It is the core's only mechanism for reporting programming
// errors: releasing a continuation that was never created, completing or
// transferring a state twice, a transfer target that already forwards
// elsewhere or would close a forwarding cycle, and so on. A nil task in a
// handle and a nil transfer target are not checked by assertf; they
// surface as nil-pointer panics.
//
// enabled is threaded through explicitly (rather than read from a package
// global) so that assertion behaviour is a property of a *Graph's Config,
// not of the process.
func assertf(enabled bool, cond bool, format string, args ...any) {
	if !enabled || cond {
		return
	}
	panic(&assertionError{msg: fmt.Sprintf(format, args...)})
}
