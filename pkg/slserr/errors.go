// Package slserr defines the fixed error taxonomy shared by every SLS
// component: region, allocator, transaction, snapshot and checkpoint
// engines all surface failures through the same Kind enum so a caller
// can branch on Is(err, slserr.Conflict) regardless of which layer
// produced it.
package slserr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of failure. The zero value is never
// produced by this package.
type Kind int

const (
	_ Kind = iota

	// BadFormat means the region's Genesis magic or version did not match.
	BadFormat
	// Truncated means the backing file is shorter than the persisted
	// next-bump offset.
	Truncated
	// IoError wraps an mmap/pwrite/fsync failure from the OS.
	IoError
	// OutOfSpace means the allocator could not satisfy a request; it is
	// not fatal, the caller simply holds the void pointer.
	OutOfSpace
	// Exhausted means a bounded pool (transactions, dirty pages,
	// snapshots, types, invariants) is full.
	Exhausted
	// Invalid means an offset/pointer fell outside the region, or an
	// operation was attempted from the wrong state.
	Invalid
	// Conflict means a commit observed a root generation newer than the
	// one it started from.
	Conflict
	// CycleDetected is a NoCycle invariant failure.
	CycleDetected
	// NullViolation is a NotNullPtr/NullablePtr invariant failure.
	NullViolation
	// BoundsExceeded is an ArrayBounds invariant failure.
	BoundsExceeded
	// RefcountInvalid is a Refcount invariant failure.
	RefcountInvalid
	// RangeExceeded is a Range invariant failure.
	RangeExceeded
	// CustomFailed is a Custom invariant failure.
	CustomFailed
	// NotFound means a snapshot id or registered type name lookup missed.
	NotFound
)

var names = map[Kind]string{
	BadFormat:       "bad_format",
	Truncated:       "truncated",
	IoError:         "io_error",
	OutOfSpace:      "out_of_space",
	Exhausted:       "exhausted",
	Invalid:         "invalid",
	Conflict:        "conflict",
	CycleDetected:   "cycle_detected",
	NullViolation:   "null_violation",
	BoundsExceeded:  "bounds_exceeded",
	RefcountInvalid: "refcount_invalid",
	RangeExceeded:   "range_exceeded",
	CustomFailed:    "custom_failed",
	NotFound:        "not_found",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the concrete error type returned by every SLS operation that
// can fail. It carries the taxonomy Kind plus an optional wrapped cause
// and a short human message.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "region.Open"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, slserr.New(Conflict, "", "")) style matching
// against just the Kind, ignoring Op/Message/Cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an *Error for the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an *Error for the given kind, wrapping cause.
func Wrap(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// Is reports whether err is, or wraps, an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
