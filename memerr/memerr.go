// Package memerr defines the typed error taxonomy shared by every layer of
// the memory-inspection engine. Callers pattern-match on Kind rather than on
// error strings.
package memerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind tags the category of failure. Upper layers switch on Kind, never on
// the formatted message.
type Kind int

const (
	// Unknown is the zero value and should never be returned by the engine.
	Unknown Kind = iota
	// AccessError means the target process could not be opened, or a
	// permission-gated syscall failed. Fatal to the containing operation.
	AccessError
	// NotFound means a process, module, or checkpoint name is missing.
	// Recoverable; returned to the caller rather than panicking.
	NotFound
	// ShortIO means fewer bytes were read or written than requested.
	ShortIO
	// Decode means a byte window exists but a typed value could not be
	// formed from it (size mismatch at a buffer edge).
	Decode
	// TypeMismatch means arithmetic or comparison was attempted across
	// differing Value variants.
	TypeMismatch
	// ParseError means hex-pattern or AOB-pattern text was malformed.
	ParseError
)

func (k Kind) String() string {
	switch k {
	case AccessError:
		return "access_error"
	case NotFound:
		return "not_found"
	case ShortIO:
		return "short_io"
	case Decode:
		return "decode"
	case TypeMismatch:
		return "type_mismatch"
	case ParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// Error is the engine's single error type. Every exported operation that
// can fail returns either nil or an *Error (or, on success of a bulk
// operation, a count with no error).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause so errors.Is/As work across the boundary.
func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, memerr.Sentinel(memerr.AccessError)) work by
// comparing Kind against any target *Error, such as a Sentinel.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// AccessErrorf builds an AccessError, wrapping cause with a stack via
// github.com/pkg/errors when cause is non-nil.
func AccessErrorf(cause error, format string, args ...any) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return newf(AccessError, cause, format, args...)
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return newf(NotFound, nil, format, args...)
}

// ShortIOf builds a ShortIO error carrying the requested count, observed
// count, and address, per the error taxonomy in the spec.
func ShortIOf(requested, observed int, address uint64) *Error {
	return newf(ShortIO, nil, "requested %d bytes, got %d at address 0x%X", requested, observed, address)
}

// Decodef builds a Decode error.
func Decodef(format string, args ...any) *Error {
	return newf(Decode, nil, format, args...)
}

// TypeMismatchf builds a TypeMismatch error.
func TypeMismatchf(format string, args ...any) *Error {
	return newf(TypeMismatch, nil, format, args...)
}

// ParseErrorf builds a ParseError, optionally wrapping a cause.
func ParseErrorf(cause error, format string, args ...any) *Error {
	return newf(ParseError, cause, format, args...)
}

// Sentinel is a bare Kind-only error suitable for errors.Is comparisons,
// e.g. errors.Is(err, memerr.Sentinel(memerr.NotFound)).
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }
