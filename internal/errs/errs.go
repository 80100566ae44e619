// Package errs defines the typed error kinds shared across the memory
// engine so callers can branch on failure class instead of matching
// error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// KindUnknown is the zero value; never returned by this package's
	// constructors, only produced by errors.As on an unrelated error.
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindStorage
	KindSearchIndex
	KindVectorDB
	KindSerialization
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	case KindSearchIndex:
		return "search_index"
	case KindVectorDB:
		return "vector_db"
	case KindSerialization:
		return "serialization"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is the single exported error type for the memory engine. It
// carries a Kind plus an optional wrapped cause and is compatible with
// errors.Is / errors.As.
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

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, other) matches any other *Error of that Kind, in
// addition to errors.As(&e).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func new_(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func wrap(k Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func NotFoundf(format string, args ...any) error { return new_(KindNotFound, format, args...) }
func Validationf(format string, args ...any) error { return new_(KindValidation, format, args...) }
func Configurationf(format string, args ...any) error {
	return new_(KindConfiguration, format, args...)
}

func Storage(cause error, format string, args ...any) error {
	return wrap(KindStorage, cause, format, args...)
}
func SearchIndex(cause error, format string, args ...any) error {
	return wrap(KindSearchIndex, cause, format, args...)
}
func VectorDB(cause error, format string, args ...any) error {
	return wrap(KindVectorDB, cause, format, args...)
}
func Serialization(cause error, format string, args ...any) error {
	return wrap(KindSerialization, cause, format, args...)
}

// Is reports whether err is a memory-engine *Error of the given kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
