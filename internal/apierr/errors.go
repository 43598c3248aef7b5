// Package apierr defines the closed set of error codes the resource
// tree, resource handles, and the admin API return (spec.md §6).
// It is a separate package from internal/hub so that internal/tree
// and internal/resource — both lower in the dependency graph than the
// hub — can return typed errors without importing the hub.
package apierr

import "fmt"

// Code enumerates spec.md §6's error conditions.
type Code uint8

const (
	OK Code = iota
	BadParameter
	NoMemory
	Duplicate
	Overflow
	NotFound
	InProgress
	Fault
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case BadParameter:
		return "BAD_PARAMETER"
	case NoMemory:
		return "NO_MEMORY"
	case Duplicate:
		return "DUPLICATE"
	case Overflow:
		return "OVERFLOW"
	case NotFound:
		return "NOT_FOUND"
	case InProgress:
		return "IN_PROGRESS"
	case Fault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// Error is the typed error every public operation returns on failure.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs an Error for the given code.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the Code from err, defaulting to Fault for any
// error that did not originate from this package.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
		return e.Code
	}
	return Fault
}
