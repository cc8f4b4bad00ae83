// Package validation defines the error returned when input is rejected at the
// administrative boundary. Nothing is persisted when one of these is returned.
package validation

import (
	"errors"
	"fmt"
)

type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func New(field string, reason string) *Error {
	return &Error{Field: field, Reason: reason}
}

func Newf(field string, format string, args ...interface{}) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err, or anything it wraps, is a *Error.
func IsValidationError(err error) bool {
	var vErr *Error
	return errors.As(err, &vErr)
}
