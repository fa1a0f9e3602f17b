package id

import (
	"errors"
	"fmt"
)

// ErrInvalid is matched by every parse error of this package.
var ErrInvalid = errors.New("invalid identifier")

// ErrMissingPrefix is returned when the text has no kind separator.
var ErrMissingPrefix = fmt.Errorf("%w: missing kind prefix", ErrInvalid)

// KindMismatchError is returned when the prefix names another kind.
type KindMismatchError struct {
	Expected string
	Actual   string
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("invalid identifier: kind mismatch (expected %q, actual %q)", e.Expected, e.Actual)
}

func (e *KindMismatchError) Is(target error) bool { return target == ErrInvalid }

// MalformedValueError is returned when the part after the prefix is not a ULID.
type MalformedValueError struct {
	Value string
	Err   error
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("invalid identifier: malformed value %q: %v", e.Value, e.Err)
}

func (e *MalformedValueError) Unwrap() error { return e.Err }

func (e *MalformedValueError) Is(target error) bool { return target == ErrInvalid }
