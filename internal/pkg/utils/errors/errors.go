// Package errors is a thin layer over the standard "errors" package.
// It adds wrapping with a replaced message, prefixed errors and multi-errors,
// all formatted as a readable bullet list, see Format.
package errors

import (
	"errors"
	"fmt"
)

func New(msg string) error {
	return errors.New(msg)
}

// Errorf supports the %w verb the same way as fmt.Errorf.
func Errorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// wrappedError replaces the message of the original error, the original error is still reachable by Unwrap.
type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg
}

func (e *wrappedError) Unwrap() error {
	return e.err
}

// Wrap returns an error with the new message, errors.Is/As still see the original error.
func Wrap(err error, msg string) error {
	if err == nil {
		panic(New("wrapped error cannot be nil"))
	}
	return &wrappedError{msg: msg, err: err}
}

func Wrapf(err error, format string, a ...any) error {
	return Wrap(err, fmt.Sprintf(format, a...))
}
