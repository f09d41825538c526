package errors

import (
	"fmt"
)

// MultiError collects more errors, for example validation errors of a task definition.
type MultiError interface {
	error
	Len() int
	Unwrap() []error
	WrappedErrors() []error
	Append(errs ...error)
	AppendWithPrefix(err error, prefix string)
	AppendWithPrefixf(err error, format string, a ...any)
	ErrorOrNil() error
}

type multiError struct {
	errs []error
}

func NewMultiError() MultiError {
	return &multiError{}
}

func (e *multiError) Len() int {
	return len(e.errs)
}

func (e *multiError) Error() string {
	return Format(e)
}

func (e *multiError) Unwrap() []error {
	return e.errs
}

func (e *multiError) WrappedErrors() []error {
	return e.errs
}

// Append errors, nil values are ignored, nested multi-errors are flattened.
func (e *multiError) Append(errs ...error) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		if v, ok := err.(*multiError); ok { // nolint: errorlint
			e.errs = append(e.errs, v.errs...)
		} else {
			e.errs = append(e.errs, err)
		}
	}
}

func (e *multiError) AppendWithPrefix(err error, prefix string) {
	if err == nil {
		return
	}
	e.Append(PrefixError(err, prefix))
}

func (e *multiError) AppendWithPrefixf(err error, format string, a ...any) {
	e.AppendWithPrefix(err, fmt.Sprintf(format, a...))
}

// ErrorOrNil returns nil if no error has been appended.
func (e *multiError) ErrorOrNil() error {
	if len(e.errs) == 0 {
		return nil
	}
	return e
}
