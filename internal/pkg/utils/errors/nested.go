package errors

// nestedError is a main error (prefix) followed by one or more sub errors.
type nestedError struct {
	main error
	subs []error
}

func (e *nestedError) Error() string {
	return Format(e)
}

func (e *nestedError) Unwrap() []error {
	return append([]error{e.main}, e.subs...)
}

func PrefixError(err error, prefix string) error {
	return NewNestedError(New(prefix), err)
}

func PrefixErrorf(err error, format string, a ...any) error {
	return NewNestedError(Errorf(format, a...), err)
}

func NewNestedError(main error, subErrs ...error) error {
	if main == nil {
		panic(New("main error cannot be nil"))
	}

	out := &nestedError{main: main}
	for _, err := range subErrs {
		if v, ok := err.(*multiError); ok { // nolint: errorlint
			out.subs = append(out.subs, v.errs...)
		} else if err != nil {
			out.subs = append(out.subs, err)
		}
	}
	return out
}
