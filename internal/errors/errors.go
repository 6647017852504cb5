// Package errors puts the stdlib matching helpers and the pkg/errors stack-carrying
// constructors behind one import, so call sites never mix the two packages.
package errors

import (
	stderrors "errors"

	pkgerrors "github.com/pkg/errors"
)

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// AsType returns the first error in err's tree of type T.
func AsType[T error](err error) (T, bool) {
	var target T
	ok := stderrors.As(err, &target)

	return target, ok
}

// Wrap annotates err with message and a stack trace. It returns nil for a nil err.
func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}

func Wrapf(err error, format string, args ...any) error {
	return pkgerrors.Wrapf(err, format, args...)
}

func WithStack(err error) error {
	return pkgerrors.WithStack(err)
}
