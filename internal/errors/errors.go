// Package errors is the project's thin error helper, mirroring the shape
// the teacher library calls into its own internal errors package
// (github.com/autobrr/go-qbittorrent/errors): New for sentinels, Wrap for
// adding context to an error from a lower layer.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// New creates an error with the given message. Used for package-level
// sentinel errors (e.g. domain.ErrTorrentNotFound) that callers compare against
// with errors.Is.
func New(message string) error {
	return errors.New(message)
}

// Wrap annotates err with a formatted message. Returns nil if err is nil.
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.WithMessage(err, fmt.Sprintf(format, args...))
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
