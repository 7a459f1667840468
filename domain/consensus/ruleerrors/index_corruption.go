package ruleerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// IndexCorruptionError indicates the header index is in a state that can
// only be explained by a bug or by corrupted storage: a previous header that
// must exist is missing, an ancestor lookup came back empty, or the best
// chain is no longer a contiguous sequence of heights.
type IndexCorruptionError struct {
	message string
	inner   error
}

func (e IndexCorruptionError) Error() string {
	if e.inner != nil {
		return "index corruption: " + e.message + ": " + e.inner.Error()
	}
	return "index corruption: " + e.message
}

// Unwrap satisfies the errors.Unwrap interface
func (e IndexCorruptionError) Unwrap() error {
	return e.inner
}

// NewErrIndexCorruption returns an IndexCorruptionError with the formatted
// message and a stack trace.
func NewErrIndexCorruption(format string, args ...interface{}) error {
	return errors.WithStack(IndexCorruptionError{message: fmt.Sprintf(format, args...)})
}

// WrapInIndexCorruption wraps inner in an IndexCorruptionError.
func WrapInIndexCorruption(inner error, format string, args ...interface{}) error {
	return errors.WithStack(IndexCorruptionError{
		message: fmt.Sprintf(format, args...),
		inner:   inner,
	})
}

// IsIndexCorruption returns whether err is, or wraps, an
// IndexCorruptionError.
func IsIndexCorruption(err error) bool {
	var indexCorruptionError IndexCorruptionError
	return errors.As(err, &indexCorruptionError)
}
