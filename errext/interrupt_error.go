package errext

import (
	"errors"

	"github.com/liuxd6825/smresolve/errext/exitcodes"
)

// InterruptError is returned when a resolution is stopped from the outside,
// usually by a signal, before it could finish.
type InterruptError struct {
	Reason string
}

var _ HasExitCode = &InterruptError{}

// Error returns the reason of the interruption.
func (i *InterruptError) Error() string {
	return i.Reason
}

// ExitCode returns the status code used when the process exits.
func (i *InterruptError) ExitCode() exitcodes.ExitCode {
	return exitcodes.ExternalAbort
}

// AbortSignal is the reason used when the process receives an interrupt signal.
const AbortSignal = "resolution interrupted by signal"

// IsInterruptError returns true if err is *InterruptError.
func IsInterruptError(err error) bool {
	if err == nil {
		return false
	}
	var intErr *InterruptError
	return errors.As(err, &intErr)
}
