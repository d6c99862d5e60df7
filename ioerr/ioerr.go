// Package ioerr collects the error taxonomy shared by the segmented buffer
// engine: end-of-input, closed-stream, timeout, and protocol errors, plus
// the accumulate-first-error helper used by decorator Close() methods.
package ioerr

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Sentinel errors, tested with errors.Is at call sites.
var (
	// ErrEndOfInput is returned when a read needs more bytes than a stream
	// (or buffer) can ever supply.
	ErrEndOfInput = errors.New("end of input")

	// ErrClosed is returned by any operation attempted on a closed stream.
	ErrClosed = errors.New("stream closed")
)

// ProtocolError signals malformed input: invalid UTF-8, a bad gzip header,
// an unparsable number, a bad magic value.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return e.Message }

// Protocolf builds a ProtocolError with a formatted message.
func Protocolf(format string, args ...interface{}) error {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}

// TimeoutError signals that an operation was aborted by a Timeout or an
// AsyncTimeout/Watchdog firing. Cause, when non-nil, is the I/O error (if
// any) that was in flight when the timeout was detected.
type TimeoutError struct {
	Cause error
}

func (e *TimeoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("timeout: %v", e.Cause)
	}

	return "timeout"
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// Timeout wraps cause (which may be nil) in a *TimeoutError.
func Timeout(cause error) error {
	return &TimeoutError{Cause: cause}
}

// First accumulates errors from a sequence of cleanup steps (closing a
// decorator chain). Err returns only the first non-nil error, matching the
// spec's "first exception surfaces, rest are suppressed" contract; All
// retains every error via multierr, for diagnostic logging only.
type First struct {
	err error
	all error
}

// Add records err. The first non-nil err becomes Err(); every non-nil err is
// folded into All() for logging.
func (f *First) Add(err error) {
	if err == nil {
		return
	}

	if f.err == nil {
		f.err = err
	}

	f.all = multierr.Append(f.all, err)
}

// Err returns the first error recorded, or nil.
func (f *First) Err() error { return f.err }

// All returns every error recorded, combined, for logging purposes.
func (f *First) All() error { return f.all }
