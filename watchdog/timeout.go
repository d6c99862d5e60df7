// Package watchdog implements the engine's two timeout mechanisms: a
// synchronous Timeout consulted voluntarily by I/O loops, and an
// AsyncTimeout backed by a single shared background goroutine that
// forcibly interrupts a blocked operation by invoking a caller-supplied
// callback at its deadline.
//
// Grounded on internal/throttle's shared-state rate limiter
// (round_tripper_test.go) for the "one shared background resource guarded
// by a mutex, consulted by many callers" shape, and on container/heap's
// documented example for the priority queue.
package watchdog

import (
	"time"

	"github.com/pkg/errors"

	"github.com/segbuf/segbuf/deadline"
)

// Timeout is a synchronous, per-operation deadline: a relative timeout and
// a point-in-time deadline, either or both of which may be unset. Callers
// check ThrowIfReached voluntarily inside I/O loops.
type Timeout struct {
	timeout  time.Duration
	deadline time.Time
	hasDL    bool
}

// New returns a Timeout with no configured deadline.
func New() *Timeout { return &Timeout{} }

// WithTimeout returns a copy of t with a relative timeout starting now.
func (t Timeout) WithTimeout(d time.Duration) Timeout {
	t.timeout = d
	return t
}

// WithDeadline returns a copy of t with an absolute deadline.
func (t Timeout) WithDeadline(at time.Time) Timeout {
	t.deadline = at
	t.hasDL = true

	return t
}

// HasDeadline reports whether an absolute deadline, a relative timeout, or
// both are configured.
func (t Timeout) HasDeadline() bool { return t.hasDL || t.timeout > 0 }

// Deadline returns the effective absolute deadline: the earlier of the
// configured absolute deadline and now+timeout, computed fresh on each
// call since a relative timeout has no fixed absolute value until asked.
func (t Timeout) Deadline() time.Time {
	if t.timeout <= 0 {
		return t.deadline
	}

	byTimeout := time.Now().Add(t.timeout)
	if !t.hasDL || byTimeout.Before(t.deadline) {
		return byTimeout
	}

	return t.deadline
}

// ThrowIfReached returns an interrupted-I/O error if the effective deadline
// has already passed.
func (t Timeout) ThrowIfReached() error {
	if !t.HasDeadline() {
		return nil
	}

	if !time.Now().Before(t.Deadline()) {
		return errors.New("watchdog: deadline exceeded")
	}

	return nil
}

var _ deadline.Timeout = Timeout{}
