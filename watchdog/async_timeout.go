package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/segbuf/segbuf/deadline"
)

type nodeState int32

const (
	stateIdle nodeState = iota
	stateInQueue
	stateTimedOut
	stateCanceled
)

// ErrUnbalanced is returned by Enter on a node that is not currently Idle.
var ErrUnbalanced = errors.New("watchdog: unbalanced enter/exit")

// AsyncTimeout tracks a single blocking operation's deadline in the shared
// scheduler and invokes onTimeout from the scheduler's background goroutine
// if the deadline passes before Exit is called. onTimeout must not block:
// it runs on the shared goroutine and starves every other pending timeout
// until it returns.
type AsyncTimeout struct {
	// id correlates this node's log lines across Enter/fire/Exit without
	// exposing the node pointer itself.
	id uuid.UUID

	onTimeout func()

	mu      sync.Mutex
	state   nodeState
	expiry  time.Time
	version uint64

	// index and seq are owned by the scheduler, mutated only while its
	// mutex is held.
	index int
	seq   uint64
}

// NewAsyncTimeout returns an AsyncTimeout that calls onTimeout if it ever fires.
func NewAsyncTimeout(onTimeout func()) *AsyncTimeout {
	return &AsyncTimeout{id: uuid.New(), onTimeout: onTimeout, index: -1}
}

// Enter arms the timeout: the earlier of timeout-from-now and deadline (if
// hasDeadline), or just whichever of the two is set. Enter on a non-Idle
// node fails with ErrUnbalanced. Enter with neither a timeout nor a
// deadline configured is a no-op: the node stays Idle.
func (n *AsyncTimeout) Enter(timeout time.Duration, dl time.Time, hasDeadline bool) error {
	n.mu.Lock()

	if n.state != stateIdle {
		n.mu.Unlock()
		return ErrUnbalanced
	}

	expiry, ok := effectiveExpiry(timeout, dl, hasDeadline)
	if !ok {
		n.mu.Unlock()
		return nil
	}

	n.state = stateInQueue
	n.expiry = expiry
	n.mu.Unlock()

	log(context.Background()).Debugf("node %s armed, expires %s", n.id, expiry)

	shared.enqueue(n)

	return nil
}

func effectiveExpiry(timeout time.Duration, dl time.Time, hasDeadline bool) (time.Time, bool) {
	now := time.Now()

	switch {
	case timeout > 0 && hasDeadline:
		byTimeout := now.Add(timeout)
		if byTimeout.Before(dl) {
			return byTimeout, true
		}

		return dl, true
	case timeout > 0:
		return now.Add(timeout), true
	case hasDeadline:
		return dl, true
	default:
		return time.Time{}, false
	}
}

// Exit disarms the timeout and reports whether it had already fired.
// Exit from Idle is a no-op, tolerated for wrap-once usage.
func (n *AsyncTimeout) Exit() bool {
	n.mu.Lock()

	switch n.state {
	case stateIdle:
		n.mu.Unlock()
		return false
	case stateInQueue:
		n.state = stateIdle
		n.mu.Unlock()
		shared.remove(n)

		return false
	case stateTimedOut:
		n.state = stateIdle
		n.mu.Unlock()

		return true
	case stateCanceled:
		n.state = stateIdle
		n.mu.Unlock()

		return false
	default:
		n.mu.Unlock()
		return false
	}
}

// Cancel prevents the node from firing without changing any configured
// deadline. It always increments the node's version counter; nothing in
// this package waits on that counter. Otherwise a no-op unless the node is
// InQueue.
func (n *AsyncTimeout) Cancel() {
	n.mu.Lock()
	n.version++

	if n.state != stateInQueue {
		n.mu.Unlock()
		return
	}

	n.state = stateCanceled
	n.mu.Unlock()

	shared.remove(n)
}

// fire is called by the scheduler's background goroutine once it pops n as
// expired. It only actually transitions and invokes the callback if n is
// still InQueue: a racing Exit or Cancel may have already claimed it.
func (n *AsyncTimeout) fire() {
	n.mu.Lock()

	if n.state != stateInQueue {
		n.mu.Unlock()
		return
	}

	n.state = stateTimedOut
	cb := n.onTimeout
	n.mu.Unlock()

	log(context.Background()).Debugf("node %s fired", n.id)

	if cb != nil {
		cb()
	}
}

// HasDeadline reports whether n is currently armed.
func (n *AsyncTimeout) HasDeadline() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.state == stateInQueue
}

// Deadline returns the absolute expiry configured by the most recent Enter.
func (n *AsyncTimeout) Deadline() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.expiry
}

// ThrowIfReached returns a timeout error if n has already fired.
func (n *AsyncTimeout) ThrowIfReached() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == stateTimedOut {
		return errors.New("watchdog: deadline exceeded")
	}

	return nil
}

var _ deadline.Timeout = (*AsyncTimeout)(nil)
