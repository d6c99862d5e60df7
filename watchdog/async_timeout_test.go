package watchdog_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/segbuf/segbuf/watchdog"
)

func TestAsyncTimeoutFiresAfterDeadline(t *testing.T) {
	var fired atomic.Bool

	n := watchdog.NewAsyncTimeout(func() { fired.Store(true) })

	require.NoError(t, n.Enter(20*time.Millisecond, time.Time{}, false))
	require.Eventually(t, fired.Load, time.Second, time.Millisecond)

	require.True(t, n.Exit())
}

func TestAsyncTimeoutExitBeforeDeadlineNeverFires(t *testing.T) {
	var fired atomic.Bool

	n := watchdog.NewAsyncTimeout(func() { fired.Store(true) })

	require.NoError(t, n.Enter(time.Hour, time.Time{}, false))
	require.False(t, n.Exit())

	time.Sleep(10 * time.Millisecond)
	require.False(t, fired.Load())
}

func TestAsyncTimeoutCancelPreventsFiring(t *testing.T) {
	var fired atomic.Bool

	n := watchdog.NewAsyncTimeout(func() { fired.Store(true) })

	require.NoError(t, n.Enter(15*time.Millisecond, time.Time{}, false))
	n.Cancel()

	time.Sleep(40 * time.Millisecond)
	require.False(t, fired.Load())
	require.False(t, n.Exit())
}

func TestAsyncTimeoutReenterAfterExit(t *testing.T) {
	n := watchdog.NewAsyncTimeout(func() {})

	require.NoError(t, n.Enter(time.Hour, time.Time{}, false))
	require.False(t, n.Exit())
	require.NoError(t, n.Enter(time.Hour, time.Time{}, false))
	require.False(t, n.Exit())
}

func TestAsyncTimeoutEnterWhileInQueueFails(t *testing.T) {
	n := watchdog.NewAsyncTimeout(func() {})

	require.NoError(t, n.Enter(time.Hour, time.Time{}, false))
	require.ErrorIs(t, n.Enter(time.Hour, time.Time{}, false), watchdog.ErrUnbalanced)

	n.Exit()
}

func TestAsyncTimeoutsFireInAscendingDeadlineOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []int
	)

	record := func(i int) func() {
		return func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}
	}

	n3 := watchdog.NewAsyncTimeout(record(3))
	n1 := watchdog.NewAsyncTimeout(record(1))
	n2 := watchdog.NewAsyncTimeout(record(2))

	require.NoError(t, n3.Enter(30*time.Millisecond, time.Time{}, false))
	require.NoError(t, n1.Enter(10*time.Millisecond, time.Time{}, false))
	require.NoError(t, n2.Enter(20*time.Millisecond, time.Time{}, false))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(order) == 3
	}, 2*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2, 3}, order)
}
