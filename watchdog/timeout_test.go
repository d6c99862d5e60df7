package watchdog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/segbuf/segbuf/watchdog"
)

func TestTimeoutNoDeadlineNeverThrows(t *testing.T) {
	tt := watchdog.New()

	require.False(t, tt.HasDeadline())
	require.NoError(t, tt.ThrowIfReached())
}

func TestTimeoutWithTimeoutExpires(t *testing.T) {
	tt := watchdog.New().WithTimeout(10 * time.Millisecond)

	require.True(t, tt.HasDeadline())
	require.NoError(t, tt.ThrowIfReached())

	time.Sleep(20 * time.Millisecond)
	require.Error(t, tt.ThrowIfReached())
}

func TestTimeoutWithDeadlineInPast(t *testing.T) {
	tt := watchdog.New().WithDeadline(time.Now().Add(-time.Second))

	require.Error(t, tt.ThrowIfReached())
}

func TestTimeoutPicksEarlierOfTimeoutAndDeadline(t *testing.T) {
	tt := watchdog.New().
		WithTimeout(time.Hour).
		WithDeadline(time.Now().Add(5 * time.Millisecond))

	time.Sleep(15 * time.Millisecond)
	require.Error(t, tt.ThrowIfReached())
}
