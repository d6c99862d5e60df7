package segment_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segbuf/segbuf/segment"
)

func TestSplitSharesLargePrefix(t *testing.T) {
	s := segment.NewOwned()
	data := make([]byte, segment.Size)
	for i := range data {
		data[i] = byte(i)
	}

	copy(s.WritableTail(), data)
	s.Advance(len(data))

	const n = segment.ShareMinimum + 10

	shared := s.Split(n)

	require.True(t, shared.Shared())
	require.True(t, s.Shared())
	require.False(t, shared.Owner())
	require.Equal(t, n, shared.Len())
	require.Equal(t, len(data)-n, s.Len())
	require.Equal(t, data[:n], shared.Data())
	require.Equal(t, data[n:], s.Data())
}

func TestSplitCopiesSmallPrefix(t *testing.T) {
	s := segment.NewOwned()
	copy(s.WritableTail(), []byte("hello world"))
	s.Advance(11)

	small := s.Split(5)

	require.False(t, small.Shared())
	require.False(t, s.Shared())
	require.Equal(t, []byte("hello"), small.Data())
	require.Equal(t, []byte(" world"), s.Data())
}

func TestCompactInto(t *testing.T) {
	prev := segment.NewOwned()
	copy(prev.WritableTail(), []byte("abc"))
	prev.Advance(3)

	tail := segment.NewOwned()
	copy(tail.WritableTail(), []byte("def"))
	tail.Advance(3)

	ok := tail.CompactInto(prev)
	require.True(t, ok)
	require.Equal(t, []byte("abcdef"), prev.Data())
	require.Equal(t, 0, tail.Len())
}

func TestCompactIntoRefusesWhenTooBig(t *testing.T) {
	prev := segment.NewOwned()
	copy(prev.WritableTail(), make([]byte, segment.Size-2))
	prev.Advance(segment.Size - 2)

	tail := segment.NewOwned()
	copy(tail.WritableTail(), []byte("abc"))
	tail.Advance(3)

	ok := tail.CompactInto(prev)
	require.False(t, ok)
	require.Equal(t, 3, tail.Len())
}

func TestWriteTo(t *testing.T) {
	src := segment.NewOwned()
	copy(src.WritableTail(), []byte("0123456789"))
	src.Advance(10)

	dst := segment.NewOwned()

	n := src.WriteTo(dst, 5)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("01234"), dst.Data())
	require.Equal(t, []byte("56789"), src.Data())
}
