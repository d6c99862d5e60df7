package codec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/codec"
)

func TestLimitedSinkAllowsUpToQuota(t *testing.T) {
	ctx := context.Background()
	pool := newCodecPool()

	delegate := buffer.New(pool)
	sink := codec.NewLimitedSink(delegate, 10)

	in := buffer.New(pool)
	in.WriteBytes([]byte("0123456789"))
	require.NoError(t, sink.Write(ctx, in, 10))
	require.Equal(t, int64(0), sink.Remaining())
}

func TestLimitedSinkRejectsOnceExceeded(t *testing.T) {
	ctx := context.Background()
	pool := newCodecPool()

	delegate := buffer.New(pool)
	sink := codec.NewLimitedSink(delegate, 5)

	in := buffer.New(pool)
	in.WriteBytes([]byte("too many bytes"))
	err := sink.Write(ctx, in, 14)
	require.ErrorIs(t, err, codec.ErrLimitExceeded)
}
