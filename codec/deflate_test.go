package codec_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/codec"
	"github.com/segbuf/segbuf/segment"
)

func newCodecPool() *segment.Pool { return segment.NewPool(2, 16*segment.Size) }

func TestDeflateRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := newCodecPool()

	wire := buffer.New(pool)
	sink, err := codec.NewDeflateSink(wire, -1, pool)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)

	in := buffer.New(pool)
	in.WriteBytes(payload)
	require.NoError(t, sink.Write(ctx, in, int64(len(payload))))
	require.NoError(t, sink.Close())

	source := codec.NewInflateSource(ctx, wire, int64(segment.Size), pool)

	var got bytes.Buffer
	out := buffer.New(pool)

	for {
		n, err := source.Read(ctx, out, int64(segment.Size))
		if n > 0 {
			chunk := make([]byte, n)
			out.ReadBytes(chunk)
			got.Write(chunk)
		}

		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
	}

	require.Equal(t, payload, got.Bytes())
}

func TestDeflateFlushEmitsReadableBlock(t *testing.T) {
	ctx := context.Background()
	pool := newCodecPool()

	wire := buffer.New(pool)
	sink, err := codec.NewDeflateSink(wire, -1, pool)
	require.NoError(t, err)

	in := buffer.New(pool)
	in.WriteBytes([]byte("hello"))
	require.NoError(t, sink.Write(ctx, in, 5))
	require.NoError(t, sink.Flush(ctx))

	require.False(t, wire.IsEmpty())
}
