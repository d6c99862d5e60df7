package codec_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/codec"
)

func TestThrottlerRegistrySharesOneInstancePerName(t *testing.T) {
	registry := codec.NewThrottlerRegistry()

	var (
		wg   sync.WaitGroup
		out  = make([]*codec.Throttler, 8)
	)

	for i := range out {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			out[i] = registry.GetOrCreate("uplink", 1000, 1000)
		}(i)
	}

	wg.Wait()

	for i := 1; i < len(out); i++ {
		require.Same(t, out[0], out[i])
	}
}

func TestThrottledSinkAllowsBurstThenGates(t *testing.T) {
	ctx := context.Background()
	pool := newCodecPool()

	throttler := codec.NewThrottler(1000, 1000)
	delegate := buffer.New(pool)
	sink := codec.NewThrottledSink(delegate, throttler)

	in := buffer.New(pool)
	in.WriteBytes(make([]byte, 1000))
	start := time.Now()
	require.NoError(t, sink.Write(ctx, in, 1000))
	require.Less(t, time.Since(start), 200*time.Millisecond)

	in2 := buffer.New(pool)
	in2.WriteBytes(make([]byte, 500))
	start = time.Now()
	require.NoError(t, sink.Write(ctx, in2, 500))
	require.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestThrottledSourceSharesBudgetAcrossStreams(t *testing.T) {
	ctx := context.Background()
	pool := newCodecPool()

	throttler := codec.NewThrottler(2000, 1000)

	a := buffer.New(pool)
	a.WriteBytes(make([]byte, 900))
	b := buffer.New(pool)
	b.WriteBytes(make([]byte, 900))

	srcA := codec.NewThrottledSource(a, throttler)
	srcB := codec.NewThrottledSource(b, throttler)

	dst := buffer.New(pool)
	_, err := srcA.Read(ctx, dst, 900)
	require.NoError(t, err)

	start := time.Now()
	_, err = srcB.Read(ctx, dst, 900)
	require.NoError(t, err)
	require.Greater(t, time.Since(start), 200*time.Millisecond)
}
