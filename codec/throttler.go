package codec

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/deadline"
	"github.com/segbuf/segbuf/stream"
)

// Throttler is a shared rate gate: every ThrottledSink/ThrottledSource
// built from the same Throttler draws from one token bucket, so wiring
// several streams to one Throttler caps their combined throughput rather
// than each stream's individually.
type Throttler struct {
	limiter *rate.Limiter
}

// NewThrottler returns a Throttler allowing bytesPerSecond sustained
// throughput with a burst of up to burstBytes.
func NewThrottler(bytesPerSecond, burstBytes int) *Throttler {
	return &Throttler{limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burstBytes)}
}

// ThrottledSink gates writes to delegate through a shared Throttler.
type ThrottledSink struct {
	delegate  stream.Sink
	throttler *Throttler
}

// NewThrottledSink returns a ThrottledSink writing to delegate, gated by t.
func NewThrottledSink(delegate stream.Sink, t *Throttler) *ThrottledSink {
	return &ThrottledSink{delegate: delegate, throttler: t}
}

func (s *ThrottledSink) Write(ctx context.Context, src *buffer.Buffer, byteCount int64) error {
	if err := waitN(ctx, s.throttler.limiter, byteCount); err != nil {
		return errors.Wrap(err, "codec: throttle")
	}

	return s.delegate.Write(ctx, src, byteCount)
}

func (s *ThrottledSink) Flush(ctx context.Context) error { return s.delegate.Flush(ctx) }
func (s *ThrottledSink) Close() error                    { return s.delegate.Close() }
func (s *ThrottledSink) Timeout() deadline.Timeout       { return s.delegate.Timeout() }

// ThrottledSource gates reads from delegate through a shared Throttler.
type ThrottledSource struct {
	delegate  stream.Source
	throttler *Throttler
}

// NewThrottledSource returns a ThrottledSource reading from delegate, gated
// by t.
func NewThrottledSource(delegate stream.Source, t *Throttler) *ThrottledSource {
	return &ThrottledSource{delegate: delegate, throttler: t}
}

func (s *ThrottledSource) Read(ctx context.Context, dst *buffer.Buffer, byteCount int64) (int64, error) {
	if err := waitN(ctx, s.throttler.limiter, byteCount); err != nil {
		return 0, errors.Wrap(err, "codec: throttle")
	}

	return s.delegate.Read(ctx, dst, byteCount)
}

func (s *ThrottledSource) Timeout() deadline.Timeout { return s.delegate.Timeout() }

// ThrottlerRegistry shares one Throttler per name, so every sink/source
// built against the same name draws from one "allocated until" token
// bucket regardless of which caller happens to create it first.
type ThrottlerRegistry struct {
	group singleflight.Group
	mu    sync.RWMutex
	byKey map[string]*Throttler
}

// NewThrottlerRegistry returns an empty ThrottlerRegistry.
func NewThrottlerRegistry() *ThrottlerRegistry {
	return &ThrottlerRegistry{byKey: make(map[string]*Throttler)}
}

// GetOrCreate returns the named Throttler, creating it with the given
// rate/burst on first use. Concurrent first-use calls for the same name
// are coalesced so only one Throttler is ever constructed per name.
func (r *ThrottlerRegistry) GetOrCreate(name string, bytesPerSecond, burstBytes int) *Throttler {
	r.mu.RLock()
	t, ok := r.byKey[name]
	r.mu.RUnlock()

	if ok {
		return t
	}

	v, _, _ := r.group.Do(name, func() (interface{}, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if existing, ok := r.byKey[name]; ok {
			return existing, nil
		}

		created := NewThrottler(bytesPerSecond, burstBytes)
		r.byKey[name] = created

		return created, nil
	})

	return v.(*Throttler)
}

// waitN blocks until n tokens are available, splitting the request across
// multiple WaitN calls when n exceeds the limiter's burst size.
func waitN(ctx context.Context, limiter *rate.Limiter, n int64) error {
	burst := int64(limiter.Burst())

	for n > 0 {
		step := n
		if burst > 0 && step > burst {
			step = burst
		}

		if err := limiter.WaitN(ctx, int(step)); err != nil {
			return err
		}

		n -= step
	}

	return nil
}
