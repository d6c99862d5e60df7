// Package pipe implements a bounded in-memory producer/consumer: a Buffer
// shared between a sink half and a source half, with backpressure in both
// directions and atomic hand-off of the source end to a downstream Sink.
//
// Grounded on internal/throttle's mutex+condition gate (round_tripper_test.go)
// for the "block until state changes, woken by the producer or consumer"
// shape, generalized here to two conditions (room available, data available)
// over one shared Buffer.
package pipe

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/segbuf/segbuf/buffer"
	"github.com/segbuf/segbuf/deadline"
	"github.com/segbuf/segbuf/segment"
	"github.com/segbuf/segbuf/stream"
)

// ErrCanceled is returned by every past and future read and write on a
// canceled Pipe.
var ErrCanceled = errors.New("pipe: canceled")

// ErrSinkClosed is returned by a write to a Pipe whose source half has
// already been closed.
var ErrSinkClosed = errors.New("pipe: write after source closed")

// Pipe is a fixed-capacity Buffer with a Sink half and a Source half. Sink
// writes block while the buffer is at capacity; Source reads block while
// the buffer is empty. Safe for concurrent use by one writer and one
// reader; not a general multi-producer/multi-consumer queue.
type Pipe struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buf     *buffer.Buffer
	maxSize int64

	sinkClosed   bool
	sourceClosed bool
	canceled     bool

	fold stream.Sink
}

// New returns a Pipe backed by pool with capacity maxSize bytes.
func New(maxSize int64, pool *segment.Pool) *Pipe {
	p := &Pipe{
		buf:     buffer.New(pool),
		maxSize: maxSize,
	}
	p.notEmpty = sync.NewCond(&p.mu)
	p.notFull = sync.NewCond(&p.mu)

	return p
}

// Sink returns the write half of the pipe.
func (p *Pipe) Sink() stream.Sink { return pipeSink{p} }

// Source returns the read half of the pipe.
func (p *Pipe) Source() stream.Source { return pipeSource{p} }

// Cancel fails every past and future read and write immediately and wakes
// every waiter.
func (p *Pipe) Cancel() {
	p.mu.Lock()
	p.canceled = true
	p.mu.Unlock()

	p.notEmpty.Broadcast()
	p.notFull.Broadcast()
}

// Fold atomically switches the pipe's source to sink: any bytes already
// buffered are written to sink first, then every subsequent Sink().Write
// call is forwarded directly to sink instead of buffering. Held under the
// pipe's mutex so it cannot race with a concurrent Source().Read.
func (p *Pipe) Fold(ctx context.Context, sink stream.Sink) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.canceled {
		return ErrCanceled
	}

	if p.buf.Size() > 0 {
		if err := sink.Write(ctx, p.buf, p.buf.Size()); err != nil {
			return errors.Wrap(err, "pipe: fold drain")
		}
	}

	p.fold = sink
	p.notFull.Broadcast()

	return nil
}

type pipeSink struct{ p *Pipe }

func (s pipeSink) Write(ctx context.Context, src *buffer.Buffer, byteCount int64) error {
	p := s.p

	for byteCount > 0 {
		p.mu.Lock()

		if p.canceled {
			p.mu.Unlock()
			return ErrCanceled
		}

		if p.sourceClosed {
			p.mu.Unlock()
			return ErrSinkClosed
		}

		if p.fold != nil {
			fold := p.fold
			p.mu.Unlock()

			return fold.Write(ctx, src, byteCount)
		}

		for p.buf.Size() >= p.maxSize && !p.canceled && !p.sourceClosed && p.fold == nil {
			p.notFull.Wait()
		}

		if p.canceled {
			p.mu.Unlock()
			return ErrCanceled
		}

		if p.sourceClosed {
			p.mu.Unlock()
			return ErrSinkClosed
		}

		if p.fold != nil {
			fold := p.fold
			p.mu.Unlock()

			return fold.Write(ctx, src, byteCount)
		}

		room := p.maxSize - p.buf.Size()
		chunk := byteCount
		if chunk > room {
			chunk = room
		}

		if err := p.buf.Write(ctx, src, chunk); err != nil {
			p.mu.Unlock()
			return err
		}

		byteCount -= chunk
		p.mu.Unlock()

		p.notEmpty.Broadcast()
	}

	return nil
}

func (s pipeSink) Flush(context.Context) error { return nil }

func (s pipeSink) Close() error {
	p := s.p

	p.mu.Lock()
	p.sinkClosed = true
	p.mu.Unlock()

	p.notEmpty.Broadcast()

	return nil
}

func (s pipeSink) Timeout() deadline.Timeout { return deadline.None }

type pipeSource struct{ p *Pipe }

func (s pipeSource) Read(ctx context.Context, dst *buffer.Buffer, byteCount int64) (int64, error) {
	p := s.p

	p.mu.Lock()
	defer p.mu.Unlock()

	for p.buf.IsEmpty() && !p.sinkClosed && !p.canceled {
		p.notEmpty.Wait()
	}

	if p.canceled {
		return 0, ErrCanceled
	}

	if p.buf.IsEmpty() {
		return 0, io.EOF
	}

	n := byteCount
	if n > p.buf.Size() {
		n = p.buf.Size()
	}

	if _, err := p.buf.Read(ctx, dst, n); err != nil {
		return 0, err
	}

	p.notFull.Broadcast()

	return n, nil
}

func (s pipeSource) Timeout() deadline.Timeout { return deadline.None }

// CloseSource closes the source half: further Sink writes fail immediately
// rather than blocking for room that will never free.
func (p *Pipe) CloseSource() {
	p.mu.Lock()
	p.sourceClosed = true
	p.mu.Unlock()

	p.notFull.Broadcast()
}
