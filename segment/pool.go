package segment

import (
	"context"
	"math/bits"
	"runtime"
	"sync/atomic"

	"github.com/segbuf/segbuf/logging"
)

var log = logging.Module("segment")

// lockSegment is the sentinel CAS-lock value: observing it as a bucket's
// head means another goroutine is mid take()/recycle(). It must never be
// handed out by Take, and must never be pushed onto a bucket by anything
// other than a paired, successful CAS.
var lockSegment = &Segment{}

// bucket is one shard of the Pool: a lock-free singly-linked freelist plus a
// best-effort running total of the bytes currently parked in it.
type bucket struct {
	head      atomic.Pointer[Segment]
	sizeBytes atomic.Int64
}

// Pool is a process-wide, lock-free, sharded freelist of recycled Segments.
// Sharding by goroutine identity (via a free-running counter, since Go
// exposes no stable goroutine ID) bounds contention: independent callers
// usually land on independent buckets. A lost CAS race never blocks a
// caller; it just falls through to the allocator, exactly as a lost
// ring-buffer CAS in agilira-lethe's buffer.go falls through to retry
// without ever parking the caller on a lock.
type Pool struct {
	buckets     []bucket
	maxPerBucket int64
	next        atomic.Uint64 // bucket-selection counter, see pickBucket
}

// NewPool builds a Pool with bucketCount buckets (rounded up to the next
// power of two; a bucketCount of zero or less selects 2*GOMAXPROCS) each
// capped at maxPerBucket recycled bytes.
func NewPool(bucketCount int, maxPerBucket int64) *Pool {
	if bucketCount <= 0 {
		bucketCount = 2 * runtime.GOMAXPROCS(0)
	}

	n := nextPow2(uint64(bucketCount))

	return &Pool{
		buckets:      make([]bucket, n),
		maxPerBucket: maxPerBucket,
	}
}

func nextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}

	return 1 << (64 - bits.LeadingZeros64(x-1))
}

// pickBucket selects a shard. There is no portable, cheap goroutine-local
// identity in Go, so the Pool round-robins over an atomic counter instead of
// hashing a thread id as the spec describes for the reference engine; the
// effect is the same property the spec cares about, independent callers
// usually landing on independent buckets, without relying on runtime
// internals.
func (p *Pool) pickBucket() *bucket {
	idx := p.next.Add(1) & uint64(len(p.buckets)-1)
	return &p.buckets[idx]
}

// Take removes and returns a Segment from the pool, allocating a fresh one
// if the chosen bucket is empty or contended. It never blocks.
func (p *Pool) Take(ctx context.Context) *Segment {
	if p == nil {
		return NewOwned()
	}

	b := p.pickBucket()

	for {
		head := b.head.Load()
		if head == nil {
			return NewOwned()
		}

		if head == lockSegment {
			// another goroutine is mid-operation on this bucket; don't spin,
			// just allocate.
			return NewOwned()
		}

		if !b.head.CompareAndSwap(head, lockSegment) {
			// lost the race for this bucket; allocate rather than retry.
			return NewOwned()
		}

		next := head.poolNext
		head.poolNext = nil
		b.sizeBytes.Add(-int64(Size))
		b.head.Store(next)

		log(ctx).Debugf("segment taken from pool")

		return head
	}
}

// Recycle returns seg to the pool if it is eligible: not shared, and the
// chosen bucket is under its byte cap. Ineligible or contended segments are
// dropped silently (left for the garbage collector), matching the spec's
// "lost races degrade to allocation/GC, never to blocking."
func (p *Pool) Recycle(seg *Segment) {
	if p == nil || seg == nil {
		return
	}

	if seg.shared {
		return
	}

	b := p.pickBucket()

	if b.sizeBytes.Load() >= p.maxPerBucket {
		return
	}

	seg.reset()

	head := b.head.Load()
	if head == lockSegment {
		return
	}

	seg.poolNext = head
	if b.head.CompareAndSwap(head, seg) {
		b.sizeBytes.Add(int64(Size))
		log(context.Background()).Debugf("segment recycled to pool")

		return
	}
	// CAS failure: another goroutine changed the head first. The spec calls
	// for dropping rather than retrying, to keep recycle() from ever
	// becoming a spin loop under heavy contention.
}
