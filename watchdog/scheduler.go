package watchdog

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/segbuf/segbuf/logging"
)

// IdleTimeout is how long the shared background goroutine waits on an empty
// queue before terminating. The next Enter restarts it.
const IdleTimeout = 60 * time.Second

var log = logging.Module("watchdog")

// scheduler is the process-wide shared state backing every AsyncTimeout: one
// mutex, one condition variable, and a min-heap of pending deadlines. There
// is exactly one instance, shared, matching the spec's "a shared,
// single-threaded watchdog services a priority queue" design.
type scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pq      nodeHeap
	running bool
	nextSeq uint64

	// group supervises the background loop goroutine across its
	// idle-stop/restart cycles.
	group errgroup.Group

	// generation is bumped by every enter/remove so a sleeping loop wakes up
	// and re-evaluates rather than trusting a stale wait duration.
	generation uint64
}

func newScheduler() *scheduler {
	s := &scheduler{}
	s.cond = sync.NewCond(&s.mu)

	return s
}

var shared = newScheduler()

// enqueue inserts n at its configured expiry and starts the background
// goroutine if it is not already running.
func (s *scheduler) enqueue(n *AsyncTimeout) {
	s.mu.Lock()

	n.seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.pq, n)
	s.generation++

	becameHead := s.pq[0] == n
	if !s.running {
		s.running = true

		s.group.Go(func() error {
			s.loop()
			return nil
		})
	}

	s.mu.Unlock()

	if becameHead {
		s.cond.Broadcast()
	}
}

// remove drops n from the queue if it is still present. A no-op if n was
// already popped by the loop.
func (s *scheduler) remove(n *AsyncTimeout) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.index < 0 || n.index >= len(s.pq) || s.pq[n.index] != n {
		return
	}

	heap.Remove(&s.pq, n.index)
	s.generation++
}

// loop is the shared background goroutine. It terminates after IdleTimeout
// spent with an empty queue; enqueue restarts it on demand.
func (s *scheduler) loop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if len(s.pq) == 0 {
			if !s.waitLocked(IdleTimeout) {
				s.running = false

				log(context.Background()).Debugf("watchdog idle, stopping")

				return
			}

			continue
		}

		head := s.pq[0]
		wait := time.Until(head.expiry)

		if wait > 0 {
			s.waitLocked(wait)
			continue
		}

		heap.Pop(&s.pq)

		s.mu.Unlock()
		head.fire()
		s.mu.Lock()
	}
}

// waitLocked blocks on s.cond for at most d, called with s.mu held, and
// returns true if woken by an enqueue or remove before d elapsed, false if
// the deadline elapsed first. It restores s.mu held on return either way.
func (s *scheduler) waitLocked(d time.Duration) bool {
	generation := s.generation
	timedOut := false

	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		timedOut = true
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()

	for s.generation == generation && !timedOut {
		s.cond.Wait()
	}

	return s.generation != generation
}
