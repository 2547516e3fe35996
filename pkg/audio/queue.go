package audio

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultQueueCapacity is the frame capacity used when [NewQueue] is given a
// non-positive size. At 30ms frames it holds six seconds of audio.
const DefaultQueueCapacity = 200

// Queue is the bounded hand-off between a capture goroutine and the single
// processing goroutine. Put never blocks: when the queue is full the newest
// frame is discarded and counted. Get blocks for at most the supplied timeout
// so the consumer can poll its stop flag.
//
// Queue is safe for one or more producers and one or more consumers, although
// the pipeline only ever uses one of each.
type Queue struct {
	ch      chan Frame
	dropped atomic.Uint64
}

var _ Sink = (*Queue)(nil)

// NewQueue returns an empty queue holding at most capacity frames.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan Frame, capacity)}
}

// Put enqueues f without blocking. It returns false, and increments the drop
// counter, when the queue is full.
func (q *Queue) Put(f Frame) bool {
	select {
	case q.ch <- f:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Get dequeues the oldest frame, waiting up to timeout for one to arrive. It
// returns false when the timeout elapses or ctx is done first. A timeout is
// not an error; it only means no audio arrived in that window.
func (q *Queue) Get(ctx context.Context, timeout time.Duration) (Frame, bool) {
	select {
	case f := <-q.ch:
		return f, true
	default:
	}
	if timeout <= 0 {
		return Frame{}, false
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case f := <-q.ch:
		return f, true
	case <-t.C:
		return Frame{}, false
	case <-ctx.Done():
		return Frame{}, false
	}
}

// TryGet dequeues a frame if one is immediately available.
func (q *Queue) TryGet() (Frame, bool) {
	select {
	case f := <-q.ch:
		return f, true
	default:
		return Frame{}, false
	}
}

// Len returns the number of frames currently queued.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// Dropped returns the number of frames discarded by Put since the queue was
// created. The value never decreases.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
