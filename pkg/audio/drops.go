package audio

import (
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// dropLogInterval bounds how often a capture backend logs queue overflow.
const dropLogInterval = 5 * time.Second

// DropWarner logs queue-overflow warnings for a capture backend. The first
// drop is always logged; after that at most one warning is emitted per
// interval, carrying the running total. It is safe for concurrent use.
type DropWarner struct {
	source  string
	total   atomic.Uint64
	limiter rate.Sometimes
}

// NewDropWarner returns a warner that labels its log lines with source.
func NewDropWarner(source string) *DropWarner {
	return &DropWarner{
		source:  source,
		limiter: rate.Sometimes{First: 1, Interval: dropLogInterval},
	}
}

// Dropped records one dropped frame.
func (w *DropWarner) Dropped() {
	n := w.total.Add(1)
	w.limiter.Do(func() {
		slog.Warn("audio queue is full; dropping frame",
			"source", w.source,
			"dropped_total", n,
		)
	})
}

// Total returns the number of drops recorded so far.
func (w *DropWarner) Total() uint64 { return w.total.Load() }

// Deliver puts f into sink and records a drop if the sink rejected it.
func (w *DropWarner) Deliver(sink Sink, f Frame) bool {
	if sink.Put(f) {
		return true
	}
	w.Dropped()
	return false
}
