// Package mock provides in-memory test doubles for [audio.Source] and
// [audio.Player].
//
// All mocks are safe for concurrent use. They record every call so tests can
// assert on call counts and arguments, and expose fields that control return
// values.
//
// Typical usage:
//
//	src := &mock.Source{Frames: frames}
//	q := audio.NewQueue(len(frames))
//	_ = src.Start(ctx, q) // Frames are delivered before Start returns.
//	src.Emit(audio.Frame{Samples: more}) // push further frames on demand
package mock

import (
	"context"
	"sync"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
)

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source].
type Source struct {
	mu sync.Mutex

	// Frames are delivered to the sink, in order, before Start returns.
	Frames []audio.Frame

	// StartErr, if non-nil, is returned by Start and no frames are delivered.
	StartErr error

	// StopErr is returned by Stop.
	StopErr error

	// StartCalls and StopCalls count invocations.
	StartCalls int
	StopCalls  int

	// Delivered counts frames accepted by the sink; Rejected counts drops.
	Delivered int
	Rejected  int

	sink    audio.Sink
	stopped bool
}

// Start records the call, stores sink, and delivers Frames.
func (s *Source) Start(_ context.Context, sink audio.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCalls++
	if s.StartErr != nil {
		return s.StartErr
	}
	s.sink = sink
	s.stopped = false
	for _, f := range s.Frames {
		s.deliverLocked(f)
	}
	return nil
}

// Emit delivers f to the sink registered by Start. It returns false when the
// source is not running or the sink dropped the frame.
func (s *Source) Emit(f audio.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink == nil || s.stopped {
		return false
	}
	return s.deliverLocked(f)
}

func (s *Source) deliverLocked(f audio.Frame) bool {
	if s.sink.Put(f) {
		s.Delivered++
		return true
	}
	s.Rejected++
	return false
}

// Stop records the call; subsequent Emit calls are ignored.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCalls++
	s.stopped = true
	return s.StopErr
}

// Counts returns the Start and Stop call counts. Thread-safe.
func (s *Source) Counts() (starts, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.StartCalls, s.StopCalls
}

var _ audio.Source = (*Source)(nil)

// ─── Player ───────────────────────────────────────────────────────────────────

// PlayCall records a single invocation of Player.Play.
type PlayCall struct {
	PCM        []int16
	SampleRate int
}

// Player is a mock implementation of [audio.Player].
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by every Play call.
	PlayErr error

	// PlayCalls records every call in order. PCM is copied.
	PlayCalls []PlayCall
}

// Play records the call and returns PlayErr.
func (p *Player) Play(_ context.Context, pcm []int16, sampleRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]int16, len(pcm))
	copy(cp, pcm)
	p.PlayCalls = append(p.PlayCalls, PlayCall{PCM: cp, SampleRate: sampleRate})
	return p.PlayErr
}

// Calls returns a snapshot of recorded calls. Thread-safe.
func (p *Player) Calls() []PlayCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlayCall, len(p.PlayCalls))
	copy(out, p.PlayCalls)
	return out
}

var _ audio.Player = (*Player)(nil)
