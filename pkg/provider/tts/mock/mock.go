// Package mock provides test doubles for the tts package interfaces.
//
// Use Synthesizer where the pipeline speaks text and Renderer to drive a
// [tts.Speaker] without a real backend.
//
// Example:
//
//	syn := &mock.Synthesizer{}
//	_ = syn.Speak(ctx, "hello")
//	syn.Texts() // ["hello"]
package mock

import (
	"context"
	"sync"

	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts"
)

// Synthesizer is a mock implementation of [tts.Synthesizer].
type Synthesizer struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by every Speak call.
	Err error

	// SpeakFunc, if set, is called instead of returning Err.
	SpeakFunc func(ctx context.Context, text string) error

	// Calls records every spoken text in order.
	Calls []string
}

// Speak records the call and returns Err.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.Calls = append(s.Calls, text)
	fn, err := s.SpeakFunc, s.Err
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, text)
	}
	return err
}

// Texts returns a snapshot of spoken texts. Thread-safe.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Calls))
	copy(out, s.Calls)
	return out
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

// Renderer is a mock implementation of [tts.Renderer].
type Renderer struct {
	mu sync.Mutex

	// Audio is returned by every successful Render call.
	Audio tts.Audio

	// Err, if non-nil, is returned by every Render call.
	Err error

	// Calls records every rendered text in order.
	Calls []string
}

// Render records the call and returns Audio, Err.
func (r *Renderer) Render(_ context.Context, text string) (tts.Audio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, text)
	if r.Err != nil {
		return tts.Audio{}, r.Err
	}
	return r.Audio, nil
}

var _ tts.Renderer = (*Renderer)(nil)
