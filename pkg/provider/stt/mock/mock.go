// Package mock provides a test double for [stt.Transcriber].
//
// Transcriber returns Texts in order, one per call, then repeats Default.
// Set Err to fail every call, or TranscribeFunc for full control.
//
// Example:
//
//	tr := &mock.Transcriber{Texts: []string{"hola", "adiós"}}
//	res, _ := tr.Transcribe(ctx, samples)
package mock

import (
	"context"
	"sync"

	"github.com/jcoronado1982/real-time-translator/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// Samples is the number of samples passed.
	Samples int
}

// Transcriber is a mock implementation of [stt.Transcriber].
type Transcriber struct {
	mu sync.Mutex

	// Texts are returned by successive calls.
	Texts []string

	// Default is returned once Texts is exhausted.
	Default string

	// Language is copied into every Result.
	Language string

	// Err, if non-nil, is returned by every call.
	Err error

	// TranscribeFunc, if set, overrides all other fields.
	TranscribeFunc func(ctx context.Context, samples []float32) (stt.Result, error)

	// Calls records every call in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns the next scripted result.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32) (stt.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := len(t.Calls)
	t.Calls = append(t.Calls, TranscribeCall{Samples: len(samples)})
	if t.TranscribeFunc != nil {
		return t.TranscribeFunc(ctx, samples)
	}
	if t.Err != nil {
		return stt.Result{}, t.Err
	}
	text := t.Default
	if i < len(t.Texts) {
		text = t.Texts[i]
	}
	return stt.Result{Text: text, Language: t.Language}, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}

var _ stt.Transcriber = (*Transcriber)(nil)
