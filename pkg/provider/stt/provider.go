// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// A Transcriber turns one complete utterance (a block of mono float32 samples
// at the pipeline sample rate) into text. Utterance boundaries are decided
// upstream by the segmenter, so implementations are batch calls: local
// whisper.cpp, a whisper-server over HTTP, or a hosted API.
//
// Implementations must be safe for concurrent use, although the pipeline
// itself calls Transcribe from a single goroutine.
package stt

import (
	"context"
	"time"
)

// Result is the transcription of one utterance.
type Result struct {
	// Text is the recognised speech. It may be empty when the backend heard
	// nothing intelligible.
	Text string

	// Language is the language the backend recognised or was told to use.
	// Empty when unknown.
	Language string

	// Duration is the wall-clock time the backend took.
	Duration time.Duration
}

// Transcriber converts a complete utterance to text.
type Transcriber interface {
	// Transcribe returns the text spoken in samples. samples are mono,
	// normalised to [-1, 1], at the sample rate the Transcriber was
	// configured for. Implementations must not retain samples.
	Transcribe(ctx context.Context, samples []float32) (Result, error)
}
