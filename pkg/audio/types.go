// Package audio defines the frame, queue, and device abstractions shared by
// every stage of the translator pipeline.
//
// Audio flows through the pipeline as mono float32 samples normalised to
// [-1.0, 1.0] at a single, configured sample rate. Capture backends (see the
// portaudio subpackage and [FileSource]) convert whatever the device or file
// delivers into that representation before a [Frame] is handed to a [Sink].
package audio

import (
	"context"
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned (wrapped) by [Source.Start] when the
// underlying capture device cannot be opened. Callers should surface it
// instead of retrying silently.
var ErrDeviceUnavailable = errors.New("audio: device unavailable")

// ErrSourceClosed is returned by [Source.Start] when the source has already
// been stopped and cannot be restarted.
var ErrSourceClosed = errors.New("audio: source closed")

// Frame is a fixed-length run of mono samples. Frames are immutable once
// produced: neither the queue nor any consumer modifies Samples.
type Frame struct {
	// Samples holds mono PCM normalised to [-1.0, 1.0].
	Samples []float32

	// Seq is the capture order of the frame, starting at 0 for each source.
	Seq uint64
}

// Duration returns the playback length of the frame at sampleRate. The result
// is exact for sample counts that divide evenly into nanoseconds at the rate
// (e.g. 480 samples at 16 kHz is exactly 30ms).
func (f Frame) Duration(sampleRate int) time.Duration {
	return SamplesDuration(len(f.Samples), sampleRate)
}

// SamplesDuration converts a sample count at sampleRate to a duration.
func SamplesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}

// FrameSamples returns the number of samples in one frame of duration d at
// sampleRate.
func FrameSamples(d time.Duration, sampleRate int) int {
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}

// Sink accepts captured frames. Put must never block; it reports false when
// the frame was dropped.
type Sink interface {
	Put(f Frame) bool
}

// Source captures audio and delivers frames to a [Sink].
//
// Start begins asynchronous capture and returns once the device is running.
// Stop halts capture and releases the device; it is idempotent and safe to
// call before Start.
type Source interface {
	Start(ctx context.Context, sink Sink) error
	Stop() error
}

// Player renders mono 16-bit PCM to an output device. Play blocks until the
// audio has been handed off to the device or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, pcm []int16, sampleRate int) error
}
