// Package portaudio captures microphone audio and plays synthesized speech
// through PortAudio.
//
// The real implementation links against libportaudio and is compiled only
// with the "portaudio" build tag:
//
//	go build -tags portaudio ./cmd/translator
//
// Without the tag the package still compiles, but [Source.Start] and
// [Player.Play] fail with [audio.ErrDeviceUnavailable] so the rest of the
// pipeline (file input, tests) works on machines without the C library.
package portaudio

import "time"

// Option configures a [Source] or [Player].
type Option func(*options)

type options struct {
	device string
}

// WithDevice selects the first device whose name contains substr
// (case-insensitive). An empty substr selects the host's default device.
func WithDevice(substr string) Option {
	return func(o *options) { o.device = substr }
}

// Device describes one PortAudio device as reported by [ListDevices].
type Device struct {
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	DefaultInput      bool
	DefaultOutput     bool
}

// outputFrames is the playback buffer size in frames.
const outputFrames = 1024

// captureConfig is the immutable capture format chosen at construction.
type captureConfig struct {
	sampleRate    int
	channels      int
	frameDuration time.Duration
}
