// Package silero adapts the Silero VAD ONNX model, via
// github.com/streamer45/silero-vad-go, to [vad.Detector].
//
// The binding needs onnxruntime at build and run time, so the real detector
// is compiled only with the "silero" build tag:
//
//	go build -tags "silero portaudio" ./cmd/translator
//
// Without the tag [New] returns an error and configuration should select the
// "energy" detector instead.
//
// Silero scores fixed 512-sample windows (at 16 kHz) and reports speech
// segments rather than raw probabilities. The adapter keeps a short trailing
// history so that pipeline frames smaller than a window can still be scored,
// and reports 1 when the model finds speech in that history and 0 otherwise.
package silero

import "time"

// Config configures a [Detector].
type Config struct {
	// ModelPath is the path to silero_vad.onnx. Required.
	ModelPath string

	// SampleRate must be 8000 or 16000.
	SampleRate int

	// Threshold is the model's speech threshold. Defaults to 0.5.
	Threshold float64

	// Context is the trailing audio scored per frame. Defaults to 96ms.
	// Blocks at least this long are scored on their own.
	Context time.Duration
}

const (
	defaultThreshold = 0.5
	defaultContext   = 96 * time.Millisecond
)

func (c *Config) applyDefaults() {
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Threshold <= 0 {
		c.Threshold = defaultThreshold
	}
	if c.Context <= 0 {
		c.Context = defaultContext
	}
}

func (c Config) contextSamples() int {
	return int(c.Context * time.Duration(c.SampleRate) / time.Second)
}
