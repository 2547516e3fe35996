// Package vad defines the Detector interface for Voice Activity Detection
// backends.
//
// A Detector scores a block of mono float32 samples with the probability that
// it contains human speech. The block is usually one pipeline frame, but can
// also be a whole utterance when a detector is used to verify a clip before
// transcription.
//
// Detectors may keep internal state between calls (context windows, recurrent
// model state). Unless an implementation documents otherwise, a Detector must
// be used from a single goroutine.
package vad

// Detector scores audio for speech presence.
type Detector interface {
	// Probability returns the speech probability of samples in [0, 1].
	// samples are mono, normalised to [-1, 1], at the sample rate the
	// detector was constructed with.
	Probability(samples []float32) (float64, error)
}
