// Package energy implements a model-free [vad.Detector] that maps the RMS
// energy of a frame onto a speech probability.
//
// It is far less selective than a neural VAD but needs no native libraries,
// which makes it the fallback for machines without onnxruntime and the
// detector used by offline integration runs.
package energy

import (
	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/vad"
)

const (
	// defaultFloor is the RMS at or below which a frame scores 0. It matches
	// roughly 300 on the 16-bit PCM scale.
	defaultFloor = 0.01

	// defaultCeiling is the RMS at or above which a frame scores 1.
	defaultCeiling = 0.05
)

var _ vad.Detector = (*Detector)(nil)

// Option configures a [Detector].
type Option func(*Detector)

// WithRange sets the RMS floor and ceiling. Values between them are scored
// linearly. A ceiling not above floor is ignored.
func WithRange(floor, ceiling float64) Option {
	return func(d *Detector) {
		if ceiling > floor && floor >= 0 {
			d.floor, d.ceiling = floor, ceiling
		}
	}
}

// Detector scores frames by RMS energy. It is stateless and safe for
// concurrent use.
type Detector struct {
	floor   float64
	ceiling float64
}

// New returns a Detector with the default energy range.
func New(opts ...Option) *Detector {
	d := &Detector{floor: defaultFloor, ceiling: defaultCeiling}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Probability implements [vad.Detector].
func (d *Detector) Probability(samples []float32) (float64, error) {
	rms := audio.RMS(samples)
	switch {
	case rms <= d.floor:
		return 0, nil
	case rms >= d.ceiling:
		return 1, nil
	default:
		return (rms - d.floor) / (d.ceiling - d.floor), nil
	}
}
