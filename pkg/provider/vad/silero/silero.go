//go:build silero

package silero

import (
	"errors"
	"fmt"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/jcoronado1982/real-time-translator/pkg/provider/vad"
)

var _ vad.Detector = (*Detector)(nil)

// Detector wraps a Silero model instance. It is not safe for concurrent use.
type Detector struct {
	sd      *speech.Detector
	history []float32
	window  int
}

// New loads the model at cfg.ModelPath.
func New(cfg Config) (*Detector, error) {
	cfg.applyDefaults()
	if cfg.ModelPath == "" {
		return nil, errors.New("silero: model path is required")
	}
	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:  cfg.ModelPath,
		SampleRate: cfg.SampleRate,
		Threshold:  float32(cfg.Threshold),
	})
	if err != nil {
		return nil, fmt.Errorf("silero: load model %q: %w", cfg.ModelPath, err)
	}
	window := cfg.contextSamples()
	return &Detector{sd: sd, window: window, history: make([]float32, 0, window)}, nil
}

// Probability implements [vad.Detector]. Blocks shorter than the context are
// appended to the trailing history and the history is scored. Longer blocks
// are scored alone and leave the history untouched.
func (d *Detector) Probability(samples []float32) (float64, error) {
	block := samples
	if len(samples) < d.window {
		d.history = append(d.history, samples...)
		if over := len(d.history) - d.window; over > 0 {
			d.history = append(d.history[:0], d.history[over:]...)
		}
		block = d.history
	}

	if err := d.sd.Reset(); err != nil {
		return 0, fmt.Errorf("silero: reset: %w", err)
	}
	segments, err := d.sd.Detect(block)
	if err != nil {
		return 0, fmt.Errorf("silero: detect: %w", err)
	}
	if len(segments) > 0 {
		return 1, nil
	}
	return 0, nil
}

// Close releases the model.
func (d *Detector) Close() error {
	if d.sd == nil {
		return nil
	}
	err := d.sd.Destroy()
	d.sd = nil
	return err
}
