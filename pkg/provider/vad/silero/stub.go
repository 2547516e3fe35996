//go:build !silero

package silero

import (
	"errors"

	"github.com/jcoronado1982/real-time-translator/pkg/provider/vad"
)

var _ vad.Detector = (*Detector)(nil)

// ErrNotBuilt is returned by [New] when the binary was built without the
// silero tag.
var ErrNotBuilt = errors.New("silero: built without the silero tag")

// Detector is a placeholder; it cannot be constructed without the silero tag.
type Detector struct{}

// New always fails with [ErrNotBuilt].
func New(cfg Config) (*Detector, error) {
	cfg.applyDefaults()
	return nil, ErrNotBuilt
}

// Probability always fails with [ErrNotBuilt].
func (d *Detector) Probability([]float32) (float64, error) { return 0, ErrNotBuilt }

// Close is a no-op.
func (d *Detector) Close() error { return nil }
