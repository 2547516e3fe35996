// Package segment turns a stream of fixed-size audio frames into discrete
// speech segments.
//
// A [Gate] classifies each frame as speech or silence using a
// [vad.Detector]. A [Segmenter] consumes those decisions and groups
// consecutive speech frames into a [Segment], closing it once the trailing
// silence reaches a configured limit.
//
// Neither type is safe for concurrent use. Both are owned by the single
// processing goroutine of a session.
package segment

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/jcoronado1982/real-time-translator/internal/observe"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/vad"
)

// DefaultThreshold is the speech probability at or above which a frame is
// treated as speech.
const DefaultThreshold = 0.5

// errorLogInterval bounds how often a failing detector is logged.
const errorLogInterval = 5 * time.Second

// Decision is the classification of one frame.
type Decision struct {
	// Probability is the detector score clamped to [0, 1]. It is 0 when the
	// detector failed.
	Probability float64

	// Speech reports Probability >= threshold.
	Speech bool
}

// Gate wraps a [vad.Detector] with a threshold and a fail-safe: detector
// errors never propagate and the frame is treated as silence.
type Gate struct {
	detector  vad.Detector
	threshold float64
	metrics   *observe.Metrics

	errLog rate.Sometimes
	errors uint64
}

// GateOption configures a [Gate].
type GateOption func(*Gate)

// WithMetrics records detector failures in m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// NewGate returns a gate over detector. A threshold outside (0, 1] is
// replaced by [DefaultThreshold].
func NewGate(detector vad.Detector, threshold float64, opts ...GateOption) *Gate {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	g := &Gate{
		detector:  detector,
		threshold: threshold,
		errLog:    rate.Sometimes{First: 1, Interval: errorLogInterval},
	}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Threshold returns the configured speech threshold.
func (g *Gate) Threshold() float64 { return g.threshold }

// Errors returns how many detector calls have failed.
func (g *Gate) Errors() uint64 { return g.errors }

// Classify scores samples and applies the threshold.
func (g *Gate) Classify(samples []float32) Decision {
	p, err := g.detector.Probability(samples)
	if err != nil {
		g.errors++
		g.metrics.RecordVADError(context.Background())
		g.errLog.Do(func() {
			slog.Warn("speech detector failed; treating frame as silence",
				"err", err,
				"failures_total", g.errors,
			)
		})
		return Decision{}
	}
	if math.IsNaN(p) {
		p = 0
	}
	p = min(max(p, 0), 1)
	return Decision{Probability: p, Speech: p >= g.threshold}
}
