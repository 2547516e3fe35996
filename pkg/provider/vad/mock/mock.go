// Package mock provides a test double for [vad.Detector].
//
// Detector returns a scripted sequence of probabilities, one per call, then
// repeats Default. Errors can be injected per call index.
//
// Example:
//
//	det := &mock.Detector{Script: []float64{0, 0.9, 0.9, 0.1}}
//	p, _ := det.Probability(frame)
package mock

import (
	"sync"

	"github.com/jcoronado1982/real-time-translator/pkg/provider/vad"
)

// Detector is a mock implementation of [vad.Detector].
type Detector struct {
	mu sync.Mutex

	// Script holds the probability returned by each successive call.
	Script []float64

	// Default is returned once Script is exhausted.
	Default float64

	// Errs maps a zero-based call index to the error returned for that call.
	Errs map[int]error

	// ProbabilityFunc, if set, overrides Script and Default.
	ProbabilityFunc func(samples []float32) (float64, error)

	// Calls records the length of every block passed to Probability.
	Calls []int
}

// Probability records the call and returns the next scripted value.
func (d *Detector) Probability(samples []float32) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := len(d.Calls)
	d.Calls = append(d.Calls, len(samples))
	if err, ok := d.Errs[i]; ok {
		return 0, err
	}
	if d.ProbabilityFunc != nil {
		return d.ProbabilityFunc(samples)
	}
	if i < len(d.Script) {
		return d.Script[i], nil
	}
	return d.Default, nil
}

// CallCount returns the number of Probability calls. Thread-safe.
func (d *Detector) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Calls)
}

var _ vad.Detector = (*Detector)(nil)
