package resilience

import (
	"context"

	"github.com/jcoronado1982/real-time-translator/pkg/provider/stt"
)

// STTFallback is an [stt.Transcriber] that fails over across backends.
type STTFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

var _ stt.Transcriber = (*STTFallback)(nil)

// NewSTTFallback returns a fallback transcriber preferring primary.
func NewSTTFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another transcriber.
func (f *STTFallback) AddFallback(name string, t stt.Transcriber) {
	f.group.AddFallback(name, t)
}

// Group exposes the underlying group for inspection.
func (f *STTFallback) Group() *FallbackGroup[stt.Transcriber] { return f.group }

// Transcribe implements [stt.Transcriber].
func (f *STTFallback) Transcribe(ctx context.Context, samples []float32) (stt.Result, error) {
	return ExecuteWithResult(ctx, f.group, func(t stt.Transcriber) (stt.Result, error) {
		return t.Transcribe(ctx, samples)
	})
}
