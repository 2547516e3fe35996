package resilience

import (
	"context"

	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts"
)

// TTSFallback is a [tts.Synthesizer] that fails over across backends.
//
// A backend that fails part-way through playback is retried from the start
// on the next one, so the listener may hear the beginning twice.
type TTSFallback struct {
	group *FallbackGroup[tts.Synthesizer]
}

var _ tts.Synthesizer = (*TTSFallback)(nil)

// NewTTSFallback returns a fallback synthesizer preferring primary.
func NewTTSFallback(primary tts.Synthesizer, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another synthesizer.
func (f *TTSFallback) AddFallback(name string, s tts.Synthesizer) {
	f.group.AddFallback(name, s)
}

// Group exposes the underlying group for inspection.
func (f *TTSFallback) Group() *FallbackGroup[tts.Synthesizer] { return f.group }

// Speak implements [tts.Synthesizer].
func (f *TTSFallback) Speak(ctx context.Context, text string) error {
	return f.group.Execute(ctx, func(s tts.Synthesizer) error {
		return s.Speak(ctx, text)
	})
}
