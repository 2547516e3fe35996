package resilience

import (
	"context"

	"github.com/jcoronado1982/real-time-translator/pkg/provider/translate"
)

// TranslateFallback is a [translate.Translator] that fails over across
// backends, for example a local Ollama model backed by a hosted API.
type TranslateFallback struct {
	group *FallbackGroup[translate.Translator]
}

var _ translate.Translator = (*TranslateFallback)(nil)

// NewTranslateFallback returns a fallback translator preferring primary.
func NewTranslateFallback(primary translate.Translator, primaryName string, cfg FallbackConfig) *TranslateFallback {
	return &TranslateFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another translator.
func (f *TranslateFallback) AddFallback(name string, t translate.Translator) {
	f.group.AddFallback(name, t)
}

// Group exposes the underlying group for inspection.
func (f *TranslateFallback) Group() *FallbackGroup[translate.Translator] { return f.group }

// Translate implements [translate.Translator].
func (f *TranslateFallback) Translate(ctx context.Context, text string) (string, error) {
	return ExecuteWithResult(ctx, f.group, func(t translate.Translator) (string, error) {
		return t.Translate(ctx, text)
	})
}
