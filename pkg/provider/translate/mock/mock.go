// Package mock provides a test double for [translate.Translator].
//
// By default Translator echoes its input with Prefix prepended. Replies maps
// specific inputs to fixed outputs, and Err fails every call.
package mock

import (
	"context"
	"sync"

	"github.com/jcoronado1982/real-time-translator/pkg/provider/translate"
)

// Translator is a mock implementation of [translate.Translator].
type Translator struct {
	mu sync.Mutex

	// Prefix is prepended to the echoed input when no Reply matches.
	Prefix string

	// Replies maps an input to the translation returned for it.
	Replies map[string]string

	// Err, if non-nil, is returned by every call.
	Err error

	// TranslateFunc, if set, overrides all other fields.
	TranslateFunc func(ctx context.Context, text string) (string, error)

	// Calls records every input in order.
	Calls []string
}

// Translate records the call and returns the scripted translation.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = append(t.Calls, text)
	if t.TranslateFunc != nil {
		return t.TranslateFunc(ctx, text)
	}
	if t.Err != nil {
		return "", t.Err
	}
	if out, ok := t.Replies[text]; ok {
		return out, nil
	}
	return t.Prefix + text, nil
}

// Inputs returns a snapshot of recorded inputs. Thread-safe.
func (t *Translator) Inputs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.Calls))
	copy(out, t.Calls)
	return out
}

var _ translate.Translator = (*Translator)(nil)
