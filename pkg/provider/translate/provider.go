// Package translate defines the Translator interface for machine translation
// backends and the prompt shared by the LLM-backed implementations.
//
// A Translator turns one transcribed utterance in the source language into
// the target language. An empty result means there is nothing to speak.
// Implementations must return "" without contacting the backend when the
// input is blank.
package translate

import (
	"context"
	"fmt"
	"strings"
)

// Default language pair.
const (
	DefaultSourceLanguage = "Spanish"
	DefaultTargetLanguage = "English"
)

// Translator translates text between a fixed language pair.
type Translator interface {
	// Translate returns the translation of text. It may return "" when there
	// is nothing to say.
	Translate(ctx context.Context, text string) (string, error)
}

// SystemPrompt returns the instruction given to chat models. It asks for the
// bare translation so the reply can be spoken directly.
func SystemPrompt(source, target string) string {
	if source == "" {
		source = DefaultSourceLanguage
	}
	if target == "" {
		target = DefaultTargetLanguage
	}
	return fmt.Sprintf("You are a live interpreter. Translate the user's message from %s to %s. "+
		"Reply with the translation only: no quotes, notes, or explanations. "+
		"If the message is empty or not %s, reply with nothing.", source, target, source)
}

// CleanReply trims whitespace and a single pair of wrapping quotes that chat
// models tend to add around translations.
func CleanReply(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}} {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			s = strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
			break
		}
	}
	return s
}
