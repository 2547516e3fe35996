// Package tts defines the Synthesizer interface for Text-to-Speech output.
//
// The pipeline only needs Speak: say this sentence out loud and return when
// done. Most backends split that into two steps, rendering text to PCM and
// playing the PCM on an output device, so the package also defines Renderer
// and a [Speaker] that joins a Renderer to an [audio.Player].
package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
)

// Synthesizer speaks text aloud.
type Synthesizer interface {
	// Speak renders text and plays it, returning once playback has finished
	// or failed. Blank text is a no-op.
	Speak(ctx context.Context, text string) error
}

// Audio is rendered mono 16-bit PCM.
type Audio struct {
	PCM        []int16
	SampleRate int
}

// Renderer converts text to PCM without playing it.
type Renderer interface {
	Render(ctx context.Context, text string) (Audio, error)
}

// Speaker implements [Synthesizer] by rendering with a [Renderer] and
// playing the result on an [audio.Player].
type Speaker struct {
	renderer Renderer
	player   audio.Player
}

var _ Synthesizer = (*Speaker)(nil)

// NewSpeaker joins r and p.
func NewSpeaker(r Renderer, p audio.Player) *Speaker {
	return &Speaker{renderer: r, player: p}
}

// Speak implements [Synthesizer].
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	a, err := s.renderer.Render(ctx, text)
	if err != nil {
		return fmt.Errorf("tts: render: %w", err)
	}
	if len(a.PCM) == 0 {
		return nil
	}
	if err := s.player.Play(ctx, a.PCM, a.SampleRate); err != nil {
		return fmt.Errorf("tts: play: %w", err)
	}
	return nil
}
