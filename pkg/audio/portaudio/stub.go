//go:build !portaudio

package portaudio

import (
	"context"
	"fmt"
	"time"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
)

var (
	_ audio.Source = (*Source)(nil)
	_ audio.Player = (*Player)(nil)
)

var errNotBuilt = fmt.Errorf("portaudio: built without the portaudio tag: %w", audio.ErrDeviceUnavailable)

// Source is a placeholder that fails to start when PortAudio support is not
// compiled in.
type Source struct {
	cfg  captureConfig
	opts options
}

// New returns a capture source. Without the portaudio build tag Start always
// fails with [audio.ErrDeviceUnavailable].
func New(sampleRate, channels int, frameDuration time.Duration, opts ...Option) *Source {
	s := &Source{cfg: captureConfig{sampleRate: sampleRate, channels: max(channels, 1), frameDuration: frameDuration}}
	for _, o := range opts {
		o(&s.opts)
	}
	return s
}

// Start always fails.
func (s *Source) Start(context.Context, audio.Sink) error { return errNotBuilt }

// Stop is a no-op.
func (s *Source) Stop() error { return nil }

// Player is a placeholder that fails to play when PortAudio support is not
// compiled in.
type Player struct {
	opts options
}

// NewPlayer returns a player whose Play always fails.
func NewPlayer(opts ...Option) *Player {
	p := &Player{}
	for _, o := range opts {
		o(&p.opts)
	}
	return p
}

// Play always fails with [audio.ErrDeviceUnavailable].
func (p *Player) Play(context.Context, []int16, int) error { return errNotBuilt }

// ListDevices always fails.
func ListDevices() ([]Device, error) { return nil, errNotBuilt }
