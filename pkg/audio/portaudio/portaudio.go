//go:build portaudio

package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
)

var (
	_ audio.Source = (*Source)(nil)
	_ audio.Player = (*Player)(nil)
)

// Source captures microphone audio using a PortAudio callback stream. The
// callback runs on PortAudio's own thread; it copies, down-mixes, and hands
// each buffer to the sink without ever blocking.
type Source struct {
	cfg    captureConfig
	opts   options
	warner *audio.DropWarner

	mu     sync.Mutex
	stream *portaudio.Stream
	seq    uint64
}

// New returns a capture source producing frames of frameDuration at
// sampleRate. Devices with more than one channel are down-mixed to mono.
func New(sampleRate, channels int, frameDuration time.Duration, opts ...Option) *Source {
	s := &Source{
		cfg:    captureConfig{sampleRate: sampleRate, channels: max(channels, 1), frameDuration: frameDuration},
		warner: audio.NewDropWarner("portaudio"),
	}
	for _, o := range opts {
		o(&s.opts)
	}
	return s
}

// Start opens the input device and begins capture. Any failure to initialise
// PortAudio or open the device is wrapped in [audio.ErrDeviceUnavailable].
func (s *Source) Start(_ context.Context, sink audio.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return nil
	}

	frames := audio.FrameSamples(s.cfg.frameDuration, s.cfg.sampleRate)
	if frames <= 0 {
		return fmt.Errorf("portaudio: invalid frame duration %v", s.cfg.frameDuration)
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w: %w", audio.ErrDeviceUnavailable, err)
	}

	channels := s.cfg.channels
	callback := func(in []float32) {
		buf := make([]float32, len(in))
		copy(buf, in)
		mono := audio.Downmix(buf, channels)
		// The callback is serialised by PortAudio, so seq needs no lock.
		s.warner.Deliver(sink, audio.Frame{Samples: mono, Seq: s.seq})
		s.seq++
	}

	stream, err := s.open(frames, callback)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("portaudio: open input: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("portaudio: start input: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	s.stream = stream
	slog.Info("microphone capture started",
		"device", deviceLabel(s.opts.device),
		"sample_rate", s.cfg.sampleRate,
		"channels", channels,
		"frames_per_buffer", frames,
	)
	return nil
}

func (s *Source) open(frames int, callback func([]float32)) (*portaudio.Stream, error) {
	rate := float64(s.cfg.sampleRate)
	if s.opts.device == "" {
		return portaudio.OpenDefaultStream(s.cfg.channels, 0, rate, frames, callback)
	}
	dev, err := findDevice(s.opts.device, true)
	if err != nil {
		return nil, err
	}
	p := portaudio.LowLatencyParameters(dev, nil)
	p.Input.Channels = s.cfg.channels
	p.SampleRate = rate
	p.FramesPerBuffer = frames
	return portaudio.OpenStream(p, callback)
}

// Stop halts capture and releases the device. It is idempotent.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	stream := s.stream
	s.stream = nil

	err := errors.Join(stream.Stop(), stream.Close(), portaudio.Terminate())
	slog.Info("microphone capture stopped", "dropped_frames", s.warner.Total())
	if err != nil {
		return fmt.Errorf("portaudio: stop input: %w", err)
	}
	return nil
}

// Player plays mono 16-bit PCM on an output device using a blocking stream.
// Calls to Play are serialised.
type Player struct {
	opts options
	mu   sync.Mutex
}

// NewPlayer returns a player for the default or selected output device.
func NewPlayer(opts ...Option) *Player {
	p := &Player{}
	for _, o := range opts {
		o(&p.opts)
	}
	return p
}

// Play writes pcm to the device and returns once the last buffer has been
// accepted or ctx is cancelled.
func (p *Player) Play(ctx context.Context, pcm []int16, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	defer portaudio.Terminate()

	out := make([]int16, outputFrames)
	var (
		stream *portaudio.Stream
		err    error
	)
	if p.opts.device == "" {
		stream, err = portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(out), &out)
	} else {
		var dev *portaudio.DeviceInfo
		if dev, err = findDevice(p.opts.device, false); err == nil {
			params := portaudio.LowLatencyParameters(nil, dev)
			params.Output.Channels = 1
			params.SampleRate = float64(sampleRate)
			params.FramesPerBuffer = len(out)
			stream, err = portaudio.OpenStream(params, &out)
		}
	}
	if err != nil {
		return fmt.Errorf("portaudio: open output: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start output: %w", err)
	}
	defer stream.Stop()

	for off := 0; off < len(pcm); off += len(out) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(out, pcm[off:])
		clear(out[n:])
		if err := stream.Write(); err != nil {
			return fmt.Errorf("portaudio: write output: %w", err)
		}
	}
	return nil
}

// ListDevices reports every device PortAudio can see.
func ListDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	defIn, _ := portaudio.DefaultInputDevice()
	defOut, _ := portaudio.DefaultOutputDevice()

	devices := make([]Device, 0, len(infos))
	for _, d := range infos {
		dev := Device{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			DefaultInput:      defIn != nil && d.Name == defIn.Name,
			DefaultOutput:     defOut != nil && d.Name == defOut.Name,
		}
		if d.HostApi != nil {
			dev.HostAPI = d.HostApi.Name
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// findDevice returns the first input (or output) device whose name contains
// substr, ignoring case. PortAudio must be initialised.
func findDevice(substr string, input bool) (*portaudio.DeviceInfo, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(substr)
	for _, d := range infos {
		if input && d.MaxInputChannels == 0 || !input && d.MaxOutputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no device matching %q", substr)
}

func deviceLabel(name string) string {
	if name == "" {
		return "default"
	}
	return name
}
