package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

var _ Source = (*FileSource)(nil)

// FileOption configures a [FileSource].
type FileOption func(*FileSource)

// WithRealtime paces frame delivery at the frame rate, as a microphone
// would. When disabled (the default) frames are delivered as fast as the
// sink accepts them, which may drop frames on a small queue.
func WithRealtime(enabled bool) FileOption {
	return func(s *FileSource) { s.realtime = enabled }
}

// WithTrailingSilence appends d of silence after the file content so that a
// final utterance closes through the normal trailing-silence path.
func WithTrailingSilence(d time.Duration) FileOption {
	return func(s *FileSource) { s.tail = d }
}

// FileSource replays a 16-bit PCM WAV file as a capture source. The file is
// down-mixed and resampled to the pipeline format on Start.
type FileSource struct {
	path         string
	sampleRate   int
	frameSamples int
	realtime     bool
	tail         time.Duration

	warner *DropWarner

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileSource returns a source reading path and emitting frames of
// frameDuration at sampleRate.
func NewFileSource(path string, sampleRate int, frameDuration time.Duration, opts ...FileOption) *FileSource {
	s := &FileSource{
		path:         path,
		sampleRate:   sampleRate,
		frameSamples: FrameSamples(frameDuration, sampleRate),
		warner:       NewDropWarner("file"),
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start decodes the file and begins delivering frames to sink. A file that
// cannot be read or decoded is reported as [ErrDeviceUnavailable].
func (s *FileSource) Start(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSourceClosed
	}
	if s.started {
		return nil
	}
	if s.frameSamples <= 0 {
		return fmt.Errorf("audio: file source: invalid frame size for %d Hz", s.sampleRate)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("audio: read %q: %w: %w", s.path, ErrDeviceUnavailable, err)
	}
	w, err := DecodeWAV(data)
	if err != nil {
		return fmt.Errorf("audio: decode %q: %w: %w", s.path, ErrDeviceUnavailable, err)
	}
	samples := Resample(w.Mono(), w.SampleRate, s.sampleRate)
	if s.tail > 0 {
		samples = append(samples, make([]float32, FrameSamples(s.tail, s.sampleRate))...)
	}
	slog.Info("replaying audio file",
		"path", s.path,
		"file_sample_rate", w.SampleRate,
		"channels", w.Channels,
		"duration", w.Duration(),
		"peak", Peak(samples),
	)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true
	s.wg.Add(1)
	go s.emit(runCtx, sink, samples)
	return nil
}

func (s *FileSource) emit(ctx context.Context, sink Sink, samples []float32) {
	defer s.wg.Done()
	defer close(s.done)

	var tick <-chan time.Time
	if s.realtime {
		t := time.NewTicker(SamplesDuration(s.frameSamples, s.sampleRate))
		defer t.Stop()
		tick = t.C
	}

	var seq uint64
	for off := 0; off+s.frameSamples <= len(samples); off += s.frameSamples {
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return
			}
		} else if ctx.Err() != nil {
			return
		}
		frame := make([]float32, s.frameSamples)
		copy(frame, samples[off:off+s.frameSamples])
		s.warner.Deliver(sink, Frame{Samples: frame, Seq: seq})
		seq++
	}
}

// Done is closed once every frame of the file has been delivered or the
// source was stopped.
func (s *FileSource) Done() <-chan struct{} { return s.done }

// Stop halts delivery. It is idempotent.
func (s *FileSource) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	cancel := s.cancel
	started := s.started
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if started {
		s.wg.Wait()
	} else {
		close(s.done)
	}
	return nil
}
