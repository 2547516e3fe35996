package segment

import (
	"time"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
)

// DefaultMaxSilence is the trailing silence that closes a segment.
const DefaultMaxSilence = 800 * time.Millisecond

// State is the segmenter's position in its IDLE/ACTIVE cycle.
type State int

const (
	// StateIdle means no segment is open.
	StateIdle State = iota

	// StateActive means speech has been seen and a segment is buffering.
	StateActive
)

// String returns "idle" or "active".
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Reason records why a segment was closed.
type Reason string

const (
	// ReasonSilence means trailing silence reached the limit.
	ReasonSilence Reason = "silence"

	// ReasonMaxLength means the buffered speech reached MaxSegment.
	ReasonMaxLength Reason = "max_length"

	// ReasonFlush means the session stopped with a segment open.
	ReasonFlush Reason = "flush"
)

// Segment is an ordered, non-empty run of speech frames. Silence frames seen
// while the segment was open are not part of it.
//
// The consumer owns a Segment once it has been returned; the segmenter never
// touches its frames again.
type Segment struct {
	Frames     []audio.Frame
	SampleRate int
	Reason     Reason
}

// Len returns the number of frames.
func (s Segment) Len() int { return len(s.Frames) }

// Duration returns the audio length of the segment.
func (s Segment) Duration() time.Duration {
	n := 0
	for _, f := range s.Frames {
		n += len(f.Samples)
	}
	return audio.SamplesDuration(n, s.SampleRate)
}

// Samples returns the frames concatenated into one freshly allocated slice.
func (s Segment) Samples() []float32 {
	n := 0
	for _, f := range s.Frames {
		n += len(f.Samples)
	}
	out := make([]float32, 0, n)
	for _, f := range s.Frames {
		out = append(out, f.Samples...)
	}
	return out
}

// Config configures a [Segmenter].
type Config struct {
	// SampleRate of the incoming frames. Required.
	SampleRate int

	// MaxSilence is the trailing silence that closes an open segment.
	// Default: [DefaultMaxSilence].
	MaxSilence time.Duration

	// MaxSegment force-closes a segment whose buffered speech reaches this
	// length. Zero disables the limit.
	MaxSegment time.Duration
}

// Segmenter groups classified frames into segments.
//
//	IDLE   + speech  -> open buffer with the frame, ACTIVE
//	IDLE   + silence -> no-op
//	ACTIVE + speech  -> append, reset silence
//	ACTIVE + silence -> add frame duration to silence; emit at MaxSilence
type Segmenter struct {
	cfg Config

	state    State
	buf      []audio.Frame
	buffered time.Duration
	silence  time.Duration
}

// NewSegmenter returns an idle segmenter.
func NewSegmenter(cfg Config) *Segmenter {
	if cfg.MaxSilence <= 0 {
		cfg.MaxSilence = DefaultMaxSilence
	}
	if cfg.MaxSegment < 0 {
		cfg.MaxSegment = 0
	}
	return &Segmenter{cfg: cfg}
}

// State returns the current state.
func (s *Segmenter) State() State { return s.state }

// Buffered returns the speech audio held by the open segment.
func (s *Segmenter) Buffered() time.Duration { return s.buffered }

// Push advances the state machine by one frame. It returns a segment when
// this frame closed one.
func (s *Segmenter) Push(f audio.Frame, speech bool) (Segment, bool) {
	d := f.Duration(s.cfg.SampleRate)

	if speech {
		if s.state == StateIdle {
			s.state = StateActive
			s.buf = make([]audio.Frame, 0, s.capacityHint(d))
		}
		s.buf = append(s.buf, f)
		s.buffered += d
		s.silence = 0
		if s.cfg.MaxSegment > 0 && s.buffered >= s.cfg.MaxSegment {
			return s.emit(ReasonMaxLength), true
		}
		return Segment{}, false
	}

	if s.state == StateIdle {
		return Segment{}, false
	}
	s.silence += d
	if s.silence >= s.cfg.MaxSilence {
		return s.emit(ReasonSilence), true
	}
	return Segment{}, false
}

// Flush emits the open segment, if any, and returns to IDLE. A second Flush
// returns false.
func (s *Segmenter) Flush() (Segment, bool) {
	if s.state == StateIdle || len(s.buf) == 0 {
		s.reset()
		return Segment{}, false
	}
	return s.emit(ReasonFlush), true
}

func (s *Segmenter) emit(reason Reason) Segment {
	seg := Segment{Frames: s.buf, SampleRate: s.cfg.SampleRate, Reason: reason}
	s.reset()
	return seg
}

func (s *Segmenter) reset() {
	s.state = StateIdle
	s.buf = nil
	s.buffered = 0
	s.silence = 0
}

// capacityHint sizes a fresh buffer for a few seconds of speech.
func (s *Segmenter) capacityHint(frame time.Duration) int {
	if frame <= 0 {
		return 16
	}
	return int(4*time.Second/frame) + 1
}
