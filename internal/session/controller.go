// Package session runs one capture session: it owns the ingestion queue,
// the processing goroutine, and the stop ordering that guarantees no
// buffered speech is lost.
//
// A session has two goroutines. The capture source (device callback or file
// replay) fills an [audio.Queue]; a single processing goroutine drains it,
// classifies each frame, feeds the segmenter, and hands closed segments to
// the utterance processor. Inference runs inline on that goroutine, so while
// a segment is being transcribed new audio accumulates in the queue and is
// dropped if the queue fills.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jcoronado1982/real-time-translator/internal/observe"
	"github.com/jcoronado1982/real-time-translator/internal/segment"
	"github.com/jcoronado1982/real-time-translator/internal/utterance"
	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/vad"
)

// Default lifecycle parameters.
const (
	DefaultQueueTimeout = 500 * time.Millisecond
	MaxQueueTimeout     = time.Second
	DefaultJoinTimeout  = 2 * time.Second
)

// drainPoll is how often Run checks whether a finished source's audio has
// been fully processed.
const drainPoll = 20 * time.Millisecond

var (
	// ErrJoinTimeout is returned by Stop when the processing goroutine did
	// not finish within the join timeout. In-flight inference is cancelled.
	ErrJoinTimeout = errors.New("session: processing did not stop in time")

	// ErrStopped is returned by Start after the session has been stopped.
	ErrStopped = errors.New("session: already stopped")
)

// Processor consumes closed segments. [*utterance.Processor] implements it.
type Processor interface {
	Process(ctx context.Context, seg segment.Segment) utterance.Result
}

// Config is the immutable pipeline configuration of a session.
type Config struct {
	// SampleRate of captured frames. Required.
	SampleRate int

	// Threshold is the speech probability threshold applied by the gate.
	Threshold float64

	// MaxSilence closes a segment after this much trailing silence.
	MaxSilence time.Duration

	// MaxSegment force-closes long segments. Zero disables it.
	MaxSegment time.Duration

	// QueueCapacity bounds the ingestion queue in frames.
	QueueCapacity int

	// QueueTimeout bounds each wait on the queue, and therefore how long the
	// processing goroutine takes to notice a stop. Capped at 1s.
	QueueTimeout time.Duration

	// JoinTimeout bounds how long Stop waits for the processing goroutine.
	JoinTimeout time.Duration
}

// Deps are the collaborators of a session.
type Deps struct {
	Source    audio.Source
	Detector  vad.Detector
	Processor Processor
}

// Stats is a snapshot of session counters.
type Stats struct {
	Frames       uint64 // frames classified
	SpeechFrames uint64
	Segments     uint64 // segments handed to the processor
	Dropped      uint64 // frames rejected by the full queue
	Queued       int    // frames waiting right now
}

// Option configures a [Controller].
type Option func(*Controller)

// WithMetrics records into m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(c *Controller) { c.id = id }
}

// Controller drives one session. Start, Stop and Run may be called from any
// goroutine; Running, ID and Stats are safe at any time.
type Controller struct {
	cfg     Config
	deps    Deps
	id      string
	metrics *observe.Metrics

	mu       sync.Mutex // serialises Start and Stop
	started  bool
	finished bool
	done     chan struct{}
	cancel   context.CancelFunc

	queue    atomic.Pointer[audio.Queue]
	running  atomic.Bool
	stopping atomic.Bool
	busy     atomic.Bool

	frames       atomic.Uint64
	speechFrames atomic.Uint64
	segments     atomic.Uint64
	dropsSeen    uint64 // processing goroutine only
}

// New validates cfg and deps and returns a stopped controller.
func New(cfg Config, deps Deps, opts ...Option) (*Controller, error) {
	var errs []error
	if cfg.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate))
	}
	if deps.Source == nil {
		errs = append(errs, errors.New("audio source is required"))
	}
	if deps.Detector == nil {
		errs = append(errs, errors.New("speech detector is required"))
	}
	if deps.Processor == nil {
		errs = append(errs, errors.New("utterance processor is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("session: new controller: %w", err)
	}

	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = DefaultQueueTimeout
	}
	cfg.QueueTimeout = min(cfg.QueueTimeout, MaxQueueTimeout)
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}

	c := &Controller{cfg: cfg, deps: deps}
	for _, o := range opts {
		o(c)
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c, nil
}

// ID returns the session ID.
func (c *Controller) ID() string { return c.id }

// Running reports whether the session is capturing.
func (c *Controller) Running() bool { return c.running.Load() }

// Stats returns a snapshot of the session counters.
func (c *Controller) Stats() Stats {
	s := Stats{
		Frames:       c.frames.Load(),
		SpeechFrames: c.speechFrames.Load(),
		Segments:     c.segments.Load(),
	}
	if q := c.queue.Load(); q != nil {
		s.Dropped = q.Dropped()
		s.Queued = q.Len()
	}
	return s
}

// Start launches the capture source and then the processing goroutine. It
// returns once capture is running. A second call is a no-op. When the source
// fails to start (typically [audio.ErrDeviceUnavailable]) the error is
// returned, frames it delivered are discarded unprocessed, and Start may be
// retried.
//
// The processing goroutine does not stop when ctx is cancelled; only Stop
// ends the session, so that buffered speech is always flushed.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return ErrStopped
	}
	if c.started {
		return nil
	}

	q := audio.NewQueue(c.cfg.QueueCapacity)
	loopCtx, cancel := context.WithCancel(observe.WithSessionID(context.WithoutCancel(ctx), c.id))
	done := make(chan struct{})
	c.stopping.Store(false)
	c.dropsSeen = 0

	// Frames delivered during Start wait in the queue until the loop runs.
	if err := c.deps.Source.Start(ctx, q); err != nil {
		cancel()
		return fmt.Errorf("session: start source: %w", err)
	}
	go c.loop(loopCtx, q, done)

	c.queue.Store(q)
	c.done, c.cancel = done, cancel
	c.started = true
	c.running.Store(true)
	c.metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("session started",
		"session_id", c.id,
		"sample_rate", c.cfg.SampleRate,
		"queue_capacity", q.Cap(),
	)
	return nil
}

// Stop ends the session: it stops the source, lets the processing goroutine
// drain the frames already queued and flush any open segment, and waits for
// it up to the join timeout or until ctx is done. Stop is idempotent and a
// no-op before Start.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.finished {
		return nil
	}
	c.finished = true

	srcErr := c.deps.Source.Stop()
	c.stopping.Store(true)
	c.running.Store(false)
	defer c.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	t := time.NewTimer(c.cfg.JoinTimeout)
	defer t.Stop()

	var joinErr error
	select {
	case <-c.done:
	case <-t.C:
		joinErr = ErrJoinTimeout
	case <-ctx.Done():
		joinErr = fmt.Errorf("session: stop: %w", ctx.Err())
	}
	c.cancel()

	stats := c.Stats()
	slog.Info("session stopped",
		"session_id", c.id,
		"frames", stats.Frames,
		"segments", stats.Segments,
		"dropped_frames", stats.Dropped,
	)
	if srcErr != nil {
		srcErr = fmt.Errorf("session: stop source: %w", srcErr)
	}
	return errors.Join(srcErr, joinErr)
}

// Run starts the session, waits, and stops it. With d > 0 it waits for d;
// with d == 0 it waits until ctx is cancelled. Either way it also returns
// once a finite source (one with a Done channel, such as
// [audio.FileSource]) has delivered everything and that audio has been
// processed.
func (c *Controller) Run(ctx context.Context, d time.Duration) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	var timeout <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}
	var exhausted <-chan struct{}
	if f, ok := c.deps.Source.(interface{ Done() <-chan struct{} }); ok {
		exhausted = f.Done()
	}

	select {
	case <-ctx.Done():
		slog.Info("session cancelled", "session_id", c.id)
	case <-timeout:
		slog.Info("session duration reached", "session_id", c.id, "duration", d)
	case <-exhausted:
		c.waitIdle(ctx)
		slog.Info("audio source finished", "session_id", c.id)
	}
	// Stop gets a fresh context: cancelling Run must still flush.
	return c.Stop(context.WithoutCancel(ctx))
}

// waitIdle blocks until the queue is empty and no frame is being handled,
// or ctx is done.
func (c *Controller) waitIdle(ctx context.Context) {
	q := c.queue.Load()
	if q == nil {
		return
	}
	t := time.NewTicker(drainPoll)
	defer t.Stop()
	for q.Len() > 0 || c.busy.Load() {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// loop is the processing goroutine.
func (c *Controller) loop(ctx context.Context, q *audio.Queue, done chan<- struct{}) {
	defer close(done)

	gate := segment.NewGate(c.deps.Detector, c.cfg.Threshold, segment.WithMetrics(c.metrics))
	seg := segment.NewSegmenter(segment.Config{
		SampleRate: c.cfg.SampleRate,
		MaxSilence: c.cfg.MaxSilence,
		MaxSegment: c.cfg.MaxSegment,
	})

	for !c.stopping.Load() {
		f, ok := q.Get(ctx, c.cfg.QueueTimeout)
		if !ok {
			c.syncDrops(ctx, q)
			if ctx.Err() != nil {
				return
			}
			continue
		}
		c.busy.Store(true)
		c.handle(ctx, gate, seg, f)
		c.busy.Store(false)
		c.syncDrops(ctx, q)
	}

	// The source is stopped; process what it delivered before stopping.
	for {
		f, ok := q.TryGet()
		if !ok {
			break
		}
		c.handle(ctx, gate, seg, f)
	}
	if s, ok := seg.Flush(); ok {
		c.dispatch(ctx, s)
	}
	c.syncDrops(ctx, q)
}

func (c *Controller) handle(ctx context.Context, gate *segment.Gate, seg *segment.Segmenter, f audio.Frame) {
	d := gate.Classify(f.Samples)
	c.frames.Add(1)
	if d.Speech {
		c.speechFrames.Add(1)
	}
	if s, ok := seg.Push(f, d.Speech); ok {
		c.dispatch(ctx, s)
	}
}

func (c *Controller) dispatch(ctx context.Context, s segment.Segment) {
	c.segments.Add(1)
	c.metrics.RecordSegment(ctx, string(s.Reason), s.Duration().Seconds())
	slog.Debug("segment closed",
		"session_id", c.id,
		"reason", s.Reason,
		"frames", s.Len(),
		"audio", s.Duration(),
	)
	c.deps.Processor.Process(ctx, s)
}

func (c *Controller) syncDrops(ctx context.Context, q *audio.Queue) {
	d := q.Dropped()
	if d > c.dropsSeen {
		c.metrics.RecordDroppedFrames(ctx, d-c.dropsSeen)
		c.dropsSeen = d
	}
}
