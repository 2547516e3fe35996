package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/jcoronado1982/real-time-translator/internal/observe"
	"github.com/jcoronado1982/real-time-translator/internal/segment"
	"github.com/jcoronado1982/real-time-translator/internal/session"
	"github.com/jcoronado1982/real-time-translator/internal/utterance"
	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/vad/mock"
)

// manualSource hands the test direct access to the sink.
type manualSource struct {
	mu       sync.Mutex
	sink     audio.Sink
	startErr error
	starts   int
	stops    int
}

func (s *manualSource) Start(_ context.Context, sink audio.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	if s.startErr != nil {
		return s.startErr
	}
	s.sink = sink
	return nil
}

func (s *manualSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.sink = nil
	return nil
}

func (s *manualSource) push(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range n {
		s.sink.Put(audio.Frame{Samples: make([]float32, 320), Seq: uint64(i)})
	}
}

// recordingProcessor records segments. When block is set, Process waits on
// it or on ctx.
type recordingProcessor struct {
	mu         sync.Mutex
	segs       []segment.Segment
	sessionIDs []string
	block      chan struct{}
	cancelled  atomic.Bool
}

func (p *recordingProcessor) Process(ctx context.Context, seg segment.Segment) utterance.Result {
	p.mu.Lock()
	p.segs = append(p.segs, seg)
	p.sessionIDs = append(p.sessionIDs, observe.SessionID(ctx))
	block := p.block
	p.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			p.cancelled.Store(true)
		}
	}
	return utterance.Result{Outcome: utterance.OutcomeSpoken}
}

func (p *recordingProcessor) segments() []segment.Segment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]segment.Segment(nil), p.segs...)
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func testConfig() session.Config {
	return session.Config{
		SampleRate:   16000,
		Threshold:    0.5,
		MaxSilence:   800 * time.Millisecond,
		QueueTimeout: 10 * time.Millisecond,
		JoinTimeout:  time.Second,
	}
}

func newController(t *testing.T, cfg session.Config, src audio.Source, det *mock.Detector, proc session.Processor) *session.Controller {
	t.Helper()
	c, err := session.New(cfg, session.Deps{Source: src, Detector: det, Processor: proc}, session.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	_, err := session.New(session.Config{}, session.Deps{})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestController_StopFlushesOnce(t *testing.T) {
	t.Parallel()
	src := &manualSource{}
	proc := &recordingProcessor{}
	c := newController(t, testConfig(), src, &mock.Detector{Default: 0.9}, proc)

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if src.starts != 1 {
		t.Errorf("source started %d times, want 1", src.starts)
	}
	if !c.Running() {
		t.Error("Running = false after Start")
	}

	src.push(5)
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	segs := proc.segments()
	if len(segs) != 1 {
		t.Fatalf("processor got %d segments, want exactly one flush", len(segs))
	}
	if segs[0].Len() != 5 || segs[0].Reason != segment.ReasonFlush {
		t.Errorf("flushed segment: %d frames, reason %q", segs[0].Len(), segs[0].Reason)
	}
	if src.stops != 1 {
		t.Errorf("source stopped %d times, want 1", src.stops)
	}
	if c.Running() {
		t.Error("Running = true after Stop")
	}
	if proc.sessionIDs[0] != c.ID() {
		t.Errorf("processor context session = %q, want %q", proc.sessionIDs[0], c.ID())
	}
}

func TestController_StopDrainsQueuedFrames(t *testing.T) {
	t.Parallel()
	src := &manualSource{}
	c := newController(t, testConfig(), src, &mock.Detector{Default: 0}, &recordingProcessor{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.push(150)
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st := c.Stats(); st.Frames != 150 || st.Queued != 0 {
		t.Errorf("Stats = %+v, want all 150 frames classified", st)
	}
}

func TestController_StartFailure(t *testing.T) {
	t.Parallel()
	src := &manualSource{startErr: errors.Join(audio.ErrDeviceUnavailable, errors.New("no such device"))}
	proc := &recordingProcessor{}
	c := newController(t, testConfig(), src, &mock.Detector{}, proc)

	err := c.Start(context.Background())
	if !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("Start err = %v, want ErrDeviceUnavailable", err)
	}
	if c.Running() {
		t.Error("Running = true after failed Start")
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("Stop after failed Start: %v", err)
	}

	// The device came back.
	src.mu.Lock()
	src.startErr = nil
	src.mu.Unlock()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, session.ErrStopped) {
		t.Errorf("Start after Stop = %v, want ErrStopped", err)
	}
}

// partialSource delivers frames into the sink and then fails to start.
type partialSource struct {
	frames int
	err    error
}

func (s *partialSource) Start(_ context.Context, sink audio.Sink) error {
	for i := range s.frames {
		sink.Put(audio.Frame{Samples: make([]float32, 320), Seq: uint64(i)})
	}
	return s.err
}

func (s *partialSource) Stop() error { return nil }

func TestController_StartFailureDiscardsDeliveredFrames(t *testing.T) {
	t.Parallel()
	src := &partialSource{frames: 40, err: audio.ErrDeviceUnavailable}
	proc := &recordingProcessor{}
	c := newController(t, testConfig(), src, &mock.Detector{Default: 0.9}, proc)

	if err := c.Start(context.Background()); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("Start err = %v, want ErrDeviceUnavailable", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n := len(proc.segments()); n != 0 {
		t.Errorf("processor got %d segments after failed Start, want 0", n)
	}
	if st := c.Stats(); st.Frames != 0 || st.Segments != 0 {
		t.Errorf("Stats = %+v, want nothing classified", st)
	}
}

func TestController_JoinTimeout(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.JoinTimeout = 50 * time.Millisecond
	src := &manualSource{}
	proc := &recordingProcessor{block: make(chan struct{})}
	c := newController(t, cfg, src, &mock.Detector{Default: 0.9}, proc)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.push(3)

	start := time.Now()
	err := c.Stop(context.Background())
	if !errors.Is(err, session.ErrJoinTimeout) {
		t.Fatalf("Stop err = %v, want ErrJoinTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop took %v, join timeout not honoured", elapsed)
	}

	deadline := time.Now().Add(time.Second)
	for !proc.cancelled.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !proc.cancelled.Load() {
		t.Error("in-flight processing was not cancelled after the join timeout")
	}
}

func TestController_RunForDuration(t *testing.T) {
	t.Parallel()
	src := &manualSource{}
	c := newController(t, testConfig(), src, &mock.Detector{}, &recordingProcessor{})

	start := time.Now()
	if err := c.Run(context.Background(), 80*time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("Run returned after %v, before the duration", elapsed)
	}
	if c.Running() || src.stops != 1 {
		t.Errorf("after Run: running=%v stops=%d", c.Running(), src.stops)
	}
}

func TestController_RunUntilCancelled(t *testing.T) {
	t.Parallel()
	src := &manualSource{}
	proc := &recordingProcessor{}
	c := newController(t, testConfig(), src, &mock.Detector{Default: 0.9}, proc)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx, 0) }()

	deadline := time.Now().Add(time.Second)
	for !c.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	src.push(4)
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	// Cancelling must not lose the open segment.
	if segs := proc.segments(); len(segs) != 1 || segs[0].Len() != 4 {
		t.Errorf("segments after cancel = %d, want one with 4 frames", len(segs))
	}
}

// A recorded clip of 1s silence, 2s speech and 1s silence produces exactly
// one 2s segment, closed by trailing silence before the source is stopped.
func TestController_RunFileSource(t *testing.T) {
	t.Parallel()
	const rate = 16000
	pcm := make([]int16, 4*rate)
	for i := rate; i < 3*rate; i++ {
		pcm[i] = 8000
	}
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, audio.EncodeWAV(pcm, rate, 1), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}

	src := audio.NewFileSource(path, rate, 20*time.Millisecond)
	det := &mock.Detector{ProbabilityFunc: func(s []float32) (float64, error) {
		if audio.RMS(s) > 0.1 {
			return 1, nil
		}
		return 0, nil
	}}
	proc := &recordingProcessor{}
	cfg := testConfig()
	cfg.QueueCapacity = 512
	c := newController(t, cfg, src, det, proc)

	if err := c.Run(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}

	segs := proc.segments()
	if len(segs) != 1 {
		t.Fatalf("segments = %d, want 1", len(segs))
	}
	if segs[0].Duration() != 2*time.Second || segs[0].Reason != segment.ReasonSilence {
		t.Errorf("segment duration=%v reason=%q, want 2s closed by silence", segs[0].Duration(), segs[0].Reason)
	}
	st := c.Stats()
	if st.Frames != 200 || st.SpeechFrames != 100 || st.Dropped != 0 {
		t.Errorf("Stats = %+v", st)
	}
}
