package app_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/jcoronado1982/real-time-translator/internal/app"
	"github.com/jcoronado1982/real-time-translator/internal/observe"
	"github.com/jcoronado1982/real-time-translator/internal/segment"
	"github.com/jcoronado1982/real-time-translator/internal/session"
	"github.com/jcoronado1982/real-time-translator/internal/utterance"
	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	audiomock "github.com/jcoronado1982/real-time-translator/pkg/audio/mock"
	vadmock "github.com/jcoronado1982/real-time-translator/pkg/provider/vad/mock"
)

type countingProcessor struct {
	mu   sync.Mutex
	segs int
}

func (p *countingProcessor) Process(context.Context, segment.Segment) utterance.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.segs++
	return utterance.Result{Outcome: utterance.OutcomeSpoken}
}

func (p *countingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.segs
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

func speechFrames(n int) []audio.Frame {
	frames := make([]audio.Frame, n)
	for i := range frames {
		frames[i] = audio.Frame{Samples: make([]float32, 480), Seq: uint64(i)}
	}
	return frames
}

func newTestSessionManager(t *testing.T, src *audiomock.Source, repair app.RepairFunc) (*app.SessionManager, *countingProcessor) {
	t.Helper()
	proc := &countingProcessor{}
	ids := 0
	sm := app.NewSessionManager(app.SessionManagerConfig{
		Session: session.Config{
			SampleRate:    16000,
			Threshold:     0.5,
			MaxSilence:    300 * time.Millisecond,
			QueueCapacity: 64,
			QueueTimeout:  10 * time.Millisecond,
			JoinTimeout:   time.Second,
		},
		Deps: session.Deps{
			Source:    src,
			Detector:  &vadmock.Detector{Default: 0.9},
			Processor: proc,
		},
		Metrics: testMetrics(t),
		Repair:  repair,
		NewID: func() string {
			ids++
			return fmt.Sprintf("session-%d", ids)
		},
	})
	return sm, proc
}

func TestSessionManager_StartStop(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{Frames: speechFrames(10)}
	sm, proc := newTestSessionManager(t, src, nil)

	ctx := context.Background()
	if err := sm.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !sm.IsActive() {
		t.Fatal("expected session to be active after Start")
	}
	info := sm.Info()
	if info.SessionID != "session-1" {
		t.Errorf("SessionID = %q, want %q", info.SessionID, "session-1")
	}
	if info.StartedAt.IsZero() || !info.Active {
		t.Errorf("Info = %+v, want active session with start time", info)
	}

	if err := sm.Stop(ctx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if sm.IsActive() {
		t.Error("expected session to be inactive after Stop")
	}
	info = sm.Info()
	if info.Active || info.EndedAt.IsZero() {
		t.Errorf("Info after Stop = %+v", info)
	}
	if info.Stats.Frames != 10 {
		t.Errorf("Stats.Frames = %d, want 10", info.Stats.Frames)
	}
	if proc.count() != 1 {
		t.Errorf("processed %d segments, want 1 flushed segment", proc.count())
	}
}

func TestSessionManager_DoubleStart(t *testing.T) {
	t.Parallel()

	sm, _ := newTestSessionManager(t, &audiomock.Source{}, nil)
	ctx := context.Background()
	if err := sm.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { _ = sm.Stop(ctx) })

	if err := sm.Start(ctx); !errors.Is(err, app.ErrSessionActive) {
		t.Errorf("second Start() = %v, want ErrSessionActive", err)
	}
}

func TestSessionManager_RestartGetsNewID(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{}
	sm, _ := newTestSessionManager(t, src, nil)
	ctx := context.Background()

	for i, want := range []string{"session-1", "session-2"} {
		if err := sm.Start(ctx); err != nil {
			t.Fatalf("Start #%d: %v", i+1, err)
		}
		if got := sm.Info().SessionID; got != want {
			t.Errorf("Start #%d SessionID = %q, want %q", i+1, got, want)
		}
		if err := sm.Stop(ctx); err != nil {
			t.Fatalf("Stop #%d: %v", i+1, err)
		}
	}
	if starts, stops := src.Counts(); starts != 2 || stops != 2 {
		t.Errorf("source starts=%d stops=%d, want 2/2", starts, stops)
	}
}

func TestSessionManager_StopWithoutStart(t *testing.T) {
	t.Parallel()

	sm, _ := newTestSessionManager(t, &audiomock.Source{}, nil)
	if err := sm.Stop(context.Background()); err != nil {
		t.Errorf("Stop() without session = %v, want nil", err)
	}
	if err := sm.Run(context.Background(), time.Millisecond); !errors.Is(err, app.ErrNoSession) {
		t.Errorf("Run() without session = %v, want ErrNoSession", err)
	}
}

func TestSessionManager_RepairRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		startErr  error
		repairErr error
		fixes     bool
		wantErr   bool
		wantCalls int
	}{
		{name: "repair fixes device", startErr: audio.ErrDeviceUnavailable, fixes: true, wantCalls: 1},
		{name: "repair does not help", startErr: audio.ErrDeviceUnavailable, wantErr: true, wantCalls: 1},
		{name: "repair fails", startErr: audio.ErrDeviceUnavailable, repairErr: errors.New("pactl missing"), wantErr: true, wantCalls: 1},
		{name: "other errors skip repair", startErr: errors.New("boom"), wantErr: true, wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := &audiomock.Source{StartErr: tt.startErr}
			calls := 0
			repair := func(context.Context) error {
				calls++
				if tt.fixes {
					src.StartErr = nil
				}
				return tt.repairErr
			}
			sm, _ := newTestSessionManager(t, src, repair)

			err := sm.Start(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Start() err = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("repair calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.repairErr != nil && !errors.Is(err, tt.repairErr) {
				t.Errorf("Start() err = %v, want it to wrap the repair error", err)
			}
			if err == nil {
				starts, _ := src.Counts()
				if starts != 2 {
					t.Errorf("source starts = %d, want 2", starts)
				}
				_ = sm.Stop(context.Background())
			} else if sm.IsActive() {
				t.Error("IsActive() = true after failed Start")
			}
		})
	}
}

func TestSessionManager_RunForDuration(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{Frames: speechFrames(5)}
	sm, proc := newTestSessionManager(t, src, nil)
	ctx := context.Background()
	if err := sm.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := sm.Run(ctx, 50*time.Millisecond); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if sm.IsActive() || sm.Info().Active {
		t.Error("session still active after Run returned")
	}
	if proc.count() != 1 {
		t.Errorf("processed %d segments, want 1", proc.count())
	}
}

func writeTestWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speech.wav")
	pcm := make([]int16, 16000/2)
	for i := range pcm {
		pcm[i] = 8000
	}
	if err := os.WriteFile(path, audio.EncodeWAV(pcm, 16000, 1), 0o600); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func TestSessionManager_RestartFileSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		factory   bool
		wantErr   error
		wantBuilt int
	}{
		{name: "single source cannot restart", wantErr: audio.ErrSourceClosed},
		{name: "source factory per session", factory: true, wantBuilt: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeTestWAV(t)
			var last *audio.FileSource
			newSource := func() *audio.FileSource {
				last = audio.NewFileSource(path, 16000, 30*time.Millisecond, audio.WithRealtime(false))
				return last
			}
			built := 0
			cfg := app.SessionManagerConfig{
				Session: session.Config{
					SampleRate:    16000,
					Threshold:     0.5,
					MaxSilence:    300 * time.Millisecond,
					QueueCapacity: 64,
					QueueTimeout:  10 * time.Millisecond,
					JoinTimeout:   time.Second,
				},
				Deps: session.Deps{
					Source:    newSource(),
					Detector:  &vadmock.Detector{Default: 0.9},
					Processor: &countingProcessor{},
				},
				Metrics: testMetrics(t),
			}
			if tt.factory {
				cfg.NewSource = func() (audio.Source, error) {
					built++
					return newSource(), nil
				}
			}
			sm := app.NewSessionManager(cfg)
			ctx := context.Background()

			if err := sm.Start(ctx); err != nil {
				t.Fatalf("first Start: %v", err)
			}
			if err := sm.Stop(ctx); err != nil {
				t.Fatalf("first Stop: %v", err)
			}

			err := sm.Start(ctx)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("second Start = %v, want %v", err, tt.wantErr)
				}
				if sm.IsActive() {
					t.Error("session active after failed restart")
				}
				return
			}
			if err != nil {
				t.Fatalf("second Start: %v", err)
			}
			select {
			case <-last.Done():
			case <-time.After(5 * time.Second):
				t.Fatal("file replay did not finish")
			}
			if err := sm.Stop(ctx); err != nil {
				t.Fatalf("second Stop: %v", err)
			}
			if built != tt.wantBuilt {
				t.Errorf("factory built %d sources, want %d", built, tt.wantBuilt)
			}
			// 500ms of audio at 30ms frames.
			if frames := sm.Info().Stats.Frames; frames != 16 {
				t.Errorf("restarted session classified %d frames, want 16", frames)
			}
		})
	}
}
