// This file contains the Native transcriber backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/stt"
)

// Compile-time assertion that Native satisfies stt.Transcriber.
var _ stt.Transcriber = (*Native)(nil)

// Native implements stt.Transcriber using whisper.cpp Go bindings (CGO). The
// model is loaded once at construction; each Transcribe call creates a fresh
// inference context from it.
type Native struct {
	model      whisperlib.Model
	language   string
	threads    uint
	sampleRate int

	// whisper.cpp contexts share model memory; inference is serialised so a
	// long utterance never runs two contexts at once on the same CPU budget.
	mu sync.Mutex
}

// NativeOption is a functional option for configuring a Native transcriber.
type NativeOption func(*Native)

// WithNativeLanguage sets the ISO-639-1 language code for transcription
// (e.g., "es", "en"). Defaults to "es". "auto" lets whisper detect it.
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// WithNativeThreads sets the number of CPU threads used for inference. Zero
// keeps the whisper.cpp default.
func WithNativeThreads(threads uint) NativeOption {
	return func(n *Native) { n.threads = threads }
}

// WithNativeSampleRate sets the rate of the samples passed to Transcribe.
// Audio at any other rate than 16 kHz is resampled before inference.
// Defaults to 16000.
func WithNativeSampleRate(rate int) NativeOption {
	return func(n *Native) {
		if rate > 0 {
			n.sampleRate = rate
		}
	}
}

// NewNative loads the whisper.cpp model at modelPath. The caller must call
// Close when the transcriber is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	n := &Native{
		model:      model,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Close releases the whisper model.
func (n *Native) Close() error {
	if n.model != nil {
		return n.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp inference on mono samples at the configured
// sample rate and returns the concatenated segment text.
func (n *Native) Transcribe(ctx context.Context, samples []float32) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: %w", err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	start := time.Now()
	wctx, err := n.model.NewContext()
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(n.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", n.language, "error", err)
	}
	if n.threads > 0 {
		wctx.SetThreads(n.threads)
	}

	if err := wctx.Process(modelInput(samples, n.sampleRate), nil, nil, nil); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return stt.Result{
		Text:     strings.Join(parts, " "),
		Language: wctx.Language(),
		Duration: time.Since(start),
	}, nil
}

// SampleRate returns the rate Transcribe expects its input at.
func (n *Native) SampleRate() int { return n.sampleRate }

// modelInput converts samples captured at rate to the 16 kHz whisper.cpp
// expects.
func modelInput(samples []float32, rate int) []float32 {
	return audio.Resample(samples, rate, defaultSampleRate)
}
