// Package piper renders speech with the Piper neural TTS command-line tool.
//
// Each Render call runs
//
//	piper --model MODEL --output_raw
//
// with the text on stdin and reads raw 16-bit mono PCM from stdout. The
// sample rate comes from the model's MODEL.json sidecar when present and
// falls back to 22050 Hz, the rate of the "high" and "medium" voices.
package piper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts"
)

const (
	defaultBinary     = "piper"
	defaultSampleRate = 22050
	defaultTimeout    = 30 * time.Second
)

var _ tts.Renderer = (*Renderer)(nil)

// Option is a functional option for configuring a Renderer.
type Option func(*Renderer)

// WithBinary sets the piper executable. Defaults to "piper" on PATH.
func WithBinary(path string) Option {
	return func(r *Renderer) { r.binary = path }
}

// WithSpeaker selects a speaker ID for multi-speaker models.
func WithSpeaker(id string) Option {
	return func(r *Renderer) { r.speaker = id }
}

// WithLengthScale sets the phoneme length scale; values above 1 slow speech.
func WithLengthScale(scale float64) Option {
	return func(r *Renderer) { r.lengthScale = scale }
}

// WithSampleRate overrides the sample rate read from the model config.
func WithSampleRate(rate int) Option {
	return func(r *Renderer) { r.sampleRate = rate }
}

// WithTimeout bounds a single synthesis run. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) { r.timeout = d }
}

// Renderer implements tts.Renderer by running piper.
type Renderer struct {
	binary      string
	model       string
	speaker     string
	lengthScale float64
	sampleRate  int
	timeout     time.Duration
}

// New creates a Renderer for the voice model at modelPath.
func New(modelPath string, opts ...Option) (*Renderer, error) {
	if modelPath == "" {
		return nil, errors.New("piper: model path must not be empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("piper: model: %w", err)
	}
	r := &Renderer{
		binary:  defaultBinary,
		model:   modelPath,
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	if r.sampleRate == 0 {
		r.sampleRate = modelSampleRate(modelPath)
	}
	if _, err := exec.LookPath(r.binary); err != nil {
		return nil, fmt.Errorf("piper: binary %q: %w", r.binary, err)
	}
	return r, nil
}

// SampleRate reports the rate of rendered audio.
func (r *Renderer) SampleRate() int { return r.sampleRate }

// Render implements tts.Renderer.
func (r *Renderer) Render(ctx context.Context, text string) (tts.Audio, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := []string{"--model", r.model, "--output_raw"}
	if r.speaker != "" {
		args = append(args, "--speaker", r.speaker)
	}
	if r.lengthScale > 0 {
		args = append(args, "--length_scale", fmt.Sprintf("%g", r.lengthScale))
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdin = strings.NewReader(strings.TrimSpace(text) + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return tts.Audio{}, fmt.Errorf("piper: run: %w: %s", err, msg)
		}
		return tts.Audio{}, fmt.Errorf("piper: run: %w", err)
	}
	return tts.Audio{PCM: audio.BytesToInt16(stdout.Bytes()), SampleRate: r.sampleRate}, nil
}

// modelSampleRate reads audio.sample_rate from MODEL.json, the config piper
// ships next to every voice.
func modelSampleRate(modelPath string) int {
	data, err := os.ReadFile(modelPath + ".json")
	if err != nil {
		return defaultSampleRate
	}
	var cfg struct {
		Audio struct {
			SampleRate int `json:"sample_rate"`
		} `json:"audio"`
	}
	if json.Unmarshal(data, &cfg) != nil || cfg.Audio.SampleRate <= 0 {
		return defaultSampleRate
	}
	return cfg.Audio.SampleRate
}
