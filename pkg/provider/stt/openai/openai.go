// Package openai provides a transcriber backed by the OpenAI audio
// transcription API (whisper-1, gpt-4o-transcribe) or any server that
// implements the same endpoint.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/stt"
)

const defaultModel = oai.AudioModelWhisper1

var _ stt.Transcriber = (*Transcriber)(nil)

// Transcriber implements stt.Transcriber using the OpenAI API.
type Transcriber struct {
	client     oai.Client
	model      string
	language   string
	prompt     string
	sampleRate int
}

type config struct {
	baseURL    string
	timeout    time.Duration
	language   string
	prompt     string
	sampleRate int
}

// Option is a functional option for Transcriber.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithLanguage sets the ISO-639-1 input language. Defaults to "es".
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithPrompt sets a prompt that biases recognition towards its vocabulary.
func WithPrompt(prompt string) Option {
	return func(c *config) { c.prompt = prompt }
}

// WithSampleRate sets the sample rate of the audio passed to Transcribe.
// Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(c *config) { c.sampleRate = rate }
}

// New constructs a Transcriber. An empty model selects whisper-1.
func New(apiKey, model string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if model == "" {
		model = string(defaultModel)
	}
	cfg := &config{language: "es", sampleRate: 16000}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Transcriber{
		client:     oai.NewClient(reqOpts...),
		model:      model,
		language:   cfg.language,
		prompt:     cfg.prompt,
		sampleRate: cfg.sampleRate,
	}, nil
}

// Transcribe uploads samples as WAV and returns the recognised text.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32) (stt.Result, error) {
	start := time.Now()
	wav := audio.EncodeWAV(audio.Float32ToInt16(samples), t.sampleRate, 1)

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = oai.String(t.language)
	}
	if t.prompt != "" {
		params.Prompt = oai.String(t.prompt)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Result{}, fmt.Errorf("openai: transcribe: %w", err)
	}
	return stt.Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: t.language,
		Duration: time.Since(start),
	}, nil
}
