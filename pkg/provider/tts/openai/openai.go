// Package openai renders speech with the OpenAI text-to-speech API
// (tts-1, gpt-4o-mini-tts). Audio is requested as raw PCM, which the API
// delivers as 24 kHz 16-bit mono.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts"
)

const (
	defaultModel = "tts-1"
	defaultVoice = "alloy"

	// pcmSampleRate is the fixed rate of the API's "pcm" response format.
	pcmSampleRate = 24000
)

var _ tts.Renderer = (*Renderer)(nil)

// Renderer implements tts.Renderer using the OpenAI speech endpoint.
type Renderer struct {
	client       oai.Client
	model        string
	voice        string
	instructions string
	speed        float64
}

type config struct {
	baseURL      string
	timeout      time.Duration
	voice        string
	instructions string
	speed        float64
}

// Option is a functional option for Renderer.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithVoice selects the voice (alloy, echo, onyx, nova, ...). Defaults to alloy.
func WithVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithInstructions sets delivery instructions for models that accept them.
func WithInstructions(s string) Option {
	return func(c *config) { c.instructions = s }
}

// WithSpeed sets the speaking rate in [0.25, 4]. Zero keeps the API default.
func WithSpeed(speed float64) Option {
	return func(c *config) { c.speed = speed }
}

// New constructs a Renderer. An empty model selects tts-1.
func New(apiKey, model string, opts ...Option) (*Renderer, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if model == "" {
		model = defaultModel
	}
	cfg := &config{voice: defaultVoice}
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
	return &Renderer{
		client:       oai.NewClient(reqOpts...),
		model:        model,
		voice:        cfg.voice,
		instructions: cfg.instructions,
		speed:        cfg.speed,
	}, nil
}

// Render implements tts.Renderer.
func (r *Renderer) Render(ctx context.Context, text string) (tts.Audio, error) {
	params := oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModel(r.model),
		Voice:          oai.AudioSpeechNewParamsVoice(r.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if r.instructions != "" {
		params.Instructions = oai.String(r.instructions)
	}
	if r.speed > 0 {
		params.Speed = oai.Float(r.speed)
	}

	resp, err := r.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("openai: speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("openai: read speech: %w", err)
	}
	return tts.Audio{PCM: audio.BytesToInt16(data), SampleRate: pcmSampleRate}, nil
}
