// Package coqui renders speech with a locally running Coqui TTS server. It
// implements the tts.Renderer interface.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): targets the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET /api/tts with
//     URL query parameters.
//
//   - APIModeXTTS: targets the Coqui XTTS v2 API server. Synthesis is performed
//     via POST /tts_to_audio/ with a JSON body naming a reference speaker.
//
// Both servers answer with a WAV file; the PCM is returned at the model's
// native sample rate.
//
//	r, err := coqui.New("http://localhost:5002", coqui.WithLanguage("en"))
//	speaker := tts.NewSpeaker(r, player)
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Renderer = (*Renderer)(nil)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
	ttsEndpoint     = "/tts_to_audio/"
	apiTTSEndpoint  = "/api/tts"
)

// APIMode selects which Coqui server API the renderer targets.
type APIMode string

const (
	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Coqui Renderer.
type Option func(*Renderer)

// WithLanguage sets the language code sent to the TTS server (e.g., "en").
// Defaults to "en" if not set.
func WithLanguage(lang string) Option {
	return func(r *Renderer) {
		r.language = lang
	}
}

// WithSpeaker sets the speaker: a speaker_id for multi-speaker standard
// models, or the reference speaker_wav in XTTS mode.
func WithSpeaker(speaker string) Option {
	return func(r *Renderer) {
		r.speaker = speaker
	}
}

// WithTimeout sets the per-request HTTP timeout for calls to the TTS server.
// Defaults to 30 s if not set.
func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		r.httpClient.Timeout = d
	}
}

// WithAPIMode sets the server API mode.
func WithAPIMode(mode APIMode) Option {
	return func(r *Renderer) {
		r.apiMode = mode
	}
}

// Renderer implements tts.Renderer backed by a Coqui TTS server. It is safe
// for concurrent use.
type Renderer struct {
	serverURL  string
	language   string
	speaker    string
	httpClient *http.Client
	apiMode    APIMode
}

// New creates a Renderer that targets the TTS server at serverURL
// (e.g., "http://localhost:5002"). The default API mode is APIModeStandard.
func New(serverURL string, opts ...Option) (*Renderer, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	r := &Renderer{
		serverURL: strings.TrimRight(serverURL, "/"),
		language:  defaultLanguage,
		apiMode:   APIModeStandard,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(r)
	}
	if r.apiMode == APIModeXTTS && r.speaker == "" {
		return nil, errors.New("coqui: a speaker is required in XTTS mode")
	}
	return r, nil
}

// ttsRequest is the JSON body sent to POST /tts_to_audio/ (XTTS mode).
type ttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// Render implements tts.Renderer.
func (r *Renderer) Render(ctx context.Context, text string) (tts.Audio, error) {
	var (
		req *http.Request
		err error
	)
	endpoint := apiTTSEndpoint
	if r.apiMode == APIModeXTTS {
		endpoint = ttsEndpoint
		req, err = r.xttsRequest(ctx, text)
	} else {
		req, err = r.standardRequest(ctx, text)
	}
	if err != nil {
		return tts.Audio{}, err
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("coqui: %s %s: %w", req.Method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tts.Audio{}, fmt.Errorf("coqui: %s %s returned status %d", req.Method, endpoint, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	wav, err := audio.DecodeWAV(data)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("coqui: %w", err)
	}
	return tts.Audio{PCM: wav.MonoPCM(), SampleRate: wav.SampleRate}, nil
}

func (r *Renderer) xttsRequest(ctx context.Context, text string) (*http.Request, error) {
	data, err := json.Marshal(ttsRequest{
		Text:       text,
		SpeakerWav: r.speaker,
		Language:   r.language,
	})
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal tts request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.serverURL+ttsEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (r *Renderer) standardRequest(ctx context.Context, text string) (*http.Request, error) {
	params := url.Values{}
	params.Set("text", text)
	if r.speaker != "" {
		params.Set("speaker_id", r.speaker)
	}
	if r.language != "" {
		params.Set("language_id", r.language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.serverURL+apiTTSEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	return req, nil
}
