// Package elevenlabs renders speech with the ElevenLabs streaming WebSocket
// API. It implements the tts.Renderer interface.
//
// Each Render call opens one stream-input socket, sends the text followed by
// an empty flush message, and collects the base64 PCM chunks until the
// server marks the stream final.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts"
)

const (
	defaultBaseURL   = "wss://api.elevenlabs.io"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"
)

var _ tts.Renderer = (*Renderer)(nil)

// Option is a functional option for configuring the ElevenLabs Renderer.
type Option func(*Renderer)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(r *Renderer) {
		r.model = model
	}
}

// WithOutputFormat sets the PCM output format (e.g., "pcm_16000", "pcm_24000").
func WithOutputFormat(format string) Option {
	return func(r *Renderer) {
		r.outputFormat = format
	}
}

// WithBaseURL overrides the WebSocket base URL. Used by tests.
func WithBaseURL(u string) Option {
	return func(r *Renderer) {
		r.baseURL = strings.TrimRight(u, "/")
	}
}

// Renderer implements tts.Renderer backed by the ElevenLabs streaming API.
type Renderer struct {
	apiKey       string
	voiceID      string
	model        string
	outputFormat string
	baseURL      string
}

// New creates a new ElevenLabs Renderer. apiKey and voiceID must be non-empty.
func New(apiKey, voiceID string, opts ...Option) (*Renderer, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voiceID must not be empty")
	}
	r := &Renderer{
		apiKey:       apiKey,
		voiceID:      voiceID,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		baseURL:      defaultBaseURL,
	}
	for _, o := range opts {
		o(r)
	}
	if _, err := formatSampleRate(r.outputFormat); err != nil {
		return nil, err
	}
	return r, nil
}

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Render implements tts.Renderer.
func (r *Renderer) Render(ctx context.Context, text string) (tts.Audio, error) {
	rate, _ := formatSampleRate(r.outputFormat)

	conn, _, err := websocket.Dial(ctx, r.streamURL(), nil)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.CloseNow()

	msgs := []textMessage{
		// ElevenLabs requires a non-empty first text value.
		{Text: " ", VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}, XiAPIKey: r.apiKey},
		{Text: strings.TrimSpace(text) + " "},
		{Text: ""},
	}
	for _, m := range msgs {
		b, _ := json.Marshal(m)
		if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
			return tts.Audio{}, fmt.Errorf("elevenlabs: write: %w", err)
		}
	}

	var pcm []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			return tts.Audio{}, fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Error != "" {
			return tts.Audio{}, fmt.Errorf("elevenlabs: server error: %s: %s", resp.Error, resp.Message)
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return tts.Audio{}, fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if resp.IsFinal {
			break
		}
	}
	conn.Close(websocket.StatusNormalClosure, "done")

	return tts.Audio{PCM: audio.BytesToInt16(pcm), SampleRate: rate}, nil
}

// streamURL constructs the stream-input WebSocket URL for the voice.
func (r *Renderer) streamURL() string {
	q := url.Values{}
	q.Set("model_id", r.model)
	q.Set("output_format", r.outputFormat)
	return fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?%s", r.baseURL, url.PathEscape(r.voiceID), q.Encode())
}

// formatSampleRate parses "pcm_<rate>".
func formatSampleRate(format string) (int, error) {
	rate, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("elevenlabs: output format %q is not raw PCM", format)
	}
	n, err := strconv.Atoi(rate)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("elevenlabs: invalid output format %q", format)
	}
	return n, nil
}
