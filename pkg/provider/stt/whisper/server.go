// Package whisper provides whisper.cpp-backed transcribers.
//
// [Server] talks to a running whisper-server binary, which exposes a REST API
// at POST /inference, and submits each utterance as a WAV upload. [Native]
// runs the model in-process through the CGO bindings.
//
// Usage:
//
//	tr, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("es"),
//	)
//	res, err := tr.Transcribe(ctx, samples)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/stt"
)

const (
	defaultLanguage   = "es"
	defaultSampleRate = 16000
	defaultTimeout    = 30 * time.Second
)

// Compile-time assertion that Server implements stt.Transcriber.
var _ stt.Transcriber = (*Server)(nil)

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "small"). When empty the server uses whichever model it was started
// with. This is the default.
func WithModel(model string) Option {
	return func(s *Server) {
		s.model = model
	}
}

// WithLanguage sets the language code sent to the whisper.cpp server
// (e.g., "es", "en"). Defaults to "es".
func WithLanguage(lang string) Option {
	return func(s *Server) {
		s.language = lang
	}
}

// WithSampleRate sets the sample rate written into the uploaded WAV header.
// Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(s *Server) {
		s.sampleRate = rate
	}
}

// WithHTTPClient replaces the HTTP client. The default has a 30 s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) {
		s.httpClient = c
	}
}

// Server implements stt.Transcriber backed by a local whisper.cpp HTTP server.
type Server struct {
	serverURL  string
	model      string
	language   string
	sampleRate int
	httpClient *http.Client
}

// New creates a Server client. serverURL is the base URL of the whisper.cpp
// server (e.g. "http://localhost:8080") and must not be empty.
func New(serverURL string, opts ...Option) (*Server, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	s := &Server{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Transcribe uploads samples as a 16-bit WAV file and returns the server's
// transcription.
func (s *Server) Transcribe(ctx context.Context, samples []float32) (stt.Result, error) {
	start := time.Now()
	wav := audio.EncodeWAV(audio.Float32ToInt16(samples), s.sampleRate, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := map[string]string{
		"language":        s.language,
		"model":           s.model,
		"response_format": "json",
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return stt.Result{}, fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/inference", &body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stt.Result{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return stt.Result{
		Text:     strings.TrimSpace(result.Text),
		Language: s.language,
		Duration: time.Since(start),
	}, nil
}
