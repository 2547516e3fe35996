// Package libre provides a translator for LibreTranslate-compatible servers.
//
// LibreTranslate runs the Argos/opus-mt models locally and exposes
// POST /translate. It is the simplest way to get the Helsinki-NLP
// opus-mt-es-en model behind an HTTP endpoint without a GPU.
//
//	tr, err := libre.New("http://localhost:5000", libre.WithLanguages("es", "en"))
package libre

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jcoronado1982/real-time-translator/pkg/provider/translate"
)

const (
	translateEndpoint = "/translate"
	defaultTimeout    = 15 * time.Second
)

var _ translate.Translator = (*Translator)(nil)

// Option is a functional option for configuring a Translator.
type Option func(*Translator)

// WithLanguages sets the ISO-639-1 source and target codes. Defaults to
// "es" and "en".
func WithLanguages(source, target string) Option {
	return func(t *Translator) {
		if source != "" {
			t.source = source
		}
		if target != "" {
			t.target = target
		}
	}
}

// WithAPIKey sets the api_key field for servers that require one.
func WithAPIKey(key string) Option {
	return func(t *Translator) { t.apiKey = key }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 15 s.
func WithTimeout(d time.Duration) Option {
	return func(t *Translator) { t.httpClient.Timeout = d }
}

// Translator implements translate.Translator against a LibreTranslate server.
type Translator struct {
	serverURL  string
	source     string
	target     string
	apiKey     string
	httpClient *http.Client
}

// New creates a Translator for the server at serverURL.
func New(serverURL string, opts ...Option) (*Translator, error) {
	if serverURL == "" {
		return nil, errors.New("libre: serverURL must not be empty")
	}
	t := &Translator{
		serverURL:  strings.TrimRight(serverURL, "/"),
		source:     "es",
		target:     "en",
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

// Translate implements translate.Translator.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	body, err := json.Marshal(translateRequest{
		Q:      text,
		Source: t.source,
		Target: t.target,
		Format: "text",
		APIKey: t.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("libre: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.serverURL+translateEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("libre: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("libre: POST %s: %w", translateEndpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("libre: read response: %w", err)
	}
	var out translateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("libre: parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("libre: POST %s returned status %d: %s", translateEndpoint, resp.StatusCode, out.Error)
	}
	return strings.TrimSpace(out.TranslatedText), nil
}
