// Package openai provides a translator backed by the OpenAI chat completion
// API or any OpenAI-compatible server (vLLM, LM Studio, llama.cpp).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/jcoronado1982/real-time-translator/pkg/provider/translate"
)

var _ translate.Translator = (*Translator)(nil)

// Translator implements translate.Translator using chat completions.
type Translator struct {
	client oai.Client
	model  string
	system string
}

// config holds optional configuration for the translator.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	source       string
	target       string
}

// Option is a functional option for Translator.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithLanguages sets the source and target language names used in the
// prompt. Empty values keep Spanish and English.
func WithLanguages(source, target string) Option {
	return func(c *config) {
		c.source, c.target = source, target
	}
}

// New constructs a new OpenAI Translator.
func New(apiKey string, model string, opts ...Option) (*Translator, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Translator{
		client: oai.NewClient(reqOpts...),
		model:  model,
		system: translate.SystemPrompt(cfg.source, cfg.target),
	}, nil
}

// Translate implements translate.Translator.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	resp, err := t.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(t.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(t.system),
			oai.UserMessage(text),
		},
		Temperature: oai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices in response")
	}
	return translate.CleanReply(resp.Choices[0].Message.Content), nil
}
