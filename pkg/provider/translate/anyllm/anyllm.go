// Package anyllm provides a translator backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq,
// llama.cpp and llamafile.
//
// Usage:
//
//	tr, err := anyllm.New("ollama", "llama3.1")
//	tr, err := anyllm.New("anthropic", "claude-3-5-haiku-latest",
//	    anyllm.WithLLMOptions(anyllmlib.WithAPIKey("sk-ant-...")))
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/jcoronado1982/real-time-translator/pkg/provider/translate"
)

var _ translate.Translator = (*Translator)(nil)

// Translator implements translate.Translator by wrapping an any-llm-go
// backend.
type Translator struct {
	backend anyllmlib.Provider
	model   string
	system  string
}

type config struct {
	source  string
	target  string
	llmOpts []anyllmlib.Option
}

// Option is a functional option for Translator.
type Option func(*config)

// WithLanguages sets the source and target language names used in the
// prompt. Empty values keep Spanish and English.
func WithLanguages(source, target string) Option {
	return func(c *config) { c.source, c.target = source, target }
}

// WithLLMOptions forwards any-llm-go options (anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL, ...) to the backend.
func WithLLMOptions(opts ...anyllmlib.Option) Option {
	return func(c *config) { c.llmOpts = append(c.llmOpts, opts...) }
}

// New creates a Translator backed by the named provider.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama", "deepseek",
// "mistral", "groq", "llamacpp", "llamafile".
//
// If no API key option is provided, the backend falls back to the relevant
// environment variable (e.g., OPENAI_API_KEY, ANTHROPIC_API_KEY).
func New(providerName, model string, opts ...Option) (*Translator, error) {
	if providerName == "" {
		return nil, errors.New("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, errors.New("anyllm: model must not be empty")
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	backend, err := createBackend(providerName, cfg.llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	return &Translator{
		backend: backend,
		model:   model,
		system:  translate.SystemPrompt(cfg.source, cfg.target),
	}, nil
}

// createBackend creates the underlying any-llm-go provider for the given provider name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: %s", providerName, strings.Join(Backends(), ", "))
	}
}

// Backends lists the provider names accepted by [New].
func Backends() []string {
	return []string{"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}
}

// Translate implements translate.Translator.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	temp := 0.0
	resp, err := t.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: t.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: t.system},
			{Role: anyllmlib.RoleUser, Content: text},
		},
		Temperature: &temp,
	})
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("anyllm: empty choices in response")
	}
	return translate.CleanReply(resp.Choices[0].Message.ContentString()), nil
}
