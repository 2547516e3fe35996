package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/stt"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/translate"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by the Create methods when no factory
// has been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory signatures. Audio-facing factories also receive the pipeline
// format so they can match the capture rate and frame size.
type (
	SourceFactory    func(ProviderEntry, PipelineConfig) (audio.Source, error)
	PlayerFactory    func(ProviderEntry) (audio.Player, error)
	VADFactory       func(ProviderEntry, PipelineConfig) (vad.Detector, error)
	STTFactory       func(ProviderEntry, PipelineConfig) (stt.Transcriber, error)
	TranslateFactory func(ProviderEntry) (translate.Translator, error)
	TTSFactory       func(ProviderEntry, audio.Player) (tts.Synthesizer, error)
)

// Registry maps provider names to their constructors for each provider
// kind. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	sources   map[string]SourceFactory
	players   map[string]PlayerFactory
	vad       map[string]VADFactory
	stt       map[string]STTFactory
	translate map[string]TranslateFactory
	tts       map[string]TTSFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		sources:   make(map[string]SourceFactory),
		players:   make(map[string]PlayerFactory),
		vad:       make(map[string]VADFactory),
		stt:       make(map[string]STTFactory),
		translate: make(map[string]TranslateFactory),
		tts:       make(map[string]TTSFactory),
	}
}

// register stores f under name; a later registration replaces an earlier one.
func register[F any](r *Registry, m map[string]F, name string, f F) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m[name] = f
}

func lookup[F any](r *Registry, m map[string]F, kind, name string) (F, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := m[name]
	if !ok {
		var zero F
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, name)
	}
	return f, nil
}

// RegisterSource registers an audio source factory under name.
func (r *Registry) RegisterSource(name string, f SourceFactory) { register(r, r.sources, name, f) }

// RegisterPlayer registers an output player factory under name.
func (r *Registry) RegisterPlayer(name string, f PlayerFactory) { register(r, r.players, name, f) }

// RegisterVAD registers a speech detector factory under name.
func (r *Registry) RegisterVAD(name string, f VADFactory) { register(r, r.vad, name, f) }

// RegisterSTT registers a transcriber factory under name.
func (r *Registry) RegisterSTT(name string, f STTFactory) { register(r, r.stt, name, f) }

// RegisterTranslate registers a translator factory under name.
func (r *Registry) RegisterTranslate(name string, f TranslateFactory) {
	register(r, r.translate, name, f)
}

// RegisterTTS registers a synthesizer factory under name.
func (r *Registry) RegisterTTS(name string, f TTSFactory) { register(r, r.tts, name, f) }

// CreateSource instantiates the audio source registered under entry.Name.
func (r *Registry) CreateSource(entry ProviderEntry, p PipelineConfig) (audio.Source, error) {
	f, err := lookup(r, r.sources, "audio", entry.Name)
	if err != nil {
		return nil, err
	}
	return f(entry, p)
}

// CreatePlayer instantiates the output player registered under entry.Name.
func (r *Registry) CreatePlayer(entry ProviderEntry) (audio.Player, error) {
	f, err := lookup(r, r.players, "output", entry.Name)
	if err != nil {
		return nil, err
	}
	return f(entry)
}

// CreateVAD instantiates the detector registered under entry.Name.
func (r *Registry) CreateVAD(entry ProviderEntry, p PipelineConfig) (vad.Detector, error) {
	f, err := lookup(r, r.vad, "vad", entry.Name)
	if err != nil {
		return nil, err
	}
	return f(entry, p)
}

// CreateSTT instantiates the transcriber registered under entry.Name.
// Fallbacks are not resolved here.
func (r *Registry) CreateSTT(entry ProviderEntry, p PipelineConfig) (stt.Transcriber, error) {
	f, err := lookup(r, r.stt, "stt", entry.Name)
	if err != nil {
		return nil, err
	}
	return f(entry, p)
}

// CreateTranslate instantiates the translator registered under entry.Name.
func (r *Registry) CreateTranslate(entry ProviderEntry) (translate.Translator, error) {
	f, err := lookup(r, r.translate, "translate", entry.Name)
	if err != nil {
		return nil, err
	}
	return f(entry)
}

// CreateTTS instantiates the synthesizer registered under entry.Name,
// playing through player.
func (r *Registry) CreateTTS(entry ProviderEntry, player audio.Player) (tts.Synthesizer, error) {
	f, err := lookup(r, r.tts, "tts", entry.Name)
	if err != nil {
		return nil, err
	}
	return f(entry, player)
}

// Names returns the sorted names registered for kind ("audio", "output",
// "vad", "stt", "translate" or "tts").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch kind {
	case "audio":
		names = slices.Collect(maps.Keys(r.sources))
	case "output":
		names = slices.Collect(maps.Keys(r.players))
	case "vad", "verifier":
		names = slices.Collect(maps.Keys(r.vad))
	case "stt":
		names = slices.Collect(maps.Keys(r.stt))
	case "translate":
		names = slices.Collect(maps.Keys(r.translate))
	case "tts":
		names = slices.Collect(maps.Keys(r.tts))
	}
	slices.Sort(names)
	return names
}
