package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultSampleRate    = 16000
	DefaultFrameDuration = 30 * time.Millisecond
	DefaultVADThreshold  = 0.5
	DefaultMaxSilence    = 800 * time.Millisecond
	DefaultQueueCapacity = 200
	DefaultQueueTimeout  = 500 * time.Millisecond
	MaxQueueTimeout      = time.Second
	DefaultJoinTimeout   = 2 * time.Second
	DefaultMinTextLength = 2
	DefaultVerify        = 0.6
)

// DefaultSourceKeywords match the USB audio interfaces the translator is
// usually run with.
var DefaultSourceKeywords = []string{"USB", "PCM2900", "M-Audio"}

// ValidProviderNames lists the built-in provider names per kind. [Validate]
// warns about names outside this list; they may still be registered by a
// custom build.
var ValidProviderNames = map[string][]string{
	"audio":     {"portaudio", "file"},
	"output":    {"portaudio", "aplay"},
	"vad":       {"silero", "energy"},
	"verifier":  {"silero", "energy"},
	"stt":       {"whisper-native", "whisper", "deepgram", "openai"},
	"translate": {"libre", "openai", "ollama", "anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":       {"piper", "coqui", "openai", "elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r, applies defaults and validates the
// result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields. It does not touch fields where
// zero is meaningful (run duration, max segment, fuzzy threshold).
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Session.JoinTimeout == 0 {
		cfg.Session.JoinTimeout = DefaultJoinTimeout
	}

	p := &cfg.Pipeline
	if p.SampleRate == 0 {
		p.SampleRate = DefaultSampleRate
	}
	if p.Channels == 0 {
		p.Channels = 1
	}
	if p.FrameDuration == 0 {
		p.FrameDuration = DefaultFrameDuration
	}
	if p.VADThreshold == 0 {
		p.VADThreshold = DefaultVADThreshold
	}
	if p.MaxSilenceAfterSpeech == 0 {
		p.MaxSilenceAfterSpeech = DefaultMaxSilence
	}
	if p.QueueCapacity == 0 {
		p.QueueCapacity = DefaultQueueCapacity
	}
	if p.QueueTimeout == 0 {
		p.QueueTimeout = DefaultQueueTimeout
	}

	if cfg.Filters.MinTextLength == 0 {
		cfg.Filters.MinTextLength = DefaultMinTextLength
	}
	if cfg.Filters.VerifyThreshold == 0 {
		cfg.Filters.VerifyThreshold = DefaultVerify
	}

	if cfg.Providers.Audio.Name == "" {
		cfg.Providers.Audio.Name = "portaudio"
	}
	if cfg.Providers.Output.Name == "" {
		cfg.Providers.Output.Name = "portaudio"
	}
	if cfg.Bootstrap.SourceKeywords == nil {
		cfg.Bootstrap.SourceKeywords = slices.Clone(DefaultSourceKeywords)
	}
}

// Validate checks that cfg is coherent. It returns a joined error listing
// every problem found; unknown provider names only log a warning.
func Validate(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		add("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel)
	}

	if cfg.Session.RunDuration < 0 {
		add("session.run_duration %v must not be negative", cfg.Session.RunDuration)
	}
	if cfg.Session.JoinTimeout < 0 {
		add("session.join_timeout %v must not be negative", cfg.Session.JoinTimeout)
	}

	p := cfg.Pipeline
	if p.SampleRate <= 0 {
		add("pipeline.sample_rate %d must be positive", p.SampleRate)
	} else if p.SampleRate != DefaultSampleRate {
		slog.Warn("pipeline.sample_rate differs from 16000; most speech models expect 16 kHz", "sample_rate", p.SampleRate)
	}
	if p.Channels < 1 || p.Channels > 8 {
		add("pipeline.channels %d is out of range [1, 8]", p.Channels)
	}
	if p.FrameDuration <= 0 || p.FrameDuration > time.Second {
		add("pipeline.frame_duration %v is out of range (0, 1s]", p.FrameDuration)
	} else if p.SampleRate > 0 && int(p.FrameDuration*time.Duration(p.SampleRate)/time.Second) == 0 {
		add("pipeline.frame_duration %v holds no samples at %d Hz", p.FrameDuration, p.SampleRate)
	}
	if p.VADThreshold <= 0 || p.VADThreshold > 1 {
		add("pipeline.vad_threshold %.2f is out of range (0, 1]", p.VADThreshold)
	}
	if p.MaxSilenceAfterSpeech <= 0 {
		add("pipeline.max_silence_after_speech %v must be positive", p.MaxSilenceAfterSpeech)
	}
	if p.MaxSegmentDuration < 0 {
		add("pipeline.max_segment_duration %v must not be negative", p.MaxSegmentDuration)
	} else if p.MaxSegmentDuration > 0 && p.MaxSegmentDuration < p.FrameDuration {
		add("pipeline.max_segment_duration %v is shorter than one frame (%v)", p.MaxSegmentDuration, p.FrameDuration)
	}
	if p.QueueCapacity <= 0 {
		add("pipeline.queue_capacity %d must be positive", p.QueueCapacity)
	}
	if p.QueueTimeout <= 0 || p.QueueTimeout > MaxQueueTimeout {
		add("pipeline.queue_timeout %v is out of range (0, %v]", p.QueueTimeout, MaxQueueTimeout)
	}

	f := cfg.Filters
	if f.MinTextLength < 0 {
		add("filters.min_text_length %d must not be negative", f.MinTextLength)
	}
	if f.FuzzyThreshold < 0 || f.FuzzyThreshold > 1 {
		add("filters.fuzzy_threshold %.2f is out of range [0, 1]", f.FuzzyThreshold)
	}
	if f.VerifyThreshold < 0 || f.VerifyThreshold > 1 {
		add("filters.verify_threshold %.2f is out of range [0, 1]", f.VerifyThreshold)
	}

	pr := cfg.Providers
	for _, e := range []struct {
		kind      string
		entry     ProviderEntry
		required  bool
		fallbacks bool
	}{
		{"audio", pr.Audio, true, false},
		{"output", pr.Output, true, false},
		{"vad", pr.VAD, true, false},
		{"verifier", pr.Verifier, false, false},
		{"stt", pr.STT, true, true},
		{"translate", pr.Translate, true, true},
		{"tts", pr.TTS, true, true},
	} {
		prefix := "providers." + e.kind
		if e.entry.Name == "" {
			if e.required {
				add("%s.name is required", prefix)
			}
			continue
		}
		validateProviderName(e.kind, e.entry.Name)
		if len(e.entry.Fallbacks) > 0 && !e.fallbacks {
			add("%s.fallbacks is not supported for %s providers", prefix, e.kind)
		}
		for i, fb := range e.entry.Fallbacks {
			if fb.Name == "" {
				add("%s.fallbacks[%d].name is required", prefix, i)
				continue
			}
			if len(fb.Fallbacks) > 0 {
				add("%s.fallbacks[%d] must not declare nested fallbacks", prefix, i)
			}
			validateProviderName(e.kind, fb.Name)
		}
	}
	if pr.Audio.Name == "file" && pr.Audio.OptString("path") == "" {
		add("providers.audio.options.path is required for the file source")
	}

	for i, lp := range cfg.Bootstrap.LibraryPaths {
		if lp == "" {
			add("bootstrap.library_paths[%d] is empty", i)
		}
	}
	if cfg.Bootstrap.RepairSource && len(cfg.Bootstrap.SourceKeywords) == 0 {
		add("bootstrap.source_keywords must not be empty when repair_source is set")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is not a built-in of kind.
func validateProviderName(kind, name string) {
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a custom provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
