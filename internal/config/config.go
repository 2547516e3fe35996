// Package config provides the configuration schema, loader, and provider
// registry for the real-time translator.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Filters   FiltersConfig   `yaml:"filters"`
	Providers ProvidersConfig `yaml:"providers"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// ServerConfig holds the optional HTTP surface and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for health, metrics and the caption
	// feed (e.g., ":9090"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// CaptionOrigins lists extra Origin host patterns allowed to open the
	// caption WebSocket from a browser.
	CaptionOrigins []string `yaml:"caption_origins"`
}

// SessionConfig controls the lifetime of a translation session.
type SessionConfig struct {
	// RunDuration stops the session after this long. Zero runs until the
	// process is interrupted.
	RunDuration time.Duration `yaml:"run_duration"`

	// JoinTimeout bounds how long Stop waits for in-flight processing.
	// Default: 2s.
	JoinTimeout time.Duration `yaml:"join_timeout"`
}

// PipelineConfig is the audio format and segmentation tuning.
type PipelineConfig struct {
	// SampleRate of captured audio in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels requested from the capture device. Multi-channel input is
	// down-mixed to mono. Default: 1.
	Channels int `yaml:"channels"`

	// FrameDuration is the length of one pipeline frame. Default: 30ms.
	FrameDuration time.Duration `yaml:"frame_duration"`

	// VADThreshold is the speech probability at or above which a frame is
	// speech. Default: 0.5.
	VADThreshold float64 `yaml:"vad_threshold"`

	// MaxSilenceAfterSpeech closes a segment. Default: 800ms.
	MaxSilenceAfterSpeech time.Duration `yaml:"max_silence_after_speech"`

	// MaxSegmentDuration force-closes long segments. Zero disables it.
	MaxSegmentDuration time.Duration `yaml:"max_segment_duration"`

	// QueueCapacity is the number of frames buffered between capture and
	// processing. Default: 200.
	QueueCapacity int `yaml:"queue_capacity"`

	// QueueTimeout is how long the processing loop waits for a frame before
	// checking for shutdown. At most 1s. Default: 500ms.
	QueueTimeout time.Duration `yaml:"queue_timeout"`
}

// FiltersConfig tunes the transcript filters.
type FiltersConfig struct {
	// MinTextLength drops transcripts shorter than this many characters.
	// Default: 2.
	MinTextLength int `yaml:"min_text_length"`

	// Denylist replaces the built-in hallucination phrases. Omit the key to
	// keep the defaults; an empty list disables the filter.
	Denylist []string `yaml:"denylist"`

	// FuzzyThreshold enables Jaro-Winkler matching against the denylist.
	// Zero disables it.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// VerifyThreshold is the clip-level speech probability required when a
	// verifier is configured. Default: 0.6.
	VerifyThreshold float64 `yaml:"verify_threshold"`
}

// ProvidersConfig selects the implementation of each pipeline stage by the
// name it is registered under in the [Registry].
type ProvidersConfig struct {
	// Audio is the capture source (portaudio, file).
	Audio ProviderEntry `yaml:"audio"`

	// Output is the playback device for rendered speech (portaudio, aplay).
	Output ProviderEntry `yaml:"output"`

	// VAD scores individual frames.
	VAD ProviderEntry `yaml:"vad"`

	// Verifier optionally re-checks a whole segment before transcription.
	Verifier ProviderEntry `yaml:"verifier"`

	STT       ProviderEntry `yaml:"stt"`
	Translate ProviderEntry `yaml:"translate"`
	TTS       ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g., "whisper", "ollama").
	Name string `yaml:"name"`

	// APIKey authenticates against hosted APIs.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model, or a model file for local providers.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order when this provider fails. Only STT,
	// translate and TTS entries may have fallbacks.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// BootstrapConfig covers host preparation done before capture starts.
type BootstrapConfig struct {
	// LibraryPaths are prepended to LD_LIBRARY_PATH by re-executing the
	// binary once, for shared libraries such as onnxruntime.
	LibraryPaths []string `yaml:"library_paths"`

	// RepairSource switches the PulseAudio default source to a matching
	// device when the microphone cannot be opened, then retries once.
	RepairSource bool `yaml:"repair_source"`

	// SourceKeywords identify the preferred input device.
	SourceKeywords []string `yaml:"source_keywords"`
}
