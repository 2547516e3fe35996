package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/jcoronado1982/real-time-translator/internal/app"
	"github.com/jcoronado1982/real-time-translator/internal/config"
	"github.com/jcoronado1982/real-time-translator/internal/resilience"
	"github.com/jcoronado1982/real-time-translator/internal/utterance"
	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	"github.com/jcoronado1982/real-time-translator/pkg/audio/portaudio"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/stt"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/stt/deepgram"
	sttopenai "github.com/jcoronado1982/real-time-translator/pkg/provider/stt/openai"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/stt/whisper"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/translate"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/translate/anyllm"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/translate/libre"
	translateopenai "github.com/jcoronado1982/real-time-translator/pkg/provider/translate/openai"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts/coqui"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts/elevenlabs"
	ttsopenai "github.com/jcoronado1982/real-time-translator/pkg/provider/tts/openai"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts/piper"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/vad"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/vad/energy"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/vad/silero"
)

// llmTranslators are the any-llm backends usable as translators. "openai"
// is served by the openai-go client instead.
var llmTranslators = []string{
	"anthropic", "gemini", "deepseek", "mistral",
	"groq", "ollama", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Audio ─────────────────────────────────────────────────────────────────

	reg.RegisterSource("portaudio", func(entry config.ProviderEntry, p config.PipelineConfig) (audio.Source, error) {
		return portaudio.New(p.SampleRate, p.Channels, p.FrameDuration,
			portaudio.WithDevice(entry.OptString("device"))), nil
	})

	reg.RegisterSource("file", func(entry config.ProviderEntry, p config.PipelineConfig) (audio.Source, error) {
		tail, err := entry.OptDuration("trailing_silence")
		if err != nil {
			return nil, err
		}
		if tail == 0 {
			// Enough silence to close the last utterance normally.
			tail = p.MaxSilenceAfterSpeech + p.FrameDuration
		}
		realtime, ok := entry.OptBool("realtime")
		if !ok {
			realtime = true
		}
		return audio.NewFileSource(entry.OptString("path"), p.SampleRate, p.FrameDuration,
			audio.WithRealtime(realtime),
			audio.WithTrailingSilence(tail),
		), nil
	})

	reg.RegisterPlayer("portaudio", func(entry config.ProviderEntry) (audio.Player, error) {
		return portaudio.NewPlayer(portaudio.WithDevice(entry.OptString("device"))), nil
	})

	reg.RegisterPlayer("aplay", func(entry config.ProviderEntry) (audio.Player, error) {
		return &audio.CommandPlayer{Binary: entry.OptString("binary")}, nil
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("silero", func(entry config.ProviderEntry, p config.PipelineConfig) (vad.Detector, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path")
		}
		threshold, _ := entry.OptFloat("threshold")
		window, err := entry.OptDuration("context")
		if err != nil {
			return nil, err
		}
		return silero.New(silero.Config{
			ModelPath:  modelPath,
			SampleRate: p.SampleRate,
			Threshold:  threshold,
			Context:    window,
		})
	})

	reg.RegisterVAD("energy", func(entry config.ProviderEntry, _ config.PipelineConfig) (vad.Detector, error) {
		var opts []energy.Option
		floor, okFloor := entry.OptFloat("floor")
		ceiling, okCeiling := entry.OptFloat("ceiling")
		if okFloor && okCeiling {
			opts = append(opts, energy.WithRange(floor, ceiling))
		}
		return energy.New(opts...), nil
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry, p config.PipelineConfig) (stt.Transcriber, error) {
		opts := []deepgram.Option{deepgram.WithSampleRate(p.SampleRate)}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry, p config.PipelineConfig) (stt.Transcriber, error) {
		opts := []whisper.Option{whisper.WithSampleRate(p.SampleRate)}
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry, p config.PipelineConfig) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path")
		}
		opts := []whisper.NativeOption{whisper.WithNativeSampleRate(p.SampleRate)}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if threads, ok := entry.OptInt("threads"); ok && threads > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(threads)))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry, p config.PipelineConfig) (stt.Transcriber, error) {
		opts := []sttopenai.Option{sttopenai.WithSampleRate(p.SampleRate)}
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, sttopenai.WithLanguage(lang))
		}
		if prompt := entry.OptString("prompt"); prompt != "" {
			opts = append(opts, sttopenai.WithPrompt(prompt))
		}
		timeout, err := entry.OptDuration("timeout")
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			opts = append(opts, sttopenai.WithTimeout(timeout))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Translate ─────────────────────────────────────────────────────────────

	reg.RegisterTranslate("libre", func(entry config.ProviderEntry) (translate.Translator, error) {
		src, tgt := languages(entry, "es", "en")
		opts := []libre.Option{libre.WithLanguages(src, tgt)}
		if entry.APIKey != "" {
			opts = append(opts, libre.WithAPIKey(entry.APIKey))
		}
		timeout, err := entry.OptDuration("timeout")
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			opts = append(opts, libre.WithTimeout(timeout))
		}
		return libre.New(entry.BaseURL, opts...)
	})

	reg.RegisterTranslate("openai", func(entry config.ProviderEntry) (translate.Translator, error) {
		src, tgt := languages(entry, "Spanish", "English")
		opts := []translateopenai.Option{translateopenai.WithLanguages(src, tgt)}
		if entry.BaseURL != "" {
			opts = append(opts, translateopenai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptString("organization"); org != "" {
			opts = append(opts, translateopenai.WithOrganization(org))
		}
		timeout, err := entry.OptDuration("timeout")
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			opts = append(opts, translateopenai.WithTimeout(timeout))
		}
		return translateopenai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range llmTranslators {
		reg.RegisterTranslate(providerName, func(entry config.ProviderEntry) (translate.Translator, error) {
			var llmOpts []anyllmlib.Option
			if entry.APIKey != "" {
				llmOpts = append(llmOpts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				llmOpts = append(llmOpts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			src, tgt := languages(entry, "Spanish", "English")
			return anyllm.New(providerName, entry.Model,
				anyllm.WithLanguages(src, tgt),
				anyllm.WithLLMOptions(llmOpts...),
			)
		})
	}

	// ── TTS ───────────────────────────────────────────────────────────────────
	// Every renderer is paired with the configured output player.

	reg.RegisterTTS("piper", func(entry config.ProviderEntry, player audio.Player) (tts.Synthesizer, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path")
		}
		var opts []piper.Option
		if bin := entry.OptString("binary"); bin != "" {
			opts = append(opts, piper.WithBinary(bin))
		}
		if speaker := entry.OptString("speaker"); speaker != "" {
			opts = append(opts, piper.WithSpeaker(speaker))
		}
		if scale, ok := entry.OptFloat("length_scale"); ok {
			opts = append(opts, piper.WithLengthScale(scale))
		}
		if rate, ok := entry.OptInt("sample_rate"); ok {
			opts = append(opts, piper.WithSampleRate(rate))
		}
		timeout, err := entry.OptDuration("timeout")
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			opts = append(opts, piper.WithTimeout(timeout))
		}
		r, err := piper.New(modelPath, opts...)
		if err != nil {
			return nil, err
		}
		return tts.NewSpeaker(r, player), nil
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry, player audio.Player) (tts.Synthesizer, error) {
		var opts []coqui.Option
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if speaker := entry.OptString("speaker"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		if mode := entry.OptString("api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		timeout, err := entry.OptDuration("timeout")
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			opts = append(opts, coqui.WithTimeout(timeout))
		}
		r, err := coqui.New(entry.BaseURL, opts...)
		if err != nil {
			return nil, err
		}
		return tts.NewSpeaker(r, player), nil
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry, player audio.Player) (tts.Synthesizer, error) {
		var opts []ttsopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		if voice := entry.OptString("voice"); voice != "" {
			opts = append(opts, ttsopenai.WithVoice(voice))
		}
		if instr := entry.OptString("instructions"); instr != "" {
			opts = append(opts, ttsopenai.WithInstructions(instr))
		}
		if speed, ok := entry.OptFloat("speed"); ok {
			opts = append(opts, ttsopenai.WithSpeed(speed))
		}
		r, err := ttsopenai.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return tts.NewSpeaker(r, player), nil
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry, player audio.Player) (tts.Synthesizer, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := entry.OptString("output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		r, err := elevenlabs.New(entry.APIKey, entry.OptString("voice_id"), opts...)
		if err != nil {
			return nil, err
		}
		return tts.NewSpeaker(r, player), nil
	})

	for kind := range config.ValidProviderNames {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// languages returns the configured source and target languages, falling
// back to the given defaults.
func languages(entry config.ProviderEntry, defSource, defTarget string) (string, string) {
	src, tgt := entry.OptString("source_language"), entry.OptString("target_language")
	if src == "" {
		src = defSource
	}
	if tgt == "" {
		tgt = defTarget
	}
	return src, tgt
}

// built collects providers plus the cleanup functions of those holding
// native resources.
type built struct {
	providers *app.Providers
	closers   []func() error
}

func (b *built) track(v any) {
	if c, ok := v.(io.Closer); ok {
		b.closers = append(b.closers, c.Close)
	}
}

// buildProviders instantiates every provider named in cfg. STT, translate
// and TTS entries with fallbacks are wrapped in circuit-breaking fallback
// groups.
func buildProviders(cfg *config.Config, reg *config.Registry) (*built, error) {
	b := &built{providers: &app.Providers{}}
	ps, p := b.providers, cfg.Pipeline
	fail := func(kind, name string, err error) error {
		// Release whatever was already opened.
		for _, c := range b.closers {
			_ = c()
		}
		return fmt.Errorf("create %s provider %q: %w", kind, name, err)
	}

	src, err := reg.CreateSource(cfg.Providers.Audio, p)
	if err != nil {
		return nil, fail("audio", cfg.Providers.Audio.Name, err)
	}
	ps.Source = src
	ps.NewSource = func() (audio.Source, error) { return reg.CreateSource(cfg.Providers.Audio, p) }

	det, err := reg.CreateVAD(cfg.Providers.VAD, p)
	if err != nil {
		return nil, fail("vad", cfg.Providers.VAD.Name, err)
	}
	b.track(det)
	ps.Detector = det

	if name := cfg.Providers.Verifier.Name; name != "" {
		v, err := reg.CreateVAD(cfg.Providers.Verifier, p)
		if err != nil {
			return nil, fail("verifier", name, err)
		}
		b.track(v)
		ps.Verifier = v
	}

	ps.Transcriber, err = withFallbacks(b, cfg.Providers.STT,
		func(e config.ProviderEntry) (stt.Transcriber, error) { return reg.CreateSTT(e, p) },
		func(primary stt.Transcriber, name string) (stt.Transcriber, func(string, stt.Transcriber)) {
			f := resilience.NewSTTFallback(primary, name, resilience.FallbackConfig{})
			return f, f.AddFallback
		})
	if err != nil {
		return nil, fail("stt", cfg.Providers.STT.Name, err)
	}

	ps.Translator, err = withFallbacks(b, cfg.Providers.Translate, reg.CreateTranslate,
		func(primary translate.Translator, name string) (translate.Translator, func(string, translate.Translator)) {
			f := resilience.NewTranslateFallback(primary, name, resilience.FallbackConfig{})
			return f, f.AddFallback
		})
	if err != nil {
		return nil, fail("translate", cfg.Providers.Translate.Name, err)
	}

	player, err := reg.CreatePlayer(cfg.Providers.Output)
	if err != nil {
		return nil, fail("output", cfg.Providers.Output.Name, err)
	}
	ps.Synthesizer, err = withFallbacks(b, cfg.Providers.TTS,
		func(e config.ProviderEntry) (tts.Synthesizer, error) { return reg.CreateTTS(e, player) },
		func(primary tts.Synthesizer, name string) (tts.Synthesizer, func(string, tts.Synthesizer)) {
			f := resilience.NewTTSFallback(primary, name, resilience.FallbackConfig{})
			return f, f.AddFallback
		})
	if err != nil {
		return nil, fail("tts", cfg.Providers.TTS.Name, err)
	}

	ps.Names = utterance.ProviderNames{
		STT:       cfg.Providers.STT.Name,
		Translate: cfg.Providers.Translate.Name,
		TTS:       cfg.Providers.TTS.Name,
	}
	for _, e := range []struct{ kind, name string }{
		{"audio", cfg.Providers.Audio.Name},
		{"output", cfg.Providers.Output.Name},
		{"vad", cfg.Providers.VAD.Name},
		{"stt", cfg.Providers.STT.Name},
		{"translate", cfg.Providers.Translate.Name},
		{"tts", cfg.Providers.TTS.Name},
	} {
		slog.Info("provider created", "kind", e.kind, "name", e.name)
	}
	return b, nil
}

// withFallbacks creates entry and, when it lists fallbacks, wraps it with
// wrap and registers each fallback in order. A fallback that cannot be
// created is skipped with a warning; the primary must succeed.
func withFallbacks[T any](
	b *built,
	entry config.ProviderEntry,
	create func(config.ProviderEntry) (T, error),
	wrap func(primary T, name string) (T, func(string, T)),
) (T, error) {
	primary, err := create(entry)
	if err != nil {
		var zero T
		return zero, err
	}
	b.track(primary)
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	group, add := wrap(primary, entry.Name)
	for _, fb := range entry.Fallbacks {
		v, err := create(fb)
		if err != nil {
			if errors.Is(err, config.ErrProviderNotRegistered) {
				slog.Warn("fallback provider not registered; skipping", "name", fb.Name)
			} else {
				slog.Warn("fallback provider failed to initialise; skipping", "name", fb.Name, "err", err)
			}
			continue
		}
		b.track(v)
		add(fb.Name, v)
		slog.Info("fallback provider added", "primary", entry.Name, "name", fb.Name)
	}
	return group, nil
}
