// Command translator listens to Spanish speech on a microphone (or a WAV
// file) and speaks the English translation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jcoronado1982/real-time-translator/internal/app"
	"github.com/jcoronado1982/real-time-translator/internal/bootstrap"
	"github.com/jcoronado1982/real-time-translator/internal/config"
	"github.com/jcoronado1982/real-time-translator/internal/observe"
	"github.com/jcoronado1982/real-time-translator/internal/utterance"
	"github.com/jcoronado1982/real-time-translator/pkg/audio/portaudio"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	duration := flag.Duration("duration", 0, "stop after this long (overrides session.run_duration; 0 keeps the config value)")
	input := flag.String("input", "", "translate a 16-bit PCM WAV file instead of the microphone")
	listDevices := flag.Bool("list-devices", false, "list audio devices and exit")
	flag.Parse()

	if *listDevices {
		return printDevices()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "translator: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "translator: %v\n", err)
		}
		return 1
	}
	if *duration > 0 {
		cfg.Session.RunDuration = *duration
	}
	if *input != "" {
		cfg.Providers.Audio = config.ProviderEntry{
			Name:    "file",
			Options: map[string]any{"path": *input},
		}
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	// Native libraries are resolved at process start, so this must run
	// before any provider is constructed.
	if err := bootstrap.EnsureLibraryPath(cfg.Bootstrap.LibraryPaths); err != nil {
		slog.Error("failed to set library path", "err", err)
		return 1
	}

	slog.Info("translator starting",
		"config", *configPath,
		"audio", cfg.Providers.Audio.Name,
		"stt", cfg.Providers.STT.Name,
		"translate", cfg.Providers.Translate.Name,
		"tts", cfg.Providers.TTS.Name,
		"listen_addr", cfg.Server.ListenAddr,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := telemetry.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	b, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	opts := []app.Option{
		app.WithMetrics(telemetry.Metrics),
		app.WithMetricsHandler(telemetry.Handler()),
		app.WithSinks(utterance.SinkFunc(printCaption)),
	}
	for _, c := range b.closers {
		opts = append(opts, app.WithCloser(c))
	}
	if cfg.Bootstrap.RepairSource {
		pulse := bootstrap.NewPulse()
		keywords := cfg.Bootstrap.SourceKeywords
		opts = append(opts, app.WithRepair(func(ctx context.Context) error {
			_, err := pulse.RepairDefaultSource(ctx, keywords)
			return err
		}))
	}

	application, err := app.New(cfg, b.providers, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		for _, c := range b.closers {
			_ = c()
		}
		return 1
	}

	code := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	slog.Info("goodbye")
	return code
}

// printCaption writes each spoken translation to stdout, one line per
// utterance.
func printCaption(r utterance.Result) {
	if r.Outcome != utterance.OutcomeSpoken && r.Outcome != utterance.OutcomeSpeakFailed {
		return
	}
	fmt.Printf("[es] %s\n[en] %s\n", r.Transcript, r.Translation)
}

func printDevices() int {
	devices, err := portaudio.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "translator: list devices: %v\n", err)
		return 1
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tHOST API\tIN\tOUT\tRATE\tDEFAULT")
	for _, d := range devices {
		def := ""
		switch {
		case d.DefaultInput && d.DefaultOutput:
			def = "in/out"
		case d.DefaultInput:
			def = "in"
		case d.DefaultOutput:
			def = "out"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.0f\t%s\n",
			d.Name, d.HostAPI, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, def)
	}
	if err := w.Flush(); err != nil {
		return 1
	}
	return 0
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
