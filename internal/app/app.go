// Package app wires the translator's subsystems into a running application.
//
// New connects the providers to the utterance processor, the caption hub and
// the session manager. Run captures and translates until the session ends
// while serving the optional HTTP surface, and Shutdown tears everything
// down in order.
//
// Tests inject doubles through [Providers] and the functional options.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jcoronado1982/real-time-translator/internal/captions"
	"github.com/jcoronado1982/real-time-translator/internal/config"
	"github.com/jcoronado1982/real-time-translator/internal/health"
	"github.com/jcoronado1982/real-time-translator/internal/observe"
	"github.com/jcoronado1982/real-time-translator/internal/session"
	"github.com/jcoronado1982/real-time-translator/internal/utterance"
	"github.com/jcoronado1982/real-time-translator/pkg/audio"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/stt"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/translate"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/vad"
)

const (
	readHeaderTimeout = 5 * time.Second
	serverStopTimeout = 5 * time.Second
)

// Providers holds one value per pipeline stage. Populated by main via the
// config registry; Verifier is optional. NewSource, when set, builds the
// capture source of each session after the first.
type Providers struct {
	Source      audio.Source
	NewSource   func() (audio.Source, error)
	Detector    vad.Detector
	Verifier    vad.Detector
	Transcriber stt.Transcriber
	Translator  translate.Translator
	Synthesizer tts.Synthesizer

	// Names label provider metrics.
	Names utterance.ProviderNames
}

func (p *Providers) validate() error {
	if p == nil {
		return errors.New("providers are required")
	}
	var errs []error
	if p.Source == nil && p.NewSource == nil {
		errs = append(errs, errors.New("audio source is required"))
	}
	if p.Detector == nil {
		errs = append(errs, errors.New("speech detector is required"))
	}
	if p.Transcriber == nil {
		errs = append(errs, errors.New("transcriber is required"))
	}
	if p.Translator == nil {
		errs = append(errs, errors.New("translator is required"))
	}
	if p.Synthesizer == nil {
		errs = append(errs, errors.New("synthesizer is required"))
	}
	return errors.Join(errs...)
}

// App owns every subsystem's lifetime.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics        *observe.Metrics
	metricsHandler http.Handler
	repair         RepairFunc
	listener       net.Listener
	sinks          []utterance.Sink

	processor *utterance.Processor
	hub       *captions.Hub
	sessions  *SessionManager
	server    *http.Server

	// closers run in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics records into m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on /metrics, typically
// [observe.Telemetry.Handler].
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithRepair runs fn and retries once when the capture device cannot be
// opened.
func WithRepair(fn RepairFunc) Option {
	return func(a *App) { a.repair = fn }
}

// WithListener serves HTTP on ln instead of listening on
// server.listen_addr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// WithSinks adds result subscribers next to the caption hub.
func WithSinks(sinks ...utterance.Sink) Option {
	return func(a *App) { a.sinks = append(a.sinks, sinks...) }
}

// WithCloser registers fn to run during Shutdown, after the session has
// stopped. Used for providers holding native resources.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// New wires the providers into a ready application. Nothing is started.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if err := providers.validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.hub = captions.NewHub(
		captions.WithOriginPatterns(cfg.Server.CaptionOrigins...),
		captions.WithMetrics(a.metrics),
	)

	var err error
	a.processor, err = utterance.New(
		utterance.Config{
			MinTextLength:   cfg.Filters.MinTextLength,
			VerifyThreshold: cfg.Filters.VerifyThreshold,
		},
		utterance.Deps{
			Transcriber: providers.Transcriber,
			Translator:  providers.Translator,
			Synthesizer: providers.Synthesizer,
			Verifier:    providers.Verifier,
			Denylist: utterance.NewDenylist(cfg.Filters.Denylist,
				utterance.WithFuzzyThreshold(cfg.Filters.FuzzyThreshold)),
		},
		utterance.WithMetrics(a.metrics),
		utterance.WithSinks(append([]utterance.Sink{a.hub}, a.sinks...)...),
		utterance.WithProviderNames(providers.Names),
	)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	p := cfg.Pipeline
	a.sessions = NewSessionManager(SessionManagerConfig{
		Session: session.Config{
			SampleRate:    p.SampleRate,
			Threshold:     p.VADThreshold,
			MaxSilence:    p.MaxSilenceAfterSpeech,
			MaxSegment:    p.MaxSegmentDuration,
			QueueCapacity: p.QueueCapacity,
			QueueTimeout:  p.QueueTimeout,
			JoinTimeout:   cfg.Session.JoinTimeout,
		},
		Deps: session.Deps{
			Source:    providers.Source,
			Detector:  providers.Detector,
			Processor: a.processor,
		},
		Metrics:   a.metrics,
		Repair:    a.repair,
		NewSource: providers.NewSource,
	})

	if a.listener != nil || cfg.Server.ListenAddr != "" {
		a.server = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           a.Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}
	return a, nil
}

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Captions returns the caption hub.
func (a *App) Captions() *captions.Hub { return a.hub }

// Handler returns the HTTP surface: probes, metrics and the caption feed,
// wrapped in request logging, metrics and tracing.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	health.New(
		health.Running("session", a.sessions.IsActive),
	).Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	mux.Handle("GET /captions", a.hub)

	var h http.Handler = observe.Middleware(a.metrics)(mux)
	return otelhttp.NewHandler(h, "translator.http",
		otelhttp.WithFilter(func(r *http.Request) bool {
			switch r.URL.Path {
			case "/healthz", "/readyz", "/metrics":
				return false
			}
			return true
		}),
	)
}

// Run starts a session and blocks until it ends, serving HTTP meanwhile.
// The session ends when ctx is cancelled, session.run_duration elapses, or
// a file source is exhausted. A failure to start the session is returned
// immediately.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if a.server != nil && ln == nil {
		var err error
		if ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr); err != nil {
			return fmt.Errorf("app: listen %s: %w", a.cfg.Server.ListenAddr, err)
		}
	}
	if err := a.sessions.Start(ctx); err != nil {
		if ln != nil {
			_ = ln.Close()
		}
		return err
	}
	info := a.sessions.Info()
	slog.Info("translating; press Ctrl+C to stop", "session_id", info.SessionID)

	g, gctx := errgroup.WithContext(ctx)
	sessionDone := make(chan struct{})

	g.Go(func() error {
		defer close(sessionDone)
		return a.sessions.Run(gctx, a.cfg.Session.RunDuration)
	})

	if a.server != nil {
		slog.Info("http server listening", "addr", ln.Addr().String())

		g.Go(func() error {
			if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-sessionDone
			a.hub.Close()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverStopTimeout)
			defer cancel()
			return a.server.Shutdown(sctx)
		})
	}

	err := g.Wait()
	final := a.sessions.Info()
	slog.Info("session finished",
		"session_id", final.SessionID,
		"frames", final.Stats.Frames,
		"speech_frames", final.Stats.SpeechFrames,
		"segments", final.Stats.Segments,
		"dropped", final.Stats.Dropped,
	)
	return err
}

// Shutdown stops the session, closes subscribers and runs the registered
// closers. If ctx expires, remaining closers are skipped and the context
// error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		if err := a.sessions.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		a.hub.Close()
		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("app: http shutdown: %w", err))
			}
		}
		for i, closer := range a.closers {
			if err := ctx.Err(); err != nil {
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				errs = append(errs, err)
				return
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return errors.Join(errs...)
}
