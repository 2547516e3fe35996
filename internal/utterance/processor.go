// Package utterance turns a closed speech segment into spoken English.
//
// A [Processor] runs one segment through a fixed chain: optional clip-level
// voice verification, transcription, a minimum-length check, the loop
// detector, the hallucination denylist, translation, and speech synthesis.
// Every segment ends in exactly one [Outcome]. Failures of any provider are
// contained in the [Result]; they never escape Process.
package utterance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcoronado1982/real-time-translator/internal/observe"
	"github.com/jcoronado1982/real-time-translator/internal/segment"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/stt"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/translate"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/tts"
	"github.com/jcoronado1982/real-time-translator/pkg/provider/vad"
)

const (
	// DefaultMinTextLength is the shortest transcript, in runes, that is
	// worth translating.
	DefaultMinTextLength = 2

	// DefaultVerifyThreshold is the clip-level speech probability below
	// which a segment is discarded before transcription.
	DefaultVerifyThreshold = 0.6
)

// Outcome classifies how a segment left the processor.
type Outcome string

const (
	// OutcomeSpoken means the translation was synthesised and played.
	OutcomeSpoken Outcome = "spoken"

	// OutcomeRejected means the verifier judged the clip to be noise.
	OutcomeRejected Outcome = "rejected"

	// OutcomeNoise means the transcript was too short to be speech.
	OutcomeNoise Outcome = "noise"

	// OutcomeLooping means the transcriber repeated itself.
	OutcomeLooping Outcome = "looping"

	// OutcomeHallucination means the transcript matched the denylist.
	OutcomeHallucination Outcome = "hallucination"

	// OutcomeSilent means the translator returned nothing to speak.
	OutcomeSilent Outcome = "silent"

	// OutcomeSpeakFailed means the translation was produced but synthesis
	// or playback failed.
	OutcomeSpeakFailed Outcome = "speak_failed"

	// OutcomeFailed means transcription or translation failed, or a
	// provider panicked.
	OutcomeFailed Outcome = "failed"
)

// Result describes one processed segment.
type Result struct {
	// Seq numbers results from 0 in processing order.
	Seq uint64

	// SessionID is taken from the context passed to Process.
	SessionID string

	Outcome     Outcome
	Transcript  string
	Language    string
	Translation string

	// Matched is the denylist phrase for OutcomeHallucination.
	Matched string

	// Probability is the verifier score, or -1 when no verifier ran.
	Probability float64

	// Audio is the length of the segment.
	Audio time.Duration

	// Elapsed is the wall-clock processing time.
	Elapsed time.Duration

	// At is when processing finished.
	At time.Time

	// Err is set for OutcomeFailed and OutcomeSpeakFailed.
	Err error
}

// Sink receives every [Result]. Publish is called on the processing
// goroutine and must not block.
type Sink interface {
	Publish(r Result)
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(r Result)

// Publish calls f(r).
func (f SinkFunc) Publish(r Result) { f(r) }

// Config holds the filter settings of a [Processor].
type Config struct {
	// MinTextLength is the minimum transcript length in runes after
	// trimming. Default: [DefaultMinTextLength].
	MinTextLength int

	// VerifyThreshold applies when Deps.Verifier is set. Default:
	// [DefaultVerifyThreshold].
	VerifyThreshold float64
}

// Deps are the providers a [Processor] drives.
type Deps struct {
	Transcriber stt.Transcriber      // required
	Translator  translate.Translator // required
	Synthesizer tts.Synthesizer      // required

	// Verifier, when set, scores each whole segment before transcription.
	Verifier vad.Detector

	// Denylist defaults to NewDenylist(nil).
	Denylist *Denylist
}

// ProviderNames label provider metrics. Empty names are reported as
// "unknown".
type ProviderNames struct {
	STT       string
	Translate string
	TTS       string
}

// Option configures a [Processor].
type Option func(*Processor)

// WithMetrics records into m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithSinks adds result subscribers.
func WithSinks(sinks ...Sink) Option {
	return func(p *Processor) { p.sinks = append(p.sinks, sinks...) }
}

// WithProviderNames sets the provider labels used in metrics.
func WithProviderNames(n ProviderNames) Option {
	return func(p *Processor) { p.names = n }
}

// Processor runs segments through the utterance chain. Process is meant to
// be called from a single goroutine; results are numbered in call order.
type Processor struct {
	cfg     Config
	deps    Deps
	metrics *observe.Metrics
	sinks   []Sink
	names   ProviderNames
	seq     atomic.Uint64
}

// New validates deps and returns a processor.
func New(cfg Config, deps Deps, opts ...Option) (*Processor, error) {
	var errs []error
	if deps.Transcriber == nil {
		errs = append(errs, errors.New("transcriber is required"))
	}
	if deps.Translator == nil {
		errs = append(errs, errors.New("translator is required"))
	}
	if deps.Synthesizer == nil {
		errs = append(errs, errors.New("synthesizer is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("utterance: new processor: %w", err)
	}

	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = DefaultMinTextLength
	}
	if cfg.VerifyThreshold <= 0 || cfg.VerifyThreshold > 1 {
		cfg.VerifyThreshold = DefaultVerifyThreshold
	}
	if deps.Denylist == nil {
		deps.Denylist = NewDenylist(nil)
	}

	p := &Processor{cfg: cfg, deps: deps}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	p.names.STT = orUnknown(p.names.STT)
	p.names.Translate = orUnknown(p.names.Translate)
	p.names.TTS = orUnknown(p.names.TTS)
	return p, nil
}

// Process runs seg through the chain and returns its result. It never
// panics and never returns an error; failures are reported in the result.
func (p *Processor) Process(ctx context.Context, seg segment.Segment) Result {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "utterance.process",
		trace.WithAttributes(
			attribute.Int("frames", seg.Len()),
			attribute.Float64("audio_seconds", seg.Duration().Seconds()),
			attribute.String("reason", string(seg.Reason)),
		),
	)
	defer span.End()

	res := p.run(ctx, seg)
	res.Seq = p.seq.Add(1) - 1
	res.SessionID = observe.SessionID(ctx)
	res.Audio = seg.Duration()
	res.At = time.Now()
	res.Elapsed = res.At.Sub(start)

	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	if res.Err != nil {
		span.RecordError(res.Err)
		if res.Outcome == OutcomeFailed {
			span.SetStatus(codes.Error, res.Err.Error())
		}
	}
	p.metrics.RecordUtterance(ctx, string(res.Outcome), res.Elapsed.Seconds())
	p.log(ctx, res)

	for _, s := range p.sinks {
		s.Publish(res)
	}
	return res
}

// run executes the chain. A panic in any provider becomes OutcomeFailed.
func (p *Processor) run(ctx context.Context, seg segment.Segment) (res Result) {
	res.Probability = -1
	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("utterance: provider panicked: %v", r)
		}
	}()

	samples := seg.Samples()

	if v := p.deps.Verifier; v != nil {
		prob, err := v.Probability(samples)
		if err != nil {
			// An unavailable verifier must not silence the pipeline.
			observe.Logger(ctx).Warn("voice verification failed; keeping segment", "err", err)
		} else {
			res.Probability = prob
			if prob < p.cfg.VerifyThreshold {
				res.Outcome = OutcomeRejected
				return res
			}
		}
	}

	tr, err := p.transcribe(ctx, samples)
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	res.Transcript = strings.TrimSpace(tr.Text)
	res.Language = tr.Language

	if utf8.RuneCountInString(res.Transcript) < p.cfg.MinTextLength {
		res.Outcome = OutcomeNoise
		return res
	}
	if IsLooping(res.Transcript) {
		res.Outcome = OutcomeLooping
		return res
	}
	if phrase, ok := p.deps.Denylist.Match(res.Transcript); ok {
		res.Outcome, res.Matched = OutcomeHallucination, phrase
		return res
	}

	translation, err := p.translate(ctx, res.Transcript)
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	res.Translation = strings.TrimSpace(translation)
	if res.Translation == "" {
		res.Outcome = OutcomeSilent
		return res
	}

	if err := p.speak(ctx, res.Translation); err != nil {
		res.Outcome, res.Err = OutcomeSpeakFailed, err
		return res
	}
	res.Outcome = OutcomeSpoken
	return res
}

func (p *Processor) transcribe(ctx context.Context, samples []float32) (stt.Result, error) {
	ctx, span := observe.StartSpan(ctx, "stt.transcribe")
	defer span.End()
	start := time.Now()

	r, err := p.deps.Transcriber.Transcribe(ctx, samples)
	p.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.providerFailed(ctx, span, p.names.STT, "stt", err)
		return stt.Result{}, fmt.Errorf("utterance: transcribe: %w", err)
	}
	p.metrics.RecordProviderRequest(ctx, p.names.STT, "stt", "ok")
	return r, nil
}

func (p *Processor) translate(ctx context.Context, text string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "translate")
	defer span.End()
	start := time.Now()

	out, err := p.deps.Translator.Translate(ctx, text)
	p.metrics.TranslateDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.providerFailed(ctx, span, p.names.Translate, "translate", err)
		return "", fmt.Errorf("utterance: translate: %w", err)
	}
	p.metrics.RecordProviderRequest(ctx, p.names.Translate, "translate", "ok")
	return out, nil
}

func (p *Processor) speak(ctx context.Context, text string) error {
	ctx, span := observe.StartSpan(ctx, "tts.speak")
	defer span.End()
	start := time.Now()

	err := p.deps.Synthesizer.Speak(ctx, text)
	p.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.providerFailed(ctx, span, p.names.TTS, "tts", err)
		return fmt.Errorf("utterance: speak: %w", err)
	}
	p.metrics.RecordProviderRequest(ctx, p.names.TTS, "tts", "ok")
	return nil
}

func (p *Processor) providerFailed(ctx context.Context, span trace.Span, name, kind string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.metrics.RecordProviderRequest(ctx, name, kind, "error")
	p.metrics.RecordProviderError(ctx, name, kind)
}

func (p *Processor) log(ctx context.Context, r Result) {
	l := observe.Logger(ctx).With("seq", r.Seq, "audio", r.Audio)
	switch r.Outcome {
	case OutcomeSpoken:
		l.Info("utterance translated",
			"transcript", r.Transcript,
			"translation", r.Translation,
			"language", r.Language,
			"elapsed", r.Elapsed,
		)
	case OutcomeRejected:
		l.Debug("segment rejected as noise", "probability", r.Probability)
	case OutcomeNoise:
		l.Debug("transcript too short; ignoring", "transcript", r.Transcript)
	case OutcomeLooping:
		l.Warn("transcriber loop detected; dropping", "transcript", preview(r.Transcript))
	case OutcomeHallucination:
		l.Warn("hallucination blocked", "transcript", r.Transcript, "phrase", r.Matched)
	case OutcomeSilent:
		l.Info("translation empty; nothing to speak", "transcript", r.Transcript)
	case OutcomeSpeakFailed:
		l.Warn("speech output failed",
			"transcript", r.Transcript,
			"translation", r.Translation,
			"err", r.Err,
		)
	case OutcomeFailed:
		l.Error("utterance failed", "transcript", r.Transcript, "err", r.Err)
	}
}

// preview shortens long looping transcripts for the log.
func preview(s string) string {
	const n = 30
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
