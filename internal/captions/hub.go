// Package captions broadcasts processed utterances to WebSocket subscribers
// as a live caption feed.
//
// The [Hub] is an [utterance.Sink]: the processing goroutine publishes every
// result and the hub fans it out without blocking. A subscriber that cannot
// keep up is disconnected instead of slowing the pipeline.
package captions

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/jcoronado1982/real-time-translator/internal/observe"
	"github.com/jcoronado1982/real-time-translator/internal/utterance"
)

const (
	defaultBuffer       = 16
	defaultWriteTimeout = 5 * time.Second
)

var (
	_ utterance.Sink = (*Hub)(nil)
	_ http.Handler   = (*Hub)(nil)
)

// Caption is the JSON message sent for each utterance.
type Caption struct {
	SessionID    string    `json:"session_id"`
	Seq          uint64    `json:"seq"`
	Outcome      string    `json:"outcome"`
	Transcript   string    `json:"transcript,omitempty"`
	Translation  string    `json:"translation,omitempty"`
	Language     string    `json:"language,omitempty"`
	AudioSeconds float64   `json:"audio_seconds"`
	At           time.Time `json:"at"`
}

// FromResult converts a processor result to its wire form.
func FromResult(r utterance.Result) Caption {
	return Caption{
		SessionID:    r.SessionID,
		Seq:          r.Seq,
		Outcome:      string(r.Outcome),
		Transcript:   r.Transcript,
		Translation:  r.Translation,
		Language:     r.Language,
		AudioSeconds: r.Audio.Seconds(),
		At:           r.At.UTC(),
	}
}

// Option configures a [Hub].
type Option func(*Hub)

// WithBuffer sets how many captions may wait for one subscriber before it is
// considered too slow. Default 16.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithWriteTimeout bounds each WebSocket write. Default 5s.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithOriginPatterns allows cross-origin browser clients whose Origin host
// matches one of patterns (see [websocket.AcceptOptions]).
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = patterns }
}

// WithOutcomes restricts the feed to the given outcomes. By default every
// outcome is sent.
func WithOutcomes(outcomes ...utterance.Outcome) Option {
	return func(h *Hub) {
		h.outcomes = make(map[utterance.Outcome]bool, len(outcomes))
		for _, o := range outcomes {
			h.outcomes[o] = true
		}
	}
}

// WithMetrics records subscriber counts into m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

type subscriber struct {
	msgs      chan []byte
	closeSlow func()
}

// Hub fans captions out to WebSocket subscribers. It is safe for concurrent
// use.
type Hub struct {
	buffer       int
	writeTimeout time.Duration
	origins      []string
	outcomes     map[utterance.Outcome]bool
	metrics      *observe.Metrics

	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	closed  bool
	done    chan struct{}
	evicted uint64
}

// NewHub returns a hub with no subscribers.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		buffer:       defaultBuffer,
		writeTimeout: defaultWriteTimeout,
		subs:         make(map[*subscriber]struct{}),
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// Publish sends r to every subscriber without blocking.
func (h *Hub) Publish(r utterance.Result) {
	if h.outcomes != nil && !h.outcomes[r.Outcome] {
		return
	}
	data, err := json.Marshal(FromResult(r))
	if err != nil {
		slog.Warn("captions: encode caption", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.msgs <- data:
		default:
			delete(h.subs, s)
			h.evicted++
			go s.closeSlow()
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Evicted returns how many subscribers were dropped for being too slow.
func (h *Hub) Evicted() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.evicted
}

// Close disconnects every subscriber and rejects new ones. It is idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
}

// ServeHTTP upgrades the request to a WebSocket and streams captions until
// the client goes away, falls behind, or the hub is closed. Messages from
// the client are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("captions: websocket accept failed", "err", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.CloseNow()

	s := &subscriber{
		msgs: make(chan []byte, h.buffer),
		closeSlow: func() {
			conn.Close(websocket.StatusPolicyViolation, "connection too slow to keep up with captions")
		},
	}
	if !h.add(s) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(s)

	ctx := conn.CloseRead(r.Context())
	slog.Debug("captions: subscriber connected", "remote", r.RemoteAddr)
	for {
		select {
		case msg := <-s.msgs:
			wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				slog.Debug("captions: subscriber write failed", "err", err, "remote", r.RemoteAddr)
				return
			}
		case <-ctx.Done():
			return
		case <-h.done:
			h.drain(ctx, conn, s)
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
	}
}

// drain writes captions queued before the hub closed.
func (h *Hub) drain(ctx context.Context, conn *websocket.Conn, s *subscriber) {
	for {
		select {
		case msg := <-s.msgs:
			wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		default:
			return
		}
	}
}

func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[s] = struct{}{}
	h.metrics.CaptionClients.Add(context.Background(), 1)
	return true
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s)
	h.metrics.CaptionClients.Add(context.Background(), -1)
}
