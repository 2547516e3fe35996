package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcoronado1982/real-time-translator/internal/observe"
	"github.com/jcoronado1982/real-time-translator/internal/session"
	"github.com/jcoronado1982/real-time-translator/pkg/audio"
)

// ErrSessionActive is returned by [SessionManager.Start] while a session is
// already running.
var ErrSessionActive = errors.New("app: a session is already active")

// ErrNoSession is returned by [SessionManager.Run] when no session has been
// started.
var ErrNoSession = errors.New("app: no session started")

// SessionInfo describes the current or most recent session.
type SessionInfo struct {
	SessionID string
	StartedAt time.Time
	EndedAt   time.Time
	Active    bool
	Stats     session.Stats
}

// RepairFunc tries to make the capture device usable again after a start
// failed with [audio.ErrDeviceUnavailable].
type RepairFunc func(ctx context.Context) error

// SessionManagerConfig holds the dependencies of a [SessionManager].
type SessionManagerConfig struct {
	Session   session.Config
	Deps      session.Deps
	Metrics   *observe.Metrics
	Repair    RepairFunc
	NewID     func() string
	OnStarted func(SessionInfo)

	// NewSource, when set, builds the capture source for every session
	// after the first one started on Deps.Source (or for all of them when
	// Deps.Source is nil). Finite sources such as files cannot be started
	// twice; without NewSource the manager reuses Deps.Source.
	NewSource func() (audio.Source, error)
}

// SessionManager owns the session controller. A controller is single-use,
// so each Start builds a new one with a fresh session ID. Only one session
// is active at a time. All methods are safe for concurrent use.
type SessionManager struct {
	cfg SessionManagerConfig

	mu         sync.Mutex
	ctrl       *session.Controller
	info       SessionInfo
	sourceUsed bool
}

// NewSessionManager returns a manager with no session.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &SessionManager{cfg: cfg}
}

// Start creates and starts a session. If the device is unavailable and a
// repair function is configured, the repair runs and the start is retried
// exactly once.
func (sm *SessionManager) Start(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.ctrl != nil && sm.info.Active {
		return ErrSessionActive
	}

	id := sm.cfg.NewID()
	opts := []session.Option{session.WithID(id)}
	if sm.cfg.Metrics != nil {
		opts = append(opts, session.WithMetrics(sm.cfg.Metrics))
	}
	deps := sm.cfg.Deps
	fresh := sm.cfg.NewSource != nil && (sm.sourceUsed || deps.Source == nil)
	if fresh {
		src, err := sm.cfg.NewSource()
		if err != nil {
			return fmt.Errorf("app: create source: %w", err)
		}
		deps.Source = src
	}
	ctrl, err := session.New(sm.cfg.Session, deps, opts...)
	if err != nil {
		if fresh {
			closeSource(deps.Source)
		}
		return fmt.Errorf("app: %w", err)
	}

	err = ctrl.Start(ctx)
	if err != nil && errors.Is(err, audio.ErrDeviceUnavailable) && sm.cfg.Repair != nil {
		slog.Warn("capture device unavailable; attempting repair", "session_id", id, "err", err)
		if rerr := sm.cfg.Repair(ctx); rerr != nil {
			err = errors.Join(err, fmt.Errorf("repair: %w", rerr))
		} else {
			err = ctrl.Start(ctx)
		}
	}
	if err != nil {
		if fresh {
			closeSource(deps.Source)
		}
		return fmt.Errorf("app: start session: %w", err)
	}

	sm.ctrl = ctrl
	sm.sourceUsed = true
	sm.info = SessionInfo{SessionID: id, StartedAt: time.Now(), Active: true}
	if sm.cfg.OnStarted != nil {
		sm.cfg.OnStarted(sm.info)
	}
	return nil
}

// Run blocks until the current session ends: ctx is cancelled, d elapses
// (when positive), or a file source runs out. The session is stopped and
// flushed before Run returns.
func (sm *SessionManager) Run(ctx context.Context, d time.Duration) error {
	sm.mu.Lock()
	ctrl := sm.ctrl
	sm.mu.Unlock()
	if ctrl == nil {
		return ErrNoSession
	}
	err := ctrl.Run(ctx, d)
	sm.finish(ctrl)
	return err
}

// Stop stops the current session, if any. It is idempotent.
func (sm *SessionManager) Stop(ctx context.Context) error {
	sm.mu.Lock()
	ctrl := sm.ctrl
	sm.mu.Unlock()
	if ctrl == nil {
		return nil
	}
	err := ctrl.Stop(ctx)
	sm.finish(ctrl)
	return err
}

func (sm *SessionManager) finish(ctrl *session.Controller) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.ctrl != ctrl || !sm.info.Active {
		return
	}
	sm.info.Active = false
	sm.info.EndedAt = time.Now()
	sm.info.Stats = ctrl.Stats()
}

func closeSource(src audio.Source) {
	if c, ok := src.(io.Closer); ok {
		_ = c.Close()
	}
}

// IsActive reports whether a session is capturing audio.
func (sm *SessionManager) IsActive() bool {
	sm.mu.Lock()
	ctrl := sm.ctrl
	sm.mu.Unlock()
	return ctrl != nil && ctrl.Running()
}

// Info returns a snapshot of the current or last session.
func (sm *SessionManager) Info() SessionInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	info := sm.info
	if sm.ctrl != nil && info.Active {
		info.Stats = sm.ctrl.Stats()
	}
	return info
}
