package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/gestureboard/internal/action"
	"github.com/ayusman/gestureboard/internal/capture"
	"github.com/ayusman/gestureboard/internal/detector"
	"github.com/ayusman/gestureboard/internal/log"
	"github.com/ayusman/gestureboard/internal/pipeline"
	"github.com/ayusman/gestureboard/internal/store"
)

// DefaultID names the session served on /ws.
const DefaultID = "default"

// Options configures every session of a manager.
type Options struct {
	Pipeline         pipeline.Config
	ReselectOnReject bool

	// NewDetector builds one detector per session.
	NewDetector func() (detector.Detector, error)

	// NewCamera builds the camera a session opens on start_camera. Nil
	// disables camera input.
	NewCamera func() capture.Camera
	Source    capture.SourceConfig

	// FrameEvery broadcasts a preview every n processed frames.
	FrameEvery int

	// IdleTimeout removes sessions without clients or camera. Zero keeps
	// sessions until removed.
	IdleTimeout time.Duration

	// Optional sinks.
	Store     *store.Store
	Publisher Publisher
	Hooks     Dispatcher
	OnAction  func(session string, rec action.Record)
}

// Manager owns the sessions of a server.
type Manager struct {
	opts    Options
	enabled atomic.Bool

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a manager with gesture processing enabled.
func NewManager(opts Options) *Manager {
	if opts.NewDetector == nil {
		opts.NewDetector = func() (detector.Detector, error) {
			return detector.New(detector.DefaultConfig())
		}
	}
	if opts.FrameEvery <= 0 {
		opts.FrameEvery = 3
	}
	m := &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
	m.enabled.Store(true)
	return m
}

// SetEnabled pauses or resumes gesture processing in every session. Paused
// sessions keep consuming frames and drop them.
func (m *Manager) SetEnabled(enabled bool) {
	if m.enabled.Swap(enabled) != enabled {
		log.Info("gesture processing toggled", "enabled", enabled)
	}
}

// Enabled reports whether gesture processing is enabled.
func (m *Manager) Enabled() bool {
	return m.enabled.Load()
}

// Create starts a new session with a random id.
func (m *Manager) Create() (*Session, error) {
	return m.create(uuid.NewString())
}

// Default returns the shared session, creating it on first use.
func (m *Manager) Default() (*Session, error) {
	if s, ok := m.Get(DefaultID); ok {
		return s, nil
	}
	s, err := m.create(DefaultID)
	if errors.Is(err, errExists) {
		if s, ok := m.Get(DefaultID); ok {
			return s, nil
		}
	}
	return s, err
}

var (
	errExists = errors.New("session already exists")
	errClosed = errors.New("session manager closed")
)

func (m *Manager) create(id string) (*Session, error) {
	m.mu.RLock()
	_, exists := m.sessions[id]
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, errClosed
	}
	if exists {
		return nil, errExists
	}

	det, err := m.opts.NewDetector()
	if err != nil {
		return nil, err
	}
	s, err := newSession(id, &m.opts, det, m.Enabled)
	if err != nil {
		det.Close()
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.Close()
		return nil, errClosed
	}
	if _, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		s.Close()
		return nil, errExists
	}
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	log.Info("session created", "session", id, "detector", det.Name(), "game", s.GameID(), "sessions", n)
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns every session ordered by creation time.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Len returns the number of sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Remove closes and forgets the session with id.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	log.Info("session removed", "session", id)
	return s.Close()
}

// Cleanup removes sessions that have had no clients and no camera for
// longer than the idle timeout. The default session is kept.
func (m *Manager) Cleanup(now time.Time) []string {
	if m.opts.IdleTimeout <= 0 {
		return nil
	}

	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if id == DefaultID || s.ClientCount() > 0 || s.CameraActive() {
			continue
		}
		if now.Sub(s.idleSince()) > m.opts.IdleTimeout {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		if err := m.Remove(id); err != nil && !errors.Is(err, ErrNotFound) {
			log.Warn("failed to close idle session", "session", id, "error", err)
		}
	}
	return idle
}

// Run removes idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.opts.IdleTimeout <= 0 {
		<-ctx.Done()
		return
	}

	interval := m.opts.IdleTimeout / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := m.Cleanup(now); len(removed) > 0 {
				log.Info("idle sessions removed", "count", len(removed))
			}
		}
	}
}

// Close closes every session. Later Create calls fail.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
