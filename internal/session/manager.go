package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long an untouched session lives.
	DefaultTTL = 30 * time.Minute

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = 30 * time.Second

	expireFlushTimeout = 5 * time.Second
)

// Manager holds live sessions by id and expires idle ones.
type Manager struct {
	deps Deps
	ttl  time.Duration
	log  *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewManager(deps Deps, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	m := &Manager{
		deps:        deps,
		ttl:         ttl,
		log:         log,
		sessions:    make(map[string]*Session),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch(m.now())
	}
	return s, ok
}

// GetOrCreate returns the session for id, or a new session with a fresh id
// when id is empty or unknown.
func (m *Manager) GetOrCreate(id string) (*Session, bool) {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s, false
		}
	}

	s := New(uuid.NewString(), m.deps)
	s.touch(m.now())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.log.Debug("session created", zap.String("session_id", s.ID))
	return s, true
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.expireSessions()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) expireSessions() {
	cutoff := m.now().Add(-m.ttl)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		ctx, cancel := context.WithTimeout(context.Background(), expireFlushTimeout)
		if err := s.Flush(ctx); err != nil {
			m.log.Warn("flush on session expiry failed", zap.String("session_id", s.ID), zap.Error(err))
		}
		cancel()
		s.Close()
	}
	if len(expired) > 0 {
		m.log.Info("expired idle sessions", zap.Int("count", len(expired)))
	}
}

// Close stops the cleanup loop and flushes every session's pending writes.
func (m *Manager) Close(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCleanup) })
	m.wg.Wait()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
		s.Close()
	}
	return errors.Join(errs...)
}
