package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/core/ports"
	"github.com/samirrijal/pedalnav/internal/pkg/metrics"
)

// SessionManager is the registry of live sessions.
type SessionManager struct {
	cfg  SessionConfig
	deps SessionDeps

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewSessionManager creates an empty registry. Sessions run until removed or
// until Shutdown.
func NewSessionManager(cfg SessionConfig, deps SessionDeps) *SessionManager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		cfg:      cfg,
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new idle session.
func (m *SessionManager) Create() *Session {
	s := NewSession(uuid.NewString(), m.cfg, m.deps)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := s.Run(m.ctx); err != nil && m.ctx.Err() == nil {
			m.deps.Logger.Error("session loop exited", "session_id", s.ID(), "error", err)
		}
	}()

	if m.deps.Locations != nil {
		m.follow(s, m.deps.Locations(s.ID()))
	}
	return s
}

// follow feeds src into s until the session or the manager stops.
func (m *SessionManager) follow(s *Session, src ports.LocationSource) {
	ctx, cancel := context.WithCancel(m.ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		go func() {
			select {
			case <-s.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
		err := s.FollowLocation(ctx, src)
		if err != nil && ctx.Err() == nil && !errors.Is(err, domain.ErrSessionClosed) {
			m.deps.Logger.Warn("location source stopped", "session_id", s.ID(), "error", err)
		}
	}()
}

// Get looks up a live session.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSession, id)
	}
	return s, nil
}

// Remove closes a session and drops it from the registry.
func (m *SessionManager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSession, id)
	}

	s.Close()
	metrics.ActiveSessions.Dec()
	return nil
}

// IDs lists the live session ids in sorted order.
func (m *SessionManager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops every session and waits for their loops to exit or ctx to
// expire.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	n := len(m.sessions)
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	metrics.ActiveSessions.Sub(float64(n))
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
