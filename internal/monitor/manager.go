package monitor

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/interview-guard/internal/integrity"
	"github.com/spigell/interview-guard/internal/media"
)

// ErrUnknownSession is returned for ids the manager does not track.
var ErrUnknownSession = errors.New("unknown session")

// Manager runs concurrent sessions that share collaborators but no state.
type Manager struct {
	cfg  Config
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager. deps.Source is ignored; every session brings
// its own capture source.
func NewManager(cfg Config, deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Start creates and starts a session. An empty session id gets a random one.
func (m *Manager) Start(ctx context.Context, info integrity.SessionInfo, src media.Source) (*Session, error) {
	if info.SessionID == "" {
		info.SessionID = uuid.NewString()
	}

	deps := m.deps
	deps.Source = src
	s := NewSession(info, m.cfg, deps)

	m.mu.Lock()
	if _, exists := m.sessions[info.SessionID]; exists {
		m.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	m.sessions[info.SessionID] = s
	m.mu.Unlock()

	if err := s.Start(ctx); err != nil {
		m.forget(s)
		return nil, err
	}

	go func() {
		<-s.Done()
		m.forget(s)
	}()
	return s, nil
}

// Get returns a running session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions lists the ids of running sessions.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Stop ends one session and returns its final record.
func (m *Manager) Stop(ctx context.Context, id string) (integrity.Record, error) {
	s, ok := m.Get(id)
	if !ok {
		return integrity.Record{}, ErrUnknownSession
	}
	defer m.forget(s)
	return s.Stop(ctx)
}

// StopAll ends every session concurrently.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, s := range sessions {
		g.Go(func() error {
			defer m.forget(s)
			_, err := s.Stop(ctx)
			return err
		})
	}
	return g.Wait()
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.ID()]; ok && cur == s {
		delete(m.sessions, s.ID())
	}
}
