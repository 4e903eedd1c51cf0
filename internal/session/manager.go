package session

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"modelchat/internal/prompt"
	"modelchat/pkg/types"
)

// Manager owns the loaded model and the single active Session.
type Manager struct {
	cfg     Config
	started time.Time

	mu     sync.Mutex
	active *Session
	closed bool
}

// NewManager validates cfg and applies defaults.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Model == nil {
		return nil, errors.New("session manager requires a model")
	}
	cfg = cfg.withDefaults()
	if len(cfg.Personas.List()) == 0 {
		c, err := prompt.NewCatalog()
		if err != nil {
			return nil, err
		}
		cfg.Personas = c
	}
	return &Manager{cfg: cfg, started: time.Now()}, nil
}

// Open starts a new Session for the persona, disposing the previous one.
// It fails with a busy error while the previous session is streaming.
func (m *Manager) Open(personaID string) (*Session, error) {
	persona, err := m.cfg.Personas.Lookup(personaID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrSessionClosed
	}
	if prev := m.active; prev != nil {
		if !prev.disposeIfIdle() {
			m.cfg.Metrics.IncRejected("busy")
			return nil, ErrBusy(prev.id)
		}
	}
	s := newSession(m.cfg, persona)
	m.active = s
	m.cfg.Logger.Info().Str("session", s.id).Str("persona", persona.ID).Msg("session opened")
	return s, nil
}

// Active returns the current session or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Personas lists the selectable personas.
func (m *Manager) Personas() []types.Persona { return m.cfg.Personas.List() }

// Budget is the per-response token cap.
func (m *Manager) Budget() int { return m.cfg.Budget }

// Ready reports whether the manager can accept submissions.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && m.active != nil
}

// Status builds the operator status view.
func (m *Manager) Status() types.StatusResponse {
	resp := types.StatusResponse{
		Phase:         "idle",
		TokenBudget:   m.cfg.Budget,
		UptimeSeconds: int64(time.Since(m.started).Seconds()),
	}
	s := m.Active()
	if s == nil {
		return resp
	}
	snap := s.Snapshot()
	resp.SessionID = s.id
	resp.Persona = s.persona.ID
	resp.Phase = string(snap.Phase)
	resp.Turns = s.tr.Len()
	resp.TokensEmitted = snap.TokensEmitted
	if snap.LastStopReason.Terminal() {
		resp.LastStopReason = string(snap.LastStopReason)
	}
	return resp
}

// Close disposes the active session, then releases the observers and the
// model.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	s := m.active
	m.active = nil
	m.mu.Unlock()

	if s != nil {
		s.Dispose()
	}
	var errs []error
	if err := m.cfg.FanOut.Close(); err != nil {
		errs = append(errs, err)
	}
	if c, ok := m.cfg.Model.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close model: %w", err))
		}
	}
	return errors.Join(errs...)
}
