// Package session owns the conversation lifecycle: a Manager holds the loaded
// model and at most one active Session, and a Session admits one generation
// at a time against it.
package session

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"modelchat/internal/generation"
	"modelchat/internal/prompt"
	"modelchat/internal/transcript"
	"modelchat/pkg/types"
)

// UserName labels user turns when a transcript is rendered.
const UserName = "User"

// Session is one conversation bound to a persona.
type Session struct {
	id      string
	persona types.Persona
	cfg     Config
	builder prompt.Builder
	tr      *transcript.Transcript
	ctrl    *generation.Controller
	created time.Time

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	idle     chan struct{}
	disposed bool
}

func newSession(cfg Config, persona types.Persona) *Session {
	return &Session{
		id:      uuid.NewString(),
		persona: persona,
		cfg:     cfg,
		builder: prompt.NewBuilder(persona.Marker),
		tr:      transcript.New(),
		ctrl: generation.NewController(generation.Config{
			Budget:    cfg.Budget,
			Publisher: cfg.FanOut,
			Yielder:   cfg.Yielder,
			Events:    cfg.Events,
			Metrics:   cfg.Metrics,
			Logger:    cfg.Logger,
		}),
		created: time.Now(),
	}
}

func (s *Session) ID() string             { return s.id }
func (s *Session) Persona() types.Persona { return s.persona }
func (s *Session) CreatedAt() time.Time   { return s.created }

// History returns the committed turns in order.
func (s *Session) History() []types.Turn { return s.tr.History() }

// Render writes the transcript with the persona's display name.
func (s *Session) Render(w io.Writer) error {
	return s.tr.Render(w, UserName, s.persona.Name)
}

// Snapshot reports the controller phase and progress.
func (s *Session) Snapshot() generation.Snapshot { return s.ctrl.Snapshot() }

// Streaming reports whether a generation is in progress.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Submit runs one exchange and blocks until the generation is terminal.
// Blank text returns prompt.ErrEmptyInput without touching the session.
// While another generation streams, the configured Policy either rejects
// the call (IsBusy) or cancels the running generation first.
func (s *Session) Submit(ctx context.Context, text string) (generation.Result, error) {
	if strings.TrimSpace(text) == "" {
		s.cfg.Metrics.IncRejected("empty_input")
		return generation.Result{}, prompt.ErrEmptyInput
	}
	runCtx, release, err := s.admit(ctx)
	if err != nil {
		return generation.Result{}, err
	}
	defer release()

	// A cancelled exchange leaves no assistant turn and does not advance the index.
	exchange := s.tr.Count(types.RoleAssistant)
	return s.ctrl.Run(runCtx, generation.Request{
		SessionID: s.id,
		Model:     s.cfg.Model,
		Builder:   s.builder,
		Preamble:  s.cfg.Injection.Preamble(s.persona.Preamble, exchange),
		UserText:  text,
		Sink:      s.tr,
	})
}

// admit reserves the single generation slot. The returned release func must
// be deferred.
func (s *Session) admit(ctx context.Context) (context.Context, func(), error) {
	for {
		s.mu.Lock()
		if s.disposed {
			s.mu.Unlock()
			return nil, nil, ErrSessionClosed
		}
		if !s.running {
			runCtx, cancel := context.WithCancel(ctx)
			idle := make(chan struct{})
			s.running, s.cancel, s.idle = true, cancel, idle
			s.mu.Unlock()
			release := func() {
				cancel()
				s.mu.Lock()
				s.running = false
				s.cancel = nil
				close(idle)
				s.mu.Unlock()
			}
			return runCtx, release, nil
		}
		if s.cfg.Policy != PolicyPreempt {
			s.mu.Unlock()
			s.cfg.Metrics.IncRejected("busy")
			return nil, nil, ErrBusy(s.id)
		}
		s.cancel()
		idle := s.idle
		s.mu.Unlock()
		s.cfg.Logger.Debug().Str("session", s.id).Msg("preempting running generation")
		select {
		case <-idle:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

// Cancel requests cancellation of the running generation. It reports whether
// one was running.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.cancel()
	return true
}

// Dispose cancels any running generation, waits for it to stop, and makes
// the session unusable.
func (s *Session) Dispose() {
	s.mu.Lock()
	s.disposed = true
	var idle chan struct{}
	if s.running {
		s.cancel()
		idle = s.idle
	}
	s.mu.Unlock()
	if idle != nil {
		<-idle
	}
}

// disposeIfIdle disposes the session unless a generation is streaming.
func (s *Session) disposeIfIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.disposed = true
	return true
}
