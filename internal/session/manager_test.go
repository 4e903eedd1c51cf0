package session

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"modelchat/internal/prompt"
	"modelchat/internal/tokstream/tokstreamtest"
)

func TestNewManager_RequiresModel(t *testing.T) {
	if _, err := NewManager(Config{Logger: zerolog.Nop()}); err == nil {
		t.Fatal("expected error without model")
	}
}

func TestOpen_UnknownPersona(t *testing.T) {
	m := newManager(t, Config{Model: tokstreamtest.Words("a")})
	if _, err := m.Open("nobody"); !errors.Is(err, prompt.ErrUnknownPersona) {
		t.Fatalf("expected ErrUnknownPersona, got %v", err)
	}
}

func TestOpen_ReplacesIdleSession(t *testing.T) {
	m := newManager(t, Config{Model: tokstreamtest.Words("a")})
	first, _ := m.Open("")
	second, err := m.Open("zen-guide")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if m.Active() != second || first.ID() == second.ID() {
		t.Fatal("active session not replaced")
	}
	if _, err := first.Submit(context.Background(), "hi"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("previous session should be disposed, got %v", err)
	}
}

func TestOpen_BusyWhileStreaming(t *testing.T) {
	model := tokstreamtest.Words("a")
	model.Gate = make(chan struct{})
	m := newManager(t, Config{Model: model})
	s, _ := m.Open("")
	done := make(chan struct{})
	go func() {
		_, _ = s.Submit(context.Background(), "hi")
		close(done)
	}()
	waitStreaming(t, s)
	if _, err := m.Open(""); !IsBusy(err) {
		t.Fatalf("expected busy error, got %v", err)
	}
	close(model.Gate)
	<-done
	if _, err := m.Open(""); err != nil {
		t.Fatalf("open after completion: %v", err)
	}
}

func TestStatus(t *testing.T) {
	m := newManager(t, Config{Model: tokstreamtest.Words("a", "b"), Budget: 10})
	if m.Ready() {
		t.Fatal("ready without session")
	}
	s, _ := m.Open("")
	if _, err := s.Submit(context.Background(), "hi"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	st := m.Status()
	if !m.Ready() || st.SessionID != s.ID() || st.Persona != prompt.DefaultPersonaID {
		t.Fatalf("status: %+v", st)
	}
	if st.Turns != 2 || st.TokensEmitted != 3 || st.LastStopReason != "end_marker" || st.TokenBudget != 10 {
		t.Fatalf("status: %+v", st)
	}
}

func TestClose(t *testing.T) {
	m := newManager(t, Config{Model: tokstreamtest.Words("a")})
	if _, err := m.Open(""); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if m.Ready() {
		t.Fatal("ready after close")
	}
	if _, err := m.Open(""); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}
