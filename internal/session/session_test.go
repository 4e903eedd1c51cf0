package session

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelchat/internal/generation"
	"modelchat/internal/prompt"
	"modelchat/internal/tokstream/tokstreamtest"
	"modelchat/pkg/types"
)

func newManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func waitStreaming(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !s.Streaming() {
		if time.Now().After(deadline) {
			t.Fatal("session never started streaming")
		}
		runtime.Gosched()
	}
}

func TestSubmit_CommitsExchange(t *testing.T) {
	model := tokstreamtest.Words("Hi", " there")
	m := newManager(t, Config{Model: model})
	s, err := m.Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	res, err := s.Submit(context.Background(), "  hello  ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.StopReason != types.StopEndMarker || res.Turn.Text != "Hi there" {
		t.Fatalf("unexpected result: %+v", res)
	}
	h := s.History()
	if len(h) != 2 || h[0].Text != "hello" || h[1].Role != types.RoleAssistant {
		t.Fatalf("history: %+v", h)
	}
	p := model.Prompts()[0].Text
	if !strings.Contains(p, "### AI Engineer: Hello there, I am an AI Engineer!") {
		t.Fatalf("prompt missing persona preamble: %q", p)
	}
}

func TestSubmit_EmptyInputLeavesSessionUntouched(t *testing.T) {
	m := newManager(t, Config{Model: tokstreamtest.Words("x")})
	s, _ := m.Open("")
	if _, err := s.Submit(context.Background(), " \t "); !errors.Is(err, prompt.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if len(s.History()) != 0 || s.Snapshot().Phase != generation.PhaseIdle {
		t.Fatalf("session changed on empty input")
	}
}

func TestSubmit_RejectsWhileStreaming(t *testing.T) {
	model := tokstreamtest.Words("a", "b")
	model.Gate = make(chan struct{})
	m := newManager(t, Config{Model: model})
	s, _ := m.Open("")

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "first")
		done <- err
	}()
	waitStreaming(t, s)

	if _, err := s.Submit(context.Background(), "second"); !IsBusy(err) {
		t.Fatalf("expected busy error, got %v", err)
	}
	close(model.Gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if got := model.MaxConcurrent(); got != 1 {
		t.Fatalf("max concurrent generators = %d", got)
	}
	if n := len(s.History()); n != 2 {
		t.Fatalf("history len = %d", n)
	}
}

func TestSubmit_PreemptCancelsRunning(t *testing.T) {
	model := tokstreamtest.Words("a", "b")
	model.Gate = make(chan struct{})
	m := newManager(t, Config{Model: model, Policy: PolicyPreempt})
	s, _ := m.Open("")

	type outcome struct {
		res generation.Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		r, err := s.Submit(context.Background(), "first")
		first <- outcome{r, err}
	}()
	waitStreaming(t, s)

	second := make(chan outcome, 1)
	go func() {
		r, err := s.Submit(context.Background(), "second")
		second <- outcome{r, err}
	}()

	o1 := <-first
	if o1.err != nil || o1.res.Phase != generation.PhaseCancelled {
		t.Fatalf("first: %+v %v", o1.res, o1.err)
	}
	close(model.Gate)
	o2 := <-second
	if o2.err != nil || o2.res.StopReason != types.StopEndMarker {
		t.Fatalf("second: %+v %v", o2.res, o2.err)
	}
	h := s.History()
	if len(h) != 3 || h[0].Text != "first" || h[1].Text != "second" || h[2].Text != "ab" {
		t.Fatalf("history: %+v", h)
	}
	if got := model.MaxConcurrent(); got != 1 {
		t.Fatalf("max concurrent generators = %d", got)
	}
}

func TestSubmit_FirstTurnInjection(t *testing.T) {
	model := tokstreamtest.Words("ok")
	m := newManager(t, Config{Model: model, Injection: prompt.InjectFirstTurn})
	s, _ := m.Open("zen-guide")
	for _, q := range []string{"one", "two"} {
		if _, err := s.Submit(context.Background(), q); err != nil {
			t.Fatalf("submit %s: %v", q, err)
		}
	}
	ps := model.Prompts()
	if !strings.Contains(ps[0].Text, "Zen Guide!") {
		t.Fatalf("first prompt lacks preamble: %q", ps[0].Text)
	}
	if !strings.HasSuffix(ps[1].Text, "### Zen Guide: ") {
		t.Fatalf("second prompt should end at the marker: %q", ps[1].Text)
	}
}

func TestSubmit_FirstTurnInjectionSurvivesCancelledExchange(t *testing.T) {
	model := tokstreamtest.Words("ok")
	model.Gate = make(chan struct{})
	m := newManager(t, Config{Model: model, Injection: prompt.InjectFirstTurn})
	s, _ := m.Open("zen-guide")
	done := make(chan generation.Result, 1)
	go func() {
		r, _ := s.Submit(context.Background(), "one")
		done <- r
	}()
	waitStreaming(t, s)
	s.Cancel()
	if r := <-done; r.StopReason != types.StopCancelled {
		t.Fatalf("stop reason = %s", r.StopReason)
	}
	model.Gate = nil
	for _, q := range []string{"two", "three"} {
		if _, err := s.Submit(context.Background(), q); err != nil {
			t.Fatalf("submit %s: %v", q, err)
		}
	}
	ps := model.Prompts()
	if len(ps) != 3 {
		t.Fatalf("prompts = %d", len(ps))
	}
	if !strings.Contains(ps[1].Text, "Zen Guide!") {
		t.Fatalf("first completed exchange lacks preamble: %q", ps[1].Text)
	}
	if strings.Contains(ps[2].Text, "Zen Guide!") {
		t.Fatalf("preamble repeated after a completed exchange: %q", ps[2].Text)
	}
}

func TestCancel(t *testing.T) {
	model := tokstreamtest.Words("a")
	model.Gate = make(chan struct{})
	m := newManager(t, Config{Model: model})
	s, _ := m.Open("")
	if s.Cancel() {
		t.Fatal("cancel reported a running generation while idle")
	}
	done := make(chan generation.Result, 1)
	go func() {
		r, _ := s.Submit(context.Background(), "hi")
		done <- r
	}()
	waitStreaming(t, s)
	if !s.Cancel() {
		t.Fatal("cancel missed the running generation")
	}
	if r := <-done; r.StopReason != types.StopCancelled {
		t.Fatalf("stop reason = %s", r.StopReason)
	}
	if h := s.History(); len(h) != 1 {
		t.Fatalf("cancelled answer must not be committed: %+v", h)
	}
}

func TestDispose(t *testing.T) {
	m := newManager(t, Config{Model: tokstreamtest.Words("a")})
	s, _ := m.Open("")
	s.Dispose()
	if _, err := s.Submit(context.Background(), "hi"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}
