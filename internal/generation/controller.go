// Package generation drives one model response from prompt to stop: it pulls
// tokens, applies the stop policy, publishes fragments in order and commits
// the answer to the transcript.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"modelchat/internal/fanout"
	"modelchat/internal/metrics"
	"modelchat/internal/prompt"
	"modelchat/internal/tokstream"
	"modelchat/pkg/types"
)

// DefaultBudget caps the tokens pulled for one response.
const DefaultBudget = 2000

// ErrStreaming is returned by Run while another generation is in progress.
var ErrStreaming = errors.New("generation already streaming")

var tracer = otel.Tracer("modelchat/internal/generation")

// Phase is the controller state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseStreaming Phase = "streaming"
	PhaseCompleted Phase = "completed"
	PhaseCancelled Phase = "cancelled"
)

// State is the per-response generation state.
type State struct {
	TokensEmitted   int
	StopReason      types.StopReason
	AccumulatedText string
}

// Publisher receives fragments in generation order and the final stop reason.
type Publisher interface {
	Publish(ctx context.Context, f fanout.Fragment)
	End(ctx context.Context, reason types.StopReason)
}

// Sink is where turns are committed.
type Sink interface {
	AppendUser(text string) (types.Turn, error)
	AppendAssistant(text string, reason types.StopReason, tokens int) (types.Turn, error)
}

// Config configures a Controller. Zero values select defaults.
type Config struct {
	Budget    int
	Publisher Publisher
	Yielder   Yielder
	Events    EventPublisher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Request describes one exchange.
type Request struct {
	SessionID string
	Model     tokstream.Model
	Builder   prompt.Builder
	Preamble  string
	UserText  string
	Sink      Sink
}

// Result is the terminal state of a Run.
type Result struct {
	State
	// PhaseCompleted or PhaseCancelled.
	Phase Phase
	// Committed assistant turn; zero when cancelled.
	Turn         types.Turn
	PromptTokens int
	Duration     time.Duration
}

// Snapshot is a read-only view for status reporting.
type Snapshot struct {
	Phase          Phase
	TokensEmitted  int
	LastStopReason types.StopReason
}

// Controller runs generations one at a time.
type Controller struct {
	budget  int
	pub     Publisher
	yield   Yielder
	events  EventPublisher
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu       sync.RWMutex
	phase    Phase
	tokens   int
	lastStop types.StopReason
}

// NewController applies defaults to cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{
		budget:  cfg.Budget,
		pub:     cfg.Publisher,
		yield:   cfg.Yielder,
		events:  cfg.Events,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
		phase:   PhaseIdle,
	}
	if c.budget <= 0 {
		c.budget = DefaultBudget
	}
	if c.pub == nil {
		c.pub = fanout.New(cfg.Logger, cfg.Metrics)
	}
	if c.yield == nil {
		c.yield = goschedYielder{}
	}
	if c.events == nil {
		c.events = noopPublisher{}
	}
	return c
}

// Budget returns the configured token cap.
func (c *Controller) Budget() int { return c.budget }

// Snapshot returns the current phase and progress.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{Phase: c.phase, TokensEmitted: c.tokens, LastStopReason: c.lastStop}
}

// Run builds the prompt, commits the user turn, streams the response and
// commits the assistant turn when generation completes. Cancelling ctx moves
// the generation to PhaseCancelled before the next token is pulled.
//
// A prompt validation error (prompt.ErrEmptyInput) is returned before any
// state changes. Stream failures end the generation cancelled and are
// returned together with the Result.
func (c *Controller) Run(ctx context.Context, req Request) (Result, error) {
	promptText, err := req.Builder.Build(req.Preamble, req.UserText)
	if err != nil {
		return Result{}, err
	}
	if err := c.begin(); err != nil {
		return Result{}, err
	}
	if _, err := req.Sink.AppendUser(strings.TrimSpace(req.UserText)); err != nil {
		c.finish(Result{Phase: PhaseIdle})
		return Result{}, fmt.Errorf("append user turn: %w", err)
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "generation.run", trace.WithAttributes(
		attribute.String("session.id", req.SessionID),
		attribute.Int("generation.budget", c.budget),
	))
	defer span.End()
	c.events.Publish(Event{Name: EventStart, SessionID: req.SessionID, Fields: map[string]any{"budget": c.budget}})

	st, promptTokens, runErr := c.stream(ctx, req.Model, promptText)
	res := Result{State: st, PromptTokens: promptTokens}
	if st.StopReason.Committed() {
		res.Phase = PhaseCompleted
		turn, err := req.Sink.AppendAssistant(st.AccumulatedText, st.StopReason, st.TokensEmitted)
		if err != nil {
			runErr = fmt.Errorf("commit assistant turn: %w", err)
		} else {
			res.Turn = turn
		}
	} else {
		res.Phase = PhaseCancelled
		res.AccumulatedText = ""
	}
	c.pub.End(context.WithoutCancel(ctx), st.StopReason)
	res.Duration = time.Since(start)

	c.metrics.ObserveGeneration(st.StopReason.String(), st.TokensEmitted, res.Duration)
	fields := map[string]any{
		"stop_reason":    st.StopReason.String(),
		"tokens_emitted": st.TokensEmitted,
		"prompt_tokens":  promptTokens,
	}
	if runErr != nil {
		fields["error"] = runErr.Error()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	c.events.Publish(Event{Name: EventDone, SessionID: req.SessionID, Fields: fields})
	span.SetAttributes(
		attribute.String("generation.stop_reason", st.StopReason.String()),
		attribute.Int("generation.tokens", st.TokensEmitted),
		attribute.Int("generation.prompt_tokens", promptTokens),
	)
	c.log.Debug().
		Str("session", req.SessionID).
		Str("stop_reason", st.StopReason.String()).
		Int("tokens", st.TokensEmitted).
		Dur("took", res.Duration).
		Msg("generation finished")

	c.finish(res)
	return res, runErr
}

// stream is the Streaming phase. It returns a terminal State.
func (c *Controller) stream(ctx context.Context, m tokstream.Model, promptText string) (State, int, error) {
	var st State
	s, err := tokstream.Open(ctx, m, promptText)
	if err != nil {
		st.StopReason = types.StopCancelled
		if ctx.Err() != nil {
			err = nil
		}
		return st, 0, err
	}
	defer func() {
		if err := s.Close(); err != nil {
			c.log.Warn().Err(err).Msg("close token stream")
		}
	}()

	var text strings.Builder
	seq := 0
	for {
		if ctx.Err() != nil {
			st.StopReason = types.StopCancelled
			break
		}
		piece, err := s.Next(ctx)
		if err != nil {
			st.StopReason = types.StopCancelled
			if ctx.Err() != nil {
				return st, s.PromptTokens(), nil
			}
			return st, s.PromptTokens(), err
		}
		st.TokensEmitted++
		if piece.End {
			st.StopReason = types.StopEndMarker
			break
		}
		if piece.Text != "" {
			text.WriteString(piece.Text)
			seq++
			c.pub.Publish(ctx, fanout.Fragment{Seq: seq, Text: piece.Text})
		}
		c.progress(st.TokensEmitted)
		c.yield.Yield(ctx)
		if st.TokensEmitted >= c.budget {
			st.StopReason = types.StopTokenBudgetExceeded
			break
		}
	}
	st.AccumulatedText = text.String()
	return st, s.PromptTokens(), nil
}

func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseStreaming {
		return ErrStreaming
	}
	c.phase = PhaseStreaming
	c.tokens = 0
	return nil
}

func (c *Controller) progress(tokens int) {
	c.mu.Lock()
	c.tokens = tokens
	c.mu.Unlock()
}

// finish returns the controller to idle.
func (c *Controller) finish(res Result) {
	c.mu.Lock()
	c.phase = PhaseIdle
	c.tokens = res.TokensEmitted
	if res.StopReason.Terminal() {
		c.lastStop = res.StopReason
	}
	c.mu.Unlock()
}
