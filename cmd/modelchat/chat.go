package main

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/peterh/liner"

	"modelchat/internal/prompt"
	"modelchat/internal/session"
)

// lineReader is the part of liner.State the chat loop uses.
type lineReader interface {
	Prompt(p string) (string, error)
	AppendHistory(item string)
}

const helpText = `Commands:
  /history        show the conversation so far
  /persona <id>   start a new conversation with another persona
  /personas       list personas
  /status         show session status
  /quit           exit
End a line with \ to continue the message on the next line.
Ctrl-C while the model is answering stops the answer.
`

// chat reads utterances until the user quits or input ends.
func (a *app) chat(ctx context.Context, in lineReader) error {
	a.display.Printf("Talking to %s. Type /help for commands.\n\n", a.mgr.Active().Persona().Name)
	for ctx.Err() == nil {
		text, err := readUtterance(in)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return err
		}
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		in.AppendHistory(text)
		if strings.HasPrefix(trimmed, "/") {
			if quit := a.command(trimmed); quit {
				return nil
			}
			continue
		}
		a.exchange(ctx, text)
	}
	return nil
}

// readUtterance joins lines ending in a backslash into one message.
func readUtterance(in lineReader) (string, error) {
	var parts []string
	p := "> "
	for {
		line, err := in.Prompt(p)
		if err != nil {
			if errors.Is(err, io.EOF) && len(parts) > 0 {
				return strings.Join(parts, "\n"), nil
			}
			return "", err
		}
		if rest, ok := strings.CutSuffix(line, `\`); ok {
			parts = append(parts, rest)
			p = ". "
			continue
		}
		parts = append(parts, line)
		return strings.Join(parts, "\n"), nil
	}
}

// exchange submits one message and reports anything the display observer
// does not already show.
func (a *app) exchange(ctx context.Context, text string) {
	s := a.mgr.Active()
	if s == nil {
		a.display.Printf("no active session\n")
		return
	}
	a.display.Printf("%s: ", s.Persona().Name)
	res, err := s.Submit(ctx, text)
	switch {
	case err == nil:
		a.log.Debug().
			Str("stop_reason", res.StopReason.String()).
			Int("tokens", res.TokensEmitted).
			Int("prompt_tokens", res.PromptTokens).
			Dur("took", res.Duration).
			Msg("exchange done")
	case errors.Is(err, prompt.ErrEmptyInput):
		a.display.Printf("\n")
	case session.IsBusy(err):
		a.display.Printf("busy, try again when the answer is finished\n")
	default:
		a.log.Error().Err(err).Msg("generation failed")
	}
}

// command runs a slash command and reports whether to quit.
func (a *app) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		a.display.Printf("%s", helpText)
	case "/history":
		if s := a.mgr.Active(); s != nil {
			if err := s.Render(a.display); err != nil {
				a.log.Error().Err(err).Msg("render history")
			}
			a.display.Printf("\n")
		}
	case "/persona":
		s, err := a.mgr.Open(arg)
		if err != nil {
			a.display.Printf("cannot switch persona: %v\n", err)
			return false
		}
		a.display.Printf("Talking to %s.\n\n", s.Persona().Name)
	case "/personas":
		cur := ""
		if s := a.mgr.Active(); s != nil {
			cur = s.Persona().ID
		}
		for _, p := range a.mgr.Personas() {
			mark := " "
			if p.ID == cur {
				mark = "*"
			}
			a.display.Printf("%s %s (%s)\n", mark, p.ID, p.Name)
		}
	case "/status":
		st := a.mgr.Status()
		a.display.Printf("session %s persona %s turns %d last stop %s budget %d\n",
			st.SessionID, st.Persona, st.Turns, orNone(st.LastStopReason), st.TokenBudget)
	default:
		a.display.Printf("unknown command %s, try /help\n", name)
	}
	return false
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
