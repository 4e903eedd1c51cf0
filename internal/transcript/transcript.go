// Package transcript keeps the append-only conversation log of a session.
package transcript

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"modelchat/pkg/types"
)

// ErrOutOfOrder is returned when an assistant turn has no unanswered user turn
// to follow.
var ErrOutOfOrder = errors.New("assistant turn without a pending user turn")

// Transcript is an ordered, append-only list of turns. It has no edit or
// delete operations. Safe for concurrent use.
type Transcript struct {
	mu       sync.RWMutex
	turns    []types.Turn
	awaiting bool
	now      func() time.Time
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{now: time.Now}
}

// AppendUser commits a user turn.
func (t *Transcript) AppendUser(text string) (types.Turn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	turn := types.Turn{Role: types.RoleUser, Text: text, Timestamp: t.now()}
	t.turns = append(t.turns, turn)
	t.awaiting = true
	return turn, nil
}

// AppendAssistant commits the answer to the most recent user turn.
func (t *Transcript) AppendAssistant(text string, reason types.StopReason, tokens int) (types.Turn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.awaiting {
		return types.Turn{}, ErrOutOfOrder
	}
	turn := types.Turn{
		Role:       types.RoleAssistant,
		Text:       text,
		Timestamp:  t.now(),
		StopReason: reason,
		Tokens:     tokens,
	}
	t.turns = append(t.turns, turn)
	t.awaiting = false
	return turn, nil
}

// History returns a copy of all turns in commit order.
func (t *Transcript) History() []types.Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len is the number of committed turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Count returns how many turns have the given role.
func (t *Transcript) Count(role types.Role) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, turn := range t.turns {
		if turn.Role == role {
			n++
		}
	}
	return n
}

// Render writes the transcript as "Name: text" blocks separated by blank
// lines, the way the display shows a conversation.
func (t *Transcript) Render(w io.Writer, userName, assistantName string) error {
	for i, turn := range t.History() {
		name := userName
		if turn.Role == types.RoleAssistant {
			name = assistantName
		}
		sep := "\n\n"
		if i == 0 {
			sep = ""
		}
		if _, err := fmt.Fprintf(w, "%s%s: %s", sep, name, turn.Text); err != nil {
			return err
		}
	}
	if t.Len() > 0 {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}
