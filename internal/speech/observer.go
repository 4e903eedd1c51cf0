package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"modelchat/internal/fanout"
	"modelchat/pkg/types"
)

// Mode selects how fragments are grouped into utterances.
type Mode string

const (
	// ModeFragment speaks every fragment as it arrives.
	ModeFragment Mode = "fragment"
	// ModeSentence buffers fragments and speaks whole sentences.
	ModeSentence Mode = "sentence"
)

// ParseMode accepts the configuration spelling; empty selects ModeSentence.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSentence:
		return ModeSentence, nil
	case ModeFragment:
		return ModeFragment, nil
	default:
		return "", fmt.Errorf("unknown speech mode %q (want sentence or fragment)", s)
	}
}

// Observer is a fanout observer that narrates a response. Register it
// behind fanout.Queued so synthesis never stalls generation.
type Observer struct {
	speaker Speaker
	mode    Mode

	mu  sync.Mutex
	buf strings.Builder
}

// NewObserver returns an Observer speaking through s.
func NewObserver(s Speaker, mode Mode) *Observer {
	if mode == "" {
		mode = ModeSentence
	}
	return &Observer{speaker: s, mode: mode}
}

func (o *Observer) OnFragment(ctx context.Context, f fanout.Fragment) error {
	if o.mode == ModeFragment {
		if strings.TrimSpace(f.Text) == "" {
			return nil
		}
		return o.speaker.Speak(ctx, f.Text)
	}
	o.mu.Lock()
	o.buf.WriteString(f.Text)
	sentences, rest := splitSentences(o.buf.String())
	o.buf.Reset()
	o.buf.WriteString(rest)
	o.mu.Unlock()
	for _, s := range sentences {
		if err := o.speaker.Speak(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// OnEnd speaks the buffered tail of a committed response. A cancelled
// response drops it.
func (o *Observer) OnEnd(ctx context.Context, reason types.StopReason) error {
	o.mu.Lock()
	rest := strings.TrimSpace(o.buf.String())
	o.buf.Reset()
	o.mu.Unlock()
	if rest == "" || !reason.Committed() {
		return nil
	}
	return o.speaker.Speak(ctx, rest)
}

// splitSentences cuts s after every terminator that is followed by
// whitespace, and at every newline. The unterminated tail is returned as rest.
func splitSentences(s string) (sentences []string, rest string) {
	start := 0
	for i := 0; i < len(s); i++ {
		cut := -1
		switch s[i] {
		case '\n':
			cut = i
		case '.', '!', '?':
			if i+1 < len(s) && isSpace(s[i+1]) {
				cut = i + 1
			}
		}
		if cut < 0 {
			continue
		}
		if t := strings.TrimSpace(s[start:cut]); t != "" {
			sentences = append(sentences, t)
		}
		start = cut
	}
	return sentences, s[start:]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
