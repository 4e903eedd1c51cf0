// Package tokstreamtest provides a scripted tokstream.Model for tests.
package tokstreamtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"modelchat/internal/tokstream"
)

// EOS is the end-of-sequence token of a scripted Model.
const EOS tokstream.Token = 0

// Model replays Pieces as tokens 1..len(Pieces). When EndWithEOS is set the
// EOS token follows the last piece; otherwise the generator returns io.EOF.
type Model struct {
	Pieces     [][]byte
	EndWithEOS bool

	TokenizeErr error
	GenerateErr error
	// Gate, when non-nil, must deliver a value before each token is produced.
	Gate chan struct{}

	mu      sync.Mutex
	prompts []tokstream.Prompt
	active  int
	maxSeen int
}

// Words scripts a model that emits each word as one token and then EOS.
func Words(words ...string) *Model {
	m := &Model{EndWithEOS: true}
	for _, w := range words {
		m.Pieces = append(m.Pieces, []byte(w))
	}
	return m
}

// Repeat scripts n identical tokens with no EOS.
func Repeat(piece string, n int) *Model {
	m := &Model{}
	for i := 0; i < n; i++ {
		m.Pieces = append(m.Pieces, []byte(piece))
	}
	return m
}

func (m *Model) Tokenize(_ context.Context, text string) ([]tokstream.Token, error) {
	if m.TokenizeErr != nil {
		return nil, m.TokenizeErr
	}
	fields := strings.Fields(text)
	out := make([]tokstream.Token, len(fields))
	for i := range fields {
		out[i] = tokstream.Token(1000 + i)
	}
	return out, nil
}

func (m *Model) Generate(_ context.Context, p tokstream.Prompt) (tokstream.Generator, error) {
	if m.GenerateErr != nil {
		return nil, m.GenerateErr
	}
	m.mu.Lock()
	m.prompts = append(m.prompts, p)
	m.active++
	if m.active > m.maxSeen {
		m.maxSeen = m.active
	}
	m.mu.Unlock()
	return &generator{m: m}, nil
}

func (m *Model) Detokenize(tok tokstream.Token) ([]byte, error) {
	i := int(tok) - 1
	if i < 0 || i >= len(m.Pieces) {
		return nil, fmt.Errorf("unknown token %d", tok)
	}
	return m.Pieces[i], nil
}

func (m *Model) EOS() tokstream.Token { return EOS }

// Prompts returns every prompt passed to Generate.
func (m *Model) Prompts() []tokstream.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tokstream.Prompt(nil), m.prompts...)
}

// MaxConcurrent is the highest number of generators open at once.
func (m *Model) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxSeen
}

type generator struct {
	m      *Model
	next   int
	closed bool
}

func (g *generator) Next(ctx context.Context) (tokstream.Token, error) {
	if g.closed {
		return 0, errors.New("generator closed")
	}
	if g.m.Gate != nil {
		select {
		case <-g.m.Gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if g.next < len(g.m.Pieces) {
		g.next++
		return tokstream.Token(g.next), nil
	}
	if g.m.EndWithEOS && g.next == len(g.m.Pieces) {
		g.next++
		return EOS, nil
	}
	return 0, io.EOF
}

func (g *generator) Close() error {
	if !g.closed {
		g.closed = true
		g.m.mu.Lock()
		g.m.active--
		g.m.mu.Unlock()
	}
	return nil
}
