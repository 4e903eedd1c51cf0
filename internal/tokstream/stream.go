package tokstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrTruncated is returned when the generator stops without producing EOS.
var ErrTruncated = errors.New("token stream ended without end-of-sequence")

// EncodingError reports bytes that cannot form valid UTF-8.
type EncodingError struct {
	Token Token
	Bytes []byte
	// Incomplete is set when the stream ended in the middle of a character.
	Incomplete bool
}

func (e *EncodingError) Error() string {
	if e.Incomplete {
		return fmt.Sprintf("incomplete utf-8 sequence % x at end of stream", e.Bytes)
	}
	return fmt.Sprintf("invalid utf-8 sequence % x in token %d", e.Bytes, e.Token)
}

// Piece is the result of pulling one token.
type Piece struct {
	Token Token
	// Text holds every character completed by this token. It is empty when
	// the token only started a multi-byte character.
	Text string
	// End is set when Token is the model's EOS.
	End bool
}

// Stream pulls tokens from a Model. It is not safe for concurrent use.
type Stream struct {
	model        Model
	gen          Generator
	eos          Token
	pending      []byte
	promptTokens int
}

// Open tokenizes promptText once and starts generation.
func Open(ctx context.Context, m Model, promptText string) (*Stream, error) {
	toks, err := m.Tokenize(ctx, promptText)
	if err != nil {
		return nil, fmt.Errorf("tokenize prompt: %w", err)
	}
	gen, err := m.Generate(ctx, Prompt{Text: promptText, Tokens: toks})
	if err != nil {
		return nil, fmt.Errorf("start generation: %w", err)
	}
	return &Stream{model: m, gen: gen, eos: m.EOS(), promptTokens: len(toks)}, nil
}

// PromptTokens is the number of tokens the prompt encoded to.
func (s *Stream) PromptTokens() int { return s.promptTokens }

// Next pulls one token and decodes it.
func (s *Stream) Next(ctx context.Context) (Piece, error) {
	tok, err := s.gen.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Piece{}, ErrTruncated
		}
		return Piece{}, err
	}
	if tok == s.eos {
		if len(s.pending) > 0 {
			bad := s.pending
			s.pending = nil
			return Piece{Token: tok}, &EncodingError{Token: tok, Bytes: bad, Incomplete: true}
		}
		return Piece{Token: tok, End: true}, nil
	}
	b, err := s.model.Detokenize(tok)
	if err != nil {
		return Piece{Token: tok}, fmt.Errorf("detokenize token %d: %w", tok, err)
	}
	text, err := s.decode(tok, b)
	if err != nil {
		return Piece{Token: tok}, err
	}
	return Piece{Token: tok, Text: text}, nil
}

// decode appends b to the pending bytes and returns the longest prefix made
// of complete characters. A trailing partial character stays buffered.
func (s *Stream) decode(tok Token, b []byte) (string, error) {
	s.pending = append(s.pending, b...)
	n := 0
	for n < len(s.pending) {
		rest := s.pending[n:]
		if !utf8.FullRune(rest) {
			break
		}
		r, size := utf8.DecodeRune(rest)
		if r == utf8.RuneError && size == 1 {
			bad := append([]byte(nil), rest...)
			s.pending = nil
			return "", &EncodingError{Token: tok, Bytes: bad}
		}
		n += size
	}
	text := string(s.pending[:n])
	s.pending = append(s.pending[:0], s.pending[n:]...)
	return text, nil
}

// Close stops the generator.
func (s *Stream) Close() error { return s.gen.Close() }
