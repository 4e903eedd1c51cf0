// Package tokstream turns an opaque model's token generator into a stream of
// UTF-8 text pieces.
package tokstream

import "context"

// Token is a model vocabulary id. Backends without native ids may assign
// synthetic ones; only the backend that produced a Token can detokenize it.
type Token int32

// Prompt is the encoded prompt handed to Generate. Text is the exact string
// that was tokenized, for runtimes that re-tokenize internally.
type Prompt struct {
	Text   string
	Tokens []Token
}

// Model is the text<->token codec and token generator of a loaded model.
// Implementations are not required to be reentrant: callers run at most one
// Generator per Model at a time.
type Model interface {
	Tokenize(ctx context.Context, text string) ([]Token, error)
	Generate(ctx context.Context, prompt Prompt) (Generator, error)
	// Detokenize returns the raw bytes of tok. The bytes may end in the
	// middle of a multi-byte character.
	Detokenize(tok Token) ([]byte, error)
	// EOS is the end-of-sequence token.
	EOS() Token
}

// Generator yields generated tokens one at a time. Next returns io.EOF when
// the runtime stops without emitting EOS.
type Generator interface {
	Next(ctx context.Context) (Token, error)
	Close() error
}
