package backend

import (
	"fmt"
	"sync"

	"modelchat/internal/tokstream"
)

// pieceTable maps the synthetic ids handed out during a generation to the
// bytes the backend produced for them.
type pieceTable struct {
	mu     sync.Mutex
	pieces [][]byte
}

func (t *pieceTable) reset() {
	t.mu.Lock()
	t.pieces = t.pieces[:0]
	t.mu.Unlock()
}

func (t *pieceTable) add(b []byte) tokstream.Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pieces = append(t.pieces, b)
	return tokstream.Token(len(t.pieces))
}

func (t *pieceTable) lookup(tok tokstream.Token) ([]byte, error) {
	if tok == EOS {
		return nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	i := int(tok) - 1
	if i < 0 || i >= len(t.pieces) {
		return nil, fmt.Errorf("unknown token %d", tok)
	}
	return t.pieces[i], nil
}
