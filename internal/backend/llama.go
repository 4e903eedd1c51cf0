//go:build llama

package backend

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
	"github.com/rs/zerolog"

	"modelchat/internal/tokstream"
)

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = true

// llamaModel owns a model loaded through go-llama.cpp. The token callback is
// per model, so generations are serialized by gen.
type llamaModel struct {
	model    *llama.LLama
	sampling Sampling
	max      int
	log      zerolog.Logger
	pieces   pieceTable
	gen      sync.Mutex
}

func openLlama(opts Options) (Model, error) {
	if strings.TrimSpace(opts.ModelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	var mo []llama.ModelOption
	if opts.Sampling.ContextSize > 0 {
		mo = append(mo, llama.SetContext(opts.Sampling.ContextSize))
	}
	m, err := llama.New(opts.ModelPath, mo...)
	if err != nil {
		return nil, err
	}
	opts.Logger.Info().Str("model", opts.ModelPath).Msg("llama model loaded")
	return &llamaModel{model: m, sampling: opts.Sampling, max: opts.MaxTokens, log: opts.Logger}, nil
}

func (l *llamaModel) Tokenize(_ context.Context, text string) ([]tokstream.Token, error) {
	_, ids, err := l.model.TokenizeString(text, l.predictOptions()...)
	if err != nil {
		return nil, err
	}
	out := make([]tokstream.Token, len(ids))
	for i, id := range ids {
		out[i] = tokstream.Token(id)
	}
	return out, nil
}

// Generate starts Predict on its own goroutine and bridges the token
// callback into a channel consumed by Next.
func (l *llamaModel) Generate(ctx context.Context, p tokstream.Prompt) (tokstream.Generator, error) {
	if l.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	l.gen.Lock()
	l.pieces.reset()
	g := &llamaGenerator{
		l:    l,
		out:  make(chan string),
		stop: make(chan struct{}),
	}
	l.model.SetTokenCallback(func(tok string) bool {
		select {
		case g.out <- tok:
			return true
		case <-g.stop:
			return false
		case <-ctx.Done():
			return false
		}
	})
	po := l.predictOptions()
	go func() {
		defer l.gen.Unlock()
		defer close(g.out)
		if _, err := l.model.Predict(p.Text, po...); err != nil {
			g.err = err
		}
	}()
	return g, nil
}

func (l *llamaModel) Detokenize(tok tokstream.Token) ([]byte, error) { return l.pieces.lookup(tok) }

func (l *llamaModel) EOS() tokstream.Token { return EOS }

func (l *llamaModel) Close() error {
	l.gen.Lock()
	defer l.gen.Unlock()
	if l.model != nil {
		l.model.Free()
		l.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

func (l *llamaModel) predictOptions() []llama.PredictOption {
	s := l.sampling
	po := []llama.PredictOption{
		llama.SetTokens(zn(l.max, 1)),
		llama.SetThreads(zn(s.Threads, 1)),
		llama.SetTopP(zf(s.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(s.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(s.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(s.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if s.Seed >= 0 {
		po = append(po, llama.SetSeed(s.Seed))
	}
	return po
}

type llamaGenerator struct {
	l    *llamaModel
	out  chan string
	stop chan struct{}
	// err is written before out is closed.
	err     error
	n       int
	ended   bool
	stopped bool
}

// Next returns the next piece id. Predict returning before the token cap
// means the model emitted its end-of-sequence token.
func (g *llamaGenerator) Next(ctx context.Context) (tokstream.Token, error) {
	if g.ended {
		return 0, io.EOF
	}
	select {
	case tok, ok := <-g.out:
		if !ok {
			g.ended = true
			if g.err != nil {
				return 0, g.err
			}
			if g.n < g.l.max {
				return EOS, nil
			}
			return 0, io.EOF
		}
		g.n++
		return g.l.pieces.add([]byte(tok)), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close stops Predict and waits for it to return.
func (g *llamaGenerator) Close() error {
	if !g.stopped {
		g.stopped = true
		close(g.stop)
	}
	for range g.out {
	}
	return nil
}
