// Package backend opens the tokstream.Model implementations: go-llama.cpp
// in-process (build tag llama) or a running llama.cpp server over HTTP.
package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"modelchat/internal/tokstream"
)

// EOS is the end-of-sequence token reported by every backend. Backends map
// generated pieces onto synthetic positive ids, so EOS never collides.
const EOS tokstream.Token = -1

// Kind selects a backend implementation.
type Kind string

const (
	KindLlama  Kind = "llama"
	KindServer Kind = "server"
)

// ParseKind accepts the configuration spelling; empty selects KindLlama.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindLlama:
		return KindLlama, nil
	case KindServer:
		return KindServer, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want llama or server)", s)
	}
}

// Sampling carries the decoding parameters.
type Sampling struct {
	Temperature   float32 `yaml:"temperature" json:"temperature" toml:"temperature"`
	TopP          float32 `yaml:"top_p" json:"top_p" toml:"top_p"`
	TopK          int     `yaml:"top_k" json:"top_k" toml:"top_k"`
	RepeatPenalty float32 `yaml:"repeat_penalty" json:"repeat_penalty" toml:"repeat_penalty"`
	// Seed < 0 picks a random seed per generation.
	Seed    int `yaml:"seed" json:"seed" toml:"seed"`
	Threads int `yaml:"threads" json:"threads" toml:"threads"`
	// ContextSize 0 keeps the model default.
	ContextSize int `yaml:"context_size" json:"context_size" toml:"context_size"`
}

// DefaultSampling mirrors the values the chat persona was tuned with.
func DefaultSampling() Sampling {
	return Sampling{
		Temperature:   0.72,
		TopP:          0.95,
		TopK:          40,
		RepeatPenalty: 1.1,
		Seed:          -1,
		Threads:       4,
	}
}

// Options configures Open.
type Options struct {
	Kind      Kind
	ModelPath string
	ServerURL string
	Sampling  Sampling
	// MaxTokens bounds a single generation on the backend side. The
	// generation controller enforces its own budget; this only keeps the
	// backend from running past it.
	MaxTokens int
	Logger    zerolog.Logger
	// HTTPClient is used by the server backend; nil builds one.
	HTTPClient *http.Client
	// RequestTimeout bounds tokenize calls and the health probe.
	RequestTimeout time.Duration
}

// Model is a tokstream.Model that owns backend resources.
type Model interface {
	tokstream.Model
	io.Closer
}

// Open loads or connects to the configured backend.
func Open(ctx context.Context, opts Options) (Model, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	switch opts.Kind {
	case "", KindLlama:
		return openLlama(opts)
	case KindServer:
		return openServer(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Kind)
	}
}

// LlamaBuilt reports whether the in-process llama backend is compiled in.
func LlamaBuilt() bool { return llamaBuilt }
