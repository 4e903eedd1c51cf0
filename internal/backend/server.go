package backend

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"modelchat/internal/tokstream"
)

// serverModel talks to a running llama.cpp server through its native
// /tokenize and /completion endpoints.
type serverModel struct {
	baseURL  string
	client   *http.Client
	timeout  time.Duration
	sampling Sampling
	max      int
	log      zerolog.Logger
	pieces   pieceTable
}

func openServer(ctx context.Context, opts Options) (Model, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.ServerURL), "/")
	if base == "" {
		return nil, errors.New("server url is empty")
	}
	cli := opts.HTTPClient
	if cli == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:    4,
			IdleConnTimeout: 90 * time.Second,
		}
		// Streaming completions are bounded by the generation context.
		cli = &http.Client{Transport: tr}
	}
	s := &serverModel{
		baseURL:  base,
		client:   cli,
		timeout:  opts.RequestTimeout,
		sampling: opts.Sampling,
		max:      opts.MaxTokens,
		log:      opts.Logger,
	}
	if err := s.health(ctx); err != nil {
		return nil, err
	}
	opts.Logger.Info().Str("url", base).Msg("llama server reachable")
	return s, nil
}

func (s *serverModel) health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return ErrDependencyUnavailable("llama server unreachable: " + err.Error())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return ErrDependencyUnavailable("llama server not ready: " + resp.Status)
	}
	return nil
}

type tokenizeRequest struct {
	Content    string `json:"content"`
	AddSpecial bool   `json:"add_special"`
}

type tokenizeResponse struct {
	Tokens []int32 `json:"tokens"`
}

func (s *serverModel) Tokenize(ctx context.Context, text string) ([]tokstream.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var out tokenizeResponse
	if err := s.postJSON(ctx, "/tokenize", tokenizeRequest{Content: text, AddSpecial: true}, &out); err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	toks := make([]tokstream.Token, len(out.Tokens))
	for i, id := range out.Tokens {
		toks[i] = tokstream.Token(id)
	}
	return toks, nil
}

func (s *serverModel) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
}

// completionRequest is the native /completion payload. Prompt is either the
// prompt text or its token ids.
type completionRequest struct {
	Prompt        any     `json:"prompt"`
	NPredict      int     `json:"n_predict"`
	Temperature   float32 `json:"temperature"`
	TopP          float32 `json:"top_p"`
	TopK          int     `json:"top_k"`
	RepeatPenalty float32 `json:"repeat_penalty"`
	Seed          int     `json:"seed"`
	Stream        bool    `json:"stream"`
	ReturnTokens  bool    `json:"return_tokens"`
}

type completionChunk struct {
	Content     string  `json:"content"`
	Tokens      []int32 `json:"tokens"`
	Stop        bool    `json:"stop"`
	StopType    string  `json:"stop_type"`
	StoppedEOS  bool    `json:"stopped_eos"`
	StoppedWord bool    `json:"stopped_word"`
}

// endOfSequence reports whether a final chunk stopped on the model's end
// token or a stop word rather than the token limit.
func (c completionChunk) endOfSequence() bool {
	switch c.StopType {
	case "eos", "word":
		return true
	case "limit":
		return false
	}
	return c.StoppedEOS || c.StoppedWord
}

func (s *serverModel) Generate(ctx context.Context, p tokstream.Prompt) (tokstream.Generator, error) {
	s.pieces.reset()
	var promptField any = p.Text
	if len(p.Tokens) > 0 {
		promptField = p.Tokens
	}
	payload := completionRequest{
		Prompt:        promptField,
		NPredict:      s.max,
		Temperature:   s.sampling.Temperature,
		TopP:          s.sampling.TopP,
		TopK:          s.sampling.TopK,
		RepeatPenalty: s.sampling.RepeatPenalty,
		Seed:          s.sampling.Seed,
		Stream:        true,
		ReturnTokens:  true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("completion: %w", err)
	}
	if err := statusError(resp); err != nil {
		resp.Body.Close()
		cancel()
		return nil, err
	}
	return &serverGenerator{s: s, body: resp.Body, r: bufio.NewReader(resp.Body), cancel: cancel}, nil
}

func (s *serverModel) Detokenize(tok tokstream.Token) ([]byte, error) { return s.pieces.lookup(tok) }

func (s *serverModel) EOS() tokstream.Token { return EOS }

func (s *serverModel) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// serverGenerator turns the SSE chunk stream into piece ids. A chunk that
// carries several tokens yields its content on the first id and empty
// pieces for the rest so token accounting matches the model.
type serverGenerator struct {
	s       *serverModel
	body    io.ReadCloser
	r       *bufio.Reader
	cancel  context.CancelFunc
	pending []tokstream.Token
	done    bool
}

func (g *serverGenerator) Next(ctx context.Context) (tokstream.Token, error) {
	for len(g.pending) == 0 {
		if g.done {
			return 0, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := g.readChunk(); err != nil {
			return 0, err
		}
	}
	tok := g.pending[0]
	g.pending = g.pending[1:]
	return tok, nil
}

func (g *serverGenerator) readChunk() error {
	for {
		line, err := g.r.ReadString('\n')
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(line[len("data:"):])
			if data == "[DONE]" {
				g.done = true
				return nil
			}
			var c completionChunk
			if jerr := json.Unmarshal([]byte(data), &c); jerr != nil {
				g.s.log.Warn().Str("line", line).Msg("unparseable completion chunk")
			} else {
				g.queue(c)
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				g.done = true
				return nil
			}
			return err
		}
	}
}

func (g *serverGenerator) queue(c completionChunk) {
	n := len(c.Tokens)
	if n == 0 && c.Content != "" {
		n = 1
	}
	for i := 0; i < n; i++ {
		var b []byte
		if i == 0 {
			b = []byte(c.Content)
		}
		g.pending = append(g.pending, g.s.pieces.add(b))
	}
	if c.Stop {
		g.done = true
		if c.endOfSequence() {
			g.pending = append(g.pending, EOS)
		}
	}
}

func (g *serverGenerator) Close() error {
	g.cancel()
	return g.body.Close()
}
