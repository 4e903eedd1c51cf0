package tokstream_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"modelchat/internal/tokstream"
	"modelchat/internal/tokstream/tokstreamtest"
)

func drain(t *testing.T, s *tokstream.Stream) ([]tokstream.Piece, error) {
	t.Helper()
	var out []tokstream.Piece
	for i := 0; i < 100; i++ {
		p, err := s.Next(context.Background())
		if err != nil {
			return out, err
		}
		out = append(out, p)
		if p.End {
			return out, nil
		}
	}
	t.Fatalf("stream did not end")
	return nil, nil
}

func TestStream_WordsThenEOS(t *testing.T) {
	m := tokstreamtest.Words("Hello", ",", " world")
	s, err := tokstream.Open(context.Background(), m, "### Human: hi there")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if s.PromptTokens() != 4 {
		t.Fatalf("prompt tokens = %d", s.PromptTokens())
	}
	pieces, err := drain(t, s)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(pieces) != 4 || !pieces[3].End || pieces[3].Text != "" {
		t.Fatalf("unexpected pieces: %+v", pieces)
	}
	var b strings.Builder
	for _, p := range pieces {
		b.WriteString(p.Text)
	}
	if b.String() != "Hello, world" {
		t.Fatalf("text = %q", b.String())
	}
	if got := m.Prompts(); len(got) != 1 || got[0].Text != "### Human: hi there" || len(got[0].Tokens) != 4 {
		t.Fatalf("prompt not forwarded: %+v", got)
	}
}

func TestStream_BuffersSplitMultibyte(t *testing.T) {
	euro := []byte("€") // e2 82 ac
	m := &tokstreamtest.Model{EndWithEOS: true, Pieces: [][]byte{
		[]byte("a"), euro[:1], euro[1:2], {euro[2], 'b'},
	}}
	s, err := tokstream.Open(context.Background(), m, "p")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	pieces, err := drain(t, s)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	want := []string{"a", "", "", "€b", ""}
	if len(pieces) != len(want) {
		t.Fatalf("got %d pieces", len(pieces))
	}
	for i, w := range want {
		if pieces[i].Text != w {
			t.Fatalf("piece %d = %q, want %q", i, pieces[i].Text, w)
		}
	}
}

func TestStream_InvalidBytes(t *testing.T) {
	m := &tokstreamtest.Model{EndWithEOS: true, Pieces: [][]byte{[]byte("ok"), {0xff, 'x'}}}
	s, _ := tokstream.Open(context.Background(), m, "p")
	_, err := drain(t, s)
	var encErr *tokstream.EncodingError
	if !errors.As(err, &encErr) || encErr.Incomplete || encErr.Token != 2 {
		t.Fatalf("expected invalid encoding error on token 2, got %v", err)
	}
}

func TestStream_IncompleteAtEOS(t *testing.T) {
	m := &tokstreamtest.Model{EndWithEOS: true, Pieces: [][]byte{{0xe2, 0x82}}}
	s, _ := tokstream.Open(context.Background(), m, "p")
	_, err := drain(t, s)
	var encErr *tokstream.EncodingError
	if !errors.As(err, &encErr) || !encErr.Incomplete {
		t.Fatalf("expected incomplete encoding error, got %v", err)
	}
}

func TestStream_TruncatedWithoutEOS(t *testing.T) {
	m := tokstreamtest.Repeat("x", 2)
	s, _ := tokstream.Open(context.Background(), m, "p")
	if _, err := drain(t, s); !errors.Is(err, tokstream.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestOpen_TokenizeError(t *testing.T) {
	boom := errors.New("boom")
	m := &tokstreamtest.Model{TokenizeErr: boom}
	if _, err := tokstream.Open(context.Background(), m, "p"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped tokenize error, got %v", err)
	}
}
