package prompt

import (
	"errors"
	"strings"
	"testing"
)

func TestBuild_Template(t *testing.T) {
	b := NewBuilder("AI Engineer")
	got, err := b.Build("Hello there. ", "  what is a tensor?\n")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := "### Human: what is a tensor?\n### AI Engineer: Hello there. "
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuild_ContainsTrimmedTextAndIsDeterministic(t *testing.T) {
	b := NewBuilder("Zen Guide")
	cases := []string{"hi", " hi ", "\tmulti\nline\n", "ünïcødé ✓", "### Human: nested"}
	for _, in := range cases {
		first, err := b.Build("pre", in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		second, _ := b.Build("pre", in)
		if first != second {
			t.Fatalf("%q: not deterministic: %q vs %q", in, first, second)
		}
		if !strings.Contains(first, strings.TrimSpace(in)) {
			t.Fatalf("%q: prompt %q lacks trimmed text", in, first)
		}
		if !strings.HasSuffix(first, "### Zen Guide: pre") {
			t.Fatalf("%q: preamble not verbatim at end: %q", in, first)
		}
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	b := NewBuilder("")
	for _, in := range []string{"", "   ", "\n\t "} {
		if _, err := b.Build("pre", in); !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("%q: expected ErrEmptyInput, got %v", in, err)
		}
	}
}

func TestBuild_ZeroBuilderUsesDefaults(t *testing.T) {
	var b Builder
	got, err := b.Build("", "x")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got != "### Human: x\n### AI Engineer: " {
		t.Fatalf("unexpected prompt %q", got)
	}
}

func TestInjection(t *testing.T) {
	if inj, err := ParseInjection(""); err != nil || inj != InjectPerTurn {
		t.Fatalf("default: %v %v", inj, err)
	}
	if inj, err := ParseInjection("First-Turn"); err != nil || inj != InjectFirstTurn {
		t.Fatalf("first-turn: %v %v", inj, err)
	}
	if _, err := ParseInjection("sometimes"); err == nil {
		t.Fatalf("expected error for unknown injection")
	}
	if got := InjectPerTurn.Preamble("p", 3); got != "p" {
		t.Fatalf("per-turn exchange 3: %q", got)
	}
	if got := InjectFirstTurn.Preamble("p", 0); got != "p" {
		t.Fatalf("first-turn exchange 0: %q", got)
	}
	if got := InjectFirstTurn.Preamble("p", 1); got != "" {
		t.Fatalf("first-turn exchange 1: %q", got)
	}
}
