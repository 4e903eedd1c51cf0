package prompt

import (
	"fmt"
	"strings"
)

// Injection selects on which exchanges the persona preamble is rendered.
type Injection string

const (
	// InjectPerTurn renders the preamble on every exchange.
	InjectPerTurn Injection = "per-turn"
	// InjectFirstTurn renders it only until the first exchange of a session completes.
	InjectFirstTurn Injection = "first-turn"
)

// ParseInjection accepts the configuration spelling of an Injection.
// An empty string selects InjectPerTurn.
func ParseInjection(s string) (Injection, error) {
	switch Injection(strings.ToLower(strings.TrimSpace(s))) {
	case "", InjectPerTurn:
		return InjectPerTurn, nil
	case InjectFirstTurn:
		return InjectFirstTurn, nil
	default:
		return "", fmt.Errorf("unknown preamble injection %q (want per-turn or first-turn)", s)
	}
}

// Preamble returns the preamble to render for the exchange with the given
// zero-based index.
func (i Injection) Preamble(preamble string, exchange int) string {
	if i == InjectFirstTurn && exchange > 0 {
		return ""
	}
	return preamble
}
