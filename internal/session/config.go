package session

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"modelchat/internal/fanout"
	"modelchat/internal/generation"
	"modelchat/internal/metrics"
	"modelchat/internal/prompt"
	"modelchat/internal/tokstream"
)

// Policy decides what happens to a submission while a generation streams.
type Policy string

const (
	// PolicyReject fails the new submission with a busy error.
	PolicyReject Policy = "reject"
	// PolicyPreempt cancels the running generation and then runs.
	PolicyPreempt Policy = "preempt"
)

// ParsePolicy accepts the configuration spelling; empty selects PolicyReject.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyPreempt:
		return PolicyPreempt, nil
	default:
		return "", fmt.Errorf("unknown submit policy %q (want reject or preempt)", s)
	}
}

// Config encapsulates the tunables shared by every session of a Manager.
type Config struct {
	// Model is owned by the Manager and closed by Manager.Close when it
	// implements io.Closer.
	Model     tokstream.Model
	Personas  prompt.Catalog
	Injection prompt.Injection
	Budget    int
	Policy    Policy
	// FanOut receives fragments of every session.
	FanOut  *fanout.FanOut
	Yielder generation.Yielder
	Events  generation.EventPublisher
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.Budget <= 0 {
		c.Budget = generation.DefaultBudget
	}
	if c.Policy == "" {
		c.Policy = PolicyReject
	}
	if c.Injection == "" {
		c.Injection = prompt.InjectPerTurn
	}
	if c.FanOut == nil {
		c.FanOut = fanout.New(c.Logger, c.Metrics)
	}
	return c
}
