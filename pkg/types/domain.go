package types

import "time"

// Role identifies who produced a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StopReason records why a generation left the streaming state.
// The zero value means the generation has not stopped yet.
type StopReason string

const (
	StopNone                StopReason = ""
	StopTokenBudgetExceeded StopReason = "token_budget_exceeded"
	StopEndMarker           StopReason = "end_marker"
	StopCancelled           StopReason = "cancelled"
)

// Terminal reports whether r ends a generation.
func (r StopReason) Terminal() bool { return r != StopNone }

// Committed reports whether a generation that stopped for r produces an
// assistant Turn.
func (r StopReason) Committed() bool {
	return r == StopTokenBudgetExceeded || r == StopEndMarker
}

func (r StopReason) String() string {
	if r == StopNone {
		return "none"
	}
	return string(r)
}

// Turn is one committed utterance of the conversation. Turns are values;
// once appended to a transcript they are never edited.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	// Set on assistant turns only.
	StopReason StopReason `json:"stop_reason,omitempty"`
	Tokens     int        `json:"tokens,omitempty"`
}

// Persona describes the assistant voice used to build prompts.
type Persona struct {
	// Stable identifier used in configuration and on the command line.
	// example: ai-engineer
	ID string `json:"id" yaml:"id" toml:"id"`
	// Label shown in front of assistant output.
	// example: AIEngineer
	Name string `json:"name" yaml:"name" toml:"name"`
	// Assistant role label rendered into the prompt template.
	// example: AI Engineer
	Marker string `json:"marker" yaml:"marker" toml:"marker"`
	// Self-introduction appended after the assistant marker.
	Preamble string `json:"preamble" yaml:"preamble" toml:"preamble"`
}
